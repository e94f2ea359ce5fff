package audit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/audit"
	"github.com/odyssey-erp/odyssey-admin/internal/audit/audittest"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

func newCache(t *testing.T) *audit.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return audit.NewCache(client, 0)
}

func seed(t *testing.T, rec *audit.Recorder, tenantID string, n int) {
	t.Helper()
	ctx := principalCtx(tenantID, "u-"+tenantID, "Actor "+tenantID)
	for i := 0; i < n; i++ {
		require.NoError(t, rec.Record(ctx, audit.Event{
			Action:     audit.ActionCreate,
			EntityType: audit.EntitySale,
			EntityID:   fmt.Sprintf("%s-S-%d", tenantID, i),
		}))
	}
}

func TestReadRecentIsTenantScopedAndNewestFirst(t *testing.T) {
	store := audittest.NewStore()
	rec := audit.NewRecorder(store, nil)
	seed(t, rec, "t-1", 3)
	seed(t, rec, "t-2", 2)
	seed(t, rec, "t-1", 1)

	reader := audit.NewReader(store, nil, 0)
	entries, err := reader.ReadRecent(context.Background(), "t-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, "t-1", e.TenantID)
		if i > 0 {
			assert.True(t, e.CreatedAt.Before(entries[i-1].CreatedAt))
		}
	}
	assert.Equal(t, "t-1-S-0", entries[0].EntityID)
	assert.Equal(t, "t-1-S-0", entries[3].EntityID)
}

func TestReadRecentClampsLimit(t *testing.T) {
	store := audittest.NewStore()
	seed(t, audit.NewRecorder(store, nil), "t-1", 5)

	reader := audit.NewReader(store, nil, 3)
	entries, err := reader.ReadRecent(context.Background(), "t-1", 100)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = reader.ReadRecent(context.Background(), "t-1", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadRecentFailsClosedWithoutTenant(t *testing.T) {
	store := audittest.NewStore()
	seed(t, audit.NewRecorder(store, nil), "t-1", 1)
	reader := audit.NewReader(store, nil, 0)

	entries, err := reader.ReadRecent(context.Background(), "  ", 10)
	require.ErrorIs(t, err, shared.ErrMissingTenantScope)
	assert.Nil(t, entries)
	assert.Zero(t, store.Lists)

	_, err = reader.ReadRecentForSession(context.Background(), 10)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = reader.ReadRecentForSession(principalCtx("", "u-1", "Ana"), 10)
	require.ErrorIs(t, err, shared.ErrMissingTenantScope)
}

func TestReadRecentForSessionUsesSessionTenant(t *testing.T) {
	store := audittest.NewStore()
	rec := audit.NewRecorder(store, nil)
	seed(t, rec, "t-1", 2)
	seed(t, rec, "t-2", 1)

	entries, err := audit.NewReader(store, nil, 0).ReadRecentForSession(principalCtx("t-2", "u-x", "X"), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t-2", entries[0].TenantID)
}

func TestReadRecentPropagatesStoreError(t *testing.T) {
	store := audittest.NewStore()
	store.ListErr = errors.New("timeout")
	_, err := audit.NewReader(store, nil, 0).ReadRecent(context.Background(), "t-1", 0)
	require.EqualError(t, err, "timeout")
}

func TestRoundTripKeepsFieldsAndPayload(t *testing.T) {
	store := audittest.NewStore()
	rec := audit.NewRecorder(store, nil)
	details := audit.Details{"amount": 150.0, "currency": "USD", "partial": false, "note": nil}

	require.NoError(t, rec.Record(principalCtx("t-1", "u-1", "Ana"), audit.Event{
		Action:     audit.ActionApprove,
		EntityType: audit.EntityPurchase,
		EntityID:   "PO-42",
		Details:    details,
	}))
	details["amount"] = 999.0

	entries, err := audit.NewReader(store, nil, 0).ReadRecent(context.Background(), "t-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionApprove, entries[0].Action)
	assert.Equal(t, audit.EntityPurchase, entries[0].EntityType)
	assert.Equal(t, "PO-42", entries[0].EntityID)
	assert.Equal(t, audit.Details{"amount": 150.0, "currency": "USD", "partial": false, "note": nil}, entries[0].Details)
}

func TestCachedViewInvalidatedOnWrite(t *testing.T) {
	store := audittest.NewStore()
	cache := newCache(t)
	rec := audit.NewRecorder(store, nil, audit.WithCache(cache))
	reader := audit.NewReader(store, cache, 0)
	ctx := context.Background()

	seed(t, rec, "t-1", 1)
	first, err := reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Lists, "second read served from cache")

	seed(t, rec, "t-1", 1)
	after, err := reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	assert.Len(t, after, 2)
	assert.Equal(t, 2, store.Lists)
}

func TestCacheIsPerTenant(t *testing.T) {
	store := audittest.NewStore()
	cache := newCache(t)
	rec := audit.NewRecorder(store, nil, audit.WithCache(cache))
	reader := audit.NewReader(store, cache, 0)
	ctx := context.Background()

	seed(t, rec, "t-1", 1)
	seed(t, rec, "t-2", 1)
	_, err := reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	t2, err := reader.ReadRecent(ctx, "t-2", 0)
	require.NoError(t, err)
	require.Len(t, t2, 1)
	assert.Equal(t, "t-2", t2[0].TenantID)

	seed(t, rec, "t-2", 1)
	_, err = reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Lists, "t-1 view survives a t-2 write")
}

func TestCachedViewKeepsIntegerDetails(t *testing.T) {
	store := audittest.NewStore()
	cache := newCache(t)
	rec := audit.NewRecorder(store, nil, audit.WithCache(cache))
	reader := audit.NewReader(store, cache, 0)
	ctx := context.Background()

	require.NoError(t, rec.Record(principalCtx("t-1", "u-1", "Ana"), audit.Event{
		Action:     audit.ActionReceive,
		EntityType: audit.EntityInventory,
		EntityID:   "GRN-7",
		Details:    audit.Details{"qty": 12, "lot": uint64(9007199254740993), "weight": 2.0},
	}))

	fresh, err := reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	cached, err := reader.ReadRecent(ctx, "t-1", 0)
	require.NoError(t, err)
	require.Equal(t, 1, store.Lists, "second read served from cache")

	want := audit.Details{"qty": int64(12), "lot": int64(9007199254740993), "weight": 2.0}
	assert.Equal(t, want, fresh[0].Details)
	assert.Equal(t, want, cached[0].Details)
}

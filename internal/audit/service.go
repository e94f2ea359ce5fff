package audit

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Reader serves tenant-scoped audit reads.
type Reader struct {
	store    Store
	cache    *Cache
	maxLimit int
}

// NewReader constructs a Reader. maxLimit caps every read; zero means
// DefaultRecentLimit.
func NewReader(store Store, cache *Cache, maxLimit int) *Reader {
	if maxLimit <= 0 {
		maxLimit = DefaultRecentLimit
	}
	return &Reader{store: store, cache: cache, maxLimit: maxLimit}
}

// ReadRecent returns at most limit entries of tenantID, newest first. A blank
// tenant fails with shared.ErrMissingTenantScope instead of widening the read.
func (r *Reader) ReadRecent(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	scope, err := NewTenantScope(tenantID)
	if err != nil {
		return nil, err
	}
	return r.read(ctx, scope, limit)
}

// ReadRecentForSession reads the tenant of the session principal in ctx.
func (r *Reader) ReadRecentForSession(ctx context.Context, limit int) ([]Entry, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("audit: read recent: %w", shared.ErrUnauthenticated)
	}
	return r.ReadRecent(ctx, p.TenantID, limit)
}

func (r *Reader) read(ctx context.Context, scope TenantScope, limit int) ([]Entry, error) {
	if limit <= 0 || limit > r.maxLimit {
		limit = r.maxLimit
	}
	entries, err := r.cache.FetchRecent(ctx, scope, limit, func(ctx context.Context) ([]Entry, error) {
		return r.store.ListRecent(ctx, scope, limit)
	})
	if err != nil {
		return nil, err
	}
	// Stores are trusted to filter, but a foreign row must never leave here.
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.TenantID == scope.TenantID() {
			out = append(out, e)
		}
	}
	return out, nil
}

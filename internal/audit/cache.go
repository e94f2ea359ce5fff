package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps per-tenant recent-entry views in Redis. Keys carry a tenant
// version which Invalidate bumps after every successful write, so a stale
// view is simply never read again and expires with its TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func versionKey(scope TenantScope) string {
	return "audit:version:" + scope.TenantID()
}

func (c *Cache) version(ctx context.Context, scope TenantScope) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// RecentKey composes the versioned key of the recent view for scope.
func (c *Cache) RecentKey(ctx context.Context, scope TenantScope, limit int) (string, error) {
	ver, err := c.version(ctx, scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("audit:recent:%s:%d:%d", scope.TenantID(), limit, ver), nil
}

// FetchRecent returns the cached view or populates it using loader. Redis
// failures degrade to calling loader directly.
func (c *Cache) FetchRecent(ctx context.Context, scope TenantScope, limit int, loader func(context.Context) ([]Entry, error)) ([]Entry, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.RecentKey(ctx, scope, limit)
	if err != nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entries []Entry
		if err := json.Unmarshal(payload, &entries); err != nil {
			return nil, fmt.Errorf("audit: decode cached view: %w", err)
		}
		return entries, nil
	}
	if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	entries, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(entries); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return entries, nil
}

// Invalidate bumps the tenant version so that previously cached views are no
// longer addressed.
func (c *Cache) Invalidate(ctx context.Context, scope TenantScope) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(scope)).Err()
}

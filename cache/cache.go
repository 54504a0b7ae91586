// Package cache provides the cache-aside layer shared by rates and fees:
// versioned keys, short TTLs, and pattern invalidation on write. Callers
// never treat a cache failure as fatal — implementations return cache
// errors, and GetOrLoad and the rates service treat them as a "cache miss"
// rather than propagating them up to business logic
// (spec §4.D/§4.C: serve stale-tolerant reads, always re-verify against the
// store of record before acting).
package cache

import (
	"context"
	"time"
)

// Cache is the interface rates.Service and fees.Engine use for read-through
// caching. Implementations: RedisCache (production), MemoryCache (tests,
// single-process deployments).
type Cache interface {
	// Get returns the cached value for key and whether it was present and
	// unexpired. A false ok with a nil error means "not cached" — the caller
	// should fall through to the store of record.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob-style pattern (e.g.
	// "v1:rate:USD:*"), used when a rate or fee update must invalidate every
	// cached variant at once.
	DeletePattern(ctx context.Context, pattern string) error

	// Ping checks connectivity to the backing store, if any. MemoryCache
	// always returns nil.
	Ping(ctx context.Context) error
}

// GetOrLoad is a convenience helper implementing the cache-aside pattern:
// try the cache, and on a miss call load and populate the cache with its
// result. Cache errors are logged by the caller via the returned error being
// nil — GetOrLoad treats them the same as a miss so callers never have to
// special-case cache outages.
func GetOrLoad(ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (string, error)) (string, error) {
	if v, ok, err := c.Get(ctx, key); err == nil && ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return "", err
	}

	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

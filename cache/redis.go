package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	bridgeerrors "github.com/cngnbridge/core/errors"
	"github.com/cngnbridge/core/logging"
)

// RedisCache is a Cache backed by go-redis, the production implementation.
type RedisCache struct {
	client *redis.Client
	log    *logging.Entry
}

// NewRedisCache wraps an existing redis.Client. The caller owns the
// client's lifecycle (construction, Close).
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		log:    logging.For("cache.redis"),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache get failed")
		return "", false, bridgeerrors.NewCacheError(bridgeerrors.NETWORK_ERROR, "redis GET failed", err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
		return bridgeerrors.NewCacheError(bridgeerrors.NETWORK_ERROR, "redis SET failed", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache delete failed")
		return bridgeerrors.NewCacheError(bridgeerrors.NETWORK_ERROR, "redis DEL failed", err)
	}
	return nil
}

// DeletePattern scans for keys matching pattern and deletes them in
// batches. It uses SCAN rather than KEYS so it never blocks a shared Redis
// instance under load.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.log.WithError(err).WithField("pattern", pattern).Warn("cache scan failed")
			return bridgeerrors.NewCacheError(bridgeerrors.NETWORK_ERROR, "redis SCAN failed", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.WithError(err).WithField("pattern", pattern).Warn("cache batch delete failed")
				return bridgeerrors.NewCacheError(bridgeerrors.NETWORK_ERROR, "redis DEL (batch) failed", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return bridgeerrors.NewCacheError(bridgeerrors.NETWORK_ERROR, "redis PING failed", err)
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)

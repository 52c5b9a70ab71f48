package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache caches extracted page text in Redis so repeated research runs
// over the same sources skip the network fetch.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed page cache. A non-positive ttl
// defaults to one hour.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached content for url, if present.
func (c *RedisCache) Get(ctx context.Context, url string) (string, bool) {
	content, err := c.client.Get(ctx, cacheKey(url)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Page cache read failed", zap.String("url", url), zap.Error(err))
		}
		return "", false
	}
	return content, true
}

// Set stores the content for url. Cache write failures are logged and
// otherwise ignored.
func (c *RedisCache) Set(ctx context.Context, url, content string) {
	if err := c.client.Set(ctx, cacheKey(url), content, c.ttl).Err(); err != nil {
		c.logger.Warn("Page cache write failed", zap.String("url", url), zap.Error(err))
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "trident:page:" + hex.EncodeToString(sum[:16])
}

package mongostore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	userCacheTTL   = time.Minute
	ratingCacheTTL = 10 * time.Minute
)

// cache is a best-effort read-through layer over redis. A miss or a redis
// failure falls back to the collection; writers invalidate.
type cache struct {
	rdb *redis.Client
	log *zap.Logger
}

func newCache(rdb *redis.Client, log *zap.Logger) *cache {
	return &cache{rdb: rdb, log: log}
}

func (c *cache) get(ctx context.Context, key string, dest any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.invalidate(ctx, key)
		return false
	}
	return true
}

func (c *cache) put(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *cache) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Debug("cache invalidate failed", zap.Error(err))
	}
}

func (c *cache) close() {
	_ = c.rdb.Close()
}

func userKey(id string) string     { return "user:" + id }
func ratingKey(kind string) string { return "ratings:" + kind }

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
	"github.com/fluentora/fluentora-backend/internal/services"
)

const flagKeyPrefix = "flag:"

// flagCache is a shared flag definition cache backed by redis. Unlike the
// process-local cache, Invalidate here is visible to every instance, so flag
// toggles propagate without waiting out the TTL.
type flagCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewFlagCache(log *logger.Logger, ttl time.Duration) (services.FlagCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &flagCache{
		log: log.With("client", "RedisFlagCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *flagCache) Get(ctx context.Context, key string) (*types.FeatureFlag, bool) {
	raw, err := c.rdb.Get(ctx, flagKeyPrefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Redis flag read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var flag types.FeatureFlag
	if err := json.Unmarshal(raw, &flag); err != nil {
		c.log.Warn("Cached flag is undecodable, dropping", "key", key, "error", err)
		_ = c.rdb.Del(ctx, flagKeyPrefix+key).Err()
		return nil, false
	}
	return &flag, true
}

func (c *flagCache) Set(ctx context.Context, key string, flag *types.FeatureFlag) {
	raw, err := json.Marshal(flag)
	if err != nil {
		c.log.Warn("Encoding flag for cache failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, flagKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Redis flag write failed", "key", key, "error", err)
	}
}

func (c *flagCache) Invalidate(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, flagKeyPrefix+key).Err(); err != nil {
		c.log.Warn("Redis flag invalidation failed", "key", key, "error", err)
	}
}

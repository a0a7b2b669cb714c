package services

import (
	"context"
	"sync"
	"time"

	types "github.com/fluentora/fluentora-backend/internal/domain"
)

// FlagCache caches flag definitions (not decisions) keyed by flag key.
// The default implementation is process-local with a TTL, so a flag change
// is eventually consistent across instances within the TTL window; callers
// must not assume read-after-write consistency for toggles across instances.
// A shared invalidation-on-write cache can be swapped in without touching
// evaluation logic (see clients/redis).
type FlagCache interface {
	Get(ctx context.Context, key string) (*types.FeatureFlag, bool)
	Set(ctx context.Context, key string, flag *types.FeatureFlag)
	Invalidate(ctx context.Context, key string)
}

type localCacheEntry struct {
	flag      *types.FeatureFlag
	expiresAt time.Time
}

type localFlagCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]localCacheEntry
	now     func() time.Time
}

func NewLocalFlagCache(ttl time.Duration) FlagCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &localFlagCache{
		ttl:     ttl,
		entries: make(map[string]localCacheEntry),
		now:     time.Now,
	}
}

func (c *localFlagCache) Get(_ context.Context, key string) (*types.FeatureFlag, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.flag, true
}

func (c *localFlagCache) Set(_ context.Context, key string, flag *types.FeatureFlag) {
	c.mu.Lock()
	c.entries[key] = localCacheEntry{flag: flag, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *localFlagCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chartwell/trellis/internal/hierarchy"
)

// statsCache is a TTL cache for hierarchy stats with singleflight
// coalescing, so a burst of dashboard polls costs one aggregate query.
type statsCache struct {
	mu       sync.RWMutex
	stats    *hierarchy.Stats
	loadedAt time.Time
	ttl      time.Duration
	group    singleflight.Group
	svc      *hierarchy.Service
}

func newStatsCache(svc *hierarchy.Service, ttl time.Duration) *statsCache {
	return &statsCache{
		svc: svc,
		ttl: ttl,
	}
}

// Stats returns cached stats or recomputes them. Concurrent callers
// share a single query via singleflight.
func (c *statsCache) Stats(ctx context.Context) (*hierarchy.Stats, error) {
	c.mu.RLock()
	if c.stats != nil && time.Since(c.loadedAt) < c.ttl {
		stats := c.stats
		c.mu.RUnlock()
		return stats, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do("stats", func() (any, error) {
		// Re-check after winning the singleflight slot; a racing
		// caller may already have refreshed the cache.
		c.mu.RLock()
		if c.stats != nil && time.Since(c.loadedAt) < c.ttl {
			stats := c.stats
			c.mu.RUnlock()
			return stats, nil
		}
		c.mu.RUnlock()

		stats, err := c.svc.Stats(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.stats = stats
		c.loadedAt = time.Now()
		c.mu.Unlock()

		return stats, nil
	})

	if err != nil {
		return nil, err
	}

	return result.(*hierarchy.Stats), nil
}

// Invalidate clears the cache, forcing the next Stats call to reload.
func (c *statsCache) Invalidate() {
	c.mu.Lock()
	c.stats = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

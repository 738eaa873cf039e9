package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/metrics"
)

// MemoryCache keeps event ids in a size-bounded LRU. Each entry stores its
// expiry; expired entries are treated as absent on lookup and removed by Sweep.
// When capacity is reached the least recently added id is evicted early.
type MemoryCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, time.Time]
	window  time.Duration
	now     Clock
	log     logger.Logger
}

type MemoryOption func(*MemoryCache)

func WithClock(now Clock) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

func WithLogger(log logger.Logger) MemoryOption {
	return func(c *MemoryCache) {
		c.log = log
	}
}

func NewMemoryCache(window time.Duration, maxEntries int, opts ...MemoryOption) (*MemoryCache, error) {
	if window <= 0 {
		window = constants.DefaultDedupWindow
	}
	if maxEntries <= 0 {
		maxEntries = constants.DefaultDedupEntries
	}

	entries, err := lru.New[string, time.Time](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}

	c := &MemoryCache{
		entries: entries,
		window:  window,
		now:     time.Now,
		log:     logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *MemoryCache) ShouldProcess(ctx context.Context, eventID string) bool {
	start := time.Now()

	c.mu.Lock()
	now := c.now()
	expiresAt, ok := c.entries.Peek(eventID)
	duplicate := ok && now.Before(expiresAt)
	if !duplicate {
		c.entries.Add(eventID, now.Add(c.window))
	}
	c.mu.Unlock()

	status := "unique"
	if duplicate {
		status = "duplicate"
		c.log.DebugwCtx(ctx, "Duplicate event suppressed", "event_id", eventID)
	}
	metrics.DedupChecksTotal.WithLabelValues(constants.DedupBackendMemory, status).Inc()
	metrics.ObserveDedupDuration(time.Since(start), status)

	return !duplicate
}

func (c *MemoryCache) Release(ctx context.Context, eventID string) {
	c.mu.Lock()
	c.entries.Remove(eventID)
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, id := range c.entries.Keys() {
		expiresAt, ok := c.entries.Peek(id)
		if ok && !now.Before(expiresAt) {
			c.entries.Remove(id)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Run sweeps every interval and publishes the cache size until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				c.log.Debugw("Swept expired dedup entries", "removed", removed)
			}
			metrics.SetDedupCacheSize(c.Len())
		case <-ctx.Done():
			return
		}
	}
}

package feeds

import (
	"sync"
	"time"
)

type cacheEntry struct {
	timestamp time.Time
	data      any
}

// HotCache keeps the last successful result per key. Entries expire after a
// flat TTL and are never evicted, so a stale copy stays available as fallback.
type HotCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewHotCache(ttl time.Duration) *HotCache {
	return &HotCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Fresh returns the entry for key when it is younger than the TTL.
func (c *HotCache) Fresh(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.timestamp) >= c.ttl {
		return nil, false
	}
	return e.data, true
}

// Stale returns the entry for key regardless of age.
func (c *HotCache) Stale(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e.data, ok
}

func (c *HotCache) Set(key string, data any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{timestamp: c.now(), data: data}
	c.mu.Unlock()
}

func (c *HotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

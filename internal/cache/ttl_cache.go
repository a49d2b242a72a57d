// Package cache is a small in-memory TTL cache used to keep repeated
// market API calls off the wire.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value   any
	expires time.Time
}

// TTLCache holds values until their per-entry deadline passes. Expired
// entries are dropped lazily on read.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time
}

func New() *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

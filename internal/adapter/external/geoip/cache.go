package geoip

import (
	"sync"
	"time"
)

// lookupCache provides thread-safe caching for per-address provider payloads
type lookupCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	maxSize int
	ttl     time.Duration
}

type cacheEntry[T any] struct {
	data      T
	expiresAt time.Time
}

func newLookupCache[T any](maxSize int, ttl time.Duration) *lookupCache[T] {
	return &lookupCache[T]{
		entries: make(map[string]cacheEntry[T]),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *lookupCache[T]) Get(ip string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ip]
	if !ok || time.Now().After(entry.expiresAt) {
		var zero T
		return zero, false
	}
	return entry.data, true
}

func (c *lookupCache[T]) Set(ip string, data T) {
	if c.ttl <= 0 || c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction: if at max size, remove 10%
	if len(c.entries) >= c.maxSize {
		count := 0
		toDelete := c.maxSize/10 + 1
		for key := range c.entries {
			delete(c.entries, key)
			count++
			if count >= toDelete {
				break
			}
		}
	}

	c.entries[ip] = cacheEntry[T]{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *lookupCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

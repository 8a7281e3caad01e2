// Package refcache provides an explicitly owned TTL cache for static
// reference lists (metro membership, crosswalk entries). It is constructed
// once at process start and passed by reference to the components that
// need it.
package refcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	expiry time.Time
	value  any
}

// Cache is a thread-safe get-or-load cache with a fixed TTL.
type Cache struct {
	entries map[string]entry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// New creates a cache with the specified TTL.
func New(ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = 15 * time.Minute // Default TTL
	}

	cache := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// GetOrLoad returns the cached value for key, invoking loader to populate
// it when absent or expired. Concurrent callers for the same cold key may
// each invoke the loader; the last write wins, which is safe for the
// immutable reference lists stored here.
func (c *Cache) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if exists && time.Now().Before(e.expiry) {
		return e.value, nil
	}

	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{
		value:  value,
		expiry: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	return value, nil
}

// Invalidate removes one key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// cleanup periodically removes expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, e := range c.entries {
				if now.After(e.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *Cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	close(c.stopCh)
}

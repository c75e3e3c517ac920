package sheetedit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a fetched snapshot is served from memory
const DefaultCacheTTL = 600 * time.Second

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a time-bounded memo of fetched values with explicit invalidation.
// Concurrent misses on one key share a single fetch.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry[V]
	group   singleflight.Group
	now     func() time.Time
	gen     map[string]uint64 // bumped on Invalidate so in-flight fetches are not stored
	pending map[string]int    // fetches in flight per key
}

// CacheOption configures a Cache
type CacheOption func(*cacheSettings)

type cacheSettings struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) CacheOption {
	return func(s *cacheSettings) { s.now = now }
}

// NewCache creates a new Cache instance
func NewCache[V any](opts ...CacheOption) *Cache[V] {
	s := cacheSettings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		gen:     make(map[string]uint64),
		pending: make(map[string]int),
		now:     s.now,
	}
}

// Get returns a live entry without fetching
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrFetch returns the cached value for key, calling fetch when the entry is
// missing or older than ttl. Errors are returned and not cached.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		c.mu.Lock()
		gen := c.gen[key]
		c.pending[key]++
		c.mu.Unlock()

		v, err := fetch(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending[key]--; c.pending[key] == 0 {
			delete(c.pending, key)
		}
		if err != nil {
			return nil, err
		}
		if c.gen[key] == gen {
			c.entries[key] = &cacheEntry[V]{value: v, expires: c.now().Add(ttl)}
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate drops the entry for key
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.gen[key]++
	c.group.Forget(key)
}

// Clear removes all entries. Fetches still in flight are not stored.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		c.gen[key]++
	}
	for key := range c.pending {
		if _, ok := c.entries[key]; !ok {
			c.gen[key]++
		}
		c.group.Forget(key)
	}
	c.entries = make(map[string]*cacheEntry[V])
}

// Len returns the number of entries, expired ones included
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Package querycache is a small in-process TTL cache for read-side query
// results, with prefix invalidation and an optimistic update wrapper for
// write paths.
package querycache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache maps string keys to values with one TTL for all entries. Expired
// entries are dropped lazily on access. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]

	now func() time.Time // overridable in tests
}

// New creates a Cache whose entries live for ttl after each Put.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, restarting its TTL.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// Invalidate drops one key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix drops every key starting with prefix. Mutating
// endpoints use it to clear a whole family of listing keys at once.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of stored entries, including not-yet-collected
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Optimistic wraps a Cache with an update protocol for write paths: the
// stale entry is dropped before the operation runs, the fresh result is
// cached on success, and the previous value is restored as last known-good
// on failure.
type Optimistic[V any] struct {
	cache *Cache[V]
}

// NewOptimistic wraps cache.
func NewOptimistic[V any](cache *Cache[V]) *Optimistic[V] {
	return &Optimistic[V]{cache: cache}
}

// Update runs op for key per the optimistic protocol and returns op's
// result unchanged.
func (o *Optimistic[V]) Update(key string, op func() (V, error)) (V, error) {
	prev, had := o.cache.Get(key)
	o.cache.Invalidate(key)

	v, err := op()
	if err != nil {
		if had {
			o.cache.Put(key, prev)
		}
		var zero V
		return zero, err
	}
	o.cache.Put(key, v)
	return v, nil
}

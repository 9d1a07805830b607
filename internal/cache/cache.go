// Package cache provides a capacity-bounded, TTL-aware key→value store
// with an injected clock, so callers that front slow lookups can be
// tested without wall-clock time.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Clock supplies the current time. Inject a fake in tests.
type Clock func() time.Time

// Cache is a bounded LRU with per-entry expiry. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      Clock

	order   *list.List // front = most recently used
	entries map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// New creates a cache holding at most capacity entries, each valid for
// ttl after insertion. A nil clock defaults to time.Now. Capacity must
// be positive; a zero ttl means entries never expire.
func New[K comparable, V any](capacity int, ttl time.Duration, now Clock) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		order:    list.New(),
		entries:  make(map[K]*list.Element),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.ttl > 0 && !c.now().Before(ent.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

// Set stores value under key, evicting the least recently used entry
// when the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[K, V]).key)
		}
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expires})
}

// Len returns the number of entries, including any not yet swept expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

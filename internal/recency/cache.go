package recency

import (
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 1000

// Cache is a size-bounded LRU map safe for concurrent use.
type Cache[K comparable, V any] struct {
	capacity int
	lru      *lru.Cache[K, V]
}

// New returns a cache holding at most capacity entries.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := lru.New[K, V](capacity)
	if err != nil {
		// lru.New only rejects non-positive sizes.
		panic(err)
	}
	return &Cache[K, V]{capacity: capacity, lru: inner}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Set stores value under key. Existing keys are updated and promoted; a new
// key on a full cache evicts the single least recently used entry first.
func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// SetMultiple applies Set to every entry of values.
func (c *Cache[K, V]) SetMultiple(values map[K]V) {
	for key, value := range values {
		c.lru.Add(key, value)
	}
}

// Has reports whether key is cached without changing its recency.
func (c *Cache[K, V]) Has(key K) bool {
	return c.lru.Contains(key)
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}

// GetAll returns a copy of the cached entries without changing recency.
func (c *Cache[K, V]) GetAll() map[K]V {
	keys := c.lru.Keys()
	out := make(map[K]V, len(keys))
	for _, key := range keys {
		if value, ok := c.lru.Peek(key); ok {
			out[key] = value
		}
	}
	return out
}

// Keys returns cached keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	keys := c.lru.Keys()
	slices.Reverse(keys)
	return keys
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

package cache

import (
	"container/list"
	"sync"
)

// LRUCache is a fixed-capacity map that evicts the least recently used key.
// Reads through Get and writes through Set/Update both count as a use.
type LRUCache[K comparable, V any] struct {
	cache    map[K]*entry[K, V]
	order    *list.List
	onEvict  func(key K, value V)
	capacity int
	mu       sync.Mutex
}

type entry[K comparable, V any] struct {
	element *list.Element
	key     K
	value   V
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	if capacity <= 0 {
		capacity = 1000
	}

	return &LRUCache[K, V]{
		capacity: capacity,
		cache:    make(map[K]*entry[K, V]),
		order:    list.New(),
	}
}

// OnEvict registers a callback invoked, with the lock held, for every
// capacity eviction. It is not called for Remove or Clear.
func (c *LRUCache[K, V]) OnEvict(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a value and marks the key as most recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.order.MoveToFront(e.element)
	return e.value, true
}

// Peek retrieves a value without changing the recency order.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.cache[key]; ok {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Set stores a value, evicting the least recently used key if needed.
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// Update replaces the value of key with fn(current, exists) in one critical
// section, so read-modify-write sequences are not interleaved.
func (c *LRUCache[K, V]) Update(key K, fn func(current V, exists bool) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current V
	e, ok := c.cache[key]
	if ok {
		current = e.value
	}
	next := fn(current, ok)
	c.set(key, next)
	return next
}

// set must be called with lock held.
func (c *LRUCache[K, V]) set(key K, value V) {
	if e, ok := c.cache[key]; ok {
		e.value = value
		c.order.MoveToFront(e.element)
		return
	}

	for len(c.cache) >= c.capacity {
		c.evictOldest()
	}

	e := &entry[K, V]{
		key:   key,
		value: value,
	}
	e.element = c.order.PushFront(e)
	c.cache[key] = e
}

// Remove removes a specific entry from the cache.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.cache[key]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Size returns the number of entries in the cache.
func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Capacity returns the maximum capacity of the cache.
func (c *LRUCache[K, V]) Capacity() int {
	return c.capacity
}

// Contains checks if a key exists in the cache (without updating access order).
func (c *LRUCache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[key]
	return ok
}

// Keys returns the keys from most to least recently used.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Clear removes all entries from the cache.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[K]*entry[K, V])
	c.order.Init()
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *LRUCache[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}

	e, ok := oldest.Value.(*entry[K, V])
	if !ok {
		return
	}
	c.removeEntry(e)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

// removeEntry must be called with lock held.
func (c *LRUCache[K, V]) removeEntry(e *entry[K, V]) {
	c.order.Remove(e.element)
	delete(c.cache, e.key)
}

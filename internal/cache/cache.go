// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import "sync"

// Cache is a thread-safe LRU cache holding at most Capacity entries.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*lruNode[K, V]
	order    lruList[K, V]
	capacity int

	hits, misses, evictions uint64
}

// New creates a cache holding up to capacity entries.
// A capacity of 0 or less disables caching: Set is a no-op.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  make(map[K]*lruNode[K, V]),
		capacity: capacity,
	}
}

// Get returns the cached value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(n)
	return n.value, true
}

// Set stores value under key, evicting the least recently used entry
// when the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		n.value = value
		c.order.MoveToFront(n)
		return
	}
	c.entries[key] = c.order.PushFront(key, value)
	for c.order.len > c.capacity {
		old := c.order.RemoveOldest()
		delete(c.entries, old.key)
		c.evictions++
	}
}

// Delete removes key. It reports whether the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(n)
	delete(c.entries, key)
	return true
}

// Clear removes all entries. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*lruNode[K, V])
	c.order = lruList[K, V]{}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Package cache holds the associative primitives used by the unigram trainer:
// a bounded map with deterministic iteration and an LRU memo.
package cache

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// Map is a hash map with an optional entry bound. Iteration through Keys and
// All is in ascending key order so that callers depending on it produce the
// same output on every run.
type Map[K cmp.Ordered, V any] struct {
	limit int
	m     map[K]V
}

// NewMap returns a map that holds at most limit entries. limit <= 0 means
// unbounded.
func NewMap[K cmp.Ordered, V any](limit int) *Map[K, V] {
	size := limit
	if size <= 0 || size > 1<<16 {
		size = 0
	}

	return &Map[K, V]{limit: limit, m: make(map[K]V, size)}
}

// Get returns the value stored for key.
func (c *Map[K, V]) Get(key K) (V, bool) {
	v, ok := c.m[key]
	return v, ok
}

// Contains reports whether key is present.
func (c *Map[K, V]) Contains(key K) bool {
	_, ok := c.m[key]
	return ok
}

// Set stores value for key. Inserting a new key into a full map is refused
// and reported as false; overwriting an existing key always succeeds.
func (c *Map[K, V]) Set(key K, value V) bool {
	if _, ok := c.m[key]; !ok && c.Full() {
		return false
	}

	c.m[key] = value

	return true
}

// Delete removes key and reports whether it was present.
func (c *Map[K, V]) Delete(key K) bool {
	if _, ok := c.m[key]; !ok {
		return false
	}

	delete(c.m, key)

	return true
}

// Len returns the number of entries.
func (c *Map[K, V]) Len() int { return len(c.m) }

// Full reports whether a new key would be refused.
func (c *Map[K, V]) Full() bool { return c.limit > 0 && len(c.m) >= c.limit }

// Clear removes every entry.
func (c *Map[K, V]) Clear() { clear(c.m) }

// Keys returns the keys in ascending order.
func (c *Map[K, V]) Keys() []K {
	return slices.Sorted(maps.Keys(c.m))
}

// All iterates entries in ascending key order.
func (c *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range c.Keys() {
			if !yield(k, c.m[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy with the same bound.
func (c *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{limit: c.limit, m: maps.Clone(c.m)}
}

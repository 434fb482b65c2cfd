package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a fixed-capacity memo that evicts the least recently used entry.
type LRU[K comparable, V any] struct {
	c *lru.Cache[K, V]

	hits, misses uint64
}

// NewLRU returns an LRU holding at most capacity entries.
func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	c, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("lru cache of size %d: %w", capacity, err)
	}

	return &LRU[K, V]{c: c}, nil
}

// Get returns the cached value for key and marks it most recently used.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := l.c.Get(key)
	if ok {
		l.hits++
	} else {
		l.misses++
	}

	return v, ok
}

// Put stores value for key, evicting the oldest entry when full. It reports
// whether an eviction happened.
func (l *LRU[K, V]) Put(key K, value V) bool {
	return l.c.Add(key, value)
}

// Len returns the number of cached entries.
func (l *LRU[K, V]) Len() int { return l.c.Len() }

// Purge drops every entry and resets the hit counters.
func (l *LRU[K, V]) Purge() {
	l.c.Purge()
	l.hits, l.misses = 0, 0
}

// Stats returns hit and miss counts since the last Purge.
func (l *LRU[K, V]) Stats() (hits, misses uint64) { return l.hits, l.misses }

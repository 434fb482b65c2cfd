// Package pqueue provides a max-priority index with lazy deletion.
//
// Updates and removals never touch the heap: they change the live frequency
// table (or tombstone a key) and leave the old heap entry in place. Pop and
// Peek discard entries whose key is tombstoned or whose stored frequency no
// longer matches the live one.
package pqueue

import (
	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

type entry[K comparable] struct {
	key  K
	freq uint64
}

// Index orders keys by frequency descending, breaking ties with the key
// comparator ascending. The zero value is not usable; call New.
type Index[K comparable] struct {
	heap    *heap.Heap[entry[K]]
	live    map[K]uint64
	removed map[K]struct{}
}

// New returns an empty index. compareKeys must be a total order; it decides
// which of two equal-frequency keys pops first (the smaller one).
func New[K comparable](compareKeys func(a, b K) int) *Index[K] {
	return &Index[K]{
		heap: heap.NewWith(func(a, b entry[K]) int {
			switch {
			case a.freq > b.freq:
				return -1
			case a.freq < b.freq:
				return 1
			default:
				return compareKeys(a.key, b.key)
			}
		}),
		live:    make(map[K]uint64),
		removed: make(map[K]struct{}),
	}
}

// Push sets the live frequency of key and enqueues it. Pushing a key that is
// already present behaves like Update.
func (x *Index[K]) Push(key K, freq uint64) {
	delete(x.removed, key)
	x.live[key] = freq
	x.heap.Push(entry[K]{key: key, freq: freq})
}

// Update changes the frequency of key; the previous heap entry goes stale.
func (x *Index[K]) Update(key K, freq uint64) {
	if cur, ok := x.live[key]; ok && cur == freq {
		return
	}

	x.Push(key, freq)
}

// Remove tombstones key. It reports whether the key was live.
func (x *Index[K]) Remove(key K) bool {
	if _, ok := x.live[key]; !ok {
		return false
	}

	delete(x.live, key)
	x.removed[key] = struct{}{}

	return true
}

// Freq returns the live frequency of key.
func (x *Index[K]) Freq(key K) (uint64, bool) {
	f, ok := x.live[key]
	return f, ok
}

// Len returns the number of live keys.
func (x *Index[K]) Len() int { return len(x.live) }

// Empty reports whether no live key remains.
func (x *Index[K]) Empty() bool { return len(x.live) == 0 }

// Stale returns the number of heap entries that no longer reflect a live key.
func (x *Index[K]) Stale() int { return x.heap.Size() - len(x.live) }

// Peek returns the highest-priority live key without removing it.
func (x *Index[K]) Peek() (K, uint64, bool) {
	x.dropStale()

	top, ok := x.heap.Peek()
	if !ok {
		var zero K
		return zero, 0, false
	}

	return top.key, top.freq, true
}

// Pop removes and returns the highest-priority live key.
func (x *Index[K]) Pop() (K, uint64, bool) {
	x.dropStale()

	top, ok := x.heap.Pop()
	if !ok {
		var zero K
		return zero, 0, false
	}

	delete(x.live, top.key)

	return top.key, top.freq, true
}

// Compact rebuilds the heap from the live table, dropping every stale entry
// and clearing the tombstones.
func (x *Index[K]) Compact() {
	x.heap.Clear()
	for k, f := range x.live {
		x.heap.Push(entry[K]{key: k, freq: f})
	}

	clear(x.removed)
}

func (x *Index[K]) dropStale() {
	for {
		top, ok := x.heap.Peek()
		if !ok || x.valid(top) {
			return
		}

		x.heap.Pop()
	}
}

func (x *Index[K]) valid(e entry[K]) bool {
	if _, gone := x.removed[e.key]; gone {
		return false
	}

	f, ok := x.live[e.key]

	return ok && f == e.freq
}

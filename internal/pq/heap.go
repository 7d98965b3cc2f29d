package pq

import (
	"container/heap"
	"fmt"
	"math"
)

// entry is one element resident in the heap.
type entry[T Item] struct {
	item T
	key  float64
	seq  uint64 // For stable ordering of equal keys
}

// entryHeap implements heap.Interface for entries ordered by key.
type entryHeap[T Item] []entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].key == h[j].key {
		return h[i].seq < h[j].seq
	}
	return h[i].key < h[j].key
}

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) {
	*h = append(*h, x.(entry[T]))
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{}
	*h = old[0 : n-1]
	return e
}

// Heap is the exact-order backend: a binary min-heap on Key with ties broken
// by insertion order. It is the correctness oracle for the bucket queues.
// A Heap is not safe for concurrent use.
type Heap[T Item] struct {
	entries entryHeap[T]
	nextSeq uint64
}

// NewHeap creates an empty heap.
func NewHeap[T Item]() *Heap[T] {
	h := &Heap[T]{
		entries: make(entryHeap[T], 0),
	}
	heap.Init(&h.entries)
	return h
}

// Push inserts item in O(log n). NaN keys have no order and are rejected.
func (h *Heap[T]) Push(item T) error {
	key := item.Key()
	if math.IsNaN(key) {
		return fmt.Errorf("pq push: %w: %v", ErrInvalidKey, key)
	}
	heap.Push(&h.entries, entry[T]{item: item, key: key, seq: h.nextSeq})
	h.nextSeq++
	return nil
}

// Pop removes and returns the minimum-key item.
func (h *Heap[T]) Pop() (T, bool, error) {
	if h.entries.Len() == 0 {
		var zero T
		return zero, false, nil
	}
	e := heap.Pop(&h.entries).(entry[T])
	return e.item, true, nil
}

// Peek returns the minimum-key item without removing it.
func (h *Heap[T]) Peek() (T, bool, error) {
	if h.entries.Len() == 0 {
		var zero T
		return zero, false, nil
	}
	return h.entries[0].item, true, nil
}

// IsEmpty returns true if there are no pending items.
func (h *Heap[T]) IsEmpty() bool { return h.entries.Len() == 0 }

// Len returns the number of pending items.
func (h *Heap[T]) Len() int { return h.entries.Len() }

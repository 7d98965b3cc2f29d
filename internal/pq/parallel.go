package pq

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// BatchConfig tunes the bulk operations of a Parallel queue.
type BatchConfig struct {
	// MaxBatch caps the number of items one BulkPop removes; 0 swaps out
	// the whole bucket in a single critical section.
	MaxBatch int

	// Workers bounds how many goroutines run a BulkProcess transform; 0 uses GOMAXPROCS.
	Workers int
}

// lockedBucket is one bucket and the lock that owns it.
type lockedBucket[T Item] struct {
	mu     sync.Mutex
	items  fifo[T]
	poison error
}

func (b *lockedBucket[T]) occupied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.len() > 0 || b.poison != nil
}

// Parallel is the lock-per-bucket calendar queue. No lock is held across more
// than one bucket, and user transforms never run under a lock.
//
// The cursor is a hint. It is packed with a push generation into one atomic
// word so that a scan that advanced past a bucket cannot overwrite the lower
// cursor published by a push that landed behind it; emptiness is still decided
// by scanning forward under the bucket locks.
type Parallel[T Item] struct {
	width   float64
	buckets []lockedBucket[T]
	state   atomic.Uint64 // generation<<32 | cursor
	size    atomic.Int64  // only changed under the lock of the bucket being touched

	maxBatch int
	workers  int
}

// NewParallel creates a queue of count buckets of the given width.
func NewParallel[T Item](count int, width float64, cfg BatchConfig) (*Parallel[T], error) {
	if err := validateGeometry(count, width); err != nil {
		return nil, err
	}
	if cfg.MaxBatch < 0 {
		return nil, fmt.Errorf("%w: max batch %d", ErrInvalidConfig, cfg.MaxBatch)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers %d", ErrInvalidConfig, cfg.Workers)
	}
	p := &Parallel[T]{
		width:    width,
		buckets:  make([]lockedBucket[T], count),
		maxBatch: cfg.MaxBatch,
		workers:  defaultWorkers(cfg.Workers),
	}
	p.state.Store(uint64(count))
	return p, nil
}

func cursorOf(w uint64) int { return int(uint32(w)) }

func pack(gen uint64, cursor int) uint64 { return gen<<32 | uint64(uint32(cursor)) }

// publish bumps the generation and lowers the cursor to idx if it is lower.
func (p *Parallel[T]) publish(idx int) {
	for {
		w := p.state.Load()
		c := cursorOf(w)
		if idx < c {
			c = idx
		}
		if p.state.CompareAndSwap(w, pack(w>>32+1, c)) {
			return
		}
	}
}

// settle scans forward from the cursor to the first occupied bucket and
// stores it as the new hint. It returns len(buckets) when every bucket is empty.
func (p *Parallel[T]) settle() int {
	for {
		w := p.state.Load()
		i := cursorOf(w)
		for i < len(p.buckets) && !p.buckets[i].occupied() {
			i++
		}
		if i == cursorOf(w) || p.state.CompareAndSwap(w, pack(w>>32, i)) {
			return i
		}
	}
}

// Push appends item to bucket floor(key/width). Pushing into a poisoned bucket
// keeps the item but reports the poison.
func (p *Parallel[T]) Push(item T) error {
	idx, err := bucketIndex("push", item.Key(), p.width, len(p.buckets))
	if err != nil {
		return err
	}
	b := &p.buckets[idx]
	b.mu.Lock()
	b.items.push(item)
	p.size.Add(1)
	poison := b.poison
	b.mu.Unlock()

	p.publish(idx)
	if poison != nil {
		return &PoisonError{Bucket: idx, Cause: poison}
	}
	return nil
}

// Pop removes one item from the lowest occupied bucket.
func (p *Parallel[T]) Pop() (T, bool, error) {
	var zero T
	for {
		idx := p.settle()
		if idx >= len(p.buckets) {
			return zero, false, nil
		}
		b := &p.buckets[idx]
		b.mu.Lock()
		if b.poison != nil {
			err := &PoisonError{Bucket: idx, Cause: b.poison}
			b.mu.Unlock()
			return zero, false, err
		}
		if b.items.len() == 0 {
			// Another consumer emptied it after the scan.
			b.mu.Unlock()
			continue
		}
		item := b.items.popFront()
		p.size.Add(-1)
		drained := b.items.len() == 0
		b.mu.Unlock()

		if drained {
			p.settle()
		}
		return item, true, nil
	}
}

// Peek returns the front of the lowest occupied bucket.
func (p *Parallel[T]) Peek() (T, bool, error) {
	var zero T
	for {
		idx := p.settle()
		if idx >= len(p.buckets) {
			return zero, false, nil
		}
		b := &p.buckets[idx]
		b.mu.Lock()
		if b.poison != nil {
			err := &PoisonError{Bucket: idx, Cause: b.poison}
			b.mu.Unlock()
			return zero, false, err
		}
		if b.items.len() == 0 {
			b.mu.Unlock()
			continue
		}
		item := b.items.front()
		b.mu.Unlock()
		return item, true, nil
	}
}

// IsEmpty reconciles the cursor hint by scanning and reports whether every
// bucket is empty. A poisoned bucket is never empty.
func (p *Parallel[T]) IsEmpty() bool {
	return p.settle() >= len(p.buckets)
}

// Len returns the number of resident items.
func (p *Parallel[T]) Len() int { return int(p.size.Load()) }

// BucketCount returns the number of buckets.
func (p *Parallel[T]) BucketCount() int { return len(p.buckets) }

// Width returns the bucket width.
func (p *Parallel[T]) Width() float64 { return p.width }

// BulkPop removes the contents of the lowest occupied bucket (up to MaxBatch
// items) in one critical section. It returns nil when the queue is empty.
func (p *Parallel[T]) BulkPop() ([]T, error) {
	batch, _, err := p.bulkPop()
	return batch, err
}

func (p *Parallel[T]) bulkPop() ([]T, int, error) {
	for {
		idx := p.settle()
		if idx >= len(p.buckets) {
			return nil, idx, nil
		}
		b := &p.buckets[idx]
		b.mu.Lock()
		if b.poison != nil {
			err := &PoisonError{Bucket: idx, Cause: b.poison}
			b.mu.Unlock()
			return nil, idx, err
		}
		if b.items.len() == 0 {
			b.mu.Unlock()
			continue
		}
		var batch []T
		if p.maxBatch > 0 {
			batch = b.items.take(p.maxBatch)
		} else {
			batch = b.items.drain()
		}
		p.size.Add(-int64(len(batch)))
		b.mu.Unlock()

		p.settle()
		return batch, idx, nil
	}
}

// BulkPush groups items by destination bucket and appends each group under a
// single lock acquisition. Keys are validated up front, so an out-of-range key
// leaves the queue untouched.
func (p *Parallel[T]) BulkPush(items []T) error {
	if len(items) == 0 {
		return nil
	}

	targets := make([]int, len(items))
	for i, item := range items {
		idx, err := bucketIndex("bulk push", item.Key(), p.width, len(p.buckets))
		if err != nil {
			return err
		}
		targets[i] = idx
	}

	groups := make(map[int][]T)
	order := make([]int, 0, 4)
	for i, idx := range targets {
		if _, ok := groups[idx]; !ok {
			order = append(order, idx)
		}
		groups[idx] = append(groups[idx], items[i])
	}

	lowest := len(p.buckets)
	var poisoned error
	for _, idx := range order {
		b := &p.buckets[idx]
		b.mu.Lock()
		for _, item := range groups[idx] {
			b.items.push(item)
		}
		p.size.Add(int64(len(groups[idx])))
		if b.poison != nil && poisoned == nil {
			poisoned = &PoisonError{Bucket: idx, Cause: b.poison}
		}
		b.mu.Unlock()
		if idx < lowest {
			lowest = idx
		}
	}

	p.publish(lowest)
	return poisoned
}

// BulkProcess pops one bucket, applies f to every member concurrently and
// bulk-pushes the kept results. It returns how many items were popped.
//
// If f panics the batch is restored, untransformed, into its bucket and the
// bucket is poisoned.
func (p *Parallel[T]) BulkProcess(f Transform[T]) (int, error) {
	batch, idx, err := p.bulkPop()
	if err != nil || len(batch) == 0 {
		return 0, err
	}

	out := make([]T, len(batch))
	keep := make([]bool, len(batch))

	workers := min(p.workers, len(batch))
	chunk := (len(batch) + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < len(batch); lo += chunk {
		lo := lo // per-iteration copy; go.mod targets go1.21 loop semantics
		hi := min(lo+chunk, len(batch))
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrTransformPanic, r)
				}
			}()
			for i := lo; i < hi; i++ {
				out[i], keep[i] = f(batch[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.poison(idx, batch, err)
		return 0, &PoisonError{Bucket: idx, Cause: err}
	}

	n := 0
	for i := range out {
		if keep[i] {
			out[n] = out[i]
			n++
		}
	}
	return len(batch), p.BulkPush(out[:n])
}

// poison restores batch into bucket idx and marks the bucket failed.
func (p *Parallel[T]) poison(idx int, batch []T, cause error) {
	b := &p.buckets[idx]
	b.mu.Lock()
	b.items.prepend(batch)
	p.size.Add(int64(len(batch)))
	if b.poison == nil {
		b.poison = cause
	}
	b.mu.Unlock()

	p.publish(idx)
}

// Recover clears the poison on bucket idx and hands its contents to the caller.
// It returns nil if the bucket was not poisoned.
func (p *Parallel[T]) Recover(idx int) ([]T, error) {
	if idx < 0 || idx >= len(p.buckets) {
		return nil, fmt.Errorf("%w: bucket %d", ErrInvalidConfig, idx)
	}
	b := &p.buckets[idx]
	b.mu.Lock()
	if b.poison == nil {
		b.mu.Unlock()
		return nil, nil
	}
	b.poison = nil
	items := b.items.drain()
	p.size.Add(-int64(len(items)))
	b.mu.Unlock()

	p.settle()
	return items, nil
}

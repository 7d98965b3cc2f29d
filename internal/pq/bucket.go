package pq

// fifo is a slice-backed queue that reuses its backing array once drained.
type fifo[T any] struct {
	items []T
	head  int
}

func (f *fifo[T]) len() int { return len(f.items) - f.head }

func (f *fifo[T]) push(v T) { f.items = append(f.items, v) }

func (f *fifo[T]) front() T { return f.items[f.head] }

func (f *fifo[T]) popFront() T {
	var zero T
	v := f.items[f.head]
	f.items[f.head] = zero
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return v
}

// take removes and returns up to n items from the front.
func (f *fifo[T]) take(n int) []T {
	if n >= f.len() {
		return f.drain()
	}
	out := make([]T, n)
	copy(out, f.items[f.head:f.head+n])
	var zero T
	for i := f.head; i < f.head+n; i++ {
		f.items[i] = zero
	}
	f.head += n
	return out
}

// drain hands the live contents over to the caller and leaves f empty.
func (f *fifo[T]) drain() []T {
	out := f.items[f.head:]
	f.items = nil
	f.head = 0
	return out
}

// prepend puts items back in front of the current contents.
func (f *fifo[T]) prepend(items []T) {
	merged := make([]T, 0, len(items)+f.len())
	merged = append(merged, items...)
	merged = append(merged, f.items[f.head:]...)
	f.items = merged
	f.head = 0
}

// Bucket is the sequential calendar queue. Push is O(1); pop is amortised O(1)
// because the cursor only moves forward between pushes that land below it.
// A Bucket is not safe for concurrent use.
type Bucket[T Item] struct {
	width   float64
	buckets []fifo[T]
	cursor  int // lowest possibly non-empty bucket, len(buckets) when empty
	size    int
}

// NewBucket creates a queue of count buckets of the given width.
// Keys must satisfy floor(key/width) < count; see BucketCountFor.
func NewBucket[T Item](count int, width float64) (*Bucket[T], error) {
	if err := validateGeometry(count, width); err != nil {
		return nil, err
	}
	return &Bucket[T]{
		width:   width,
		buckets: make([]fifo[T], count),
		cursor:  count,
	}, nil
}

// Push appends item to bucket floor(key/width).
func (q *Bucket[T]) Push(item T) error {
	idx, err := bucketIndex("push", item.Key(), q.width, len(q.buckets))
	if err != nil {
		return err
	}
	q.buckets[idx].push(item)
	q.size++
	if idx < q.cursor {
		q.cursor = idx
	}
	return nil
}

// Pop removes the front of the lowest non-empty bucket.
func (q *Bucket[T]) Pop() (T, bool, error) {
	if q.IsEmpty() {
		var zero T
		return zero, false, nil
	}
	item := q.buckets[q.cursor].popFront()
	q.size--
	for q.cursor < len(q.buckets) && q.buckets[q.cursor].len() == 0 {
		q.cursor++
	}
	return item, true, nil
}

// Peek returns the front of the lowest non-empty bucket.
func (q *Bucket[T]) Peek() (T, bool, error) {
	if q.IsEmpty() {
		var zero T
		return zero, false, nil
	}
	return q.buckets[q.cursor].front(), true, nil
}

// IsEmpty reports whether the cursor has run off the end.
func (q *Bucket[T]) IsEmpty() bool { return q.cursor >= len(q.buckets) }

// Len returns the number of pending items.
func (q *Bucket[T]) Len() int { return q.size }

// Cursor returns the index of the lowest non-empty bucket.
func (q *Bucket[T]) Cursor() int { return q.cursor }

// BucketCount returns the number of buckets.
func (q *Bucket[T]) BucketCount() int { return len(q.buckets) }

// Width returns the bucket width.
func (q *Bucket[T]) Width() float64 { return q.width }

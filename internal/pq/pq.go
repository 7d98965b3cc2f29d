// Package pq provides the priority queues that feed the event driver: an
// exact-order binary heap and two bucketed ("calendar") queues that trade
// intra-bucket order for O(1) push and amortised O(1) pop.
//
// Bucket queues map a key k to bucket floor(k/width). Order between buckets is
// exact; order inside one bucket is FIFO for the sequential queue and
// unspecified once the parallel queue bulk-processes it. Choose a width smaller
// than the smallest time separation that matters to the caller.
package pq

import (
	"fmt"
	"math"
	"runtime"
	"strings"
)

// Item is anything with a scheduling key. Keys must be finite and non-negative
// for the bucket queues.
type Item interface {
	Key() float64
}

// Queue is the operation set shared by every backend.
// Pop and Peek on an empty queue return ok == false and a nil error.
type Queue[T Item] interface {
	Push(item T) error
	Pop() (item T, ok bool, err error)
	Peek() (item T, ok bool, err error)
	IsEmpty() bool
	Len() int
}

// Transform maps one popped item to its replacement. Returning false drops it.
type Transform[T Item] func(item T) (T, bool)

// BatchQueue is a Queue that moves whole buckets per lock acquisition.
type BatchQueue[T Item] interface {
	Queue[T]
	BulkPop() ([]T, error)
	BulkPush(items []T) error
	BulkProcess(f Transform[T]) (int, error)
}

// Kind selects a backend.
type Kind string

const (
	KindHeap     Kind = "heap"
	KindBucket   Kind = "bucket"
	KindParallel Kind = "parallel"
)

// Kinds lists every supported backend in comparison order.
func Kinds() []Kind {
	return []Kind{KindHeap, KindBucket, KindParallel}
}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHeap, KindBucket, KindParallel:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Options configures a backend built by New.
type Options struct {
	Kind Kind

	// BucketCount and BucketWidth are ignored by the heap.
	BucketCount int
	BucketWidth float64

	// MaxBatch caps one BulkPop; 0 swaps out the whole bucket.
	MaxBatch int

	// Workers bounds the parallel transform; 0 uses GOMAXPROCS.
	Workers int
}

// New builds the backend selected by opts.Kind.
func New[T Item](opts Options) (Queue[T], error) {
	switch opts.Kind {
	case KindHeap:
		return NewHeap[T](), nil
	case KindBucket:
		return NewBucket[T](opts.BucketCount, opts.BucketWidth)
	case KindParallel:
		return NewParallel[T](opts.BucketCount, opts.BucketWidth, BatchConfig{
			MaxBatch: opts.MaxBatch,
			Workers:  opts.Workers,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}

// BucketCountFor returns the smallest bucket count that covers keys in [0, maxKey]:
// ceil(maxKey/width) + 1.
func BucketCountFor(maxKey, width float64) (int, error) {
	if err := validateWidth(width); err != nil {
		return 0, err
	}
	if math.IsNaN(maxKey) || math.IsInf(maxKey, 0) || maxKey < 0 {
		return 0, fmt.Errorf("%w: max key %v", ErrInvalidConfig, maxKey)
	}
	n := math.Ceil(maxKey/width) + 1
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %v buckets needed for max key %v at width %v",
			ErrInvalidConfig, n, maxKey, width)
	}
	return int(n), nil
}

func validateWidth(width float64) error {
	if math.IsNaN(width) || math.IsInf(width, 0) || width <= 0 {
		return fmt.Errorf("%w: bucket width %v must be positive and finite", ErrInvalidConfig, width)
	}
	return nil
}

func validateGeometry(count int, width float64) error {
	if err := validateWidth(width); err != nil {
		return err
	}
	if count <= 0 || uint64(count) > math.MaxUint32 {
		return fmt.Errorf("%w: bucket count %d", ErrInvalidConfig, count)
	}
	return nil
}

// bucketIndex computes floor(key/width) and reports whether it lies in [0, count).
func bucketIndex(op string, key, width float64, count int) (int, error) {
	if math.IsNaN(key) || key < 0 {
		return -1, &IndexError{Op: op, Key: key, Index: -1, BucketCount: count}
	}
	f := math.Floor(key / width)
	if f >= float64(count) {
		idx := -1
		if f < math.MaxInt32 {
			idx = int(f)
		}
		return idx, &IndexError{Op: op, Key: key, Index: idx, BucketCount: count}
	}
	return int(f), nil
}

func defaultWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

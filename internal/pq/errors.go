package pq

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyOutOfRange indicates a key whose bucket index falls outside [0, bucketCount).
	// It signals a mis-sized queue and is never clamped.
	ErrKeyOutOfRange = errors.New("key out of range")

	// ErrInvalidKey indicates a key with no place in the order, such as NaN.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidConfig indicates bad construction parameters.
	ErrInvalidConfig = errors.New("invalid queue configuration")

	// ErrBucketPoisoned indicates a bucket whose batch failed mid-transform.
	ErrBucketPoisoned = errors.New("bucket poisoned")

	// ErrTransformPanic indicates a bulk transform that panicked.
	ErrTransformPanic = errors.New("transform panicked")

	// ErrUnknownKind indicates an unsupported backend kind.
	ErrUnknownKind = errors.New("unknown queue kind")
)

// IndexError reports a key that does not map into the queue's bucket range.
type IndexError struct {
	Op          string  // The operation that failed
	Key         float64 // The offending key
	Index       int     // The computed bucket index, or -1 if not representable
	BucketCount int     // The configured bucket count
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("pq %s: key %v maps to bucket %d, outside [0, %d)",
		e.Op, e.Key, e.Index, e.BucketCount)
}

// Unwrap returns ErrKeyOutOfRange.
func (e *IndexError) Unwrap() error {
	return ErrKeyOutOfRange
}

// PoisonError is returned by every operation touching a poisoned bucket.
type PoisonError struct {
	Bucket int   // The poisoned bucket index
	Cause  error // What poisoned it
}

// Error implements the error interface.
func (e *PoisonError) Error() string {
	return fmt.Sprintf("pq: bucket %d poisoned: %v", e.Bucket, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PoisonError) Unwrap() error {
	return e.Cause
}

// Is matches ErrBucketPoisoned as well as the cause chain.
func (e *PoisonError) Is(target error) bool {
	return target == ErrBucketPoisoned
}

// IsKeyOutOfRange checks if an error indicates a mis-sized queue.
func IsKeyOutOfRange(err error) bool {
	return errors.Is(err, ErrKeyOutOfRange)
}

// IsPoisoned checks if an error came from a poisoned bucket.
func IsPoisoned(err error) bool {
	return errors.Is(err, ErrBucketPoisoned)
}

// Package event holds the collision event records consumed by the scheduler and
// the coarse time windows that own them while a window is being drained.
package event

import (
	"fmt"
)

// PairID identifies the two entities involved in one collision event.
// The order of A and B is fixed by the producer and is part of the identity.
type PairID struct {
	A uint32
	B uint32
}

// String returns the pair as "(a,b)".
func (p PairID) String() string {
	return fmt.Sprintf("(%d,%d)", p.A, p.B)
}

// Event is a single scheduled collision between the two entities of Pair.
// Events live in a Window's arena; queues only ever hold *Event handles into it.
type Event struct {
	Pair PairID
	Time float64

	// Payload is the opaque state snapshot attached by the producer.
	Payload any

	// WindowIndex is the position of this record within its window's record list.
	WindowIndex int
}

// Key returns the scheduling key of the event.
func (e *Event) Key() float64 { return e.Time }

// String implements fmt.Stringer.
func (e *Event) String() string {
	return fmt.Sprintf("event{pair=%s time=%g idx=%d}", e.Pair, e.Time, e.WindowIndex)
}

// Status tracks where a record is in its lifecycle.
type Status uint8

const (
	// Pending records sit in the window's list and are not yet queued.
	Pending Status = iota
	// Queued records are resident in the active backend.
	Queued
	// Processed records were popped and counted.
	Processed
	// Requeued records were processed and handed their pair over to a successor.
	Requeued
	// Retired records were processed and had no successor left in the window.
	Retired
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Queued:
		return "Queued"
	case Processed:
		return "Processed"
	case Requeued:
		return "Requeued"
	case Retired:
		return "Retired"
	default:
		return "Unknown"
	}
}

package event

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTimeOutOfRange indicates a record time that cannot be assigned to a window.
	ErrTimeOutOfRange = errors.New("event time out of range")

	// ErrInvalidWindowing indicates a bad window count or maximum time.
	ErrInvalidWindowing = errors.New("invalid windowing")
)

const noSuccessor = -1

// Window is a contiguous coarse slice of the simulation's time span.
// It owns its events for the duration of one drain cycle.
type Window struct {
	Index  int
	Events []Event

	next   []int
	status []Status
}

// NewWindow builds a window over events, renumbering their WindowIndex and
// linking every record to the next one that shares its pair.
func NewWindow(index int, events []Event) *Window {
	w := &Window{
		Index:  index,
		Events: events,
		next:   make([]int, len(events)),
		status: make([]Status, len(events)),
	}

	last := make(map[PairID]int, len(events))
	for i := range w.Events {
		w.Events[i].WindowIndex = i
		w.next[i] = noSuccessor
		if prev, ok := last[w.Events[i].Pair]; ok {
			w.next[prev] = i
		}
		last[w.Events[i].Pair] = i
	}

	return w
}

// Len returns the number of records in the window.
func (w *Window) Len() int { return len(w.Events) }

// At returns a handle to the i-th record.
func (w *Window) At(i int) *Event { return &w.Events[i] }

// Successor returns the next record after i that shares its pair, which is
// what a forward scan from i+1 would find.
func (w *Window) Successor(i int) (*Event, bool) {
	n := w.next[i]
	if n == noSuccessor {
		return nil, false
	}
	return &w.Events[n], true
}

// Status returns the lifecycle state of the i-th record.
func (w *Window) Status(i int) Status { return w.status[i] }

// SetStatus records a lifecycle transition.
func (w *Window) SetStatus(i int, s Status) { w.status[i] = s }

// Reset puts every record back to Pending so the window can be drained again.
func (w *Window) Reset() {
	for i := range w.status {
		w.status[i] = Pending
	}
}

// MaxTime returns the largest event time, or 0 for an empty slice.
func MaxTime(events []Event) float64 {
	var hi float64
	for i := range events {
		if events[i].Time > hi {
			hi = events[i].Time
		}
	}
	return hi
}

// Partition splits events into windowCount windows by floor(time/(maxTime/windowCount)),
// preserving input order inside each window. Records at exactly maxTime fall into
// the last window.
func Partition(events []Event, maxTime float64, windowCount int) ([]*Window, error) {
	if windowCount <= 0 {
		return nil, fmt.Errorf("%w: window count %d must be positive", ErrInvalidWindowing, windowCount)
	}
	if math.IsNaN(maxTime) || math.IsInf(maxTime, 0) || maxTime < 0 {
		return nil, fmt.Errorf("%w: max time %v", ErrInvalidWindowing, maxTime)
	}

	span := maxTime / float64(windowCount)
	buckets := make([][]Event, windowCount)
	for i := range events {
		idx, err := windowIndex(events[i].Time, span, maxTime, windowCount)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		buckets[idx] = append(buckets[idx], events[i])
	}

	windows := make([]*Window, windowCount)
	for i, b := range buckets {
		windows[i] = NewWindow(i, b)
	}
	return windows, nil
}

func windowIndex(t, span, maxTime float64, windowCount int) (int, error) {
	if math.IsNaN(t) || t < 0 || t > maxTime {
		return 0, fmt.Errorf("%w: %v not in [0, %v]", ErrTimeOutOfRange, t, maxTime)
	}
	if span == 0 {
		return 0, nil
	}
	idx := int(math.Floor(t / span))
	if idx >= windowCount {
		idx = windowCount - 1
	}
	return idx, nil
}

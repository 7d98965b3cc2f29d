// Package driver runs the discrete-event loop over coarse time windows.
//
// Only the first occurrence of each pair in a window is queued up front. When
// an event is popped, the next record for the same pair in that window is
// pushed in its place, so at most one event per pair is ever resident and
// superseded events never have to be removed from the queue.
package driver

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeJamon/goEventQ/internal/event"
	"github.com/LeJamon/goEventQ/internal/pq"
)

// Config holds configuration for a driver.
type Config struct {
	// Queue selects and sizes the backend. A zero BucketCount is derived from
	// the input's maximum time.
	Queue pq.Options

	// Bulk drains whole buckets with BulkProcess when the backend supports it.
	Bulk bool

	Logger zerolog.Logger
}

// Stats summarises one pass over all windows.
type Stats struct {
	Backend   pq.Kind
	Bulk      bool
	Windows   int
	Records   int
	Processed int
	Requeued  int
	Retired   int
	Elapsed   time.Duration
}

// geometry is implemented by the bucketed backends.
type geometry interface {
	BucketCount() int
	Width() float64
}

// Driver feeds windows through a single backend chosen at construction.
type Driver struct {
	kind  pq.Kind
	queue pq.Queue[*event.Event]
	batch pq.BatchQueue[*event.Event] // nil unless bulk draining is in use
	log   zerolog.Logger
}

// Build sizes and constructs the backend described by cfg for keys up to maxTime.
func Build(cfg Config, maxTime float64) (*Driver, error) {
	opts := cfg.Queue
	if opts.Kind != pq.KindHeap && opts.BucketCount == 0 {
		n, err := pq.BucketCountFor(maxTime, opts.BucketWidth)
		if err != nil {
			return nil, fmt.Errorf("failed to size %s queue: %w", opts.Kind, err)
		}
		opts.BucketCount = n
	}

	q, err := pq.New[*event.Event](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s queue: %w", opts.Kind, err)
	}
	return New(opts.Kind, q, cfg), nil
}

// New wraps an existing backend. The queue must be empty.
func New(kind pq.Kind, q pq.Queue[*event.Event], cfg Config) *Driver {
	d := &Driver{
		kind:  kind,
		queue: q,
		log:   cfg.Logger.With().Str("backend", string(kind)).Logger(),
	}
	if bq, ok := q.(pq.BatchQueue[*event.Event]); ok && cfg.Bulk {
		d.batch = bq
	}
	if g, ok := q.(geometry); ok {
		d.log.Debug().
			Int("buckets", g.BucketCount()).
			Float64("width", g.Width()).
			Bool("bulk", d.Bulk()).
			Msg("queue ready")
	}
	return d
}

// Kind returns the backend kind.
func (d *Driver) Kind() pq.Kind { return d.kind }

// Bulk reports whether windows are drained a bucket at a time.
func (d *Driver) Bulk() bool { return d.batch != nil }

// Run drains every window in order and returns the aggregate stats.
func (d *Driver) Run(windows []*event.Window) (Stats, error) {
	st := Stats{
		Backend: d.kind,
		Bulk:    d.Bulk(),
		Windows: len(windows),
	}

	start := time.Now()
	for _, w := range windows {
		if err := d.drain(w, &st); err != nil {
			st.Elapsed = time.Since(start)
			return st, fmt.Errorf("window %d: %w", w.Index, err)
		}
	}
	st.Elapsed = time.Since(start)

	d.log.Info().
		Bool("bulk", st.Bulk).
		Int("windows", st.Windows).
		Int("processed", st.Processed).
		Dur("elapsed", st.Elapsed).
		Msg("run complete")
	return st, nil
}

func (d *Driver) drain(w *event.Window, st *Stats) error {
	if !d.queue.IsEmpty() {
		// A bucket poisoned by an earlier run is reported as such.
		if _, _, err := d.queue.Peek(); err != nil {
			return fmt.Errorf("queue not ready at window start: %w", err)
		}
		return errors.New("queue not empty at window start")
	}
	w.Reset()
	st.Records += w.Len()

	seen := make(map[event.PairID]struct{}, w.Len())
	for i := range w.Events {
		e := w.At(i)
		if _, ok := seen[e.Pair]; ok {
			continue
		}
		seen[e.Pair] = struct{}{}
		if err := d.queue.Push(e); err != nil {
			return fmt.Errorf("failed to queue %s: %w", e, err)
		}
		w.SetStatus(i, event.Queued)
	}

	before := st.Processed
	var err error
	if d.batch != nil {
		err = d.drainBulk(w, st)
	} else {
		err = d.drainSingle(w, st)
	}
	if err != nil {
		return err
	}

	d.log.Debug().
		Int("window", w.Index).
		Int("records", w.Len()).
		Int("pairs", len(seen)).
		Int("processed", st.Processed-before).
		Msg("window drained")
	return nil
}

func (d *Driver) drainSingle(w *event.Window, st *Stats) error {
	for {
		e, ok, err := d.queue.Pop()
		if err != nil {
			return fmt.Errorf("failed to pop: %w", err)
		}
		if !ok {
			return nil
		}
		st.Processed++
		w.SetStatus(e.WindowIndex, event.Processed)

		next, ok := w.Successor(e.WindowIndex)
		if !ok {
			handOff(w, e, nil)
			st.Retired++
			continue
		}
		if err := d.queue.Push(next); err != nil {
			return fmt.Errorf("failed to requeue %s: %w", next, err)
		}
		handOff(w, e, next)
		st.Requeued++
	}
}

// drainBulk runs BulkProcess until the queue is empty. The transform only
// looks successors up; statuses change once a round has been pushed back, so
// a poisoned round leaves the window exactly as it was queued.
func (d *Driver) drainBulk(w *event.Window, st *Stats) error {
	popped := make([]*event.Event, w.Len())
	nexts := make([]*event.Event, w.Len())
	var slot atomic.Int64
	successor := func(e *event.Event) (*event.Event, bool) {
		i := slot.Add(1) - 1
		popped[i] = e
		next, ok := w.Successor(e.WindowIndex)
		nexts[i] = next
		return next, ok
	}

	done := 0
	for {
		n, err := d.batch.BulkProcess(successor)
		end := int(slot.Load())
		if err != nil {
			if n > 0 {
				// Transformed but not fully pushed back: processed, no hand-off.
				for _, e := range popped[done:end] {
					w.SetStatus(e.WindowIndex, event.Processed)
				}
				st.Processed += n
			}
			return fmt.Errorf("failed to process bucket: %w", err)
		}
		if n == 0 {
			return nil
		}

		for i := done; i < end; i++ {
			handOff(w, popped[i], nexts[i])
			if nexts[i] != nil {
				st.Requeued++
			} else {
				st.Retired++
			}
		}
		st.Processed += n
		done = end
	}
}

// handOff records that e was processed and its pair moved on to next, or
// retired when next is nil.
func handOff(w *event.Window, e, next *event.Event) {
	if next == nil {
		w.SetStatus(e.WindowIndex, event.Retired)
		return
	}
	w.SetStatus(e.WindowIndex, event.Requeued)
	w.SetStatus(next.WindowIndex, event.Queued)
}

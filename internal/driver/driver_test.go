package driver

import (
	"bytes"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goEventQ/internal/event"
	"github.com/LeJamon/goEventQ/internal/pq"
)

func ev(a, b uint32, t float64) event.Event {
	return event.Event{Pair: event.PairID{A: a, B: b}, Time: t}
}

type op struct {
	push bool
	idx  int
	pair event.PairID
	time float64
}

// recorder logs every push and pop and checks that a pair never has two
// events resident at once.
type recorder struct {
	pq.Queue[*event.Event]

	mu         sync.Mutex
	ops        []op
	resident   map[event.PairID]int
	violations []event.PairID
}

func newRecorder(q pq.Queue[*event.Event]) *recorder {
	return &recorder{Queue: q, resident: make(map[event.PairID]int)}
}

func (r *recorder) pushed(e *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resident[e.Pair] != 0 {
		r.violations = append(r.violations, e.Pair)
	}
	r.resident[e.Pair]++
	r.ops = append(r.ops, op{push: true, idx: e.WindowIndex, pair: e.Pair, time: e.Time})
}

func (r *recorder) popped(e *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resident[e.Pair]--
	r.ops = append(r.ops, op{idx: e.WindowIndex, pair: e.Pair, time: e.Time})
}

func (r *recorder) Push(e *event.Event) error {
	if err := r.Queue.Push(e); err != nil {
		return err
	}
	r.pushed(e)
	return nil
}

func (r *recorder) Pop() (*event.Event, bool, error) {
	e, ok, err := r.Queue.Pop()
	if ok {
		r.popped(e)
	}
	return e, ok, err
}

func (r *recorder) pops() []op {
	var out []op
	for _, o := range r.ops {
		if !o.push {
			out = append(out, o)
		}
	}
	return out
}

// batchRecorder adds the bulk operations so the driver takes its bulk path.
type batchRecorder struct {
	*recorder
	inner pq.BatchQueue[*event.Event]
}

func (r *batchRecorder) BulkPop() ([]*event.Event, error) {
	items, err := r.inner.BulkPop()
	for _, e := range items {
		r.popped(e)
	}
	return items, err
}

func (r *batchRecorder) BulkPush(items []*event.Event) error {
	if err := r.inner.BulkPush(items); err != nil {
		return err
	}
	for _, e := range items {
		r.pushed(e)
	}
	return nil
}

func (r *batchRecorder) BulkProcess(f pq.Transform[*event.Event]) (int, error) {
	return r.inner.BulkProcess(func(e *event.Event) (*event.Event, bool) {
		r.popped(e)
		next, ok := f(e)
		if ok {
			r.pushed(next)
		}
		return next, ok
	})
}

func newQueue(t *testing.T, kind pq.Kind, maxTime, width float64) pq.Queue[*event.Event] {
	t.Helper()
	count, err := pq.BucketCountFor(maxTime, width)
	require.NoError(t, err)
	q, err := pq.New[*event.Event](pq.Options{Kind: kind, BucketCount: count, BucketWidth: width, Workers: 4})
	require.NoError(t, err)
	return q
}

func wrap(q pq.Queue[*event.Event]) (pq.Queue[*event.Event], *recorder) {
	r := newRecorder(q)
	if bq, ok := q.(pq.BatchQueue[*event.Event]); ok {
		return &batchRecorder{recorder: r, inner: bq}, r
	}
	return r, r
}

// randomEvents returns time-sorted records over a small set of pairs.
func randomEvents(seed int64, n, pairs int, maxTime float64) []event.Event {
	rng := rand.New(rand.NewSource(seed))
	out := make([]event.Event, n)
	for i := range out {
		p := uint32(rng.Intn(pairs))
		out[i] = ev(p, p+1, rng.Float64()*maxTime)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func distinctPairs(windows []*event.Window) int {
	n := 0
	for _, w := range windows {
		seen := make(map[event.PairID]struct{})
		for i := range w.Events {
			seen[w.Events[i].Pair] = struct{}{}
		}
		n += len(seen)
	}
	return n
}

func TestDriver_LazySuccessor(t *testing.T) {
	w := event.NewWindow(0, []event.Event{
		ev(3, 4, 1.0),
		ev(5, 6, 2.0),
		ev(7, 8, 3.0),
		ev(1, 2, 5.0),
		ev(3, 4, 6.0),
		ev(9, 10, 7.0),
		ev(5, 6, 8.0),
		ev(1, 2, 9.0),
	})

	q, rec := wrap(pq.NewHeap[*event.Event]())
	d := New(pq.KindHeap, q, Config{Logger: zerolog.Nop()})

	st, err := d.Run([]*event.Window{w})
	require.NoError(t, err)
	assert.Equal(t, 8, st.Processed)
	assert.Equal(t, 3, st.Requeued)
	assert.Equal(t, 5, st.Retired)

	// Only first occurrences are queued up front.
	var initial []int
	for _, o := range rec.ops[:5] {
		require.True(t, o.push)
		initial = append(initial, o.idx)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 5}, initial)

	// Record 7 enters the queue right after record 3 leaves it.
	var pop3, push7 int
	for i, o := range rec.ops {
		switch {
		case !o.push && o.idx == 3:
			pop3 = i
		case o.push && o.idx == 7:
			push7 = i
		}
	}
	assert.Equal(t, pop3+1, push7)

	var times []float64
	for _, o := range rec.pops() {
		if o.pair == (event.PairID{A: 1, B: 2}) {
			times = append(times, o.time)
		}
	}
	assert.Equal(t, []float64{5.0, 9.0}, times)

	assert.Equal(t, event.Requeued, w.Status(3))
	assert.Equal(t, event.Retired, w.Status(7))
	assert.Equal(t, event.Retired, w.Status(2))
	assert.Empty(t, rec.violations)
}

func TestDriver_AllBackends(t *testing.T) {
	const (
		maxTime = 100.0
		width   = 0.25
	)
	events := randomEvents(7, 3000, 40, maxTime)
	windows, err := event.Partition(events, event.MaxTime(events), 25)
	require.NoError(t, err)
	wantRetired := distinctPairs(windows)

	for _, kind := range pq.Kinds() {
		for _, bulk := range []bool{false, true} {
			name := string(kind)
			if bulk {
				name += "/bulk"
			}
			t.Run(name, func(t *testing.T) {
				q, rec := wrap(newQueue(t, kind, maxTime, width))
				d := New(kind, q, Config{Bulk: bulk, Logger: zerolog.Nop()})
				assert.Equal(t, bulk && kind == pq.KindParallel, d.Bulk())

				st, err := d.Run(windows)
				require.NoError(t, err)

				assert.Equal(t, len(events), st.Records)
				assert.Equal(t, len(events), st.Processed)
				assert.Equal(t, wantRetired, st.Retired)
				assert.Equal(t, st.Processed-st.Retired, st.Requeued)
				assert.Equal(t, 25, st.Windows)
				assert.True(t, q.IsEmpty())
				assert.Empty(t, rec.violations, "pair resident twice")

				// Each pair is handled in record order, which is time order.
				last := make(map[event.PairID]float64)
				for _, o := range rec.pops() {
					prev, ok := last[o.pair]
					if ok {
						assert.GreaterOrEqual(t, o.time, prev, "pair %s went backwards", o.pair)
					}
					last[o.pair] = o.time
				}

				for _, w := range windows {
					for i := 0; i < w.Len(); i++ {
						s := w.Status(i)
						assert.True(t, s == event.Requeued || s == event.Retired,
							"window %d record %d left %s", w.Index, i, s)
					}
				}
			})
		}
	}
}

func TestDriver_HeapPopsNonDecreasing(t *testing.T) {
	events := randomEvents(11, 500, 10, 50)
	windows, err := event.Partition(events, event.MaxTime(events), 5)
	require.NoError(t, err)

	q, rec := wrap(pq.NewHeap[*event.Event]())
	_, err = New(pq.KindHeap, q, Config{Logger: zerolog.Nop()}).Run(windows)
	require.NoError(t, err)

	pops := rec.pops()
	require.Len(t, pops, len(events))
	for i := 1; i < len(pops); i++ {
		require.GreaterOrEqual(t, pops[i].time, pops[i-1].time)
	}
}

func TestDriver_EmptyWindows(t *testing.T) {
	events := []event.Event{ev(1, 2, 0), ev(1, 2, 10)}
	windows, err := event.Partition(events, 10, 500)
	require.NoError(t, err)

	d, err := Build(Config{
		Queue:  pq.Options{Kind: pq.KindBucket, BucketWidth: 1},
		Logger: zerolog.Nop(),
	}, 10)
	require.NoError(t, err)

	st, err := d.Run(windows)
	require.NoError(t, err)
	assert.Equal(t, 500, st.Windows)
	assert.Equal(t, 2, st.Processed)
	assert.Equal(t, 2, st.Retired)
	assert.Zero(t, st.Requeued)
}

func TestDriver_RepeatRun(t *testing.T) {
	events := randomEvents(3, 400, 8, 20)
	windows, err := event.Partition(events, event.MaxTime(events), 10)
	require.NoError(t, err)

	d, err := Build(Config{
		Queue:  pq.Options{Kind: pq.KindParallel, BucketWidth: 0.1},
		Bulk:   true,
		Logger: zerolog.Nop(),
	}, event.MaxTime(events))
	require.NoError(t, err)

	first, err := d.Run(windows)
	require.NoError(t, err)
	second, err := d.Run(windows)
	require.NoError(t, err)

	assert.Equal(t, first.Processed, second.Processed)
	assert.Equal(t, first.Requeued, second.Requeued)
	assert.Equal(t, first.Retired, second.Retired)
}

func TestBuild(t *testing.T) {
	t.Run("derives bucket count", func(t *testing.T) {
		d, err := Build(Config{Queue: pq.Options{Kind: pq.KindBucket, BucketWidth: 0.5}, Logger: zerolog.Nop()}, 10)
		require.NoError(t, err)
		b, ok := d.queue.(*pq.Bucket[*event.Event])
		require.True(t, ok)
		assert.Equal(t, 21, b.BucketCount())
		assert.Equal(t, 0.5, b.Width())
		assert.False(t, d.Bulk())
	})

	t.Run("explicit bucket count", func(t *testing.T) {
		d, err := Build(Config{Queue: pq.Options{Kind: pq.KindParallel, BucketCount: 7, BucketWidth: 1}, Bulk: true}, 1000)
		require.NoError(t, err)
		p, ok := d.queue.(*pq.Parallel[*event.Event])
		require.True(t, ok)
		assert.Equal(t, 7, p.BucketCount())
		assert.Equal(t, 1.0, p.Width())
		assert.True(t, d.Bulk())
		assert.Equal(t, pq.KindParallel, d.Kind())
	})

	t.Run("heap ignores geometry", func(t *testing.T) {
		d, err := Build(Config{Queue: pq.Options{Kind: pq.KindHeap}, Bulk: true}, 10)
		require.NoError(t, err)
		assert.False(t, d.Bulk())
	})

	t.Run("logs geometry", func(t *testing.T) {
		var buf bytes.Buffer
		log := zerolog.New(&buf).Level(zerolog.DebugLevel)
		_, err := Build(Config{Queue: pq.Options{Kind: pq.KindParallel, BucketWidth: 0.25}, Logger: log}, 10)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"message":"queue ready"`)
		assert.Contains(t, buf.String(), `"buckets":41`)
		assert.Contains(t, buf.String(), `"width":0.25`)
	})

	t.Run("bad width", func(t *testing.T) {
		_, err := Build(Config{Queue: pq.Options{Kind: pq.KindBucket}}, 10)
		assert.ErrorIs(t, err, pq.ErrInvalidConfig)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Build(Config{Queue: pq.Options{Kind: "splay", BucketWidth: 1}}, 10)
		assert.ErrorIs(t, err, pq.ErrUnknownKind)
	})
}

func TestDriver_UndersizedQueue(t *testing.T) {
	w := event.NewWindow(0, []event.Event{ev(1, 2, 0.5), ev(3, 4, 5)})
	d, err := Build(Config{Queue: pq.Options{Kind: pq.KindBucket, BucketCount: 2, BucketWidth: 1}}, 5)
	require.NoError(t, err)

	_, err = d.Run([]*event.Window{w})
	require.Error(t, err)
	assert.True(t, pq.IsKeyOutOfRange(err))
}

func TestDriver_BulkPanicPoisonsBucket(t *testing.T) {
	w := event.NewWindow(0, []event.Event{ev(1, 2, 0.5), ev(3, 4, 0.7), ev(1, 2, 3)})
	// A corrupt arena index makes the successor lookup panic mid-batch.
	w.Events[1].WindowIndex = 99

	d, err := Build(Config{Queue: pq.Options{Kind: pq.KindParallel, BucketWidth: 1}, Bulk: true}, 3)
	require.NoError(t, err)

	_, err = d.Run([]*event.Window{w})
	require.Error(t, err)
	assert.True(t, pq.IsPoisoned(err))
	assert.ErrorIs(t, err, pq.ErrTransformPanic)

	var pe *pq.PoisonError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, pe.Bucket)

	// The failed round is undone: both heads are back in the bucket and the
	// successor of (1,2) was never pushed.
	assert.Equal(t, event.Queued, w.Status(0))
	assert.Equal(t, event.Queued, w.Status(1))
	assert.Equal(t, event.Pending, w.Status(2))

	// The next run reports the poison instead of a generic residue error.
	_, err = d.Run([]*event.Window{w})
	require.Error(t, err)
	assert.True(t, pq.IsPoisoned(err))

	par, ok := d.queue.(*pq.Parallel[*event.Event])
	require.True(t, ok)
	restored, err := par.Recover(0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []*event.Event{w.At(0), w.At(1)}, restored)
	assert.True(t, d.queue.IsEmpty())
}

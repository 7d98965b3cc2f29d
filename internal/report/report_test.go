package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goEventQ/internal/driver"
	"github.com/LeJamon/goEventQ/internal/pq"
)

func sample() *Report {
	return &Report{
		Input:   "events.csv.lz4",
		Records: 1200,
		MaxTime: 4.5,
		Windows: 500,
		Started: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Runs: []Run{
			FromStats(1, driver.Stats{Backend: pq.KindHeap, Processed: 1200, Requeued: 900, Retired: 300, Elapsed: 3 * time.Millisecond}),
			FromStats(1, driver.Stats{Backend: pq.KindParallel, Bulk: true, Processed: 1200, Requeued: 900, Retired: 300, Elapsed: 2 * time.Millisecond}),
		},
	}
}

func TestFromStats(t *testing.T) {
	r := FromStats(2, driver.Stats{Backend: pq.KindBucket, Processed: 10, Elapsed: time.Second})
	assert.Equal(t, "bucket", r.Backend)
	assert.Equal(t, 2, r.Repeat)
	assert.Equal(t, time.Second, r.Elapsed())
	assert.Equal(t, 10.0, r.Rate())

	assert.Zero(t, Run{Processed: 5}.Rate())
}

func TestFastest(t *testing.T) {
	best, ok := sample().Fastest()
	require.True(t, ok)
	assert.Equal(t, "parallel", best.Backend)

	_, ok = (&Report{}).Fastest()
	assert.False(t, ok)
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sample()))

	out := buf.String()
	assert.Contains(t, out, "events.csv.lz4")
	assert.Contains(t, out, "BACKEND")
	assert.Contains(t, out, "heap")
	assert.Contains(t, out, "Fastest: parallel")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sample()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "events.csv.lz4", doc["input"])
	runs, ok := doc["runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 2)
	assert.Equal(t, "heap", runs[0].(map[string]any)["backend"])
	assert.EqualValues(t, 3_000_000, runs[0].(map[string]any)["elapsed_ns"])
}

func TestWrite_Binary(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatMsgpack, FormatCBOR} {
		t.Run(string(f), func(t *testing.T) {
			want := sample()

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, f, want))

			got, err := Read(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, want.Runs, got.Runs)
			assert.Equal(t, want.Records, got.Records)
			assert.True(t, want.Started.Equal(got.Started))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("CBOR")
	require.NoError(t, err)
	assert.Equal(t, FormatCBOR, f)

	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	err = Write(&bytes.Buffer{}, Format("yaml"), sample())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goEventQ/internal/report"
)

func TestObserve(t *testing.T) {
	c := NewCollector()
	c.Observe(&report.Report{
		Records: 100,
		Runs: []report.Run{
			{Backend: "heap", Repeat: 1, Processed: 100, Requeued: 70, Retired: 30, ElapsedNS: int64(time.Millisecond)},
			{Backend: "heap", Repeat: 2, Processed: 100, Requeued: 70, Retired: 30, ElapsedNS: int64(time.Millisecond)},
			{Backend: "parallel", Bulk: true, Repeat: 1, Processed: 100, Requeued: 70, Retired: 30, ElapsedNS: int64(time.Millisecond)},
		},
	})

	assert.Equal(t, 200.0, testutil.ToFloat64(c.processed.WithLabelValues("heap", "false")))
	assert.Equal(t, 70.0, testutil.ToFloat64(c.requeued.WithLabelValues("parallel", "true")))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.records))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.Observe(&report.Report{
		Records: 10,
		Runs:    []report.Run{{Backend: "bucket", Processed: 10, ElapsedNS: int64(time.Millisecond)}},
	})

	path := filepath.Join(t.TempDir(), "eventq.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `eventq_events_processed_total{backend="bucket",bulk="false"} 10`)
	assert.Contains(t, string(data), "eventq_input_records 10")
}

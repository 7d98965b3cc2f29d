// Package metrics exports run measurements in the Prometheus text format so a
// node_exporter textfile collector can pick them up after each invocation.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeJamon/goEventQ/internal/report"
)

const namespace = "eventq"

// Collector accumulates per-backend run metrics in its own registry.
type Collector struct {
	registry  *prometheus.Registry
	processed *prometheus.CounterVec
	requeued  *prometheus.CounterVec
	retired   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	rate      *prometheus.GaugeVec
	records   prometheus.Gauge
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	labels := []string{"backend", "bulk"}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events popped and processed.",
		}, labels),
		requeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_requeued_total",
			Help:      "Processed events whose pair had a successor in the window.",
		}, labels),
		retired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_retired_total",
			Help:      "Processed events that were the last of their pair in the window.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one pass over all windows.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_per_second",
			Help:      "Throughput of the most recent pass.",
		}, labels),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_records",
			Help:      "Records in the most recent input.",
		}),
	}

	c.registry.MustRegister(c.processed, c.requeued, c.retired, c.duration, c.rate, c.records)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe adds every run in rep.
func (c *Collector) Observe(rep *report.Report) {
	c.records.Set(float64(rep.Records))
	for _, r := range rep.Runs {
		lv := []string{r.Backend, strconv.FormatBool(r.Bulk)}
		c.processed.WithLabelValues(lv...).Add(float64(r.Processed))
		c.requeued.WithLabelValues(lv...).Add(float64(r.Requeued))
		c.retired.WithLabelValues(lv...).Add(float64(r.Retired))
		c.duration.WithLabelValues(lv...).Observe(r.Elapsed().Seconds())
		c.rate.WithLabelValues(lv...).Set(r.Rate())
	}
}

// WriteTextfile atomically writes the current metrics to path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

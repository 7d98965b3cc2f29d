package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if err := config.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config validation failed: %w", err)
	}
	if err := config.Driver.Validate(); err != nil {
		return fmt.Errorf("driver config validation failed: %w", err)
	}
	if _, err := config.Input.Options(); err != nil {
		return fmt.Errorf("input config validation failed: %w", err)
	}
	if err := config.RunLog.Validate(); err != nil {
		return fmt.Errorf("runlog config validation failed: %w", err)
	}
	if err := config.Log.Validate(); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	if config.Run.Repeat < 1 {
		return fmt.Errorf("run repeat must be at least 1, got %d", config.Run.Repeat)
	}
	return nil
}

// Validate performs validation on the queue configuration
func (q *QueueConfig) Validate() error {
	kinds, err := q.Kinds()
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		return fmt.Errorf("no backend selected")
	}
	if math.IsNaN(q.BucketWidth) || math.IsInf(q.BucketWidth, 0) || q.BucketWidth <= 0 {
		return fmt.Errorf("bucket_width must be positive, got %v", q.BucketWidth)
	}
	if q.BucketCount < 0 {
		return fmt.Errorf("bucket_count must be non-negative, got %d", q.BucketCount)
	}
	if q.MaxBatch < 0 {
		return fmt.Errorf("max_batch must be non-negative, got %d", q.MaxBatch)
	}
	if q.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", q.Workers)
	}
	return nil
}

// Validate performs validation on the driver configuration
func (d *DriverConfig) Validate() error {
	if d.WindowCount < 1 {
		return fmt.Errorf("window_count must be positive, got %d", d.WindowCount)
	}
	return nil
}

var (
	validJournalModes = []string{"delete", "truncate", "persist", "memory", "wal", "off"}
	validSynchronous  = []string{"off", "normal", "full", "extra"}
)

// Validate performs validation on the run log configuration
func (r *RunLogConfig) Validate() error {
	if r.Path == "" {
		return nil
	}
	if !containsFold(validJournalModes, r.JournalMode) {
		return fmt.Errorf("invalid journal_mode: %s (valid options: %s)",
			r.JournalMode, strings.Join(validJournalModes, ", "))
	}
	if !containsFold(validSynchronous, r.Synchronous) {
		return fmt.Errorf("invalid synchronous: %s (valid options: %s)",
			r.Synchronous, strings.Join(validSynchronous, ", "))
	}
	return nil
}

// Validate performs validation on the logging configuration
func (l *LogConfig) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(l.Level)); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	switch strings.ToLower(l.Format) {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: console, json)", l.Format)
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

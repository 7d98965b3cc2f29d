package config

import (
	"math"

	"github.com/spf13/viper"
)

// DefaultBucketWidth is the bucket width the collision workloads were tuned for.
var DefaultBucketWidth = 2*math.Pi*1e-4 - 2*math.Pi*1e-5

// DefaultWindowCount is the number of coarse windows an input is split into.
const DefaultWindowCount = 500

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	// Queue defaults
	v.SetDefault("queue.backend", "parallel")
	v.SetDefault("queue.backends", []string{})
	v.SetDefault("queue.bucket_width", DefaultBucketWidth)
	v.SetDefault("queue.bucket_count", 0) // 0 means derive from input
	v.SetDefault("queue.max_batch", 0)
	v.SetDefault("queue.workers", 0) // 0 means auto-detect

	// Driver defaults
	v.SetDefault("driver.window_count", DefaultWindowCount)
	v.SetDefault("driver.bulk", true)

	// Input defaults
	v.SetDefault("input.path", "")
	v.SetDefault("input.format", "")
	v.SetDefault("input.comma", ",")

	// Run log defaults (disabled)
	v.SetDefault("runlog.path", "")
	v.SetDefault("runlog.journal_mode", "wal")
	v.SetDefault("runlog.synchronous", "normal")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("run.repeat", 1)
}

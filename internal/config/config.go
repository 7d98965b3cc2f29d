package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/LeJamon/goEventQ/internal/ingest"
	"github.com/LeJamon/goEventQ/internal/pq"
)

// Config represents the complete eventq configuration.
type Config struct {
	Queue   QueueConfig   `toml:"queue" mapstructure:"queue"`
	Driver  DriverConfig  `toml:"driver" mapstructure:"driver"`
	Input   InputConfig   `toml:"input" mapstructure:"input"`
	RunLog  RunLogConfig  `toml:"runlog" mapstructure:"runlog"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	Run     RunConfig     `toml:"run" mapstructure:"run"`

	// Internal fields for configuration management
	configPath string `toml:"-" mapstructure:"-"`
}

// QueueConfig represents the [queue] section.
// Geometry applies to the bucket backends; the heap ignores it.
type QueueConfig struct {
	Backend     string   `toml:"backend" mapstructure:"backend"`
	Backends    []string `toml:"backends" mapstructure:"backends"`
	BucketWidth float64  `toml:"bucket_width" mapstructure:"bucket_width"`
	BucketCount int      `toml:"bucket_count" mapstructure:"bucket_count"` // 0 derives from input
	MaxBatch    int      `toml:"max_batch" mapstructure:"max_batch"`       // 0 swaps out whole bucket
	Workers     int      `toml:"workers" mapstructure:"workers"`           // 0 means GOMAXPROCS
}

// DriverConfig represents the [driver] section
type DriverConfig struct {
	WindowCount int  `toml:"window_count" mapstructure:"window_count"`
	Bulk        bool `toml:"bulk" mapstructure:"bulk"`
}

// InputConfig represents the [input] section
type InputConfig struct {
	Path   string `toml:"path" mapstructure:"path"`
	Format string `toml:"format" mapstructure:"format"` // csv, text, or empty to infer
	Comma  string `toml:"comma" mapstructure:"comma"`
}

// RunLogConfig represents the [runlog] section.
// An empty path disables the run history.
type RunLogConfig struct {
	Path        string `toml:"path" mapstructure:"path"`
	JournalMode string `toml:"journal_mode" mapstructure:"journal_mode"`
	Synchronous string `toml:"synchronous" mapstructure:"synchronous"`
}

// LogConfig represents the [log] section
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // console or json
}

// MetricsConfig represents the [metrics] section.
// An empty textfile disables the export.
type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

// RunConfig represents the [run] section
type RunConfig struct {
	Repeat int `toml:"repeat" mapstructure:"repeat"`
}

// GetConfigPath returns the path of the file the configuration was read from
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// Kinds returns the backends to run, in order. Backends takes precedence over
// Backend; the name "all" expands to every backend.
func (q *QueueConfig) Kinds() ([]pq.Kind, error) {
	names := q.Backends
	if len(names) == 0 {
		names = []string{q.Backend}
	}

	var kinds []pq.Kind
	seen := make(map[pq.Kind]bool)
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			for _, k := range pq.Kinds() {
				if !seen[k] {
					seen[k] = true
					kinds = append(kinds, k)
				}
			}
			continue
		}
		k, err := pq.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// Options returns the backend options for kind
func (q *QueueConfig) Options(kind pq.Kind) pq.Options {
	return pq.Options{
		Kind:        kind,
		BucketCount: q.BucketCount,
		BucketWidth: q.BucketWidth,
		MaxBatch:    q.MaxBatch,
		Workers:     q.Workers,
	}
}

// Options converts the section into reader options
func (i *InputConfig) Options() (ingest.Options, error) {
	format, err := ingest.ParseFormat(i.Format)
	if err != nil {
		return ingest.Options{}, err
	}

	opts := ingest.Options{Format: format}
	if i.Comma != "" {
		r, size := utf8.DecodeRuneInString(i.Comma)
		if r == utf8.RuneError || size != len(i.Comma) {
			return ingest.Options{}, fmt.Errorf("comma must be a single character, got %q", i.Comma)
		}
		opts.Comma = r
	}
	return opts, nil
}

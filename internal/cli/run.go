package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goEventQ/internal/config"
	"github.com/LeJamon/goEventQ/internal/driver"
	"github.com/LeJamon/goEventQ/internal/event"
	"github.com/LeJamon/goEventQ/internal/ingest"
	"github.com/LeJamon/goEventQ/internal/metrics"
	"github.com/LeJamon/goEventQ/internal/report"
	"github.com/LeJamon/goEventQ/internal/storage/runlog"
)

var (
	runReportFormat string
	runOutputPath   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Drive an event file through one or more queue backends",
	Long: `Read collision records, split them into coarse time windows and drain every
window through each selected backend, repeating as configured.

The input may be CSV with a header row or the simulator's whitespace-separated
dump, optionally compressed (.lz4, .zst, .sz). Without an argument the
input.path configuration key is used.

Examples:
    eventq run events.csv
    eventq run dump.txt.lz4 --backend heap,bucket,parallel --repeat 5
    eventq run events.csv --backend all --report json --out results.json
    eventq run events.csv --bucket-width 0.001 --bulk=false --runlog runs.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringSlice("backend", nil, "backends to run (heap, bucket, parallel, all)")
	f.Float64("bucket-width", config.DefaultBucketWidth, "bucket width in time units")
	f.Int("bucket-count", 0, "bucket count (0 derives from the input's max time)")
	f.Int("max-batch", 0, "cap on one bulk pop (0 swaps out the whole bucket)")
	f.Int("workers", 0, "parallel transform workers (0 uses GOMAXPROCS)")
	f.Int("windows", config.DefaultWindowCount, "number of time windows")
	f.Bool("bulk", true, "drain buckets with bulk processing when the backend supports it")
	f.String("format", "", "input format (csv, text; empty infers from the file name)")
	f.String("comma", ",", "CSV field delimiter")
	f.Int("repeat", 1, "passes per backend")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")
	f.StringVarP(&runReportFormat, "report", "r", "text", "report format (text, json, msgpack, cbor)")
	f.StringVarP(&runOutputPath, "out", "o", "", "write the report to a file instead of stdout")
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(runReportFormat)
	if err != nil {
		return err
	}

	path := cfg.Input.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no input: pass a file or set input.path")
	}

	rep, err := measure(cmd, path)
	if err != nil {
		return err
	}

	if cfg.RunLog.Path != "" {
		if err := recordRuns(cmd, rep); err != nil {
			return err
		}
	}
	if cfg.Metrics.Textfile != "" {
		c := metrics.NewCollector()
		c.Observe(rep)
		if err := c.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.Metrics.Textfile).Msg("metrics written")
	}

	var out io.Writer = cmd.OutOrStdout()
	if runOutputPath != "" {
		file, err := os.Create(runOutputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}
	if err := report.Write(out, format, rep); err != nil {
		return err
	}
	if runOutputPath != "" {
		logger.Info().Str("path", runOutputPath).Msg("report written")
	}
	return nil
}

// measure ingests and partitions once, then runs every backend on the same windows.
func measure(cmd *cobra.Command, path string) (*report.Report, error) {
	opts, err := cfg.Input.Options()
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.Queue.Kinds()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	records, err := ingest.Open(path, opts)
	if err != nil {
		return nil, err
	}
	events := ingest.Events(records)
	maxTime := event.MaxTime(events)

	windows, err := event.Partition(events, maxTime, cfg.Driver.WindowCount)
	if err != nil {
		return nil, fmt.Errorf("failed to partition input: %w", err)
	}
	logger.Info().
		Str("input", path).
		Int("records", len(records)).
		Float64("max_time", maxTime).
		Int("windows", len(windows)).
		Dur("took", time.Since(started)).
		Msg("input loaded")

	rep := &report.Report{
		Input:   path,
		Records: len(records),
		MaxTime: maxTime,
		Windows: len(windows),
		Started: started,
	}

	for _, kind := range kinds {
		if err := cmd.Context().Err(); err != nil {
			return nil, err
		}

		d, err := driver.Build(driver.Config{
			Queue:  cfg.Queue.Options(kind),
			Bulk:   cfg.Driver.Bulk,
			Logger: logger,
		}, maxTime)
		if err != nil {
			return nil, err
		}

		for i := 1; i <= cfg.Run.Repeat; i++ {
			st, err := d.Run(windows)
			if err != nil {
				return nil, fmt.Errorf("%s run %d failed: %w", kind, i, err)
			}
			rep.Runs = append(rep.Runs, report.FromStats(i, st))
		}
	}
	return rep, nil
}

func recordRuns(cmd *cobra.Command, rep *report.Report) error {
	rc := runlog.DefaultConfig(cfg.RunLog.Path)
	rc.JournalMode = cfg.RunLog.JournalMode
	rc.Synchronous = cfg.RunLog.Synchronous

	l, err := runlog.Open(cmd.Context(), rc)
	if err != nil {
		return err
	}
	defer l.Close()

	entries := make([]runlog.Entry, len(rep.Runs))
	for i, r := range rep.Runs {
		entries[i] = runlog.Entry{
			Started:   rep.Started,
			Input:     rep.Input,
			Records:   rep.Records,
			Windows:   rep.Windows,
			Backend:   r.Backend,
			Bulk:      r.Bulk,
			Repeat:    r.Repeat,
			Processed: r.Processed,
			Requeued:  r.Requeued,
			Retired:   r.Retired,
			Elapsed:   r.Elapsed(),
		}
	}
	if err := l.Insert(cmd.Context(), entries); err != nil {
		return err
	}
	logger.Info().Str("path", cfg.RunLog.Path).Int("runs", len(entries)).Msg("runs recorded")
	return nil
}

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goEventQ/internal/storage/runlog"
)

var (
	runsBackend string
	runsLimit   int
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded measurement runs",
	Long: `List runs stored in the SQLite run history, newest first.

Examples:
    eventq runs --runlog runs.db
    eventq runs --runlog runs.db --backend parallel --limit 10`,
	Args: cobra.NoArgs,
	RunE: listRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().StringVar(&runsBackend, "backend", "", "only show runs of this backend")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs (0 for all)")
}

func listRuns(cmd *cobra.Command, args []string) error {
	if cfg.RunLog.Path == "" {
		return fmt.Errorf("no run log configured: pass --runlog or set runlog.path")
	}

	rc := runlog.DefaultConfig(cfg.RunLog.Path)
	rc.JournalMode = cfg.RunLog.JournalMode
	rc.Synchronous = cfg.RunLog.Synchronous

	l, err := runlog.Open(cmd.Context(), rc)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.List(cmd.Context(), runlog.Filter{Backend: runsBackend, Limit: runsLimit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tINPUT\tBACKEND\tBULK\tREPEAT\tPROCESSED\tELAPSED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%d\t%d\t%s\n",
			e.ID, e.Started.Format(time.RFC3339), e.Input, e.Backend, e.Bulk, e.Repeat,
			e.Processed, e.Elapsed.Round(time.Microsecond))
	}
	return tw.Flush()
}

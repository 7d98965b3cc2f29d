package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/LeJamon/goEventQ/internal/config"
	"github.com/LeJamon/goEventQ/internal/logging"
)

var (
	// Global flags
	configFile string
	debugLog   bool
	quiet      bool

	// Set by the root pre-run for every subcommand
	cfg    *config.Config
	logger = zerolog.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eventq",
	Short: "eventq - discrete-event scheduling queues for collision simulations",
	Long: `eventq drives recorded particle-collision events through interchangeable
priority queues: an exact binary heap, a sequential bucket (calendar) queue,
and a lock-per-bucket parallel queue with bulk operations. Inputs are split into
coarse time windows and each window is drained with lazy successor insertion,
so every particle pair has at most one pending event at a time.`,
	Version:           "0.1.0-dev",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable per-window debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("runlog", "", "SQLite run history path (empty disables)")
}

// loadConfig reads the configuration file, environment and flags, then builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	level := c.Log.Level
	switch {
	case debugLog:
		level = "debug"
	case quiet:
		level = "warn"
	}

	l, err := logging.New(logging.Options{Level: level, Format: c.Log.Format, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	if path := c.GetConfigPath(); path != "" {
		logger.Debug().Str("path", path).Msg("configuration loaded")
	}
	return nil
}

package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/LeJamon/goEventQ/internal/cli"
)

func main() {
	// Parallel queue workers default to GOMAXPROCS; match it to the container's CPU quota.
	undo := setMaxProcs(maxprocs.Set, os.Stderr)
	defer undo()

	cli.Execute()
}

// setMaxProcs runs set and reports a failure on w. Configuration is not loaded
// yet, so only warnings are printed.
func setMaxProcs(set func(...maxprocs.Option) (func(), error), w io.Writer) func() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(zerolog.WarnLevel).
		With().Timestamp().Logger()

	undo, err := set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))
	if err != nil {
		log.Warn().Err(err).Msg("failed to set GOMAXPROCS from CPU quota")
	}
	if undo == nil {
		return func() {}
	}
	return undo
}

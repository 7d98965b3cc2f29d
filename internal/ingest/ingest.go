// Package ingest reads collision records produced by the particle simulator.
//
// Two layouts are understood: CSV with a header row naming its columns, and the
// simulator's raw whitespace-separated dump. Either may be compressed with LZ4,
// zstd or snappy framing, selected by file extension.
package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/LeJamon/goEventQ/internal/event"
)

// StateLen is the number of floats in a particle-pair snapshot.
const StateLen = 14

// StateColumns names the snapshot columns in CSV input, in State order.
var StateColumns = [StateLen]string{
	"p1x", "p1y", "p1z", "p1vx", "p1vy", "p1vz", "p1r",
	"p2x", "p2y", "p2z", "p2vx", "p2vy", "p2vz", "p2r",
}

// Record is one predicted collision between particles P1 and P2.
type Record struct {
	P1   uint32
	P2   uint32
	Time float64

	// State holds positions, velocities and radii of both particles when
	// the input carries them.
	State    [StateLen]float64
	HasState bool
}

// Format selects an input layout.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// ParseFormat converts a configuration string into a Format.
// The empty string is accepted and means "infer from the file name".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Options configures reading.
type Options struct {
	Format Format

	// Comma is the CSV field delimiter; zero means ','.
	Comma rune
}

// Events converts records into scheduler events, preserving order.
// The snapshot, if present, travels as the event payload.
func Events(records []Record) []event.Event {
	out := make([]event.Event, len(records))
	for i := range records {
		r := &records[i]
		out[i] = event.Event{
			Pair: event.PairID{A: r.P1, B: r.P2},
			Time: r.Time,
		}
		if r.HasState {
			out[i].Payload = r.State
		}
	}
	return out
}

func parsePairID(s string) (uint32, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPairID, s)
	}
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q", ErrBadPairID, s)
	}
	return uint32(f), nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, s)
	}
	return f, nil
}

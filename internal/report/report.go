// Package report renders measurement runs as a text table or as JSON,
// MessagePack or CBOR documents.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/LeJamon/goEventQ/internal/driver"
)

// ErrUnknownFormat indicates an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Format selects an output encoding.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatCBOR    Format = "cbor"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatMsgpack, FormatCBOR:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Report describes one invocation: the input and every backend run made on it.
type Report struct {
	Input   string    `codec:"input"`
	Records int       `codec:"records"`
	MaxTime float64   `codec:"max_time"`
	Windows int       `codec:"windows"`
	Started time.Time `codec:"started"`
	Runs    []Run     `codec:"runs"`
}

// Run is one pass of one backend over all windows.
type Run struct {
	Backend   string `codec:"backend"`
	Bulk      bool   `codec:"bulk"`
	Repeat    int    `codec:"repeat"`
	Processed int    `codec:"processed"`
	Requeued  int    `codec:"requeued"`
	Retired   int    `codec:"retired"`
	ElapsedNS int64  `codec:"elapsed_ns"`
}

// FromStats converts driver stats for the repeat-th pass.
func FromStats(repeat int, st driver.Stats) Run {
	return Run{
		Backend:   string(st.Backend),
		Bulk:      st.Bulk,
		Repeat:    repeat,
		Processed: st.Processed,
		Requeued:  st.Requeued,
		Retired:   st.Retired,
		ElapsedNS: st.Elapsed.Nanoseconds(),
	}
}

// Elapsed returns the wall time of the run.
func (r Run) Elapsed() time.Duration { return time.Duration(r.ElapsedNS) }

// Rate returns processed events per second, or 0 for an instantaneous run.
func (r Run) Rate() float64 {
	if r.ElapsedNS <= 0 {
		return 0
	}
	return float64(r.Processed) / r.Elapsed().Seconds()
}

// Fastest returns the run with the least elapsed time.
func (rep *Report) Fastest() (Run, bool) {
	if len(rep.Runs) == 0 {
		return Run{}, false
	}
	best := rep.Runs[0]
	for _, r := range rep.Runs[1:] {
		if r.ElapsedNS < best.ElapsedNS {
			best = r
		}
	}
	return best, true
}

var (
	jsonHandle    = &codec.JsonHandle{Indent: 2}
	msgpackHandle = &codec.MsgpackHandle{}
	cborHandle    = &codec.CborHandle{}
)

func init() {
	msgpackHandle.WriteExt = true
	jsonHandle.HTMLCharsAsIs = true
}

func handleFor(f Format) (codec.Handle, error) {
	switch f {
	case FormatJSON:
		return jsonHandle, nil
	case FormatMsgpack:
		return msgpackHandle, nil
	case FormatCBOR:
		return cborHandle, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Write renders rep to w in format f.
func Write(w io.Writer, f Format, rep *Report) error {
	if f == FormatText {
		return writeText(w, rep)
	}
	h, err := handleFor(f)
	if err != nil {
		return err
	}
	if err := codec.NewEncoder(w, h).Encode(rep); err != nil {
		return fmt.Errorf("failed to encode %s report: %w", f, err)
	}
	if f == FormatJSON {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

// Read decodes a report previously written in a document format.
func Read(r io.Reader, f Format) (*Report, error) {
	h, err := handleFor(f)
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := codec.NewDecoder(r, h).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode %s report: %w", f, err)
	}
	return &rep, nil
}

func writeText(w io.Writer, rep *Report) error {
	fmt.Fprintf(w, "Input:   %s\n", rep.Input)
	fmt.Fprintf(w, "Records: %d\n", rep.Records)
	fmt.Fprintf(w, "Max time: %g\n", rep.MaxTime)
	fmt.Fprintf(w, "Windows: %d\n\n", rep.Windows)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BACKEND\tBULK\tREPEAT\tPROCESSED\tREQUEUED\tRETIRED\tELAPSED\tEVENTS/S\t")
	for _, r := range rep.Runs {
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%d\t%s\t%.0f\t\n",
			r.Backend, r.Bulk, r.Repeat, r.Processed, r.Requeued, r.Retired,
			r.Elapsed().Round(time.Microsecond), r.Rate())
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if best, ok := rep.Fastest(); ok && len(rep.Runs) > 1 {
		_, err := fmt.Fprintf(w, "\nFastest: %s (repeat %d, %s)\n",
			best.Backend, best.Repeat, best.Elapsed().Round(time.Microsecond))
		return err
	}
	return nil
}

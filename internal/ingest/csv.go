package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvLayout struct {
	p1, p2, time int
	state        [StateLen]int
	hasState     bool
}

func layoutFor(header []string) (csvLayout, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var l csvLayout
	for _, req := range []struct {
		name string
		dst  *int
	}{{"p1", &l.p1}, {"p2", &l.p2}, {"time", &l.time}} {
		i, ok := idx[req.name]
		if !ok {
			return l, &ParseError{Line: 1, Column: req.name, Err: ErrMissingColumn}
		}
		*req.dst = i
	}

	l.hasState = true
	for k, name := range StateColumns {
		i, ok := idx[name]
		if !ok {
			l.hasState = false
			break
		}
		l.state[k] = i
	}
	return l, nil
}

// ReadCSV reads records from CSV with a header row. Columns are located by
// name; p1, p2 and time are required. The snapshot is read only when every
// state column is present. Unknown columns are ignored.
func ReadCSV(r io.Reader, opts Options) ([]Record, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = append([]string(nil), header...)
	l, err := layoutFor(header)
	if err != nil {
		return nil, err
	}

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := l.decode(row, line, header)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func (l *csvLayout) decode(row []string, line int, header []string) (Record, error) {
	var rec Record
	var err error

	if rec.P1, err = parsePairID(row[l.p1]); err != nil {
		return rec, &ParseError{Line: line, Column: header[l.p1], Err: err}
	}
	if rec.P2, err = parsePairID(row[l.p2]); err != nil {
		return rec, &ParseError{Line: line, Column: header[l.p2], Err: err}
	}
	if rec.Time, err = parseFloat(row[l.time]); err != nil {
		return rec, &ParseError{Line: line, Column: header[l.time], Err: err}
	}

	if !l.hasState {
		return rec, nil
	}
	for k, i := range l.state {
		if rec.State[k], err = parseFloat(row[i]); err != nil {
			return rec, &ParseError{Line: line, Column: header[i], Err: err}
		}
	}
	rec.HasState = true
	return rec, nil
}

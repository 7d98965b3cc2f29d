package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxLine = 1 << 20

// ReadText reads the simulator's whitespace-separated dump. The first line is
// a header and is skipped. Fields 1, 2 and 3 hold p1, p2 and time; fields 4
// through 17, when all present, hold the snapshot. Field 0 is ignored.
func ReadText(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []Record
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		rec, err := decodeFields(fields, line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan line %d: %w", line+1, err)
	}
	return out, nil
}

func decodeFields(fields []string, line int) (Record, error) {
	var rec Record
	var err error

	if len(fields) < 4 {
		return rec, &ParseError{Line: line, Err: fmt.Errorf("%w: %d fields", ErrShortRow, len(fields))}
	}
	if rec.P1, err = parsePairID(fields[1]); err != nil {
		return rec, &ParseError{Line: line, Column: "1", Err: err}
	}
	if rec.P2, err = parsePairID(fields[2]); err != nil {
		return rec, &ParseError{Line: line, Column: "2", Err: err}
	}
	if rec.Time, err = parseFloat(fields[3]); err != nil {
		return rec, &ParseError{Line: line, Column: "3", Err: err}
	}

	if len(fields) < 4+StateLen {
		return rec, nil
	}
	for k := range rec.State {
		if rec.State[k], err = parseFloat(fields[4+k]); err != nil {
			return rec, &ParseError{Line: line, Column: strconv.Itoa(4 + k), Err: err}
		}
	}
	rec.HasState = true
	return rec, nil
}

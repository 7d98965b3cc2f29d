package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn indicates a CSV header without a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrBadPairID indicates a pair id that is not a non-negative integral number.
	ErrBadPairID = errors.New("invalid pair id")

	// ErrBadValue indicates a numeric field that could not be parsed.
	ErrBadValue = errors.New("invalid value")

	// ErrShortRow indicates a text row with fewer than four fields.
	ErrShortRow = errors.New("short row")

	// ErrUnknownFormat indicates an unsupported input format.
	ErrUnknownFormat = errors.New("unknown input format")
)

// ParseError reports the input position of a bad record.
type ParseError struct {
	Line   int    // 1-based line number
	Column string // column name, or field position for text input
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

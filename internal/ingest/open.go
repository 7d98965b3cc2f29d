package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Compression is the framing applied around an input file.
type Compression string

const (
	CompressionNone   Compression = ""
	CompressionLZ4    Compression = "lz4"
	CompressionZstd   Compression = "zstd"
	CompressionSnappy Compression = "snappy"
)

var extensions = map[string]Compression{
	".lz4": CompressionLZ4,
	".zst": CompressionZstd,
	".sz":  CompressionSnappy,
}

// Detect splits a file name into its compression and its inner name.
func Detect(name string) (Compression, string) {
	ext := strings.ToLower(filepath.Ext(name))
	if c, ok := extensions[ext]; ok {
		return c, strings.TrimSuffix(name, filepath.Ext(name))
	}
	return CompressionNone, name
}

// Decompress wraps r in a reader for the given framing. The returned closer
// releases decoder resources and does not close r.
func Decompress(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionSnappy:
		return snappy.NewReader(r), func() {}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return dec, dec.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown compression %q", c)
	}
}

// Read dispatches on opts.Format. An empty format is treated as CSV.
func Read(r io.Reader, opts Options) ([]Record, error) {
	switch opts.Format {
	case FormatCSV, "":
		return ReadCSV(r, opts)
	case FormatText:
		return ReadText(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// Open reads every record in the file at path. Compression is chosen by
// extension. When opts.Format is empty it is inferred from the inner name:
// ".csv" is CSV and anything else is the text dump.
func Open(path string, opts Options) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	comp, inner := Detect(path)
	if opts.Format == "" {
		opts.Format = FormatText
		if strings.EqualFold(filepath.Ext(inner), ".csv") {
			opts.Format = FormatCSV
		}
	}

	r, release, err := Decompress(bufio.NewReader(f), comp)
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := Read(r, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

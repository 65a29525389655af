// Package tabular reads vendor catalog files into RawRecords and writes
// pipeline artifacts atomically.
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/sells-group/catalog-cli/internal/model"
)

// DefaultEncodings is the decoding order tried for CSV input.
var DefaultEncodings = []string{"utf-8", "latin-1"}

// Table is a fully read input file. Rows are numbered from 1 (the first data
// row after the header).
type Table struct {
	Header   []string
	Rows     []model.RawRecord
	Encoding string
}

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune     // default ','
	Encodings []string // default DefaultEncodings
}

// ReadCSV reads a delimited file with a required header row. The first
// encoding under which the bytes decode cleanly wins; utf-8 is checked for
// validity, single-byte encodings always decode.
func ReadCSV(ctx context.Context, path string, opts CSVOptions) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %s", path)
	}

	encodings := opts.Encodings
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}

	var (
		text    []byte
		encName string
	)
	for _, name := range encodings {
		decoded, ok, err := decode(data, name)
		if err != nil {
			return nil, err
		}
		if ok {
			text, encName = decoded, name
			break
		}
	}
	if text == nil {
		return nil, eris.Errorf("tabular: %s could not be decoded with any of %v", path, encodings)
	}
	text = bytes.TrimPrefix(text, []byte("\uFEFF"))

	header, rows, err := parseCSV(ctx, bytes.NewReader(text), opts.Delimiter)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: parse %s", path)
	}
	return &Table{Header: header, Rows: rows, Encoding: encName}, nil
}

func decode(data []byte, name string) ([]byte, bool, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return data, utf8.Valid(data), nil
	case "latin-1", "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "cp1252", "windows-1252":
		enc = charmap.Windows1252
	default:
		return nil, false, eris.Errorf("tabular: unsupported encoding %q", name)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, false, nil
	}
	return out, true, nil
}

// StreamCSV reads CSV rows and sends them to a channel. Both channels are
// closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, delimiter rune) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if delimiter != 0 {
			reader.Comma = delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func parseCSV(ctx context.Context, r io.Reader, delimiter rune) ([]string, []model.RawRecord, error) {
	rowCh, errCh := StreamCSV(ctx, r, delimiter)

	var (
		header []string
		rows   []model.RawRecord
	)
	for rec := range rowCh {
		if header == nil {
			header = rec
			continue
		}
		if isBlank(rec) {
			continue
		}
		rows = append(rows, model.RawRecord{Row: len(rows) + 1, Header: header, Values: rec})
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}
	if header == nil {
		return nil, nil, eris.New("missing header row")
	}
	return header, rows, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Read dispatches on the file extension: .xlsx goes through ReadXLSX with
// sheet, any other extension is read as CSV with opts.
func Read(ctx context.Context, path string, opts CSVOptions, sheet XLSXOptions) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, sheet)
	}
	return ReadCSV(ctx, path, opts)
}

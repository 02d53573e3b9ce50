package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/okian/beatfeat/internal/domain/features"
)

// CSVWriter writes a header line followed by one record per row.
type CSVWriter struct {
	buf    *bufio.Writer
	csv    *csv.Writer
	closer io.Closer
	width  int
	record []string
}

// NewCSVFile creates (or truncates) path and returns a writer for it.
func NewCSVFile(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return NewCSVWriter(f), nil
}

// NewCSVWriter wraps w. If w is an io.Closer it is closed by Close.
func NewCSVWriter(w io.Writer) *CSVWriter {
	buf := bufio.NewWriter(w)
	cw := &CSVWriter{buf: buf, csv: csv.NewWriter(buf)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// WriteHeader writes the column names.
func (w *CSVWriter) WriteHeader(cols []features.Column) error {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	w.width = len(cols)
	w.record = make([]string, len(cols))
	if err := w.csv.Write(names); err != nil {
		return writeErr("csv header", err)
	}
	return nil
}

// WriteRow formats and buffers one record.
func (w *CSVWriter) WriteRow(values []any) error {
	if len(values) != w.width {
		return writeErr("csv row", fmt.Errorf("got %d values for %d columns", len(values), w.width))
	}
	for i, v := range values {
		w.record[i] = formatValue(v)
	}
	if err := w.csv.Write(w.record); err != nil {
		return writeErr("csv row", err)
	}
	return nil
}

// Flush pushes buffered records through to the underlying writer.
func (w *CSVWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return writeErr("csv flush", err)
	}
	if err := w.buf.Flush(); err != nil {
		return writeErr("csv flush", err)
	}
	if s, ok := w.closer.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return writeErr("csv sync", err)
		}
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (w *CSVWriter) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil && cerr != nil {
			err = writeErr("csv close", cerr)
		}
	}
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

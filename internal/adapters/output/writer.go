// Package output persists feature rows as CSV or SQLite.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/beatfeat/internal/domain/features"
)

// Sentinel errors for output operations.
var (
	ErrWrite         = errors.New("output write failed")
	ErrLocked        = errors.New("output is locked by another run")
	ErrUnknownFormat = errors.New("unknown output format")
)

// Supported formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// RowWriter is the tabular sink behind a result sink. Implementations are
// not safe for concurrent use; callers serialize access.
type RowWriter interface {
	// WriteHeader declares the column set. It is called once before any row.
	WriteHeader(cols []features.Column) error
	// WriteRow appends one row. A row is either fully buffered or not at all.
	WriteRow(values []any) error
	// Flush makes every buffered row durable.
	Flush() error
	// Close flushes and releases resources.
	Close() error
}

// Options configures Open.
type Options struct {
	Format string
	Path   string
	Table  string // sqlite only
	RunID  string // sqlite only
}

// Open creates the writer for opts.Format at opts.Path, holding an exclusive
// lock on the path for the writer's lifetime.
func Open(opts Options) (RowWriter, error) {
	lock, err := acquireLock(opts.Path)
	if err != nil {
		return nil, err
	}

	var w RowWriter
	switch strings.ToLower(opts.Format) {
	case "", FormatCSV:
		w, err = NewCSVFile(opts.Path)
	case FormatSQLite:
		w, err = NewSQLite(opts.Path, opts.Table, opts.RunID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if err != nil {
		_ = lock.release()
		return nil, err
	}
	return &lockedWriter{RowWriter: w, lock: lock}, nil
}

// lockedWriter releases the path lock after the inner writer closes.
type lockedWriter struct {
	RowWriter
	lock *pathLock
}

func (w *lockedWriter) Close() error {
	err := w.RowWriter.Close()
	if lerr := w.lock.release(); err == nil {
		err = lerr
	}
	return err
}

func writeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWrite, op, err)
}

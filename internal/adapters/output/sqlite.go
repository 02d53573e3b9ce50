package output

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/beatfeat/internal/domain/features"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const defaultTable = "features"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteWriter stores rows in a single table. Rows accumulate in an open
// transaction that is committed on every Flush.
type SQLiteWriter struct {
	db    *sql.DB
	table string
	runID string

	tx    *sql.Tx
	stmt  *sql.Stmt
	query string
	width int
}

// NewSQLite opens (or creates) the database at path. runID is stored with
// every row so several runs can share one database file.
func NewSQLite(path, table, runID string) (*SQLiteWriter, error) {
	if table == "" {
		table = defaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid sqlite table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps the transaction and the statement on the same handle.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite %s: %w", path, err)
	}

	return &SQLiteWriter{db: db, table: table, runID: runID}, nil
}

// WriteHeader creates the table when missing and prepares the insert.
func (w *SQLiteWriter) WriteHeader(cols []features.Column) error {
	defs := make([]string, 0, len(cols)+1)
	names := make([]string, 0, len(cols)+1)
	defs = append(defs, "run_id TEXT NOT NULL")
	names = append(names, "run_id")
	for _, c := range cols {
		typ := "REAL"
		if c.Kind == features.Integer {
			typ = "INTEGER"
		}
		defs = append(defs, fmt.Sprintf("%s %s", c.Name, typ))
		names = append(names, c.Name)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", w.table, strings.Join(defs, ", "))
	if _, err := w.db.Exec(ddl); err != nil {
		return writeErr("sqlite create table", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	w.query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", w.table, strings.Join(names, ", "), placeholders)
	w.width = len(cols)
	return w.begin()
}

func (w *SQLiteWriter) begin() error {
	tx, err := w.db.Begin()
	if err != nil {
		return writeErr("sqlite begin", err)
	}
	stmt, err := tx.Prepare(w.query)
	if err != nil {
		_ = tx.Rollback()
		return writeErr("sqlite prepare", err)
	}
	w.tx, w.stmt = tx, stmt
	return nil
}

// WriteRow inserts one row into the open transaction.
func (w *SQLiteWriter) WriteRow(values []any) error {
	if w.stmt == nil {
		return writeErr("sqlite row", fmt.Errorf("header not written"))
	}
	if len(values) != w.width {
		return writeErr("sqlite row", fmt.Errorf("got %d values for %d columns", len(values), w.width))
	}
	args := make([]any, 0, len(values)+1)
	args = append(args, w.runID)
	args = append(args, values...)
	if _, err := w.stmt.Exec(args...); err != nil {
		return writeErr("sqlite insert", err)
	}
	return nil
}

// Flush commits the pending rows and opens a new transaction.
func (w *SQLiteWriter) Flush() error {
	if w.tx == nil {
		return nil
	}
	if err := w.commit(); err != nil {
		return err
	}
	return w.begin()
}

func (w *SQLiteWriter) commit() error {
	_ = w.stmt.Close()
	err := w.tx.Commit()
	w.tx, w.stmt = nil, nil
	if err != nil {
		return writeErr("sqlite commit", err)
	}
	return nil
}

// Close commits pending rows and closes the database.
func (w *SQLiteWriter) Close() error {
	var err error
	if w.tx != nil {
		err = w.commit()
	}
	if cerr := w.db.Close(); err == nil && cerr != nil {
		err = writeErr("sqlite close", cerr)
	}
	return err
}

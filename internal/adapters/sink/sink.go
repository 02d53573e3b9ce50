// Package sink aggregates worker outcomes into the output writer.
//
// Two disciplines are provided. Direct lets every worker write under a
// mutex; Collect funnels outcomes through a channel to a single coordinator
// that owns the writer. Both write each item at most once, write a row as a
// single unit and flush deterministically when closed.
package sink

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/beatfeat/internal/adapters/output"
	"github.com/okian/beatfeat/internal/domain/features"
	"github.com/okian/beatfeat/internal/domain/model"
)

// Sentinel errors for sink operations.
var (
	ErrClosed      = errors.New("sink closed")
	ErrNotOpen     = errors.New("sink not open")
	ErrUnknownKind = errors.New("unknown sink discipline")
)

// Disciplines.
const (
	KindDirect  = "direct"
	KindCollect = "collect"
)

// Sink receives terminal outcomes from workers.
type Sink interface {
	// Open writes the header and prepares for expected outcomes. onFatal is
	// called at most once when a write fails and the run must stop.
	Open(ctx context.Context, expected int, onFatal func(error)) error

	// Deliver hands one outcome over. Ownership of the row passes to the sink.
	// A non-nil error is a fatal write error or ErrClosed.
	Deliver(ctx context.Context, o model.Outcome) error

	// Close stops accepting outcomes, flushes everything written so far and
	// returns the aggregate. Calling it before all expected outcomes arrived
	// is the forced flush used on interrupt.
	Close(ctx context.Context) (Summary, error)
}

// Summary aggregates what a sink saw.
type Summary struct {
	Expected int
	Received int
	Written  int
	Failures []*model.ItemError
}

// sortFailures orders failures by input index for stable reporting.
func (s *Summary) sortFailures() {
	slices.SortFunc(s.Failures, func(a, b *model.ItemError) int { return a.Index - b.Index })
}

// New builds the sink for kind over w.
func New(kind string, w output.RowWriter, schema features.Schema, opts ...Option) (Sink, error) {
	switch strings.ToLower(kind) {
	case "", KindDirect:
		return NewDirect(w, schema, opts...), nil
	case KindCollect:
		return NewCollect(w, schema, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

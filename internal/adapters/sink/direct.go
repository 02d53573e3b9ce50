package sink

import (
	"context"
	"sync"
	"time"

	"github.com/okian/beatfeat/internal/adapters/output"
	"github.com/okian/beatfeat/internal/domain/features"
	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
	"github.com/okian/beatfeat/pkg/metrics"
)

// Direct lets each worker write its own row under a shared lock. A
// coordinator counts completion signals and flushes once all expected
// outcomes have been delivered.
type Direct struct {
	core

	mu     sync.Mutex // guards core and closed
	closed bool

	completed chan struct{}
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// NewDirect creates a Direct sink over w.
func NewDirect(w output.RowWriter, schema features.Schema, opts ...Option) *Direct {
	return &Direct{core: newCore(w, schema, opts)}
}

// Open writes the header and starts the coordinator.
func (d *Direct) Open(ctx context.Context, expected int, onFatal func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.open(ctx, expected, onFatal); err != nil {
		return err
	}
	d.completed = make(chan struct{}, expected)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.coordinate(ctx, expected)
	return nil
}

// Deliver writes the outcome's row, if any, as one unit.
func (d *Direct) Deliver(ctx context.Context, o model.Outcome) error {
	start := time.Now()
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return ErrNotOpen
	}
	if d.closed {
		d.mu.Unlock()
		metrics.RecordRowRejected()
		return ErrClosed
	}
	err := d.handle(ctx, o)
	d.mu.Unlock()
	metrics.RecordSinkWriteDuration(float64(time.Since(start).Milliseconds()))

	select {
	case d.completed <- struct{}{}:
	default:
		// More deliveries than expected; the coordinator already finished.
	}
	return err
}

func (d *Direct) coordinate(ctx context.Context, expected int) {
	defer close(d.done)
	for n := 0; n < expected; n++ {
		select {
		case <-d.completed:
		case <-d.stop:
			return
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.flush(ctx); err != nil {
		return
	}
	d.logger.Debug(ctx, "all outcomes delivered", logger.Int("expected", expected))
}

// Close stops accepting outcomes and flushes whatever was written.
func (d *Direct) Close(ctx context.Context) (Summary, error) {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return Summary{}, ErrNotOpen
	}
	d.mu.Unlock()

	d.stopOnce.Do(func() { close(d.stop) })
	select {
	case <-d.done:
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if err := d.flush(ctx); err != nil {
		return d.snapshot(), err
	}
	return d.snapshot(), d.err()
}

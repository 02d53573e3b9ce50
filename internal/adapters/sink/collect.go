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

const defaultBuffer = 1

// Collect hands outcomes over a channel to a single coordinator that owns
// the writer. Workers never touch the writer.
type Collect struct {
	core

	results  chan model.Outcome
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
}

// NewCollect creates a Collect sink over w.
func NewCollect(w output.RowWriter, schema features.Schema, opts ...Option) *Collect {
	c := &Collect{core: newCore(w, schema, opts)}
	if c.buffer <= 0 {
		c.buffer = defaultBuffer
	}
	return c
}

// Open writes the header and starts the coordinator.
func (c *Collect) Open(ctx context.Context, expected int, onFatal func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.open(ctx, expected, onFatal); err != nil {
		return err
	}
	c.results = make(chan model.Outcome, c.buffer)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.started = true
	go c.coordinate(ctx, expected)
	return nil
}

// Deliver sends the outcome to the coordinator. It blocks while the buffer
// is full.
func (c *Collect) Deliver(ctx context.Context, o model.Outcome) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return ErrNotOpen
	}

	select {
	case <-c.stop:
		metrics.RecordRowRejected()
		return ErrClosed
	default:
	}

	select {
	case c.results <- o:
		return c.err()
	case <-c.stop:
		metrics.RecordRowRejected()
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collect) coordinate(ctx context.Context, expected int) {
	defer close(c.done)

	received := 0
loop:
	for received < expected {
		select {
		case o := <-c.results:
			c.record(ctx, o)
			received++
		case <-c.stop:
			// Take whatever is already buffered, then stop.
			for {
				select {
				case o := <-c.results:
					c.record(ctx, o)
				default:
					break loop
				}
			}
		}
	}

	if err := c.flush(ctx); err != nil {
		return
	}
	c.logger.Debug(ctx, "coordinator finished", logger.Int("received", c.summary.Received), logger.Int("expected", expected))
}

func (c *Collect) record(ctx context.Context, o model.Outcome) {
	start := time.Now()
	// Errors are surfaced through onFatal and Close.
	_ = c.handle(ctx, o)
	metrics.RecordSinkWriteDuration(float64(time.Since(start).Milliseconds()))
}

// Close stops the coordinator after it drains buffered outcomes.
func (c *Collect) Close(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return Summary{}, ErrNotOpen
	}

	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.done:
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
	return c.snapshot(), c.err()
}

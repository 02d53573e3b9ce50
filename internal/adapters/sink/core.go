package sink

import (
	"context"
	"sync"

	"github.com/okian/beatfeat/internal/adapters/output"
	"github.com/okian/beatfeat/internal/domain/dedupe"
	"github.com/okian/beatfeat/internal/domain/features"
	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
	"github.com/okian/beatfeat/pkg/metrics"
)

// core holds the writer-side state shared by both disciplines. Every method
// except fatal/err requires exclusive access, which each discipline provides
// in its own way.
type core struct {
	w       output.RowWriter
	schema  features.Schema
	deduper dedupe.Deduper
	logger  logger.Logger
	buffer  int

	onFatal   func(error)
	fatalOnce sync.Once
	fatalMu   sync.Mutex
	fatalErr  error

	summary Summary
	flushed bool
	opened  bool
}

func newCore(w output.RowWriter, schema features.Schema, opts []Option) core {
	c := core{w: w, schema: schema}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("sink")
	}
	return c
}

func (c *core) open(ctx context.Context, expected int, onFatal func(error)) error {
	c.summary = Summary{Expected: expected}
	c.deduper = dedupe.NewInMemoryDeduper(dedupe.WithCapacity(expected))
	c.onFatal = onFatal
	if err := c.w.WriteHeader(c.schema.Columns()); err != nil {
		metrics.RecordSinkWriteError()
		return err
	}
	c.opened = true
	c.logger.Debug(ctx, "sink opened", logger.Int("expected", expected), logger.Int("columns", len(c.schema.Names())))
	return nil
}

// handle accounts for one outcome and writes its row when it has one.
func (c *core) handle(ctx context.Context, o model.Outcome) error {
	c.summary.Received++
	if o.Failed() {
		c.summary.Failures = append(c.summary.Failures, o.Err)
		return nil
	}
	return c.write(ctx, o)
}

func (c *core) write(ctx context.Context, o model.Outcome) error {
	if err := c.err(); err != nil {
		// Output is already inconsistent; never write past a failed write.
		metrics.RecordRowRejected()
		return err
	}
	if c.deduper.SeenAndRecord(ctx, o.Index) {
		metrics.RecordRowRejected()
		c.logger.Warn(ctx, "duplicate row dropped", logger.Int("index", o.Index), logger.String("reference", o.Item.Reference))
		return nil
	}
	if err := c.w.WriteRow(c.schema.Values(o.Row)); err != nil {
		c.fatal(err)
		return err
	}
	c.summary.Written++
	c.flushed = false
	metrics.RecordRowWritten()
	return nil
}

func (c *core) flush(ctx context.Context) error {
	if !c.opened || c.flushed {
		return nil
	}
	if err := c.w.Flush(); err != nil {
		c.fatal(err)
		return err
	}
	c.flushed = true
	metrics.RecordSinkFlush()
	c.logger.Debug(ctx, "sink flushed", logger.Int("written", c.summary.Written))
	return nil
}

func (c *core) fatal(err error) {
	c.fatalOnce.Do(func() {
		c.fatalMu.Lock()
		c.fatalErr = err
		c.fatalMu.Unlock()
		metrics.RecordSinkWriteError()
		c.logger.Error(context.Background(), "output write failed", logger.Error(err))
		if c.onFatal != nil {
			c.onFatal(err)
		}
	})
}

func (c *core) err() error {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	return c.fatalErr
}

// snapshot copies the summary with failures sorted by index.
func (c *core) snapshot() Summary {
	s := c.summary
	s.Failures = append([]*model.ItemError(nil), c.summary.Failures...)
	s.sortFailures()
	return s
}

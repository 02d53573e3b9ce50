// Package worker runs one fetch-extract-deliver task per input item on a
// fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/beatfeat/internal/adapters/mq/queue"
	"github.com/okian/beatfeat/internal/adapters/sink"
	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
	"github.com/okian/beatfeat/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Default pool configuration constants.
const (
	defaultGracePeriod  = 5 * time.Second
	sinkCloseTimeout    = 30 * time.Second
	defaultWorkerFactor = 1 // multiplier for runtime.NumCPU()
)

// ErrInterrupted is returned when the run was cancelled before every item
// reached a terminal outcome.
var ErrInterrupted = errors.New("run interrupted")

// Processor turns one rated item into a feature row.
type Processor interface {
	Process(ctx context.Context, item model.RatedItem) (model.FeatureRow, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item model.RatedItem) (model.FeatureRow, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, item model.RatedItem) (model.FeatureRow, error) {
	return f(ctx, item)
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Total       int
	Written     int
	Failures    []*model.ItemError
	Skipped     int // items that never reached a terminal outcome
	Interrupted bool
	Duration    time.Duration
}

// Pool runs a fixed number of workers over a preloaded queue.
type Pool struct {
	workers   int
	grace     time.Duration
	runID     string
	processor Processor
	sink      sink.Sink
	onOutcome func(model.Outcome)
	logger    logger.Logger
}

// NewPool creates a pool that hands every outcome to s.
func NewPool(processor Processor, s sink.Sink, opts ...Option) *Pool {
	p := &Pool{
		workers:   runtime.NumCPU() * defaultWorkerFactor,
		grace:     defaultGracePeriod,
		processor: processor,
		sink:      s,
		logger:    logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Run processes items until each has a terminal outcome or ctx is cancelled.
//
// On cancellation no further items are started. Items already in flight get
// the grace period to finish, then the sink is closed, which flushes every
// row written so far. The returned error is a write error from the sink,
// ErrInterrupted, or nil.
func (p *Pool) Run(ctx context.Context, items []model.RatedItem) (report Report, err error) {
	start := time.Now()
	report = Report{RunID: p.runID, Total: len(items)}
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordRunDuration(float64(report.Duration.Milliseconds()))
	}()

	metrics.UpdateItemsTotal(len(items))
	metrics.UpdateWorkerCount(p.workers)

	// The queue holds every item, so loading never blocks on ctx.
	q, err := queue.Load(context.WithoutCancel(ctx), items)
	if err != nil {
		return report, fmt.Errorf("load queue: %w", err)
	}

	// In-flight work keeps running past an interrupt until the grace period ends.
	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelExec()
	go p.watchInterrupt(ctx, execCtx, cancelExec)

	dispatchCtx, cancelDispatch := context.WithCancelCause(ctx)
	defer cancelDispatch(nil)

	if err := p.sink.Open(execCtx, len(items), cancelDispatch); err != nil {
		return report, err
	}

	g, gctx := errgroup.WithContext(dispatchCtx)
	for i := 0; i < p.workers; i++ {
		name := "worker-" + strconv.Itoa(i)
		g.Go(func() error {
			return p.work(gctx, execCtx, q, p.logger.Named(name))
		})
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	var runErr error
	select {
	case runErr = <-waitErr:
	case <-execCtx.Done():
		p.logger.Warn(ctx, "grace period expired with items in flight", logger.Duration("grace", p.grace))
	}

	closeCtx, cancelClose := context.WithTimeout(context.WithoutCancel(ctx), sinkCloseTimeout)
	defer cancelClose()
	summary, closeErr := p.sink.Close(closeCtx)

	report.Written = summary.Written
	report.Failures = summary.Failures
	report.Skipped = report.Total - summary.Received
	report.Interrupted = ctx.Err() != nil && report.Skipped > 0
	if report.Skipped > 0 {
		metrics.RecordSkippedItems(report.Skipped)
	}

	switch {
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return report, runErr
	case closeErr != nil:
		return report, closeErr
	case report.Interrupted:
		return report, ErrInterrupted
	}
	return report, nil
}

func (p *Pool) watchInterrupt(ctx, execCtx context.Context, cancelExec context.CancelFunc) {
	select {
	case <-ctx.Done():
	case <-execCtx.Done():
		return
	}

	metrics.RecordInterrupt()
	p.logger.Warn(execCtx, "interrupt received, draining in-flight items", logger.Duration("grace", p.grace))

	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-timer.C:
		cancelExec()
	case <-execCtx.Done():
	}
}

// work claims jobs until the queue is drained or dispatch stops.
func (p *Pool) work(dispatchCtx, execCtx context.Context, q queue.Queue, log logger.Logger) error {
	jobs := q.Dequeue(dispatchCtx)
	for {
		if dispatchCtx.Err() != nil {
			return nil
		}
		select {
		case <-dispatchCtx.Done():
			return nil
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			metrics.UpdateQueueSize(len(jobs))
			if dispatchCtx.Err() != nil {
				// Claimed after the stop; never started, so it stays unreported.
				return nil
			}

			o := p.process(execCtx, job, log)
			if err := p.sink.Deliver(execCtx, o); err != nil {
				if errors.Is(err, sink.ErrClosed) {
					return nil
				}
				return err
			}
			if p.onOutcome != nil {
				p.onOutcome(o)
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, job queue.Job, log logger.Logger) model.Outcome {
	start := time.Now()
	metrics.IncWorkerActive()
	defer func() {
		metrics.DecWorkerActive()
		metrics.RecordItemLatency(float64(time.Since(start).Milliseconds()))
	}()

	log.Debug(ctx, "item dispatched", logger.Int("index", job.Index), logger.String("reference", job.Item.Reference))

	o := model.Outcome{Index: job.Index, Item: job.Item}
	row, err := p.processor.Process(ctx, job.Item)
	if err != nil {
		o.Err = model.NewItemError(job.Index, job.Item, err)
		metrics.RecordItemFailure(string(o.Err.Kind))
		log.Warn(ctx, "item failed",
			logger.Int("index", job.Index),
			logger.String("reference", job.Item.Reference),
			logger.String("kind", string(o.Err.Kind)),
			logger.Error(err),
		)
		return o
	}

	o.Row = row
	metrics.RecordItemProcessed()
	log.Info(ctx, "item processed",
		logger.Int("index", job.Index),
		logger.String("reference", job.Item.Reference),
		logger.Int("notes", row.NoteCount),
		logger.Float64("nps", row.NotesPerSecond),
	)
	return o
}

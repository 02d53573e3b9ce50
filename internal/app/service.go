// Package service wires input, fetching, feature extraction, the worker
// pool and the output into one run.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/beatfeat/internal/adapters/mq/worker"
	"github.com/okian/beatfeat/internal/adapters/output"
	"github.com/okian/beatfeat/internal/adapters/sink"
	"github.com/okian/beatfeat/internal/domain/features"
	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
	"github.com/okian/beatfeat/pkg/metrics"
)

// Sentinel errors for service operations.
var (
	ErrNoParser       = errors.New("no document parser configured")
	ErrAlreadyRunning = errors.New("run already in progress")
)

// Parser turns a reference into a document.
type Parser interface {
	Parse(ctx context.Context, reference string) (*model.Document, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, reference string) (*model.Document, error)

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, reference string) (*model.Document, error) {
	return f(ctx, reference)
}

// Service runs the extraction pipeline.
type Service struct {
	mu sync.Mutex

	// Collaborators
	parser Parser
	writer output.RowWriter // overrides Open(output) when set

	// Configuration
	features    features.Config
	workerCount int
	sinkKind    string
	grace       time.Duration
	output      output.Options
	runID       string
	onOutcome   func(model.Outcome)

	// State
	running   bool
	startedAt time.Time
	total     atomic.Int64
	done      atomic.Int64
	written   atomic.Int64
	failed    atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithParser sets the document parser.
func WithParser(p Parser) Option {
	return func(s *Service) {
		s.parser = p
	}
}

// WithFeatures selects the optional feature groups.
func WithFeatures(cfg features.Config) Option {
	return func(s *Service) {
		s.features = cfg
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithSinkKind selects the result sink discipline.
func WithSinkKind(kind string) Option {
	return func(s *Service) {
		if kind != "" {
			s.sinkKind = kind
		}
	}
}

// WithGracePeriod bounds how long in-flight items may run after an interrupt.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		s.grace = d
	}
}

// WithOutput sets where and how rows are persisted.
func WithOutput(opts output.Options) Option {
	return func(s *Service) {
		s.output = opts
	}
}

// WithWriter uses w instead of opening the configured output. The service
// still closes it at the end of the run.
func WithWriter(w output.RowWriter) Option {
	return func(s *Service) {
		s.writer = w
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithOnOutcome registers a callback for every delivered outcome.
func WithOnOutcome(fn func(model.Outcome)) Option {
	return func(s *Service) {
		s.onOutcome = fn
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		sinkKind:    sink.KindDirect,
		grace:       5 * time.Second,
		runID:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.With(logger.String("run_id", s.runID))
	return s
}

// RunID returns the identifier attached to logs, reports and sqlite rows.
func (s *Service) RunID() string { return s.runID }

// Process fetches the item's document and extracts its features. It is the
// per-item task the worker pool executes.
func (s *Service) Process(ctx context.Context, item model.RatedItem) (model.FeatureRow, error) {
	tier, err := model.ParseTier(item.DifficultyLabel)
	if err != nil {
		return model.FeatureRow{}, err
	}

	doc, err := s.parser.Parse(ctx, item.Reference)
	if err != nil {
		if !errors.Is(err, model.ErrFetch) {
			err = fmt.Errorf("%w: %w", model.ErrFetch, err)
		}
		return model.FeatureRow{}, err
	}

	start := time.Now()
	row, err := features.Extract(doc, tier, item.Rating, s.features)
	metrics.RecordExtractLatency(float64(time.Since(start).Milliseconds()))
	return row, err
}

// Run processes items and persists their rows. The writer is always closed
// before Run returns.
func (s *Service) Run(ctx context.Context, items []model.RatedItem) (worker.Report, error) {
	if s.parser == nil {
		return worker.Report{}, ErrNoParser
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return worker.Report{}, ErrAlreadyRunning
	}
	s.running = true
	s.startedAt = time.Now()
	s.total.Store(int64(len(items)))
	s.done.Store(0)
	s.written.Store(0)
	s.failed.Store(0)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	w := s.writer
	if w == nil {
		opts := s.output
		opts.RunID = s.runID
		var err error
		if w, err = output.Open(opts); err != nil {
			return worker.Report{RunID: s.runID, Total: len(items)}, err
		}
	}

	schema := features.NewSchema(s.features)
	rs, err := sink.New(s.sinkKind, w, schema,
		sink.WithBuffer(s.workerCount),
		sink.WithLogger(s.logger.Named("sink")),
	)
	if err != nil {
		_ = w.Close()
		return worker.Report{RunID: s.runID, Total: len(items)}, err
	}

	s.logger.Info(ctx, "run starting",
		logger.Int("items", len(items)),
		logger.Int("workers", s.workerCount),
		logger.String("sink", s.sinkKind),
		logger.Any("columns", schema.Names()),
	)

	pool := worker.NewPool(s, rs,
		worker.WithWorkers(s.workerCount),
		worker.WithGracePeriod(s.grace),
		worker.WithRunID(s.runID),
		worker.WithOnOutcome(s.observe),
		worker.WithLogger(s.logger.Named("worker-pool")),
	)
	report, runErr := pool.Run(ctx, items)

	if cerr := w.Close(); cerr != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", cerr)
	}

	s.logger.Info(context.WithoutCancel(ctx), "run finished",
		logger.Int("total", report.Total),
		logger.Int("written", report.Written),
		logger.Int("failed", len(report.Failures)),
		logger.Int("skipped", report.Skipped),
		logger.Bool("interrupted", report.Interrupted),
		logger.Duration("duration", report.Duration),
	)
	return report, runErr
}

func (s *Service) observe(o model.Outcome) {
	s.done.Add(1)
	if o.Failed() {
		s.failed.Add(1)
	} else {
		s.written.Add(1)
	}
	if s.onOutcome != nil {
		s.onOutcome(o)
	}
}

// GetStats returns live counters of the current or last run.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	running, startedAt := s.running, s.startedAt
	s.mu.Unlock()

	stats := map[string]interface{}{
		"run_id":    s.runID,
		"running":   running,
		"total":     s.total.Load(),
		"completed": s.done.Load(),
		"written":   s.written.Load(),
		"failed":    s.failed.Load(),
		"workers":   s.workerCount,
		"sink":      s.sinkKind,
	}
	if !startedAt.IsZero() {
		stats["started_at"] = startedAt.UTC().Format(time.RFC3339)
		stats["elapsed_ms"] = time.Since(startedAt).Milliseconds()
	}
	return stats
}

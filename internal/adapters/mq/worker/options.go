package worker

import (
	"time"

	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent workers. Values below one are
// raised to one.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		p.workers = n
	}
}

// WithGracePeriod sets how long in-flight items may run after an interrupt.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pool) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// WithRunID tags the report with the run identifier.
func WithRunID(id string) Option {
	return func(p *Pool) {
		p.runID = id
	}
}

// WithOnOutcome registers a callback invoked after each delivered outcome.
// It is called from worker goroutines.
func WithOnOutcome(fn func(model.Outcome)) Option {
	return func(p *Pool) {
		p.onOutcome = fn
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

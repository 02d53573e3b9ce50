package sink

import (
	"github.com/okian/beatfeat/pkg/logger"
)

// Option configures a sink.
type Option func(*core)

// WithLogger sets a custom logger for the sink.
func WithLogger(l logger.Logger) Option {
	return func(c *core) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBuffer sets the result channel capacity of the Collect discipline.
// It bounds how many finished outcomes may wait for the coordinator.
func WithBuffer(n int) Option {
	return func(c *core) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Package config defines run configuration and how it is loaded.
//
// Conventions:
//   - One flat key space shared by the YAML file, BEATFEAT_* env vars and CLI flags.
//   - Validate returns errors wrapping ErrInvalidConfig.
package config

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/beatfeat/internal/adapters/output"
	"github.com/okian/beatfeat/internal/adapters/sink"
	"github.com/okian/beatfeat/internal/domain/features"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains run configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Input is the path of the JSON item list.
	Input string `koanf:"input"`

	// Output is the path rows are written to.
	Output string `koanf:"output"`

	// OutputFormat selects the writer: csv or sqlite.
	OutputFormat string `koanf:"output_format"`

	// SQLiteTable names the table used by the sqlite writer.
	SQLiteTable string `koanf:"sqlite_table"`

	// WorkerCount sets the number of concurrent workers (>= 1).
	WorkerCount int `koanf:"worker_count"`

	// Sink selects the aggregation discipline: direct or collect.
	Sink string `koanf:"sink"`

	// EntropyFeatures adds dots_per_note and the three entropy columns.
	EntropyFeatures bool `koanf:"entropy_features"`

	// OneHotTier adds the five is_<tier> columns.
	OneHotTier bool `koanf:"one_hot_tier"`

	// FailOnItemError makes a run with item failures exit non-zero.
	FailOnItemError bool `koanf:"fail_on_item_error"`

	// ShutdownGraceMS bounds how long in-flight items may run after an interrupt.
	ShutdownGraceMS int `koanf:"shutdown_grace_ms"`

	// FetchTimeoutMS caps a single archive download.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// FetchRatePerSec and FetchBurst throttle downloads; zero rate disables throttling.
	FetchRatePerSec float64 `koanf:"fetch_rate_per_sec"`
	FetchBurst      int     `koanf:"fetch_burst"`

	// MaxArchiveBytes caps the size of a downloaded archive.
	MaxArchiveBytes int64 `koanf:"max_archive_bytes"`

	// UserAgent is sent with every download.
	UserAgent string `koanf:"user_agent"`

	// MetricsAddr, when set, serves /healthz and /status, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// Progress shows a progress bar when stderr is a terminal.
	Progress bool `koanf:"progress"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		OutputFormat:    output.FormatCSV,
		SQLiteTable:     "features",
		WorkerCount:     runtime.NumCPU(),
		Sink:            sink.KindDirect,
		ShutdownGraceMS: 5_000,
		FetchTimeoutMS:  30_000,
		FetchRatePerSec: 10,
		FetchBurst:      5,
		MaxArchiveBytes: 64 << 20,
		UserAgent:       "beatfeat/1.0",
		Progress:        true,
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Input) == "":
		return fmt.Errorf("%w: input must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Output) == "":
		return fmt.Errorf("%w: output must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be >= 1, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.ShutdownGraceMS < 0:
		return fmt.Errorf("%w: shutdown_grace_ms must be >= 0", ErrInvalidConfig)
	case c.FetchTimeoutMS < 0:
		return fmt.Errorf("%w: fetch_timeout_ms must be >= 0", ErrInvalidConfig)
	case c.FetchRatePerSec < 0:
		return fmt.Errorf("%w: fetch_rate_per_sec must be >= 0", ErrInvalidConfig)
	case c.FetchRatePerSec > 0 && c.FetchBurst < 1:
		return fmt.Errorf("%w: fetch_burst must be >= 1 when throttling", ErrInvalidConfig)
	case c.MaxArchiveBytes < 0:
		return fmt.Errorf("%w: max_archive_bytes must be >= 0", ErrInvalidConfig)
	}

	switch strings.ToLower(c.OutputFormat) {
	case output.FormatCSV, output.FormatSQLite:
	default:
		return fmt.Errorf("%w: output_format %q (want csv or sqlite)", ErrInvalidConfig, c.OutputFormat)
	}
	switch strings.ToLower(c.Sink) {
	case sink.KindDirect, sink.KindCollect:
	default:
		return fmt.Errorf("%w: sink %q (want direct or collect)", ErrInvalidConfig, c.Sink)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q (want text or json)", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Features returns the feature groups to compute and emit.
func (c *Config) Features() features.Config {
	return features.Config{EntropyFeatures: c.EntropyFeatures, OneHotTier: c.OneHotTier}
}

// ShutdownGrace returns ShutdownGraceMS as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMS) * time.Millisecond
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

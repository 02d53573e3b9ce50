package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/okian/beatfeat/internal/adapters/beatsaver"
	"github.com/okian/beatfeat/internal/adapters/http/api"
	"github.com/okian/beatfeat/internal/adapters/input"
	"github.com/okian/beatfeat/internal/adapters/mq/worker"
	"github.com/okian/beatfeat/internal/adapters/output"
	service "github.com/okian/beatfeat/internal/app"
	"github.com/okian/beatfeat/internal/config"
	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK           = 0
	exitFatal        = 1
	exitItemFailures = 2
	exitInterrupted  = 130
)

// exitError carries the process exit code out of cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// flagKeys maps CLI flags onto config keys.
var flagKeys = map[string]string{
	"workers":            "worker_count",
	"sink":               "sink",
	"format":             "output_format",
	"table":              "sqlite_table",
	"entropy":            "entropy_features",
	"one-hot":            "one_hot_tier",
	"fail-on-item-error": "fail_on_item_error",
	"grace-ms":           "shutdown_grace_ms",
	"fetch-timeout-ms":   "fetch_timeout_ms",
	"fetch-rate":         "fetch_rate_per_sec",
	"metrics-addr":       "metrics_addr",
	"log-level":          "log_level",
	"log-format":         "log_format",
	"progress":           "progress",
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := newRootCommand(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "beatfeat:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "beatfeat:", err)
	return exitFatal
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:   "beatfeat [input.json] [output] [workers]",
		Short: "Extract features from rated beat maps",
		Long: "beatfeat downloads every map listed in the input file, computes " +
			"note, obstacle and entropy features for the requested difficulty " +
			"and writes one row per map.",
		Args:          cobra.MaximumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := collectOverrides(cmd, args)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			cfg, err := config.Load(cmd.Context(), config.WithFile(configFlag), config.WithOverrides(overrides))
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			return execute(cmd.Context(), cfg, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFlag, "config", "c", "", "YAML configuration file (default $BEATFEAT_CONFIG)")
	f.IntP("workers", "w", 0, "number of concurrent workers")
	f.String("sink", "", "result sink discipline: direct or collect")
	f.String("format", "", "output format: csv or sqlite")
	f.String("table", "", "sqlite table name")
	f.Bool("entropy", false, "emit dots_per_note and the entropy columns")
	f.Bool("one-hot", false, "emit one-hot difficulty columns")
	f.Bool("fail-on-item-error", false, "exit 2 when any item failed")
	f.Int("grace-ms", 0, "milliseconds in-flight items may run after an interrupt")
	f.Int("fetch-timeout-ms", 0, "download timeout in milliseconds")
	f.Float64("fetch-rate", 0, "maximum downloads per second (0 disables throttling)")
	f.String("metrics-addr", "", "serve /healthz and /status on this address")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-format", "", "text or json")
	f.Bool("progress", true, "show a progress bar on terminals")

	return cmd
}

// collectOverrides returns only what the user set explicitly, so flags
// never mask file or env values with their zero defaults.
func collectOverrides(cmd *cobra.Command, args []string) (map[string]any, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		fl := cmd.Flags().Lookup(flag)
		if fl == nil || !fl.Changed {
			continue
		}
		overrides[key] = fl.Value.String()
	}

	if len(args) > 0 {
		overrides["input"] = args[0]
	}
	if len(args) > 1 {
		overrides["output"] = args[1]
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("%w: workers %q is not a number", config.ErrInvalidConfig, args[2])
		}
		overrides["worker_count"] = n
	}
	return overrides, nil
}

func execute(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	items, err := input.Load(cfg.Input)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	terminal := isTerminal(stderr)
	progress := newProgress(len(items), cfg.Progress && terminal, stderr)

	parser := beatsaver.New(beatsaver.Config{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.FetchTimeout(),
		RatePerSec: cfg.FetchRatePerSec,
		Burst:      cfg.FetchBurst,
		MaxBytes:   cfg.MaxArchiveBytes,
		Logger:     log.Named("beatsaver"),
	})

	svc := service.New(
		service.WithLogger(log),
		service.WithParser(parser),
		service.WithFeatures(cfg.Features()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithSinkKind(cfg.Sink),
		service.WithGracePeriod(cfg.ShutdownGrace()),
		service.WithOutput(output.Options{Format: cfg.OutputFormat, Path: cfg.Output, Table: cfg.SQLiteTable}),
		service.WithOnOutcome(func(model.Outcome) { progress.Add() }),
	)

	// The status server outlives an interrupt so the final counters stay
	// readable until the run has returned.
	serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	serverDone := make(chan struct{})
	if cfg.MetricsAddr != "" {
		go func() {
			defer close(serverDone)
			if err := api.NewServer(svc).Serve(serverCtx, cfg.MetricsAddr, log.Named("status")); err != nil {
				log.Error(ctx, "status server stopped", logger.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}

	report, runErr := svc.Run(ctx, items)
	progress.Finish()
	stopServer()
	<-serverDone

	renderReport(stderr, report, terminal)

	switch {
	case errors.Is(runErr, worker.ErrInterrupted):
		return &exitError{code: exitInterrupted}
	case runErr != nil:
		return &exitError{code: exitFatal, err: runErr}
	case len(report.Failures) > 0 && cfg.FailOnItemError:
		return &exitError{code: exitItemFailures}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

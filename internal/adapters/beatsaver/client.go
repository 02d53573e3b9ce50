// Package beatsaver fetches zipped maps over HTTP or from disk and parses
// them into documents.
package beatsaver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/okian/beatfeat/internal/domain/model"
	"github.com/okian/beatfeat/pkg/logger"
	"github.com/okian/beatfeat/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent   = "beatfeat/dev"
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBytes    = 64 << 20
)

// ErrTooLarge is returned when an archive exceeds the configured size cap.
var ErrTooLarge = errors.New("archive too large")

// Config describes the client configuration.
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64 // zero disables throttling
	Burst      int
	MaxBytes   int64
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client resolves references to documents. References with an http or
// https scheme are downloaded; anything else is read as a local path.
type Client struct {
	userAgent string
	maxBytes  int64
	limiter   *rate.Limiter
	http      *http.Client
	logger    logger.Logger
}

// New creates a Client from the supplied configuration.
func New(cfg Config) *Client {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.Burst, 1))
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get().Named("beatsaver")
	}
	return &Client{
		userAgent: userAgent,
		maxBytes:  maxBytes,
		limiter:   limiter,
		http:      client,
		logger:    log,
	}
}

// Parse fetches and parses the archive behind reference. Every failure
// wraps model.ErrFetch.
func (c *Client) Parse(ctx context.Context, reference string) (*model.Document, error) {
	start := time.Now()
	data, err := c.fetch(ctx, reference)
	metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrFetch, reference, err)
	}

	doc, err := ParseArchive(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrFetch, reference, err)
	}
	c.logger.Debug(ctx, "archive parsed",
		logger.String("reference", reference),
		logger.Int("bytes", len(data)),
		logger.Float64("length", doc.Length),
	)
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, reference string) ([]byte, error) {
	lower := strings.ToLower(reference)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return c.readFile(reference)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/zip, application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	return c.readLimited(resp.Body)
}

func (c *Client) readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return c.readLimited(f)
}

func (c *Client) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBytes)
	}
	return data, nil
}

// Package metrics provides Prometheus metrics for the beatfeat extraction pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for a pipeline run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Run-level metrics
	itemsTotal   prometheus.Gauge
	runDuration  prometheus.Histogram
	interrupts   prometheus.Counter
	skippedItems prometheus.Counter

	// Item outcome metrics
	itemsProcessed prometheus.Counter
	itemFailures   *prometheus.CounterVec

	// Stage latency metrics
	fetchLatency   prometheus.Histogram
	extractLatency prometheus.Histogram
	itemLatency    prometheus.Histogram

	// Worker metrics
	workerCount  prometheus.Gauge
	workerActive prometheus.Gauge

	// Queue metrics
	queueCapacity prometheus.Gauge
	queueSize     prometheus.Gauge

	// Sink metrics
	rowsWritten       prometheus.Counter
	rowsRejected      prometheus.Counter
	sinkFlushes       prometheus.Counter
	sinkWriteErrors   prometheus.Counter
	sinkWriteDuration prometheus.Histogram

	// HTTP metrics for the status endpoint
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "beatfeat",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.itemsTotal = m.gauge("items_total", "Number of rated items loaded for the current run")
	m.runDuration = m.histogram("run_duration_milliseconds", "Wall time of a complete run in milliseconds")
	m.interrupts = m.counter("interrupts_total", "Number of runs stopped by an external interrupt")
	m.skippedItems = m.counter("items_skipped_total", "Items never completed because the run stopped early")

	m.itemsProcessed = m.counter("items_processed_total", "Items that produced a feature row")
	m.itemFailures = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "item_failures_total",
			Help:        "Items skipped because of a per-item error, by kind",
			ConstLabels: m.constLabels,
		},
		[]string{"kind"},
	)

	m.fetchLatency = m.histogram("fetch_latency_milliseconds", "Document fetch and parse latency in milliseconds")
	m.extractLatency = m.histogram("extract_latency_milliseconds", "Feature extraction latency in milliseconds")
	m.itemLatency = m.histogram("item_latency_milliseconds", "End-to-end per-item latency in milliseconds")

	m.workerCount = m.gauge("worker_count", "Configured worker pool size")
	m.workerActive = m.gauge("worker_active", "Workers currently executing an item")

	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the work item queue")
	m.queueSize = m.gauge("queue_size", "Items waiting in the work item queue")

	m.rowsWritten = m.counter("rows_written_total", "Feature rows persisted by the result sink")
	m.rowsRejected = m.counter("rows_rejected_total", "Rows refused by the result sink (duplicate or after close)")
	m.sinkFlushes = m.counter("sink_flushes_total", "Flushes of the output writer")
	m.sinkWriteErrors = m.counter("sink_write_errors_total", "Fatal output write errors")
	m.sinkWriteDuration = m.histogram("sink_write_duration_milliseconds", "Time spent writing one row, lock wait included")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "HTTP requests served by the status endpoint",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   "http",
			Name:        "request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			ConstLabels: m.constLabels,
			Buckets:     m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// UpdateItemsTotal sets the number of items in the current run.
func UpdateItemsTotal(n int) {
	globalManager.itemsTotal.Set(float64(n))
}

// RecordRunDuration records the duration of a complete run.
func RecordRunDuration(durationMs float64) {
	globalManager.runDuration.Observe(durationMs)
}

// RecordInterrupt increments the interrupt counter.
func RecordInterrupt() {
	globalManager.interrupts.Inc()
}

// RecordSkippedItems adds items that never reached a terminal outcome.
func RecordSkippedItems(n int) {
	if n > 0 {
		globalManager.skippedItems.Add(float64(n))
	}
}

// RecordItemProcessed increments the processed items counter.
func RecordItemProcessed() {
	globalManager.itemsProcessed.Inc()
}

// RecordItemFailure increments the failure counter for the given kind.
func RecordItemFailure(kind string) {
	globalManager.itemFailures.WithLabelValues(kind).Inc()
}

// RecordFetchLatency records fetch/parse latency in milliseconds.
func RecordFetchLatency(latencyMs float64) {
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordExtractLatency records feature extraction latency in milliseconds.
func RecordExtractLatency(latencyMs float64) {
	globalManager.extractLatency.Observe(latencyMs)
}

// RecordItemLatency records end-to-end item latency in milliseconds.
func RecordItemLatency(latencyMs float64) {
	globalManager.itemLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerActive marks a worker as busy.
func IncWorkerActive() {
	globalManager.workerActive.Inc()
}

// DecWorkerActive marks a worker as idle.
func DecWorkerActive() {
	globalManager.workerActive.Dec()
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the queue backlog gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordRowWritten increments the rows written counter.
func RecordRowWritten() {
	globalManager.rowsWritten.Inc()
}

// RecordRowRejected increments the rejected rows counter.
func RecordRowRejected() {
	globalManager.rowsRejected.Inc()
}

// RecordSinkFlush increments the flush counter.
func RecordSinkFlush() {
	globalManager.sinkFlushes.Inc()
}

// RecordSinkWriteError increments the write error counter.
func RecordSinkWriteError() {
	globalManager.sinkWriteErrors.Inc()
}

// RecordSinkWriteDuration records the time spent writing one row.
func RecordSinkWriteDuration(durationMs float64) {
	globalManager.sinkWriteDuration.Observe(durationMs)
}

// RecordHTTPRequest counts one request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records request latency.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom registry holding the global metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

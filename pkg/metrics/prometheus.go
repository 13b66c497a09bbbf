// Package metrics provides Prometheus metrics for the CritiQL service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncOutcome labels a finished sync run.
type SyncOutcome string

// Sync outcomes.
const (
	SyncSucceeded   SyncOutcome = "succeeded"
	SyncFailed      SyncOutcome = "failed"
	SyncUnavailable SyncOutcome = "unavailable"
)

// Manager manages all Prometheus metrics for the CritiQL service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	syncRuns             *prometheus.CounterVec
	syncDuration         prometheus.Histogram
	rollsInserted        prometheus.Counter
	rollsCleared         prometheus.Counter
	rowsDropped          *prometheus.CounterVec
	unknownRollTypes     prometheus.Counter
	episodesUpserted     prometheus.Counter
	participantsUpserted prometheus.Counter

	// Source spreadsheet client
	sheetsFetchLatency prometheus.Histogram
	sheetsFetchErrors  prometheus.Counter

	// Refresh gate
	gateDecisions *prometheus.CounterVec

	// Query engine
	queryLatency *prometheus.HistogramVec

	// Repository
	repositoryRows         *prometheus.GaugeVec
	repositoryWriteLatency prometheus.Histogram
	repositoryQueryLatency prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "critiql",
		subsystem:        "rolls",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.syncRuns = m.counterVec("sync_runs_total", "Total number of document syncs by outcome", "outcome")
	m.syncDuration = m.histogram("sync_duration_milliseconds", "Duration of a full document sync in milliseconds")
	m.rollsInserted = m.counter("rolls_inserted_total", "Total number of roll records inserted")
	m.rollsCleared = m.counter("rolls_cleared_total", "Total number of roll records deleted by latest-episode refresh")
	m.rowsDropped = m.counterVec("rows_dropped_total", "Total number of spreadsheet rows dropped during ingestion", "reason")
	m.unknownRollTypes = m.counter("unknown_roll_types_total", "Total number of roll labels that did not resolve to a category")
	m.episodesUpserted = m.counter("episodes_upserted_total", "Total number of episode upserts")
	m.participantsUpserted = m.counter("participants_upserted_total", "Total number of participant upserts")

	m.sheetsFetchLatency = m.histogram("sheets_fetch_latency_milliseconds", "Latency of spreadsheet document fetches in milliseconds")
	m.sheetsFetchErrors = m.counter("sheets_fetch_errors_total", "Total number of failed spreadsheet fetches")

	m.gateDecisions = m.counterVec("refresh_gate_decisions_total", "Refresh gate decisions by result", "decision")

	m.queryLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "query_latency_milliseconds",
			Help:      "Query engine latency in milliseconds by operation",
			Buckets:   m.histogramBuckets,
		},
		[]string{"op"},
	)

	m.repositoryRows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "repository_rows",
			Help:      "Number of stored rows per table",
		},
		[]string{"table"},
	)
	m.repositoryWriteLatency = m.histogram("repository_write_latency_milliseconds", "Repository write latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository read latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current number of pending sync jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum sync queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Sync queue utilization ratio (0-1)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of enqueued sync jobs")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of dequeued sync jobs")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected sync jobs")

	m.workerCount = m.gauge("worker_count", "Number of sync workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently running a sync")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Sync job processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of failed sync jobs")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Ingestion Metrics Functions.

// RecordSyncRun counts a finished sync and its duration.
func RecordSyncRun(outcome SyncOutcome, durationMs float64) error {
	switch outcome {
	case SyncSucceeded, SyncFailed, SyncUnavailable:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}
	globalManager.syncRuns.WithLabelValues(string(outcome)).Inc()
	globalManager.syncDuration.Observe(durationMs)
	return nil
}

// RecordRollsInserted adds n to the inserted roll counter.
func RecordRollsInserted(n int64) {
	globalManager.rollsInserted.Add(float64(n))
}

// RecordRollsCleared adds n to the cleared roll counter.
func RecordRollsCleared(n int64) {
	globalManager.rollsCleared.Add(float64(n))
}

// RecordRowDropped counts a discarded spreadsheet row.
func RecordRowDropped(reason string) {
	globalManager.rowsDropped.WithLabelValues(reason).Inc()
}

// RecordUnknownRollType counts an unmatched roll label.
func RecordUnknownRollType() {
	globalManager.unknownRollTypes.Inc()
}

// RecordEpisodeUpserted counts an episode upsert.
func RecordEpisodeUpserted() {
	globalManager.episodesUpserted.Inc()
}

// RecordParticipantUpserted counts a participant upsert.
func RecordParticipantUpserted() {
	globalManager.participantsUpserted.Inc()
}

// Source Metrics Functions.

// RecordSheetsFetch records the latency of a document fetch and whether it failed.
func RecordSheetsFetch(latencyMs float64, failed bool) {
	globalManager.sheetsFetchLatency.Observe(latencyMs)
	if failed {
		globalManager.sheetsFetchErrors.Inc()
	}
}

// RecordGateDecision counts a refresh gate decision.
func RecordGateDecision(fetch bool) {
	decision := "skip"
	if fetch {
		decision = "fetch"
	}
	globalManager.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordQueryLatency records query engine latency for op.
func RecordQueryLatency(op string, latencyMs float64) {
	globalManager.queryLatency.WithLabelValues(op).Observe(latencyMs)
}

// Repository Metrics Functions.

// UpdateRepositoryRows sets the stored row count for table.
func UpdateRepositoryRows(table string, count int64) {
	globalManager.repositoryRows.WithLabelValues(table).Set(float64(count))
}

// RecordRepositoryWriteLatency records repository write latency.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

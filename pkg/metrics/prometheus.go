// Package metrics provides Prometheus metrics for the pulse round engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine
	txs           *prometheus.CounterVec
	txLatency     prometheus.Histogram
	txDuplicates  prometheus.Counter
	pointsAwarded prometheus.Counter
	roundsStarted prometheus.Counter
	roundsSettled prometheus.Counter
	currentRound  prometheus.Gauge
	roundPlayers  prometheus.Gauge

	// Payouts
	payouts       *prometheus.CounterVec
	payoutLatency prometheus.Histogram

	// Journal
	journalHeight        prometheus.Gauge
	journalAppendLatency prometheus.Histogram
	journalErrors        prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulse",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string, buckets []float64) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.txs = m.counterVec(auto, "transactions_total", "Transactions executed by kind and status", "kind", "status")
	m.txLatency = m.histogram(auto, "transaction_latency_milliseconds", "Time to execute and journal one transaction", m.histogramBuckets)
	m.txDuplicates = m.counter(auto, "transactions_duplicate_total", "Transactions refused because their id was already committed")
	m.pointsAwarded = m.counter(auto, "points_awarded_total", "Points awarded by successful work calls")
	m.roundsStarted = m.counter(auto, "rounds_started_total", "Rounds started")
	m.roundsSettled = m.counter(auto, "rounds_settled_total", "Rounds settled")
	m.currentRound = m.gauge(auto, "current_round_id", "Id of the latest round")
	m.roundPlayers = m.gauge(auto, "current_round_players", "Distinct players in the latest round")

	m.payouts = m.counterVec(auto, "payouts_total", "Payout transfers by result", "result")
	m.payoutLatency = m.histogram(auto, "payout_latency_milliseconds", "Time spent executing one payout transfer", m.histogramBuckets)

	m.journalHeight = m.gauge(auto, "journal_height", "Height of the last journal record")
	m.journalAppendLatency = m.histogram(auto, "journal_append_latency_milliseconds", "Journal append latency", m.histogramBuckets)
	m.journalErrors = m.counter(auto, "journal_errors_total", "Journal write failures")

	m.queueSize = m.gauge(auto, "payout_queue_size", "Transfers waiting in the payout queue")
	m.queueCapacity = m.gauge(auto, "payout_queue_capacity", "Payout queue capacity")
	m.queueUtilization = m.gauge(auto, "payout_queue_utilization_ratio", "Payout queue size over capacity")
	m.queueEnqueued = m.counter(auto, "payout_queue_enqueue_total", "Transfers enqueued")
	m.queueDequeued = m.counter(auto, "payout_queue_dequeue_total", "Transfers dequeued")
	m.queueEnqueueErrors = m.counter(auto, "payout_queue_enqueue_errors_total", "Transfers rejected by a full or closed queue")

	m.workerCount = m.gauge(auto, "payout_worker_count", "Payout workers running")
	m.workerActiveCount = m.gauge(auto, "payout_worker_active_count", "Payout workers executing a transfer")
	m.workerProcessingLatency = m.histogram(auto, "payout_worker_latency_milliseconds", "Worker time per transfer including recovery", m.histogramBuckets)
	m.workerErrors = m.counter(auto, "payout_worker_errors_total", "Worker failures")

	m.httpRequests = m.counterVec(auto, "http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRateLimited = m.counterVec(auto, "http_rate_limited_total", "Requests refused by the rate limiter", "endpoint")

	m.errorsByComponent = m.counterVec(auto, "errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram(auto, "system_gc_pause_time_milliseconds", "Last GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordTx counts an executed transaction.
func RecordTx(kind, status string) {
	globalManager.txs.WithLabelValues(kind, status).Inc()
}

// RecordTxLatency records the time to execute and journal a transaction.
func RecordTxLatency(latencyMs float64) {
	globalManager.txLatency.Observe(latencyMs)
}

// RecordTxDuplicate counts a refused resubmission.
func RecordTxDuplicate() {
	globalManager.txDuplicates.Inc()
}

// RecordPointsAwarded adds the points of one work call.
func RecordPointsAwarded(points uint64) {
	globalManager.pointsAwarded.Add(float64(points))
}

// RecordRoundStarted counts a started round.
func RecordRoundStarted() {
	globalManager.roundsStarted.Inc()
}

// RecordRoundSettled counts a settled round.
func RecordRoundSettled() {
	globalManager.roundsSettled.Inc()
}

// UpdateCurrentRound publishes the latest round id and its player count.
func UpdateCurrentRound(id, players uint64) {
	globalManager.currentRound.Set(float64(id))
	globalManager.roundPlayers.Set(float64(players))
}

// RecordPayout counts a payout transfer by result.
func RecordPayout(result string) {
	globalManager.payouts.WithLabelValues(result).Inc()
}

// RecordPayoutLatency records the bank call time of one payout.
func RecordPayoutLatency(latencyMs float64) {
	globalManager.payoutLatency.Observe(latencyMs)
}

// UpdateJournalHeight sets the height of the last journal record.
func UpdateJournalHeight(height uint64) {
	globalManager.journalHeight.Set(float64(height))
}

// RecordJournalAppendLatency records one journal append.
func RecordJournalAppendLatency(latencyMs float64) {
	globalManager.journalAppendLatency.Observe(latencyMs)
}

// RecordJournalError counts a failed journal write.
func RecordJournalError() {
	globalManager.journalErrors.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts an enqueued transfer.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued transfer.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a transfer the queue refused.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time a worker spent on one transfer.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request refused by the rate limiter.
func RecordRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
}

// RecordErrorByComponent counts an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Init rebuilds the global manager from opts on a fresh registry. Call it
// before anything records a metric.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// GetRegistry returns the registry the service metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package metrics provides Prometheus metrics for the eventwatch service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the eventwatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Cycle metrics
	cyclesTotal    *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
	lastCycleUnix  *prometheus.GaugeVec
	schedulerState prometheus.Gauge

	// Failure taxonomy
	fetchFailures    *prometheus.CounterVec
	formatFailures   *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	persistFailures  prometheus.Counter

	// Dispatch
	notificationsSent *prometheus.CounterVec
	dispatchLatency   *prometheus.HistogramVec
	snapshotChanges   *prometheus.CounterVec

	// Ledger
	ledgerNotified prometheus.Gauge

	// HTTP (ops surface)
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
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
		namespace:        "eventwatch",
		subsystem:        "watcher",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.cyclesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cycles_total"),
		Help:        "Dataset passes by outcome (ok, fetch_failed, panicked)",
		ConstLabels: constLabels,
	}, []string{"dataset", "outcome"})

	m.cycleDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cycle_duration_milliseconds"),
		Help:        "Duration of one dataset pass in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"dataset"})

	m.lastCycleUnix = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("last_cycle_unixtime"),
		Help:        "Unix time of the last completed pass per dataset",
		ConstLabels: constLabels,
	}, []string{"dataset"})

	m.schedulerState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("scheduler_running"),
		Help:        "1 while a cycle is running, 0 when idle",
		ConstLabels: constLabels,
	})

	m.fetchFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("fetch_failures_total"),
		Help:        "Feed or detail page fetch failures",
		ConstLabels: constLabels,
	}, []string{"dataset"})

	m.formatFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("format_failures_total"),
		Help:        "Records skipped because required fields were missing or malformed",
		ConstLabels: constLabels,
	}, []string{"dataset"})

	m.dispatchFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("dispatch_failures_total"),
		Help:        "Webhook deliveries that failed or timed out",
		ConstLabels: constLabels,
	}, []string{"category"})

	m.persistFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("persist_failures_total"),
		Help:        "Ledger writes that failed; state will not survive a restart",
		ConstLabels: constLabels,
	})

	m.notificationsSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("notifications_sent_total"),
		Help:        "Webhook deliveries that succeeded",
		ConstLabels: constLabels,
	}, []string{"category"})

	m.dispatchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("dispatch_latency_milliseconds"),
		Help:        "Latency of a single webhook delivery in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"category"})

	m.snapshotChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshot_changes_total"),
		Help:        "Raid or egg roster changes detected",
		ConstLabels: constLabels,
	}, []string{"dataset"})

	m.ledgerNotified = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("ledger_notified_ids"),
		Help:        "Number of event identifiers in the notification ledger",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of ops HTTP requests by endpoint and method",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "Ops HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_errors_total"),
		Help:        "Ops HTTP responses with an error status by type and severity",
		ConstLabels: constLabels,
	}, []string{"endpoint", "error_type", "severity"})
}

// RecordCycle records the outcome and duration of one dataset pass.
func RecordCycle(dataset, outcome string, duration time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.cyclesTotal.WithLabelValues(dataset, outcome).Inc()
	globalManager.cycleDuration.WithLabelValues(dataset).Observe(float64(duration.Milliseconds()))
	globalManager.lastCycleUnix.WithLabelValues(dataset).Set(float64(time.Now().Unix()))
}

// SetSchedulerRunning flips the scheduler state gauge.
func SetSchedulerRunning(running bool) {
	if running {
		globalManager.schedulerState.Set(1)
		return
	}
	globalManager.schedulerState.Set(0)
}

// RecordFetchFailure increments the fetch failure counter for a dataset.
func RecordFetchFailure(dataset string) {
	globalManager.fetchFailures.WithLabelValues(dataset).Inc()
}

// RecordFormatFailure increments the skipped-record counter for a dataset.
func RecordFormatFailure(dataset string) {
	globalManager.formatFailures.WithLabelValues(dataset).Inc()
}

// RecordDispatch records one webhook delivery attempt.
func RecordDispatch(category string, latency time.Duration, err error) {
	globalManager.dispatchLatency.WithLabelValues(category).Observe(float64(latency.Milliseconds()))
	if err != nil {
		globalManager.dispatchFailures.WithLabelValues(category).Inc()
		return
	}
	globalManager.notificationsSent.WithLabelValues(category).Inc()
}

// RecordPersistFailure increments the ledger persistence failure counter.
func RecordPersistFailure() {
	globalManager.persistFailures.Inc()
}

// RecordSnapshotChange increments the roster change counter.
func RecordSnapshotChange(dataset string) {
	globalManager.snapshotChanges.WithLabelValues(dataset).Inc()
}

// UpdateLedgerSize sets the number of notified identifiers.
func UpdateLedgerSize(n int) {
	globalManager.ledgerNotified.Set(float64(n))
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError increments the HTTP error counter.
func RecordHTTPError(endpoint, errorType, severity string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType, severity).Inc()
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

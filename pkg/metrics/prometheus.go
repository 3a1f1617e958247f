// Package metrics provides Prometheus metrics for the clink pairing service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Pairing
	shakesReceived      prometheus.Counter
	shakesRejected      *prometheus.CounterVec
	shakesUnpaired      prometheus.Counter
	matchesAwarded      prometheus.Counter
	matchesRepeat       prometheus.Counter
	partnerCreditErrors prometheus.Counter
	shakeLatency        prometheus.Histogram
	participants        prometheus.Gauge
	windowEvents        prometheus.Gauge

	// Storage backend
	backendLatency *prometheus.HistogramVec
	backendErrors  *prometheus.CounterVec

	// Match notice pipeline
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDropped     *prometheus.CounterVec
	noticesDelivered prometheus.Counter
	noticeErrors     prometheus.Counter
	workerCount      prometheus.Gauge
	workerLatency    prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "clink",
		subsystem:        "pairing",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}
	counterVec := func(name, help string, labelNames ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, labelNames)
	}
	histogramVec := func(name, help string, labelNames ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: m.histogramBuckets,
		}, labelNames)
	}

	m.shakesReceived = counter("shakes_received_total", "Total number of clink requests accepted for matching")
	m.shakesRejected = counterVec("shakes_rejected_total", "Clink requests rejected before matching", "reason")
	m.shakesUnpaired = counter("shakes_unpaired_total", "Clink requests that found no partner in the window")
	m.matchesAwarded = counter("matches_awarded_total", "Pairs awarded a match")
	m.matchesRepeat = counter("matches_repeat_total", "Pairs found again on a day they were already awarded")
	m.partnerCreditErrors = counter("partner_credit_errors_total", "Failed score increments for the passive partner")
	m.shakeLatency = histogram("shake_latency_milliseconds", "End-to-end RecordShake latency in milliseconds", m.histogramBuckets)
	m.participants = gauge("participants", "Participants with a score entry")
	m.windowEvents = gauge("window_events", "Events currently held in the in-memory recent-event window")

	m.backendLatency = histogramVec("backend_latency_milliseconds", "Storage backend operation latency", "backend", "op")
	m.backendErrors = counterVec("backend_errors_total", "Storage backend operation failures", "backend", "op")

	m.queueSize = gauge("notice_queue_size", "Match notices waiting for delivery")
	m.queueCapacity = gauge("notice_queue_capacity", "Capacity of the match notice queue")
	m.queueEnqueued = counter("notice_enqueued_total", "Match notices accepted by the queue")
	m.queueDropped = counterVec("notice_dropped_total", "Match notices dropped before delivery", "reason")
	m.noticesDelivered = counter("notices_delivered_total", "Match notices handed to the notifier")
	m.noticeErrors = counter("notice_errors_total", "Notifier failures")
	m.workerCount = gauge("notice_worker_count", "Running notice workers")
	m.workerLatency = histogram("notice_delivery_latency_milliseconds", "Notifier call latency", m.histogramBuckets)

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordShakeReceived counts a clink request that reached the matcher.
func RecordShakeReceived() { globalManager.shakesReceived.Inc() }

// RecordShakeRejected counts a request refused before any state change.
func RecordShakeRejected(reason string) { globalManager.shakesRejected.WithLabelValues(reason).Inc() }

// RecordShakeUnpaired counts a request that found no partner.
func RecordShakeUnpaired() { globalManager.shakesUnpaired.Inc() }

// RecordMatchAwarded counts an awarded pair.
func RecordMatchAwarded() { globalManager.matchesAwarded.Inc() }

// RecordMatchRepeat counts a pair seen again on the same day.
func RecordMatchRepeat() { globalManager.matchesRepeat.Inc() }

// RecordPartnerCreditError counts a failed partner increment.
func RecordPartnerCreditError() { globalManager.partnerCreditErrors.Inc() }

// RecordShakeLatency records RecordShake latency in milliseconds.
func RecordShakeLatency(latencyMs float64) { globalManager.shakeLatency.Observe(latencyMs) }

// UpdateParticipants sets the number of scored participants.
func UpdateParticipants(count int) { globalManager.participants.Set(float64(count)) }

// UpdateWindowEvents sets the in-memory window size.
func UpdateWindowEvents(count int) { globalManager.windowEvents.Set(float64(count)) }

// ObserveBackend records the latency and outcome of one storage operation.
func ObserveBackend(backend, op string, start time.Time, err error) {
	globalManager.backendLatency.WithLabelValues(backend, op).Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		globalManager.backendErrors.WithLabelValues(backend, op).Inc()
	}
}

// UpdateQueueSize sets the number of pending notices.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the notice queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted notice.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDropped counts a notice that could not be queued.
func RecordQueueDropped(reason string) { globalManager.queueDropped.WithLabelValues(reason).Inc() }

// RecordNoticeDelivered counts a delivered notice and its notifier latency.
func RecordNoticeDelivered(latencyMs float64) {
	globalManager.noticesDelivered.Inc()
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordNoticeError counts a notifier failure.
func RecordNoticeError() { globalManager.noticeErrors.Inc() }

// UpdateWorkerCount sets the number of running notice workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry backing /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

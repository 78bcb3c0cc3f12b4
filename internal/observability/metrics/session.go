package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks recording sessions and predictions.
type SessionMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	resultsTotal      *prometheus.CounterVec
	confidence        prometheus.Histogram
	uploadSize        prometheus.Histogram
}

// NewSessionMetrics creates and registers session metrics.
func NewSessionMetrics(registry *prometheus.Registry) (*SessionMetrics, error) {
	m := &SessionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

func (m *SessionMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phibia_operations_total",
			Help: "Total number of session operations",
		},
		[]string{"operation", "status"}, // operation: predict, capture, locate; status: success, error, cancelled
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phibia_operation_duration_seconds",
			Help:    "Time taken for session operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phibia_errors_total",
			Help: "Total number of session errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phibia_session_transitions_total",
			Help: "Total number of session phase changes",
		},
		[]string{"phase"},
	)

	m.resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phibia_results_total",
			Help: "Total number of identification results by species and source",
		},
		[]string{"species", "source"},
	)

	m.confidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "phibia_result_confidence_percent",
		Help:    "Confidence reported with identification results",
		Buckets: prometheus.LinearBuckets(10, 10, 9), // 10% to 90%
	})

	m.uploadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "phibia_upload_size_bytes",
		Help:    "Size of audio clips sent for prediction",
		Buckets: prometheus.ExponentialBuckets(BucketStart100B*10, BucketFactor10, BucketCount6), // 1KB to 100MB
	})
}

// RecordOperation implements Recorder.
func (m *SessionMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *SessionMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *SessionMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordTransition counts a change into phase.
func (m *SessionMetrics) RecordTransition(phase string) {
	m.transitionsTotal.WithLabelValues(phase).Inc()
}

// RecordResult counts an identification. confidence is nil when the backend sent none.
func (m *SessionMetrics) RecordResult(species, source string, confidence *float64) {
	m.resultsTotal.WithLabelValues(species, source).Inc()
	if confidence != nil {
		m.confidence.Observe(*confidence)
	}
}

// ObserveUploadSize records the size of an uploaded clip.
func (m *SessionMetrics) ObserveUploadSize(bytes int) {
	m.uploadSize.Observe(float64(bytes))
}

// Describe implements the prometheus.Collector interface.
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.transitionsTotal.Describe(ch)
	m.resultsTotal.Describe(ch)
	m.confidence.Describe(ch)
	m.uploadSize.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.transitionsTotal.Collect(ch)
	m.resultsTotal.Collect(ch)
	m.confidence.Collect(ch)
	m.uploadSize.Collect(ch)
}

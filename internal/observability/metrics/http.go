package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks calls to the phibIA backend and requests served by the daemon.
type HTTPMetrics struct {
	clientRequestsTotal   *prometheus.CounterVec
	clientRequestDuration *prometheus.HistogramVec
	clientErrorsTotal     *prometheus.CounterVec

	serverRequestsTotal   *prometheus.CounterVec
	serverRequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.clientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phibia_backend_requests_total",
			Help: "Total number of requests sent to the phibIA backend",
		},
		[]string{"method", "path", "status_code"},
	)

	m.clientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phibia_backend_request_duration_seconds",
			Help:    "Time taken for phibIA backend requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"method", "path"},
	)

	m.clientErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phibia_backend_errors_total",
			Help: "Total number of backend requests that failed without a response",
		},
		[]string{"method", "path"},
	)

	m.serverRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, not the raw URL
	)

	m.serverRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests served",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// RecordClientRequest records one backend round trip. statusCode is zero when
// no response arrived.
func (m *HTTPMetrics) RecordClientRequest(method, path string, statusCode int, seconds float64) {
	path = NormalizePath(path)
	if statusCode == 0 {
		m.clientErrorsTotal.WithLabelValues(method, path).Inc()
	} else {
		m.clientRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	}
	m.clientRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordServerRequest records one request handled by the daemon.
func (m *HTTPMetrics) RecordServerRequest(method, route string, statusCode int, seconds float64) {
	m.serverRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.serverRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// NormalizePath replaces numeric and long opaque segments with ":id" to keep
// label cardinality bounded.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil || len(seg) >= 24 {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.clientRequestsTotal.Describe(ch)
	m.clientRequestDuration.Describe(ch)
	m.clientErrorsTotal.Describe(ch)
	m.serverRequestsTotal.Describe(ch)
	m.serverRequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.clientRequestsTotal.Collect(ch)
	m.clientRequestDuration.Collect(ch)
	m.clientErrorsTotal.Collect(ch)
	m.serverRequestsTotal.Collect(ch)
	m.serverRequestDuration.Collect(ch)
}

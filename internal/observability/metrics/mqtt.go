package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks result publishing. A nil *MQTTMetrics records nothing.
type MQTTMetrics struct {
	connected      prometheus.Gauge
	publishes      *prometheus.CounterVec
	publishLatency prometheus.Histogram
	payloadBytes   prometheus.Histogram
	connectionLost prometheus.Counter
	reconnects     prometheus.Counter
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_connected",
			Help: "1 while the broker connection is up",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_publishes_total",
			Help: "Result publications by outcome",
		}, []string{"status"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_publish_duration_seconds",
			Help:    "Time until the broker acknowledged a publication",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_payload_bytes",
			Help:    "Size of published result documents",
			Buckets: prometheus.ExponentialBuckets(BucketStart100B, BucketFactor2, BucketCount10),
		}),
		connectionLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_connection_lost_total",
			Help: "Broker connections dropped after being established",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_reconnects_total",
			Help: "Automatic reconnection attempts",
		}),
	}
	for _, c := range []prometheus.Collector{m.connected, m.publishes, m.publishLatency, m.payloadBytes, m.connectionLost, m.reconnects} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
		}
	}
	return m, nil
}

// SetConnected updates the connection gauge.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// RecordPublish records one publication. Size and latency are only
// observed for acknowledged messages.
func (m *MQTTMetrics) RecordPublish(payloadBytes int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishes.WithLabelValues(StatusError).Inc()
		return
	}
	m.publishes.WithLabelValues(StatusSuccess).Inc()
	m.publishLatency.Observe(elapsed.Seconds())
	m.payloadBytes.Observe(float64(payloadBytes))
}

// RecordConnectionLost counts a dropped connection.
func (m *MQTTMetrics) RecordConnectionLost() {
	if m == nil {
		return
	}
	m.connectionLost.Inc()
	m.connected.Set(0)
}

// RecordReconnect counts an automatic reconnection attempt.
func (m *MQTTMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

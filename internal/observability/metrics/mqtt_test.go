package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMQTTMetrics_RecordPublish(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetConnected(true)
	m.RecordPublish(512, 20*time.Millisecond, nil)
	m.RecordPublish(512, time.Second, errors.New("timeout"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.connected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishes.WithLabelValues(StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.publishes.WithLabelValues(StatusError)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.payloadBytes))

	m.RecordConnectionLost()
	m.RecordReconnect()
	assert.InDelta(t, 0, testutil.ToFloat64(m.connected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.connectionLost), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reconnects), 0)
}

func TestMQTTMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *MQTTMetrics
	assert.NotPanics(t, func() {
		m.SetConnected(true)
		m.RecordPublish(1, time.Millisecond, nil)
		m.RecordConnectionLost()
		m.RecordReconnect()
	})
}

func TestMQTTMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewMQTTMetrics(registry)
	require.NoError(t, err)
	_, err = NewMQTTMetrics(registry)
	assert.Error(t, err)
}

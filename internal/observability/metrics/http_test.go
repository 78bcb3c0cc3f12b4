package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/api/species", "/api/species"},
		{"/api/delete-audio/42", "/api/delete-audio/:id"},
		{"/api/download-audio/65f0c2a9e4b0a1b2c3d4e5f6a7", "/api/download-audio/:id"},
		{"/api/user/profile", "/api/user/profile"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), tt.in)
	}
}

func TestHTTPMetrics_ClientRequest(t *testing.T) {
	t.Parallel()

	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordClientRequest("POST", "/api/predict", 200, 1.2)
	m.RecordClientRequest("POST", "/api/predict", 0, 30)

	assert.InDelta(t, 1, testutil.ToFloat64(m.clientRequestsTotal.WithLabelValues("POST", "/api/predict", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.clientErrorsTotal.WithLabelValues("POST", "/api/predict")), 0)
}

func TestNewSessionMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewSessionMetrics(registry)
	require.NoError(t, err)
	_, err = NewSessionMetrics(registry)
	assert.Error(t, err)
}

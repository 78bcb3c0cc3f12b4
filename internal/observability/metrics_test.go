package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/phibia"
	"github.com/phibia-app/phibia-go/internal/session"
)

// metricValue returns a counter's value or a histogram's sample count for
// the series matching labels.
func metricValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric.GetLabel(), labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	found := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics()
	require.NoError(t, err)
	return m
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	m.Session.RecordOperation("predict", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `phibia_operations_total{operation="predict",status="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstrumentClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/delete-audio/42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestMetrics(t)
	client := httpclient.New(nil)
	defer client.Close()
	InstrumentClient(client, m.HTTP)

	resp, err := client.Get(t.Context(), server.URL+"/api/species")
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = client.Get(t.Context(), server.URL+"/api/delete-audio/42")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.InDelta(t, 1, metricValue(t, m, "phibia_backend_requests_total",
		map[string]string{"path": "/api/species", "status_code": "200"}), 0)
	assert.InDelta(t, 1, metricValue(t, m, "phibia_backend_requests_total",
		map[string]string{"path": "/api/delete-audio/:id", "status_code": "404"}), 0)
	assert.InDelta(t, 1, metricValue(t, m, "phibia_backend_request_duration_seconds",
		map[string]string{"method": "GET", "path": "/api/species"}), 0)
}

type stubPredictor struct {
	err error
}

func (s stubPredictor) Predict(context.Context, myaudio.AudioBlob, *geolocation.Location) (*phibia.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &phibia.Prediction{Label: "3-Boana_pulchella"}, nil
}

func TestInstrumentPredictor(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	blob := myaudio.AudioBlob{Data: make([]byte, 2048), Filename: "clip.wav"}

	_, err := InstrumentPredictor(stubPredictor{}, m.Session).Predict(t.Context(), blob, nil)
	require.NoError(t, err)

	serverErr := errors.New(&phibia.ServerError{Status: 500, Message: "boom"}).
		Category(errors.CategoryServer).
		Build()
	_, err = InstrumentPredictor(stubPredictor{err: serverErr}, m.Session).Predict(t.Context(), blob, nil)
	require.Error(t, err)

	_, err = InstrumentPredictor(stubPredictor{err: phibia.ErrAborted}, m.Session).Predict(t.Context(), blob, nil)
	require.ErrorIs(t, err, phibia.ErrAborted)

	for status, want := range map[string]float64{"success": 1, "error": 1, "cancelled": 1} {
		assert.InDelta(t, want, metricValue(t, m, "phibia_operations_total",
			map[string]string{"operation": "predict", "status": status}), 0, status)
	}
	assert.InDelta(t, 1, metricValue(t, m, "phibia_errors_total",
		map[string]string{"operation": "predict", "error_type": string(errors.CategoryServer)}), 0)
	assert.InDelta(t, 3, metricValue(t, m, "phibia_upload_size_bytes", nil), 0)
	assert.InDelta(t, 3, metricValue(t, m, "phibia_operation_duration_seconds",
		map[string]string{"operation": "predict"}), 0)
}

type stubLocator struct {
	err error
}

func (s stubLocator) CurrentLocation(context.Context, time.Duration) (geolocation.Location, error) {
	return geolocation.Location{Latitude: -33.1, Longitude: -64.3}, s.err
}

func TestInstrumentLocator(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	_, err := InstrumentLocator(stubLocator{}, m.Session).CurrentLocation(t.Context(), time.Second)
	require.NoError(t, err)
	_, err = InstrumentLocator(stubLocator{err: context.Canceled}, m.Session).CurrentLocation(t.Context(), time.Second)
	require.Error(t, err)

	assert.InDelta(t, 1, metricValue(t, m, "phibia_operations_total",
		map[string]string{"operation": "locate", "status": "success"}), 0)
	assert.InDelta(t, 1, metricValue(t, m, "phibia_operations_total",
		map[string]string{"operation": "locate", "status": "cancelled"}), 0)
}

func TestWatchSession(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	conf := 87.5
	s := session.New(session.Options{Predictor: confidentPredictor{conf: conf}})
	defer func() { _ = s.Close() }()

	stop := WatchSession(s, m.Session)
	defer stop()

	blob := myaudio.AudioBlob{Data: []byte("RIFF"), Filename: "clip.wav"}
	require.NoError(t, s.SelectFile(t.Context(), blob))
	snap, err := s.Wait(t.Context())
	require.NoError(t, err)
	require.Equal(t, session.PhaseHasResult, snap.Phase)

	assert.Eventually(t, func() bool {
		return metricValue(t, m, "phibia_session_transitions_total",
			map[string]string{"phase": "has_result"}) == 1
	}, time.Second, 10*time.Millisecond)
	assert.InDelta(t, 1, metricValue(t, m, "phibia_session_transitions_total",
		map[string]string{"phase": "processing"}), 0)
	assert.InDelta(t, 1, metricValue(t, m, "phibia_results_total",
		map[string]string{"species": "Boana pulchella", "source": "upload"}), 0)
	assert.InDelta(t, 1, metricValue(t, m, "phibia_result_confidence_percent", nil), 0)
}

type confidentPredictor struct {
	conf float64
}

func (p confidentPredictor) Predict(context.Context, myaudio.AudioBlob, *geolocation.Location) (*phibia.Prediction, error) {
	conf := p.conf
	return &phibia.Prediction{
		Label:      "3-Boana_pulchella",
		Species:    phibia.SpeciesLabel{ID: 3, Name: "Boana_pulchella"},
		Confidence: &conf,
	}, nil
}

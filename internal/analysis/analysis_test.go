package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/datastore"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/session"
)

// fakeBackend answers /api/predict and remembers the coordinates it was sent.
type fakeBackend struct {
	server   *httptest.Server
	requests atomic.Int32

	mu       sync.Mutex
	lat, lng string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/predict" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		b.requests.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.lat, b.lng = r.FormValue("latitude"), r.FormValue("longitude")
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediccion":"3-Boana_pulchella","confianza":87.5}`))
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) coordinates() (lat, lng string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lat, b.lng
}

// newFakeMapbox answers every geocoding request with Río Cuarto.
func newFakeMapbox(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"place_name":"Río Cuarto, Córdoba, Argentina","center":[-64.3493,-33.123],"relevance":1}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

type fakeHandle struct{}

func (fakeHandle) Stop() (myaudio.AudioBlob, error) {
	return myaudio.EncodeClip(make([]byte, 3200), 16000)
}

type fakeCapturer struct {
	started atomic.Int32
}

func (c *fakeCapturer) StartCapture(context.Context) (myaudio.CaptureHandle, error) {
	c.started.Add(1)
	return fakeHandle{}, nil
}

func testSettings(t *testing.T, backendURL, mapboxURL string) *conf.Settings {
	t.Helper()
	dataDir := t.TempDir()

	s := &conf.Settings{}
	s.Main.Name = "test"
	s.Main.DataDir = dataDir
	s.API.URL = "/api"
	s.API.Host = backendURL
	s.API.Timeout = 5 * time.Second
	s.API.PredictTimeout = 5 * time.Second
	s.Audio.SampleRate = 16000
	s.Audio.MaxUploadSizeMB = 1
	s.Location.Provider = "none"
	s.Location.Timeout = time.Second
	s.Mapbox.BaseURL = mapboxURL
	s.Mapbox.Token = "pk.test"
	s.Mapbox.RateLimit = 100
	s.History.Enabled = true
	s.History.Path = filepath.Join(dataDir, "history.db")
	return s
}

func newTestAnalyzer(t *testing.T, settings *conf.Settings, opts Options) *Analyzer {
	t.Helper()
	a, err := New(t.Context(), settings, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeWAV(t *testing.T) string {
	t.Helper()
	data, err := myaudio.EncodePCMToWAV(make([]byte, 3200), 16000)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "charca.wav")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func parseCoord(t *testing.T, v string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(v, 64)
	require.NoError(t, err, "coordinate %q", v)
	return f
}

func TestIdentifyFile_SavesHistory(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	settings := testSettings(t, backend.server.URL, newFakeMapbox(t).URL)
	a := newTestAnalyzer(t, settings, Options{
		Sinks:    true,
		Capturer: &fakeCapturer{},
		Position: &geolocation.Location{Latitude: -33.123, Longitude: -64.3493},
	})
	require.NotNil(t, a.History)

	snap, err := a.IdentifyFile(t.Context(), writeWAV(t), nil)
	require.NoError(t, err)
	require.Equal(t, session.PhaseHasResult, snap.Phase)
	assert.Equal(t, "Boana_pulchella", snap.Result.SpeciesName)
	assert.Equal(t, "charca.wav", snap.Result.Filename)

	lat, lng := backend.coordinates()
	assert.InDelta(t, -33.123, parseCoord(t, lat), 1e-6)
	assert.InDelta(t, -64.3493, parseCoord(t, lng), 1e-6)

	var saved []datastore.Detection
	require.Eventually(t, func() bool {
		saved, err = a.History.List(t.Context(), datastore.ListOptions{})
		return err == nil && len(saved) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, snap.Result.ID, saved[0].UUID)
	assert.Equal(t, "Río Cuarto", saved[0].Address)
	assert.NotEmpty(t, saved[0].Daylight)
}

func TestIdentifyFile_Rejected(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	a := newTestAnalyzer(t, testSettings(t, backend.server.URL, newFakeMapbox(t).URL), Options{Capturer: &fakeCapturer{}})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hola"), 0o600))

	_, err := a.IdentifyFile(t.Context(), path, nil)
	require.ErrorIs(t, err, myaudio.ErrUnsupportedAudioType)
	assert.Equal(t, session.PhaseIdle, a.Session.Snapshot().Phase)
	assert.Zero(t, backend.requests.Load())
}

func TestRecord_NoLocation(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	settings := testSettings(t, backend.server.URL, newFakeMapbox(t).URL)
	settings.Location.Provider = "static"
	settings.Location.Latitude = -33.123
	settings.Location.Longitude = -64.3493

	mic := &fakeCapturer{}
	a := newTestAnalyzer(t, settings, Options{NoLocation: true, Capturer: mic})

	var calls atomic.Int32
	snap, err := a.Record(t.Context(), 300*time.Millisecond, func(session.Snapshot, time.Duration) {
		calls.Add(1)
	})
	require.NoError(t, err)
	require.Equal(t, session.PhaseHasResult, snap.Phase)
	assert.Equal(t, session.SourceMicrophone, snap.Result.Source)
	assert.Nil(t, snap.Result.Location)
	assert.Positive(t, calls.Load())
	assert.Equal(t, int32(1), mic.started.Load())

	lat, lng := backend.coordinates()
	assert.Empty(t, lat)
	assert.Empty(t, lng)
}

func TestRecord_CancelledContext(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	a := newTestAnalyzer(t, testSettings(t, backend.server.URL, newFakeMapbox(t).URL), Options{Capturer: &fakeCapturer{}})

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	snap, err := a.Record(ctx, time.Minute, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, session.PhaseIdle, snap.Phase)
	assert.Empty(t, snap.ErrorMessage)
	assert.Zero(t, backend.requests.Load())
}

func TestNew_Place(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	a := newTestAnalyzer(t, testSettings(t, backend.server.URL, newFakeMapbox(t).URL), Options{
		Capturer: &fakeCapturer{},
		Place:    "Río Cuarto",
	})

	snap, err := a.IdentifyFile(t.Context(), writeWAV(t), nil)
	require.NoError(t, err)
	require.NotNil(t, snap.Result.Location)
	assert.InDelta(t, -33.123, snap.Result.Location.Latitude, 1e-6)
}

func TestNew_PlaceWithoutToken(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	settings := testSettings(t, backend.server.URL, newFakeMapbox(t).URL)
	settings.Mapbox.Token = ""

	_, err := New(t.Context(), settings, Options{Capturer: &fakeCapturer{}, Place: "Río Cuarto"})
	require.Error(t, err)
}

func TestNew_InvalidPosition(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	settings := testSettings(t, backend.server.URL, newFakeMapbox(t).URL)

	_, err := New(t.Context(), settings, Options{
		Capturer: &fakeCapturer{},
		Position: &geolocation.Location{Latitude: 120, Longitude: 0},
	})
	require.Error(t, err)
}

func TestMetricsCountPrediction(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	a := newTestAnalyzer(t, testSettings(t, backend.server.URL, newFakeMapbox(t).URL), Options{Capturer: &fakeCapturer{}})

	_, err := a.IdentifyFile(t.Context(), writeWAV(t), nil)
	require.NoError(t, err)

	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["phibia_operations_total"])
	assert.True(t, found["phibia_backend_requests_total"])

	raw, err := json.Marshal(a.Session.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"phase":"has_result"`)
}

func TestView_ResolvesAddress(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	a := newTestAnalyzer(t, testSettings(t, backend.server.URL, newFakeMapbox(t).URL), Options{
		Capturer: &fakeCapturer{},
		Position: &geolocation.Location{Latitude: -33.123, Longitude: -64.3493},
	})

	snap, err := a.IdentifyFile(t.Context(), writeWAV(t), nil)
	require.NoError(t, err)

	view := a.View(t.Context(), &snap)
	assert.True(t, view.Revealed)
	assert.Equal(t, "Boana_pulchella", view.SpeciesName)
	assert.Equal(t, "87.5%", view.ConfidenceText)
	assert.Equal(t, "Río Cuarto", view.Address)
}

package phibia

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/myaudio"
)

func TestParseSpeciesLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  SpeciesLabel
	}{
		{"3-Boana_pulchella", SpeciesLabel{ID: 3, Name: "Boana_pulchella"}},
		{"11-Physalaemus_biligonigerus", SpeciesLabel{ID: 11, Name: "Physalaemus_biligonigerus"}},
		{"Boana_pulchella", SpeciesLabel{Name: "Boana_pulchella"}},
		{"x-Boana", SpeciesLabel{Name: "x-Boana"}},
		{"7-", SpeciesLabel{Name: "7-"}},
		{" 1-Odontophrynus_asper ", SpeciesLabel{ID: 1, Name: "Odontophrynus_asper"}},
		{"", SpeciesLabel{}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseSpeciesLabel(tt.label))
		})
	}

	assert.Equal(t, "Boana pulchella", ParseSpeciesLabel("3-Boana_pulchella").DisplayName())
}

func TestPredict_SuccessWithLocation(t *testing.T) {
	t.Parallel()

	var gotLat, gotLng, gotFilename, gotType string
	var gotAudio []byte
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLat = r.FormValue("latitude")
		gotLng = r.FormValue("longitude")
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotAudio, _ = io.ReadAll(file)
		writeJSON(w, http.StatusOK, `{"prediccion":"3-Boana_pulchella","confianza":87.5,
			"especie_info":{"nombre_comun":"Ranita del zarzal","descripcion":"Trepadora"}}`)
	})
	client, _ := newTestBackend(t, mux)

	loc := &geolocation.Location{Latitude: -33.123, Longitude: -64.3493}
	pred, err := client.Predict(t.Context(), testBlob(), loc)
	require.NoError(t, err)

	assert.Equal(t, "3-Boana_pulchella", pred.Label)
	assert.Equal(t, 3, pred.Species.ID)
	assert.Equal(t, "Boana_pulchella", pred.Species.Name)
	require.NotNil(t, pred.Confidence)
	assert.InDelta(t, 87.5, *pred.Confidence, 1e-9)
	require.NotNil(t, pred.Details)
	assert.Equal(t, "Ranita del zarzal", pred.Details.CommonName)

	assert.Equal(t, "-33.123000", gotLat)
	assert.Equal(t, "-64.349300", gotLng)
	assert.Equal(t, "recording.wav", gotFilename)
	assert.Equal(t, "audio/wav", gotType)
	assert.Equal(t, testBlob().Data, gotAudio)
}

func TestPredict_WithoutLocationOmitsCoordinates(t *testing.T) {
	t.Parallel()

	var fields map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields = r.MultipartForm.Value
		writeJSON(w, http.StatusOK, `{"prediccion":"1-Odontophrynus_asper"}`)
	})
	client, _ := newTestBackend(t, mux)

	pred, err := client.Predict(t.Context(), testBlob(), nil)
	require.NoError(t, err)
	assert.Nil(t, pred.Confidence)
	assert.Nil(t, pred.Details)
	assert.NotContains(t, fields, "latitude")
	assert.NotContains(t, fields, "longitude")
	assert.Empty(t, fields)
}

func TestPredict_CustomCoordinateFields(t *testing.T) {
	t.Parallel()

	var lat, lng string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		lat, lng = r.FormValue("lat"), r.FormValue("lng")
		writeJSON(w, http.StatusOK, `{"prediccion":"2-Rhinella_arenarum"}`)
	})
	client, _ := newTestBackend(t, mux, func(o *Options) {
		o.LatitudeField = "lat"
		o.LongitudeField = "lng"
	})

	_, err := client.Predict(t.Context(), testBlob(), &geolocation.Location{Latitude: 1.5, Longitude: -2.25})
	require.NoError(t, err)
	assert.Equal(t, "1.500000", lat)
	assert.Equal(t, "-2.250000", lng)
}

func TestPredict_ServerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"error body", http.StatusBadRequest, `{"error":"No se envió archivo"}`, "No se envió archivo"},
		{"model failure", http.StatusInternalServerError, `{"error":"model exploded"}`, "model exploded"},
		{"empty body", http.StatusBadGateway, ``, "Bad Gateway"},
		{"html body", http.StatusServiceUnavailable, `<html>down</html>`, "Service Unavailable"},
		{"jwt msg", http.StatusUnauthorized, `{"msg":"Missing cookie"}`, "Missing cookie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("POST /predict", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			client, _ := newTestBackend(t, mux)

			_, err := client.Predict(t.Context(), testBlob(), nil)
			require.Error(t, err)

			var serr *ServerError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.status, serr.Status)
			assert.Equal(t, tt.wantMessage, serr.Message)
			assert.Equal(t, tt.wantMessage, err.Error())
			assert.False(t, IsAborted(err))
		})
	}
}

func TestPredict_AbortMidUpload(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	client, _ := newTestBackend(t, mux)
	// runs before the server closes
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Predict(ctx, testBlob(), nil)
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAborted)
		assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	case <-time.After(5 * time.Second):
		t.Fatal("Predict did not return after cancel")
	}
}

func TestPredict_NetworkError(t *testing.T) {
	t.Parallel()

	client, server := newTestBackend(t, http.NewServeMux())
	server.Close()

	_, err := client.Predict(t.Context(), testBlob(), nil)
	require.Error(t, err)

	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "predict", nerr.Op)
	assert.False(t, IsAborted(err))
}

func TestPredict_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	client, _ := newTestBackend(t, mux, func(o *Options) {
		o.PredictTimeout = 50 * time.Millisecond
	})
	defer close(release)

	_, err := client.Predict(t.Context(), testBlob(), nil)
	require.Error(t, err)

	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Timeout())
	assert.False(t, IsAborted(err))
}

func TestPredict_InvalidResponses(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":      `{oops`,
		"no prediction": `{"confianza":50}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			mux := http.NewServeMux()
			mux.HandleFunc("POST /predict", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			client, _ := newTestBackend(t, mux)

			_, err := client.Predict(t.Context(), testBlob(), nil)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestPredict_EmptyBlobIsNotSent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	})
	client, _ := newTestBackend(t, mux)

	_, err := client.Predict(t.Context(), myaudio.AudioBlob{}, nil)
	require.ErrorIs(t, err, myaudio.ErrNoAudioCaptured)
	assert.Zero(t, calls.Load())
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Options{BaseURL: "/api", HTTPClient: httpclient.New(nil)})
	assert.Error(t, err)
}

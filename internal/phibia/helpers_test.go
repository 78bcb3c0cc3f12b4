package phibia

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/myaudio"
)

// newTestBackend starts an httptest server serving mux under /api and a client for it.
func newTestBackend(t *testing.T, mux *http.ServeMux, opts ...func(*Options)) (*Client, *httptest.Server) {
	t.Helper()

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", mux))
	server := httptest.NewServer(root)
	t.Cleanup(server.Close)

	o := Options{
		BaseURL:     server.URL + "/api",
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
		HTTPClient:  httpclient.New(&httpclient.Config{DefaultTimeout: 5 * time.Second}),
	}
	for _, fn := range opts {
		fn(&o)
	}

	client, err := New(o)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, server
}

func testBlob() myaudio.AudioBlob {
	return myaudio.AudioBlob{
		Data:        []byte("RIFF\x00\x00\x00\x00WAVEfmt "),
		Filename:    "recording.wav",
		ContentType: "audio/wav",
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

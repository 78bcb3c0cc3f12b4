package phibia

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestPhotoFilename(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1730514600123)
	assert.Equal(t, "frog_1730514600123.jpeg", PhotoFilename(at))
}

func TestSavePhoto(t *testing.T) {
	t.Parallel()

	var (
		gotName    string
		gotType    string
		gotPayload []byte
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /save-photo", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, `{"error":"No image"}`)
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotPayload, _ = io.ReadAll(file)
		writeJSON(w, http.StatusOK, `{"message":"saved"}`)
	})
	client, _ := newTestBackend(t, mux)

	at := time.UnixMilli(1730514600123)
	filename, err := client.SavePhoto(t.Context(), jpegBytes, at)
	require.NoError(t, err)
	assert.Equal(t, "frog_1730514600123.jpeg", filename)
	assert.Equal(t, filename, gotName)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, jpegBytes, gotPayload)
}

func TestSavePhoto_RejectsNonJPEG(t *testing.T) {
	t.Parallel()

	called := false
	mux := http.NewServeMux()
	mux.HandleFunc("POST /save-photo", func(w http.ResponseWriter, _ *http.Request) {
		called = true
		writeJSON(w, http.StatusOK, `{}`)
	})
	client, _ := newTestBackend(t, mux)

	_, err := client.SavePhoto(t.Context(), []byte("\x89PNG\r\n"), time.Now())
	assert.ErrorIs(t, err, ErrNotJPEG)
	assert.False(t, called)
}

func TestSavePhoto_ServerError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /save-photo", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":"disk full"}`)
	})
	client, _ := newTestBackend(t, mux)

	_, err := client.SavePhoto(t.Context(), jpegBytes, time.Now())
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "disk full", serr.Message)
}

package myaudio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadAudioFile_WAV(t *testing.T) {
	t.Parallel()

	wavData, err := EncodePCMToWAV(sinePCM(8000, 1000), 8000)
	require.NoError(t, err)
	path := writeTempFile(t, "croak.wav", wavData)

	blob, err := LoadAudioFile(path)
	require.NoError(t, err)
	assert.Equal(t, "croak.wav", blob.Filename)
	assert.Equal(t, "audio/wav", blob.ContentType)
	assert.Equal(t, wavData, blob.Data)
	assert.Equal(t, time.Second, blob.Duration)
}

func TestLoadAudioFile_WAVDurationFromDataChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		samples    int
		sampleRate int
		want       time.Duration
	}{
		{"half second", 8000, 16000, 500 * time.Millisecond},
		{"one and a half seconds", 12000, 8000, 1500 * time.Millisecond},
		{"short clip", 160, 16000, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wavData, err := EncodePCMToWAV(sinePCM(tt.samples, 1000), tt.sampleRate)
			require.NoError(t, err)

			blob, err := LoadAudioFile(writeTempFile(t, "call.wav", wavData))
			require.NoError(t, err)
			assert.Equal(t, tt.want, blob.Duration)
		})
	}
}

func TestLoadAudioFile_InvalidWAVHeader(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "broken.wav", []byte("definitely not a riff header"))

	_, err := LoadAudioFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioFileInvalid)
}

func TestLoadAudioFile_InvalidFLAC(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "broken.flac", []byte("RIFF....WAVEfmt "))

	_, err := LoadAudioFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioFileInvalid)
}

func TestLoadAudioFile_PassThroughFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
	}{
		{"call.mp3", "audio/mpeg"},
		{"call.OGG", "audio/ogg"},
		{"call.webm", "audio/webm"},
		{"call.m4a", "audio/mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeTempFile(t, tt.name, []byte{0xff, 0xfb, 0x90, 0x64})
			blob, err := LoadAudioFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, blob.ContentType)
			assert.Zero(t, blob.Duration)
		})
	}
}

func TestLoadAudioFile_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		path := writeTempFile(t, "notes.txt", []byte("hello"))
		_, err := LoadAudioFile(path)
		assert.ErrorIs(t, err, ErrUnsupportedAudioType)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := writeTempFile(t, "empty.mp3", nil)
		_, err := LoadAudioFile(path)
		assert.ErrorIs(t, err, ErrAudioFileEmpty)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		path := writeTempFile(t, "big.mp3", make([]byte, 2048))
		_, err := LoadAudioFile(path, WithMaxSize(1024))
		assert.ErrorIs(t, err, ErrAudioFileTooLarge)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadAudioFile(filepath.Join(t.TempDir(), "missing.wav"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestNewAudioBlob_UsesBaseName(t *testing.T) {
	t.Parallel()

	blob, err := NewAudioBlob("/tmp/uploads/rana.mp3", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "rana.mp3", blob.Filename)
	assert.Equal(t, 3, blob.Size())
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audio/flac", ContentTypeFor("a.FLAC"))
	assert.Empty(t, ContentTypeFor("a.aiff"))
	assert.Len(t, SupportedExtensions(), len(contentTypes))
}

package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerWritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cl, err := newCentralLogger(&LoggingConfig{DefaultLevel: "debug"}, &buf)
	require.NoError(t, err)

	log := cl.Module("session").With(String("session_id", "abc"))
	log.Info("phase changed", String("phase", "recording"), Float64("confidence", 87.54321))

	out := buf.String()
	assert.Contains(t, out, "module=session")
	assert.Contains(t, out, "session_id=abc")
	assert.Contains(t, out, "phase=recording")
	assert.Contains(t, out, "confidence=87.543")
	assert.NotContains(t, out, "time=")
}

func TestModuleLevelOverrides(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cl, err := newCentralLogger(&LoggingConfig{
		DefaultLevel: "warn",
		Console:      &ConsoleOutput{Enabled: true, Level: "warn"},
		ModuleLevels: map[string]string{"api": "trace"},
	}, &buf)
	require.NoError(t, err)

	cl.Module("session").Info("hidden")
	cl.Module("api").Module("http").Trace("visible trace")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible trace")
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "module=api.http")
}

func TestSensitiveValuesAreRedacted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug)
	log.Info("login",
		String("password", "hunter2"),
		String("url", "https://api.mapbox.com/x.json?access_token=pk.secret&language=es"),
		Error(errors.New("cookie access_token_cookie=abc.def rejected")))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "pk.secret")
	assert.NotContains(t, out, "abc.def")
	assert.Contains(t, out, "language=es")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo)
	log.WithContext(WithTraceID(context.Background(), "req-1")).Info("handled")

	assert.Contains(t, buf.String(), "trace_id=req-1")
}

func TestFileOutputIsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "phibia.log")
	cl, err := newCentralLogger(&LoggingConfig{
		Timezone:   "UTC",
		Console:    &ConsoleOutput{Enabled: false},
		FileOutput: &FileOutput{Enabled: true, Path: path, Level: "info"},
	}, nil)
	require.NoError(t, err)

	cl.Module("datastore").Info("saved", Duration("elapsed", 1500*time.Microsecond))
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "{"))
	assert.Contains(t, line, `"module":"datastore"`)
	assert.Contains(t, line, `"elapsed":"2ms"`)
}

func TestInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

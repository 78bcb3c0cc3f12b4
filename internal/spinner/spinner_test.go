package spinner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateCyclesFrames(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	for range frames {
		s.Update("Procesando...")
	}
	assert.Equal(t, frames[0], s.Frame(), "wraps after a full cycle")
	assert.Equal(t, 1, strings.Count(buf.String(), "\033[?25l"), "cursor hidden once")
	assert.Equal(t, len(frames), strings.Count(buf.String(), "Procesando..."))
}

func TestCleanupRestoresCursor(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	s.Cleanup()
	assert.NotContains(t, buf.String(), "\033[?25h", "cursor was never hidden")

	s.Update("x")
	buf.Reset()
	s.Cleanup()
	assert.Equal(t, "\r\033[K\033[?25h", buf.String())
}

package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2024-11-01", "abc"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.0.0", "2024-11-01", "abc"), want: "1.0.0"},
		{name: "pre-release tag", ctx: NewContext("1.0.0-beta.1", "", ""), want: "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.Version())
		})
	}
}

func TestContext_Commit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, UnknownValue, NewContext("", "", "").Commit())
	assert.Equal(t, "abc123", NewContext("", "", "abc123").Commit())
	assert.Equal(t, "0123456789ab", NewContext("", "", "0123456789abcdef0123").Commit())
}

func TestContext_Strings(t *testing.T) {
	t.Parallel()

	c := NewContext("2.1.0", "2024-11-01T10:00:00Z", "deadbeef")
	assert.Equal(t, "phibia/2.1.0 ("+runtime.GOOS+"/"+runtime.GOARCH+")", c.UserAgent())
	assert.True(t, strings.HasPrefix(c.String(), "phibia 2.1.0 (commit deadbeef, built 2024-11-01T10:00:00Z"))

	var empty *Context
	assert.Equal(t, UnknownValue, empty.BuildDate())
}

func TestCurrent_IsStable(t *testing.T) {
	t.Parallel()

	assert.Same(t, Current(), Current())
}

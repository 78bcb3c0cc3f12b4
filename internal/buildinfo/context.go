// Package buildinfo holds build-time metadata separate from user configuration.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// UnknownValue is reported for metadata the build did not provide.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/phibia-app/phibia-go/internal/buildinfo.version=v1.2.3"
var (
	version   string
	buildDate string
	commit    string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext creates a Context from explicit values.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

var (
	current     *Context
	currentOnce sync.Once
)

// Current returns the metadata linked into the binary, falling back to the
// module version and VCS revision recorded by the Go toolchain.
func Current() *Context {
	currentOnce.Do(func() {
		current = NewContext(version, buildDate, commit)
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if current.version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			current.version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if current.commit == "" {
					current.commit = s.Value
				}
			case "vcs.time":
				if current.buildDate == "" {
					current.buildDate = s.Value
				}
			}
		}
	})
	return current
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns when the binary was built.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// Commit returns the short VCS revision.
func (c *Context) Commit() string {
	if c == nil || c.commit == "" {
		return UnknownValue
	}
	if len(c.commit) > 12 {
		return c.commit[:12]
	}
	return c.commit
}

// UserAgent is sent with every outgoing HTTP request.
func (c *Context) UserAgent() string {
	return fmt.Sprintf("phibia/%s (%s/%s)", c.Version(), runtime.GOOS, runtime.GOARCH)
}

// String is the one line printed by the version command.
func (c *Context) String() string {
	return fmt.Sprintf("phibia %s (commit %s, built %s, %s)", c.Version(), c.Commit(), c.BuildDate(), runtime.Version())
}

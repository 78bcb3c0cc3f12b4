package logger

import (
	"io"
	"log/slog"
)

// newTextHandler creates the console handler: no timestamp, TRACE rendered by name.
func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= traceLevelValue {
					return slog.String(slog.LevelKey, "TRACE")
				}
			}
			return a
		},
	})
}

// NewSlogLogger returns a Logger writing text to w at the given level.
// A nil writer discards output. Intended for tests and embedded use.
func NewSlogLogger(w io.Writer, level LogLevel) Logger {
	var handler slog.Handler = slog.DiscardHandler
	if w != nil {
		handler = newTextHandler(w, parseLogLevel(string(level)))
	}
	return &moduleLogger{
		logger: slog.New(handler),
		level:  parseLogLevel(string(level)),
	}
}

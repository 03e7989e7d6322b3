package internal

import (
	"io"
	"log/slog"
	"strings"
)

// ServiceName tags every log line so rateflow output can be told apart in a
// shared log stream.
const ServiceName = "rateflow"

// NewLogger returns a text logger in development and a JSON logger
// elsewhere. level accepts anything slog.Level parses ("debug", "WARN",
// "info+2"); an unknown value falls back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: env != "development" && env != "test",
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", ServiceName, "env", env)
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

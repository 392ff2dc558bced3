// Package logging builds the process-wide structured logger from the configured
// level. The level names match LOG_LEVEL: debug, info, warn, error and silent.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. ok is false for "silent"
// and "off", which disable logging entirely.
func ParseLevel(level string) (lvl slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return 0, false
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, true
	}
}

// New returns a text logger writing to w at the given level
func New(level string, w io.Writer) *slog.Logger {
	lvl, ok := ParseLevel(level)
	if !ok {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

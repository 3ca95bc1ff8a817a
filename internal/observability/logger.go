// Package observability wires structured logging and Prometheus metrics for
// every service binary.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a slog logger writing to stderr with the given level
// ("debug", "info", "warn", "error") and format ("json" or "text").
// Unknown values fall back to info/json.
func NewLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

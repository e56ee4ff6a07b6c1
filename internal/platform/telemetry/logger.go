// Package telemetry builds the process-wide structured logger.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Service is attached to every record.
const Service = "llmguard"

// NewLogger builds a JSON logger, or a text logger when format is "text".
// Debug level also records the source location.
func NewLogger(level, format string, w ...io.Writer) *slog.Logger {
	var writer io.Writer = os.Stderr
	if len(w) > 0 {
		writer = w[0]
	}

	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler).With("service", Service)
}

func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// Scanner returns the default logger tagged with a scanner name.
func Scanner(name string) *slog.Logger {
	return slog.Default().With("scanner", name)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

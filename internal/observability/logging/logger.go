package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the process-wide structured logger. Pipeline runs
// are driven from a terminal, so logs go to stderr and leave stdout for
// run output.
func NewJSONLogger(service, level string) *slog.Logger {
	return NewWriterLogger(os.Stderr, service, level)
}

func NewWriterLogger(w io.Writer, service, level string) *slog.Logger {
	parsed := parseLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     parsed,
		AddSource: parsed == slog.LevelDebug,
	})
	return slog.New(handler).With("service", service)
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

// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a text logger on stdout at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func Init(level string) *slog.Logger {
	return InitTo(os.Stdout, level)
}

// InitTo is Init with an explicit sink.
func InitTo(w io.Writer, level string) *slog.Logger {
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(l)
	return l
}

func ParseLevel(level string) slog.Level {
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

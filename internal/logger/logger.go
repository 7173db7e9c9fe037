package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/polkiloo/invoicekeeper/internal/config"
)

// New creates a preconfigured slog.Logger.
func New() *slog.Logger {
	return newJSON(os.Stdout, slog.LevelInfo)
}

// NewWithLevel creates a JSON logger filtering below the named level.
// Unknown names fall back to info.
func NewWithLevel(level string) *slog.Logger {
	return newJSON(os.Stdout, ParseLevel(level))
}

// NewTo creates a JSON logger writing to w. Command line tools use it to keep
// logs off stdout.
func NewTo(w io.Writer, level string) *slog.Logger {
	return newJSON(w, ParseLevel(level))
}

// ParseLevel maps debug, info, warn and error to slog levels.
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

func fromConfig(cfg *config.Config) *slog.Logger {
	return NewWithLevel(cfg.LogLevel)
}

func newJSON(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Package logging configures structured logging for log/slog: colored
// output with tint for terminals, JSON for log collectors.
//
// Usage:
//
//	logging.Setup("debug", "text")  // colored, debug and up
//	logging.Setup("info", "json")   // JSON lines on stderr
//	logging.SetupFromEnv()          // LOG_LEVEL, default info, colored
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger at level in format ("text" or "json").
func Setup(level, format string) {
	slog.SetDefault(New(os.Stderr, ParseLevel(level), format))
}

// SetupFromEnv configures colored logging at the level specified by the
// LOG_LEVEL env var (default: INFO).
func SetupFromEnv() {
	Setup(os.Getenv("LOG_LEVEL"), "text")
}

// New builds a logger writing to w.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// ParseLevel maps debug, warn and error to their slog levels; anything else
// is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

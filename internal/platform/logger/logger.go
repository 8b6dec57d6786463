// Package logger provides structured logging setup for pgephemeral.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Setup creates a structured JSON logger at the given level, writing to
// stderr so fixture logging never interleaves with program output, and sets
// it as the process default.
//
// An unrecognized level falls back to info with a warning rather than
// failing, so a typo in PGEPHEMERAL_SERVER_LOG_LEVEL cannot take down a
// test run.
func Setup(logLevel string) *slog.Logger {
	return setup(logLevel, os.Stderr)
}

func setup(logLevel string, w io.Writer) *slog.Logger {
	level, ok := parseLevel(logLevel)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(w, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			slog.String("configured_level", logLevel),
			slog.String("default_level", "info"))
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(logLevel string) (slog.Level, bool) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

var testInitOnce sync.Once

// InitForTests performs one-time logging setup shared across a test binary.
// The level comes from PGEPHEMERAL_SERVER_LOG_LEVEL; repeated calls are
// no-ops, so any test may call it without coordination.
func InitForTests() {
	testInitOnce.Do(func() {
		level := os.Getenv("PGEPHEMERAL_SERVER_LOG_LEVEL")
		if level == "" {
			level = "warn"
		}
		Setup(level)
	})
}

package coatyconfig

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel converts a log_level string to a slog.Level.
// Supported values: debug, info, warn, error (case-insensitive); the
// empty string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("coatyconfig: unknown log level %q (valid: debug, info, warn, error)", s)
	}
}

// NewLogger builds a structured JSON logger at the configured level,
// the handler shape every controller and the Communication Manager
// receive by default.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

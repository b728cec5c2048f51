// Package log provides structured logging for the pizza agent.
// It wraps slog so every package logs through one configured handler.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	mu     sync.Mutex
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is treated as info.
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

// Init configures the global logger with the specified level, writing to stdout.
// JSON output is used when GO_ENV=production, text otherwise.
func Init(level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	mu.Lock()
	logger = slog.New(h).With("service", "pizza-agent")
	slog.SetDefault(logger)
	mu.Unlock()
}

// L returns the global logger instance.
func L() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		Init("info")
		return L()
	}
	return l
}

// Component returns a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

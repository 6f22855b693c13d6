// Package logger holds the allocator's process-wide structured logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// EnvVar turns on debug logging to stderr when set to a true value.
const EnvVar = "YATSC_HEAP_LOG"

// L is the global logger instance. It discards all output unless Init is
// called or EnvVar is set.
var L = slog.New(slog.DiscardHandler)

// Options configures the logger.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Emit JSON records instead of key=value text
}

func init() {
	if on, _ := strconv.ParseBool(os.Getenv(EnvVar)); on {
		_ = Init(Options{Enabled: true, Level: slog.LevelDebug})
	}
}

// Init configures logging. Call before allocating if logs are wanted.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	// The zero Level is LevelInfo.
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, hopts))
	} else {
		L = slog.New(slog.NewTextHandler(w, hopts))
	}
	return nil
}

// Enabled reports whether records at level would be emitted.
func Enabled(level slog.Level) bool {
	return L.Enabled(context.Background(), level)
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }

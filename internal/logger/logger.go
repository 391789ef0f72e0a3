// Package logger configures the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"
)

var log *slog.Logger

// Init configures the global logger for the given environment:
// "development" gets debug-level text output, anything else gets
// info-level JSON.
func Init(env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if env == "development" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log = slog.New(handler)
	slog.SetDefault(log)
	return log
}

// Get returns the global logger, initializing a development logger if
// Init was never called.
func Get() *slog.Logger {
	if log == nil {
		return Init("development")
	}
	return log
}

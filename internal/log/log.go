// Package log sets up the process-wide structured logger. Diagnostics go to
// stderr as JSON so stdout stays clean for the report table.
package log

import (
	"log/slog"
	"os"
)

// New builds the logger; verbose switches the level to debug.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	return slog.New(handler)
}

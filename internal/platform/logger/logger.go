// Package logger builds the structured logger every service and sweeper in
// this tree logs through (log/slog's JSON handler; no third-party
// structured-logging library appears anywhere in the retrieved pack, so
// there is nothing to wire here instead).
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger writing to stdout.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

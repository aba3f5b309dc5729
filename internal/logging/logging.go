// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is one of three verbosity settings (quiet, info, verbose) that
// maps onto zerolog's levels so callers can dial in how noisy the gateway
// is.
type Level string

const (
	LevelQuiet   Level = "quiet"
	LevelInfo    Level = "info"
	LevelVerbose Level = "verbose"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelQuiet:
		return zerolog.WarnLevel
	case LevelVerbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup configures the global zerolog logger and returns a base logger
// carrying no fields. pretty selects a human-readable console writer
// (for a TTY) instead of one-JSON-object-per-line (for production).
func Setup(level Level, pretty bool) zerolog.Logger {
	zerolog.SetGlobalLevel(level.zerolog())
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).With().Timestamp().Logger()
	log := logger
	return log
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Package logging builds the zerolog loggers used across pwvault.
//
// Diagnostics go to stderr so that command output on stdout stays clean.
// Passwords, derived keys and entry secrets must never be attached to an event.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const DefaultLevel = "warn"

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New creates a console logger writing to w at the given level.
// Unknown levels fall back to DefaultLevel.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	writer := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(writer).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("component", "pwvault").
		Logger()
}

// NewJSON creates a JSON logger, for log files or machine consumption.
func NewJSON(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("component", "pwvault").
		Logger()
}

// ParseLevel parses a level name, falling back to DefaultLevel.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl, _ = zerolog.ParseLevel(DefaultLevel)
	}
	return lvl
}

// Package logging builds the root zerolog logger shared by all components.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the root logger. Level falls back to info when unparseable;
// pretty enables the human console writer for development.
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "messenger").Logger()
}

// Package logging configures the zerolog loggers shared by the command-line tools.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel names the environment variable that overrides the log level.
const EnvLevel = "EDGEBENCH_LOG_LEVEL"

// New returns a timestamped console logger writing to w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(console).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Level resolves the log level from the verbose flag and EnvLevel.
// An unparsable environment value falls back to the flag-derived level.
func Level(verbose bool) zerolog.Level {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(env)); err == nil {
			level = parsed
		}
	}
	return level
}

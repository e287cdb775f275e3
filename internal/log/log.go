// Package log provides structured logging for seatwatch.
// It wraps zerolog with the defaults the server expects.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error". JSON is written when env
// is "prod", a console format otherwise.
func Init(level, env string) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}
		var out io.Writer = os.Stdout
		if env != "prod" {
			out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	})
}

// L returns the global logger instance.
func L() *zerolog.Logger {
	Init("info", "")
	return &logger
}

// With returns a child logger tagged with the component name.
func With(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}

// Nop returns a logger that discards everything; used by tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

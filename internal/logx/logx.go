// Package logx wraps zerolog with the service's logging defaults.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger initialization.
type Options struct {
	Production bool
	Level      string
	Output     io.Writer
}

// Init configures the global logger. Production logs are JSON at the configured
// level (info by default); everything else gets a console writer with caller info.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
		if !opts.Production {
			level = zerolog.DebugLevel
		}
	}

	if opts.Production {
		log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(level)
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Caller().Logger().Level(level)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}

// With starts a child logger carrying extra fields.
func With() zerolog.Context {
	return log.With()
}

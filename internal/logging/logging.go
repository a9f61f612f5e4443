// Package logging builds the zerolog loggers used across the simulator.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Level  string
	Pretty bool
	Output io.Writer // defaults to os.Stdout
}

// ParseLevel converts a config string to a zerolog level, falling back to
// info for empty or unknown values.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// New returns a root logger. Pretty output uses the console writer with
// RFC3339 UTC timestamps, otherwise JSON lines are written.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    true,
			TimeFormat: time.RFC3339,
			FormatTimestamp: func(i interface{}) string {
				if s, ok := i.(string); ok {
					if t, err := time.Parse(zerolog.TimeFieldFormat, s); err == nil {
						return t.UTC().Format(time.RFC3339)
					}
					return s
				}
				return ""
			},
		}
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
}

// Component tags a logger with the subsystem that owns it.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/config"
	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line.
const ServiceName = "alpha"

// New creates a zerolog logger from the log configuration. When cfg.File is
// set, JSON lines are also appended to that file so the admin log viewer can
// read them back. The returned closer releases the file (no-op otherwise).
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := ParseLevel(cfg.Level)

	var console io.Writer = os.Stdout
	if cfg.Format == "pretty" || os.Getenv("ENV") == "development" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		closer = f
		out = zerolog.MultiLevelWriter(console, f)
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger(), closer, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

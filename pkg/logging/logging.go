// Package logging builds the process logger used by the rqgo binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger settings
type Config struct {
	Level   string `mapstructure:"level" json:"level"`
	Console bool   `mapstructure:"console" json:"console"`
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// New builds a logger writing to out. Console mode renders human readable
// lines; otherwise records are JSON. An unknown level falls back to info.
func New(cfg Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := out
	if cfg.Console {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    out != os.Stdout && out != os.Stderr,
		}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("app", "rqgo").
		Logger()
}

// Init installs a logger on stderr as the zerolog global logger
func Init(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = New(cfg, os.Stderr)
	log.Debug().Str("level", log.Logger.GetLevel().String()).Msg("logger initialized")
	return log.Logger
}

// Component derives a logger tagged with a component name
func Component(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

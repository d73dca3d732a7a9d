package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "payment-webhook"

type Config struct {
	Level   string `yaml:"level"`
	Pretty  bool   `yaml:"pretty"`
	Version string `yaml:"version"`
}

func New() zerolog.Logger {
	return NewWithConfig(Config{Level: "info"})
}

// NewWithConfig builds the process logger. Unknown levels fall back to info.
func NewWithConfig(cfg Config) zerolog.Logger {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	w := out
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
}

// Package logger provides structured logging for the approvals service using zerolog.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so services can take a single pointer type.
type Logger struct {
	zerolog.Logger
}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format is the output format (json, console). Empty picks console in
	// development and json elsewhere.
	Format string

	Environment string
	ServiceName string
	Version     string

	// Output is where logs are written (defaults to stderr).
	Output io.Writer
}

type ctxKey struct{}

// New creates a logger from the given configuration.
func New(cfg Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	format := cfg.Format
	if format == "" {
		format = "json"
		if cfg.Environment == "development" || cfg.Environment == "local" {
			format = "console"
		}
	}
	if format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	if cfg.Environment != "" {
		ctx = ctx.Str("environment", cfg.Environment)
	}

	return &Logger{Logger: ctx.Logger()}
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With().Str("component", name).Logger()}
}

// ParseLevel converts a string level to zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithContext returns a new context carrying the logger.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or fallback when none is set.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return fallback
}

// Package logging provides structured logging for InsightLens on top of
// zerolog. Components get their own child logger, and request-scoped loggers
// carry a correlation id so a single orchestrated request can be traced
// across the cache, queue, and backend layers.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with component and correlation-id helpers.
type Logger struct {
	zl zerolog.Logger
}

// Config configures logger construction.
type Config struct {
	Level   string    // debug, info, warn, error (defaults to info)
	Output  io.Writer // defaults to stderr
	Console bool      // human-readable console output instead of JSON
}

// New creates a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zl := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// WithCorrelation returns a child logger tagged with a correlation id.
func (l *Logger) WithCorrelation(id string) *Logger {
	return &Logger{zl: l.zl.With().Str("correlation_id", id).Logger()}
}

// WithField returns a child logger with an extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.zl.Error().Msgf(format, args...) }

// Err logs err at error level with a message.
func (l *Logger) Err(err error, format string, args ...any) {
	l.zl.Error().Err(err).Msgf(format, args...)
}

var (
	globalMu     sync.RWMutex
	globalLogger = New(Config{Console: true})
)

// SetGlobal replaces the process-wide default logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the process-wide default logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

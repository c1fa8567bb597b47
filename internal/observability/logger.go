// Package observability provides structured logging with sensitive-data
// redaction for generation requests.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with redaction support. Anything that might carry
// an API key or prompt excerpt goes through the redactor before a sink sees
// it.
type Logger struct {
	*slog.Logger
	redactor *Redactor
}

// LoggerConfig contains configuration for the logger.
type LoggerConfig struct {
	Level      slog.Level
	Output     io.Writer
	JSONFormat bool
}

// NewLogger creates a new logger with redaction support.
func NewLogger(cfg LoggerConfig, redactor *Redactor) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return &Logger{
		Logger:   slog.New(handler),
		redactor: redactor,
	}
}

// Default returns a text logger at INFO with the default redactor.
func Default() *Logger {
	return NewLogger(LoggerConfig{Level: slog.LevelInfo}, NewRedactor())
}

// With returns a logger with additional fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:   l.Logger.With(args...),
		redactor: l.redactor,
	}
}

// Redact masks sensitive substrings in s.
func (l *Logger) Redact(s string) string {
	if l.redactor == nil {
		return s
	}
	return l.redactor.Redact(s)
}

// Package logger implements a logging adapter using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/anubis-build/anubis/internal/core/ports"
)

// Logger implements ports.Logger using log/slog. The level can be
// adjusted after construction via SetLevel; slog.LevelVar makes that safe
// without swapping the handler.
type Logger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// New creates a Logger writing human-readable output to stderr at info
// level.
func New() *Logger {
	return NewWithOutput(os.Stderr)
}

// NewWithOutput creates a Logger writing to w.
func NewWithOutput(w io.Writer) *Logger {
	level := &slog.LevelVar{}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		logger: slog.New(handler),
		level:  level,
	}
}

// SetLevel applies a CLI log-level name (error, warn, info, debug,
// trace). Unknown names keep the current level. trace has no slog
// equivalent and maps to debug.
func (l *Logger) SetLevel(name string) {
	switch strings.ToLower(name) {
	case "error":
		l.level.Set(slog.LevelError)
	case "warn":
		l.level.Set(slog.LevelWarn)
	case "info":
		l.level.Set(slog.LevelInfo)
	case "debug", "trace":
		l.level.Set(slog.LevelDebug)
	}
}

// Debug logs a debug message with structured args.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an informational message with structured args.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning with structured args.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.logger.Error("operation failed", "error", err)
}

var _ ports.Logger = (*Logger)(nil)

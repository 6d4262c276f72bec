// Package logging provides the structured logger used by depfetch components.
package logging

import (
	"io"
	"log/slog"
)

// Logger provides structured logging for acquisition operations.
// This interface allows callers to plug in their own logging implementation.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &noopLogger{}
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

// NewText builds a text-handler logger writing to w at the given level.
func NewText(w io.Writer, level slog.Level) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (s *SlogLogger) Debug(msg string, keysAndValues ...interface{}) {
	s.l.Debug(msg, keysAndValues...)
}

func (s *SlogLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Info(msg, keysAndValues...)
}

func (s *SlogLogger) Warn(msg string, keysAndValues ...interface{}) {
	s.l.Warn(msg, keysAndValues...)
}

func (s *SlogLogger) Error(msg string, keysAndValues ...interface{}) {
	s.l.Error(msg, keysAndValues...)
}

// With returns a child logger that always includes the given key-value pairs.
func (s *SlogLogger) With(keysAndValues ...interface{}) *SlogLogger {
	return &SlogLogger{l: s.l.With(keysAndValues...)}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// fieldLogger prepends fixed key-value pairs to every call.
type fieldLogger struct {
	next   Logger
	fields []interface{}
}

// With returns a logger that adds keysAndValues to every entry written
// through l. A nil l yields a no-op logger.
func With(l Logger, keysAndValues ...interface{}) Logger {
	l = OrNop(l)
	if s, ok := l.(*SlogLogger); ok {
		return s.With(keysAndValues...)
	}
	return &fieldLogger{next: l, fields: keysAndValues}
}

func (f *fieldLogger) merge(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, 0, len(f.fields)+len(keysAndValues))
	out = append(out, f.fields...)
	return append(out, keysAndValues...)
}

func (f *fieldLogger) Debug(msg string, keysAndValues ...interface{}) {
	f.next.Debug(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Info(msg string, keysAndValues ...interface{}) {
	f.next.Info(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Warn(msg string, keysAndValues ...interface{}) {
	f.next.Warn(msg, f.merge(keysAndValues)...)
}

func (f *fieldLogger) Error(msg string, keysAndValues ...interface{}) {
	f.next.Error(msg, f.merge(keysAndValues)...)
}

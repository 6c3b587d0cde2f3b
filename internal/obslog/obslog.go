// Package obslog implements ports.Logger on top of log/slog, generalizing
// pubsub-gui's internal/logger package: the same dual text+JSON
// MultiHandler construction, but without that package's desktop-app
// concerns (per-process config directory, daily file rotation tied to a
// GUI lifecycle). A broker is typically embedded, so obslog takes its
// writers as constructor arguments instead of owning a logs directory.
package obslog

import (
	"context"
	"io"
	"log/slog"
)

// Logger adapts an *slog.Logger to ports.Logger.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger writing human-readable text to primary and
// (optionally) structured JSON to secondary. Passing a nil secondary
// disables the JSON branch, matching MultiHandler's variadic design.
func New(primary io.Writer, secondary io.Writer, level slog.Level) *Logger {
	handlers := []slog.Handler{
		slog.NewTextHandler(primary, &slog.HandlerOptions{Level: level}),
	}
	if secondary != nil {
		handlers = append(handlers, slog.NewJSONHandler(secondary, &slog.HandlerOptions{Level: level}))
	}
	return &Logger{slog: slog.New(NewMultiHandler(handlers...))}
}

// NewFromSlog adapts an already-constructed *slog.Logger, for callers that
// want to supply their own handler chain (e.g. one wired into an existing
// application's logging setup).
func NewFromSlog(l *slog.Logger) *Logger {
	return &Logger{slog: l}
}

func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// MultiHandler fans a slog.Record out to every wrapped handler, exactly as
// pubsub-gui's internal/logger.MultiHandler does for its stdout+file dual
// output.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler builds a MultiHandler over the given handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if err := h.Handle(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return NewMultiHandler(handlers...)
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return NewMultiHandler(handlers...)
}

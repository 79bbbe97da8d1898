// Package logging provides the structured logger used across eventidx.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with eventidx-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// OrNoop returns l, or a no-op logger if l is nil.
func OrNoop(l *Logger) *Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}

// WithComponent tags log records with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// WithPartition adds a partition field.
func (l *Logger) WithPartition(id string) *Logger {
	return &Logger{Logger: l.Logger.With("partition", id)}
}

// WithColumn adds the column ordinal and its file path.
func (l *Logger) WithColumn(column int, path string) *Logger {
	return &Logger{Logger: l.Logger.With("column", column, "path", path)}
}

// WithQuery adds a query expression field.
func (l *Logger) WithQuery(expr string) *Logger {
	return &Logger{Logger: l.Logger.With("query", expr)}
}

// LogLoad logs loading persisted state.
func (l *Logger) LogLoad(ctx context.Context, watermark uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "failed to load value index from disk", "error", err)
		return
	}
	l.DebugContext(ctx, "loaded value index", "watermark", watermark)
}

// LogFlush logs a flush of new rows to disk.
func (l *Logger) LogFlush(ctx context.Context, added, total uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"new", added,
			"total", total,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "flushed index",
		"new", added,
		"total", total,
	)
}

// LogShrink logs the conversion of a buffered synopsis.
func (l *Logger) LogShrink(ctx context.Context, observed, n uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "failed to shrink synopsis",
			"observed", observed,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "shrinked synopsis",
		"observed", observed,
		"n", n,
	)
}

// LogMissingResult logs a predicate whose source did not respond.
func (l *Logger) LogMissingResult(ctx context.Context, position string, err error) {
	l.WarnContext(ctx, "indexer failed to evaluate predicate",
		"position", position,
		"error", err,
	)
}

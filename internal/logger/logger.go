// Package logger wraps log/slog with the context-first, leveled call
// signature used throughout this codebase, plus a caller-depth variant
// for helpers that log on behalf of another function and want the
// log line to point at their caller instead of themselves.
package logger

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// Level mirrors slog.Level under names that read naturally at call
// sites (logger.LevelInfo instead of slog.LevelInfo).
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// LoggerInterface is the logging contract every business/infra
// component depends on, so tests can substitute a mock without
// pulling in slog.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// Debugc/Infoc/Warnc/Errorc behave like their non-c counterparts
	// but attribute the log line to the caller `skip` frames up the
	// stack, for helpers that log on behalf of a caller.
	Debugc(ctx context.Context, skip int, msg string, args ...any)
	Infoc(ctx context.Context, skip int, msg string, args ...any)
	Warnc(ctx context.Context, skip int, msg string, args ...any)
	Errorc(ctx context.Context, skip int, msg string, args ...any)
}

// Options configures optional behavior beyond level/output/name.
type Options struct {
	AddSource bool
}

// Logger is the slog-backed LoggerInterface implementation used
// outside of tests.
type Logger struct {
	slog *slog.Logger
}

var _ LoggerInterface = (*Logger)(nil)

// New builds a Logger writing JSON records to w at the given level.
// name is attached to every record as the "service" attribute. opts
// may be nil to accept defaults.
func New(w io.Writer, level Level, name string, opts *Options) *Logger {
	if opts == nil {
		opts = &Options{}
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.AddSource,
	})
	base := slog.New(handler)
	if name != "" {
		base = base.With("service", name)
	}
	return &Logger{slog: base}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.logAt(ctx, slog.LevelDebug, 2, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.logAt(ctx, slog.LevelInfo, 2, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.logAt(ctx, slog.LevelWarn, 2, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.logAt(ctx, slog.LevelError, 2, msg, args...)
}

func (l *Logger) Debugc(ctx context.Context, skip int, msg string, args ...any) {
	l.logAt(ctx, slog.LevelDebug, 2+skip, msg, args...)
}

func (l *Logger) Infoc(ctx context.Context, skip int, msg string, args ...any) {
	l.logAt(ctx, slog.LevelInfo, 2+skip, msg, args...)
}

func (l *Logger) Warnc(ctx context.Context, skip int, msg string, args ...any) {
	l.logAt(ctx, slog.LevelWarn, 2+skip, msg, args...)
}

func (l *Logger) Errorc(ctx context.Context, skip int, msg string, args ...any) {
	l.logAt(ctx, slog.LevelError, 2+skip, msg, args...)
}

func (l *Logger) logAt(ctx context.Context, level slog.Level, callerSkip int, msg string, args ...any) {
	if !l.slog.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(callerSkip+1, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = l.slog.Handler().Handle(ctx, record)
}

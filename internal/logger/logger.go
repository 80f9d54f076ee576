// Package logger wraps log/slog with a package-level default logger and
// tag-prefixed helpers, matching the logging shape used across the rest of
// the codebase's ancestry.
package logger

import (
	"context"
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger
var logLevel = new(slog.LevelVar)

const (
	LevelDebug = int(slog.LevelDebug)
	LevelInfo  = int(slog.LevelInfo)
	LevelWarn  = int(slog.LevelWarn)
	LevelError = int(slog.LevelError)
)

func Init() {
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func SetLogLevel(level int) {
	logLevel.Set(slog.Level(level))
}

func ensure() {
	if defaultLogger == nil {
		Init()
	}
}

func Debug(tag string, msg string, args ...any) {
	ensure()
	defaultLogger.Debug(msg, append([]any{slog.String("tag", tag)}, args...)...)
}

func Info(tag string, msg string, args ...any) {
	ensure()
	defaultLogger.Info(msg, append([]any{slog.String("tag", tag)}, args...)...)
}

func Warn(tag string, msg string, args ...any) {
	ensure()
	defaultLogger.Warn(msg, append([]any{slog.String("tag", tag)}, args...)...)
}

func Error(tag string, msg string, args ...any) {
	ensure()
	defaultLogger.Error(msg, append([]any{slog.String("tag", tag)}, args...)...)
}

// Fatal logs at error level and terminates the process with exit code 1.
// Used for configuration failures (at startup and on reload), tracer and
// pool setup failures, and dispatcher errors such as BindError.
func Fatal(tag string, msg string, args ...any) {
	ensure()
	defaultLogger.Error(msg, append([]any{slog.String("tag", tag)}, args...)...)
	os.Exit(1)
}

func DebugContext(ctx context.Context, tag string, msg string, args ...any) {
	ensure()
	defaultLogger.DebugContext(ctx, msg, append([]any{slog.String("tag", tag)}, args...)...)
}

func InfoContext(ctx context.Context, tag string, msg string, args ...any) {
	ensure()
	defaultLogger.InfoContext(ctx, msg, append([]any{slog.String("tag", tag)}, args...)...)
}

func ErrorContext(ctx context.Context, tag string, msg string, args ...any) {
	ensure()
	defaultLogger.ErrorContext(ctx, msg, append([]any{slog.String("tag", tag)}, args...)...)
}

// Package log wraps zap with context-aware hooks so every log line emitted
// while handling a request carries its trace id and operation name without
// callers having to pass them explicitly.
package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/looplj/harmonygate/internal/tracing"
)

// Field is a structured logging field, re-exported so callers never import
// zap directly.
type Field = zap.Field

var base = newBase()

func newBase() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return logger
}

// SetLevel raises the minimum level emitted by the package logger. The
// logger starts at info, so a level below info (debug) is not applied.
func SetLevel(level zapcore.Level) {
	base = base.WithOptions(zap.IncreaseLevel(level))
}

// Hook extracts additional fields from a context before a line is emitted.
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field {
	return f(ctx, msg)
}

var hooks = []Hook{HookFunc(traceFields)}

func traceFields(ctx context.Context, _ string) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field

	if traceID, ok := tracing.TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", traceID))
	}

	if op, ok := tracing.OperationName(ctx); ok {
		fields = append(fields, zap.String("operation_name", op))
	}

	return fields
}

func withHooks(ctx context.Context, msg string, fields []Field) []Field {
	for _, h := range hooks {
		fields = append(fields, h.Apply(ctx, msg)...)
	}

	return fields
}

// Debug logs a debug-level line with context-derived fields appended.
func Debug(ctx context.Context, msg string, fields ...Field) {
	base.Debug(msg, withHooks(ctx, msg, fields)...)
}

// Info logs an info-level line with context-derived fields appended.
func Info(ctx context.Context, msg string, fields ...Field) {
	base.Info(msg, withHooks(ctx, msg, fields)...)
}

// Warn logs a warn-level line with context-derived fields appended.
func Warn(ctx context.Context, msg string, fields ...Field) {
	base.Warn(msg, withHooks(ctx, msg, fields)...)
}

// Error logs an error-level line with context-derived fields appended.
func Error(ctx context.Context, msg string, fields ...Field) {
	base.Error(msg, withHooks(ctx, msg, fields)...)
}

// Int wraps zap.Int so callers never import zap directly.
func Int(key string, value int) Field {
	return zap.Int(key, value)
}

// Int64 wraps zap.Int64.
func Int64(key string, value int64) Field {
	return zap.Int64(key, value)
}

// Float64 wraps zap.Float64.
func Float64(key string, value float64) Field {
	return zap.Float64(key, value)
}

// String wraps zap.String.
func String(key, value string) Field {
	return zap.String(key, value)
}

// Duration renders value (typically a time.Duration) as a string field via
// its String method.
func Duration(key string, value interface{ String() string }) Field {
	return zap.String(key, value.String())
}

// Cause wraps an error under the conventional "error" key.
func Cause(err error) Field {
	return zap.Error(err)
}

// Bool wraps zap.Bool.
func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

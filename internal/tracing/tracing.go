// Package tracing carries lightweight request-scoped identifiers through
// context.Context so the logging layer can attach them to every line
// without threading them through every function signature.
package tracing

import "context"

type traceIDKey struct{}

type operationNameKey struct{}

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID returns the trace id stored in ctx, if any.
func TraceID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	v, ok := ctx.Value(traceIDKey{}).(string)

	return v, ok
}

// WithOperationName attaches the name of the operation currently executing
// (e.g. "generate", "generate_stream") to ctx.
func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey{}, name)
}

// OperationName returns the operation name stored in ctx, if any.
func OperationName(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	v, ok := ctx.Value(operationNameKey{}).(string)

	return v, ok
}

// Package transformer defines the dialect-neutral façade contract (C9):
// each client dialect (openai, anthropic) implements Dialect so the server
// glue (C12) never branches on API format beyond picking which Dialect to
// invoke, mirroring the teacher's transformer.Inbound/Outbound method names
// collapsed onto a single interface since this gateway fronts one local
// engine rather than proxying to a remote provider.
package transformer

import (
	"context"
	"errors"

	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
)

// ErrInvalidRequest marks a malformed client request body, mirroring the
// teacher's transformer.ErrInvalidRequest sentinel.
var ErrInvalidRequest = errors.New("transformer: invalid request")

// Frame is one SSE wire frame. Event is empty for dialects that don't use
// named SSE events (OpenAI); Anthropic populates it ("message_start",
// "content_block_delta", etc).
type Frame struct {
	Event string
	Data  []byte
}

// Dialect is the contract both façade adapters implement (spec.md §4.9).
type Dialect interface {
	// APIFormat identifies which wire dialect this adapter speaks.
	APIFormat() llm.APIFormat

	// TransformRequest parses a raw client request body into the
	// dialect-neutral llm.Request.
	TransformRequest(ctx context.Context, body []byte) (*llm.Request, error)

	// TransformResponse renders a complete GenerationResult as the
	// dialect's non-streaming JSON response body.
	TransformResponse(ctx context.Context, result *llm.GenerationResult) ([]byte, error)

	// TransformStream renders a stream of mediator StreamEvents as a
	// stream of SSE Frames, including whatever terminal framing the
	// dialect requires (OpenAI's "[DONE]" marker, Anthropic's
	// message_stop event).
	TransformStream(ctx context.Context, events streams.Stream[llm.StreamEvent]) (streams.Stream[Frame], error)

	// TransformError renders an internal error as the dialect's error
	// envelope, returning the HTTP status to use alongside it.
	TransformError(ctx context.Context, err error) (status int, body []byte)
}

// MapFinishReason implements spec.md §4.9's "finish_reason mapping" table,
// parameterized by the two dialect-specific strings each internal reason
// renders as.
func MapFinishReason(reason llm.FinishReason, table map[llm.FinishReason]string) string {
	if s, ok := table[reason]; ok {
		return s
	}

	return string(reason)
}

// ClassifyForHTTP maps an internal error to the HTTP status, error-kind
// string, and machine-readable code a dialect's error envelope should
// carry, grounded on the error taxonomy of spec.md §4.5 (recovery.Classify's
// Kind values) rather than on the teacher's provider-specific HTTP status
// passthrough, since failures here originate locally instead of from a
// proxied remote response. code is empty wherever spec.md §7 doesn't name
// one.
func ClassifyForHTTP(err error) (status int, kind string, code string, message string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, llm.ErrInvalidInput):
		return 400, "invalid_request_error", "", err.Error()
	case errors.Is(err, llm.ErrNotReady):
		return 503, "server_error", "model_not_loaded", err.Error()
	case errors.Is(err, llm.ErrContextOverflow):
		return 400, "context_overflow", "", err.Error()
	case errors.Is(err, llm.ErrMemory):
		return 503, "memory_error", "", err.Error()
	case errors.Is(err, llm.ErrCancelled):
		return 499, "cancelled", "", err.Error()
	case errors.Is(err, llm.ErrTransient):
		return 502, "transient_error", "", err.Error()
	default:
		return 500, "internal_error", "", err.Error()
	}
}

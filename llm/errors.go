package llm

import "errors"

// Sentinel errors wrapped with additional context via fmt.Errorf("%w: ...").
// Mirrors the teacher's transformer.ErrInvalidRequest convention.
var (
	// ErrInvalidInput marks a request that failed validation: empty
	// messages, unrecognized role, empty content, bad sampling params.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotReady marks an engine that has not finished loading.
	ErrNotReady = errors.New("engine not ready")

	// ErrContextOverflow marks a prompt that exceeds the model window.
	ErrContextOverflow = errors.New("context overflow")

	// ErrMemory marks an allocator/OOM failure.
	ErrMemory = errors.New("memory error")

	// ErrTransient marks a recoverable, likely-transient failure.
	ErrTransient = errors.New("transient error")

	// ErrCancelled marks a generation terminated by user cancellation.
	ErrCancelled = errors.New("cancelled")
)

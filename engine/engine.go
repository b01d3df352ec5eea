// Package engine defines the opaque inference-engine contract (spec.md §1,
// §4.1's "Engine" collaborator) and the GPU-serialization lock (C5) that
// every call into it must go through.
package engine

import (
	"context"

	"github.com/looplj/harmonygate/harmony"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
)

// Engine is the opaque local inference runtime. Implementations are free
// to wrap any matrix-kernel backend; this package never looks inside one.
type Engine interface {
	// Generate runs a complete, non-streaming generation.
	Generate(ctx context.Context, tokenIDs []harmony.Token, params llm.SamplingParams) ([]harmony.EngineToken, error)

	// GenerateStream runs a streaming generation, yielding one EngineToken
	// at a time.
	GenerateStream(ctx context.Context, tokenIDs []harmony.Token, params llm.SamplingParams) (streams.Stream[harmony.EngineToken], error)
}

// CacheClearer is an optional capability: engines that maintain an
// accelerator cache expose it so the mediator can clear it between
// generations (spec.md §4.5). Engines without a cache simply don't
// implement this interface.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// ReadyChecker is an optional capability reporting whether the engine has
// finished loading weights. Engines that are always ready (e.g. test
// stubs) don't need to implement it.
type ReadyChecker interface {
	Ready() bool
}

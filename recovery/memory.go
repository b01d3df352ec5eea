package recovery

import (
	"fmt"

	"github.com/looplj/harmonygate/llm"
)

// bytesPerToken is the crude per-token memory estimate of spec.md §4.8
// ("(prompt_tokens + max_tokens) * 8 bytes") used to pre-flight a generation
// before it ever reaches the engine.
const bytesPerToken = 8

// DefaultSafetyMarginBytes is the default reserved headroom subtracted from
// the reported available memory before a request is admitted.
const DefaultSafetyMarginBytes int64 = 2 * 1024 * 1024 * 1024

// minClampedMaxTokens is the floor below which MemoryPrepare gives up and
// surfaces ErrMemory instead of returning an unusably small budget.
const minClampedMaxTokens = 32

// EstimateBytes returns the crude memory estimate for a generation of
// promptTokens prompt tokens followed by up to maxTokens generated tokens.
func EstimateBytes(promptTokens, maxTokens int64) int64 {
	return (promptTokens + maxTokens) * bytesPerToken
}

// MemoryPrepare checks the estimated footprint of a generation against the
// available memory, minus safetyMargin, and clamps MaxTokens downward to fit
// when necessary (spec.md §4.8). If even minClampedMaxTokens won't fit, it
// returns ErrMemory and the caller must not invoke the engine.
func MemoryPrepare(
	params llm.SamplingParams,
	promptTokens int64,
	availableBytes int64,
	safetyMargin int64,
) (llm.SamplingParams, error) {
	if safetyMargin < 0 {
		safetyMargin = 0
	}

	budget := availableBytes - safetyMargin
	if budget <= 0 {
		return llm.SamplingParams{}, fmt.Errorf("%w: no memory headroom after safety margin", llm.ErrMemory)
	}

	if EstimateBytes(promptTokens, params.MaxTokens) <= budget {
		return params, nil
	}

	fittingMaxTokens := budget/bytesPerToken - promptTokens
	if fittingMaxTokens < minClampedMaxTokens {
		return llm.SamplingParams{}, fmt.Errorf(
			"%w: estimated footprint exceeds available memory even at minimum max_tokens",
			llm.ErrMemory,
		)
	}

	return params.CopyWith(func(p *llm.SamplingParams) {
		p.MaxTokens = fittingMaxTokens
		if p.MinTokens > p.MaxTokens {
			p.MinTokens = p.MaxTokens
		}
	})
}

package recovery

import (
	"fmt"

	"github.com/looplj/harmonygate/llm"
)

const ellipsisMarker = "... [truncated] ..."

// Degrade derives a reduced SamplingParams for a retry after a degradable
// error (spec.md §4.8): max_tokens is cut 30% on ContextOverflow, 50% on
// Memory. Non-degradable kinds return params unchanged.
func Degrade(params llm.SamplingParams, kind Kind) (llm.SamplingParams, error) {
	var factor float64

	switch kind {
	case KindContextOverflow:
		factor = 0.7
	case KindMemory:
		factor = 0.5
	default:
		return params, nil
	}

	return params.CopyWith(func(p *llm.SamplingParams) {
		reduced := int64(float64(p.MaxTokens) * factor)
		if reduced < 1 {
			reduced = 1
		}

		p.MaxTokens = reduced

		if p.MinTokens > p.MaxTokens {
			p.MinTokens = p.MaxTokens
		}
	})
}

// TruncatePrompt shortens text to at most budget characters using policy,
// inserting an ellipsis marker at the cut point (spec.md §4.8).
func TruncatePrompt(text string, budget int, policy llm.TruncationPolicy) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}

	marker := ellipsisMarker
	if budget <= len(marker) {
		return text[:budget]
	}

	avail := budget - len(marker)

	switch policy {
	case llm.TruncateStart:
		return marker + text[len(text)-avail:]
	case llm.TruncateMiddle:
		half := avail / 2
		return text[:half] + marker + text[len(text)-(avail-half):]
	case llm.TruncateEnd:
		return text[:avail] + marker
	default:
		return fmt.Sprintf("%s%s", text[:avail], marker)
	}
}

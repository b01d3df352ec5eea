package llm

import "fmt"

// TruncationPolicy selects where a degraded prompt is cut when it must be
// shortened to fit an error budget (C8 degradation).
type TruncationPolicy string

const (
	TruncateStart  TruncationPolicy = "start"
	TruncateMiddle TruncationPolicy = "middle"
	TruncateEnd    TruncationPolicy = "end"
)

// SamplingParams is the validated, immutable bundle of sampling knobs
// described in spec.md §3. Construct via DefaultSamplingParams or a preset, and
// derive modified copies via CopyWith — never mutate a shared value.
type SamplingParams struct {
	Temperature        float64
	TopP               float64
	TopK               int64
	MaxTokens          int64
	MinTokens          int64
	RepetitionPenalty  float64
	PresencePenalty    float64
	FrequencyPenalty   float64
	StopSequences      []string
	Seed               *int64
}

// DefaultSamplingParams returns the spec.md §3 default bundle.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		Temperature:       1.0,
		TopP:              1.0,
		TopK:              0,
		MaxTokens:         512,
		MinTokens:         0,
		RepetitionPenalty: 1.0,
		PresencePenalty:   0.0,
		FrequencyPenalty:  0.0,
		StopSequences:     nil,
		Seed:              nil,
	}
}

// Presets mirrors the teacher's enum-keyed configuration-variant lookup
// (transformer/anthropic's PlatformType-keyed constructors) applied to
// sampling presets instead of provider platforms.
var Presets = map[string]SamplingParams{
	"default": DefaultSamplingParams(),
	"creative": withOverrides(DefaultSamplingParams(), func(p *SamplingParams) {
		p.Temperature = 1.2
		p.TopP = 0.95
		p.TopK = 50
		p.RepetitionPenalty = 1.1
	}),
	"precise": withOverrides(DefaultSamplingParams(), func(p *SamplingParams) {
		p.Temperature = 0.3
		p.TopP = 0.9
		p.TopK = 20
		p.RepetitionPenalty = 1.05
	}),
	"deterministic": withOverrides(DefaultSamplingParams(), func(p *SamplingParams) {
		seed := int64(42)
		p.Temperature = 0.0
		p.TopP = 1.0
		p.Seed = &seed
	}),
}

func withOverrides(p SamplingParams, fn func(*SamplingParams)) SamplingParams {
	fn(&p)
	return p
}

// Preset looks up a named preset, falling back to the default bundle when
// name is unknown or empty.
func Preset(name string) SamplingParams {
	if p, ok := Presets[name]; ok {
		return p
	}

	return DefaultSamplingParams()
}

// Validate checks every field domain from spec.md §3's SamplingParams
// table.
func (p SamplingParams) Validate() error {
	if p.Temperature < 0.0 || p.Temperature > 2.0 {
		return fmt.Errorf("%w: temperature %v out of range [0, 2]", ErrInvalidInput, p.Temperature)
	}

	if p.TopP < 0.0 || p.TopP > 1.0 {
		return fmt.Errorf("%w: top_p %v out of range [0, 1]", ErrInvalidInput, p.TopP)
	}

	if p.TopK < 0 {
		return fmt.Errorf("%w: top_k %v must be >= 0", ErrInvalidInput, p.TopK)
	}

	if p.MaxTokens < 1 {
		return fmt.Errorf("%w: max_tokens %v must be >= 1", ErrInvalidInput, p.MaxTokens)
	}

	if p.MinTokens < 0 || p.MinTokens > p.MaxTokens {
		return fmt.Errorf("%w: min_tokens %v out of range [0, max_tokens]", ErrInvalidInput, p.MinTokens)
	}

	if p.RepetitionPenalty < 0.0 {
		return fmt.Errorf("%w: repetition_penalty %v must be >= 0", ErrInvalidInput, p.RepetitionPenalty)
	}

	if p.PresencePenalty < -2.0 || p.PresencePenalty > 2.0 {
		return fmt.Errorf("%w: presence_penalty %v out of range [-2, 2]", ErrInvalidInput, p.PresencePenalty)
	}

	if p.FrequencyPenalty < -2.0 || p.FrequencyPenalty > 2.0 {
		return fmt.Errorf("%w: frequency_penalty %v out of range [-2, 2]", ErrInvalidInput, p.FrequencyPenalty)
	}

	if p.Seed != nil && *p.Seed < 0 {
		return fmt.Errorf("%w: seed %v must be >= 0", ErrInvalidInput, *p.Seed)
	}

	return nil
}

// CopyWith applies overrides to a copy of p and re-validates, per spec.md
// §4.4's copy_with contract.
func (p SamplingParams) CopyWith(fn func(*SamplingParams)) (SamplingParams, error) {
	next := p
	fn(&next)

	if err := next.Validate(); err != nil {
		return SamplingParams{}, err
	}

	return next, nil
}

package llm

// ParseMeta carries bookkeeping about a parse pass that doesn't belong in
// the user-facing channel text itself.
type ParseMeta struct {
	TokenCount   int
	ParseMS      int64
	MessageCount int

	// Error records the cause of a swallowed internal parser failure.
	// Empty when parsing encountered nothing worth noting.
	Error string
}

// ParsedResponse is the structured result of running the Harmony parser
// (C3) over a complete token list. Final is never absent; it is the empty
// string when no final-channel content could be recovered.
type ParsedResponse struct {
	Final      string
	Analysis   string
	Commentary string

	// Channels holds any channel text that isn't final/analysis/commentary
	// (e.g. tool_use), keyed by channel name.
	Channels map[string]string

	Meta ParseMeta
}

// EstimateTokensFromText implements the spec.md §9 fallback heuristic
// (len(text)//4) for completion text that arrives without token counts,
// per the resolution of that open question (DESIGN.md OQ2). Prompt tokens
// are always counted as len(prompt.TokenIDs), since this codec always knows
// the prompt.
func EstimateTokensFromText(text string) int64 {
	return int64(len(text) / 4)
}

// GenerationMetrics is the per-generation record described in spec.md §4.7.
type GenerationMetrics struct {
	PromptTokens    int64
	TokensGenerated int64
	LatencyMS       int64
	TTFTMs          *int64
	TokensPerSecond float64
	FinishReason    FinishReason
	TimestampUnix   int64
}

// GenerationResult is the non-streaming outcome of a mediator Generate
// call, owned by the mediator and handed to the façade.
type GenerationResult struct {
	Text            string
	TokensGenerated int64
	PromptTokens    int64
	LatencyMS       int64
	TokensPerSecond float64
	FinishReason    FinishReason

	Analysis   string
	Commentary string
	Channels   map[string]string

	// ToolCalls is populated when FinishReason == FinishToolUse: the
	// best-effort detection (C14) of function-call-shaped JSON in the
	// tool_use/commentary channel. Nil when detection found nothing
	// call-shaped, which is not itself an error.
	ToolCalls []ToolCall

	Metrics GenerationMetrics
}

// StreamEvent is a single unit emitted by the mediator's streaming path.
// The client-facing stream only forwards events where Channel == final,
// until a terminal event (FinishReason != nil).
type StreamEvent struct {
	TokenText      string
	Channel        ChannelName
	IsFinalChannel bool
	DeltaText      string
	FinishReason   *FinishReason
}

// Package harmony implements the Harmony wire codec (C1-C3): building a
// token sequence for a generation turn and parsing the engine's
// channel-tagged token stream back into named channels.
package harmony

import "fmt"

// Token identifies a single vocabulary entry.
type Token uint32

// EngineToken is the concrete, non-reflective token type produced by an
// engine's streaming iterator -- resolves spec.md §9's "reflection / duck
// typing" note by requiring adapters to produce a typed value instead of a
// token.get("token","")-style dictionary.
type EngineToken struct {
	ID   Token
	Text string
}

// SpecialTokenName names one entry of the fixed special-token subset.
type SpecialTokenName string

const (
	TokenStart   SpecialTokenName = "start"
	TokenEnd     SpecialTokenName = "end"
	TokenMessage SpecialTokenName = "message"
	TokenChannel SpecialTokenName = "channel"
	TokenReturn  SpecialTokenName = "return"
	TokenCall    SpecialTokenName = "call"
)

// RoleMarker is a bare role word immediately following <|start|>.
type RoleMarker string

const (
	RoleMarkerSystem    RoleMarker = "system"
	RoleMarkerDeveloper RoleMarker = "developer"
	RoleMarkerUser      RoleMarker = "user"
	RoleMarkerAssistant RoleMarker = "assistant"
	RoleMarkerTool      RoleMarker = "tool"
)

// ChannelMarker is a channel name immediately following <|channel|>.
type ChannelMarker string

const (
	ChannelMarkerAnalysis   ChannelMarker = "analysis"
	ChannelMarkerCommentary ChannelMarker = "commentary"
	ChannelMarkerFinal      ChannelMarker = "final"
	ChannelMarkerToolUse    ChannelMarker = "tool_use"
)

// Tokenizer is the opaque accessor to the model's vocabulary (C1). The
// codec depends only on these three operations.
type Tokenizer interface {
	// Encode turns text into token ids. When allowSpecial is false, any
	// literal "<|...|>" substrings in text are encoded as ordinary text
	// tokens rather than resolved to special tokens.
	Encode(text string, allowSpecial bool) ([]Token, error)

	// Decode turns token ids back into text.
	Decode(ids []Token) (string, error)

	// SpecialID resolves a special token by name. ok is false if the
	// tokenizer cannot answer (e.g. it doesn't expose special-token
	// queries), in which case callers should fall back to
	// DefaultSpecialTokens.
	SpecialID(name SpecialTokenName) (id Token, ok bool)
}

// DefaultSpecialTokens is the compile-time fallback table for tokenizer
// implementations that cannot resolve special tokens by name (spec.md
// §4.1: "implementations that cannot query special tokens by name must
// ship a compile-time table"). The concrete ids are vocabulary-specific;
// callers wiring a real tokenizer should prefer Tokenizer.SpecialID and
// only fall back to this table when SpecialID reports !ok.
var DefaultSpecialTokens = map[SpecialTokenName]Token{
	TokenStart:   200006,
	TokenEnd:     200007,
	TokenMessage: 200008,
	TokenChannel: 200005,
	TokenReturn:  200002,
	TokenCall:    200012,
}

// ResolveSpecial resolves a special token id, preferring the tokenizer's
// own answer and falling back to DefaultSpecialTokens.
func ResolveSpecial(tok Tokenizer, name SpecialTokenName) (Token, error) {
	if id, ok := tok.SpecialID(name); ok {
		return id, nil
	}

	if id, ok := DefaultSpecialTokens[name]; ok {
		return id, nil
	}

	return 0, fmt.Errorf("harmony: no id available for special token %q", name)
}

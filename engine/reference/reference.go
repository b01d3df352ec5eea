// Package reference implements a deterministic, in-process Tokenizer and
// Engine pair. It exists so cmd/gateway can start end-to-end without a
// real matrix-kernel backend wired in (spec.md §1 Non-goals excludes
// model download, quantization and device probing from this repo's
// scope) — grounded on the canned-token Engine stub that
// mediator/mediator_test.go and server/server_test.go use for their own
// tests, paired here with a whitespace-split tokenizer and promoted into a
// runnable package instead of a test-only fixture. It is not a production
// inference backend.
package reference

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/looplj/harmonygate/harmony"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
)

// Tokenizer is a whitespace-level vocabulary: every distinct word is
// assigned the next free id the first time it's seen. It never resolves
// special tokens by name, so callers fall back to harmony.DefaultSpecialTokens
// (harmony/tokens.go's documented fallback path).
type Tokenizer struct {
	mu     sync.Mutex
	wordOf map[harmony.Token]string
	idOf   map[string]harmony.Token
	nextID harmony.Token
}

// New constructs an empty Tokenizer.
func New() *Tokenizer {
	return &Tokenizer{
		wordOf: make(map[harmony.Token]string),
		idOf:   make(map[string]harmony.Token),
		nextID: 1,
	}
}

func (t *Tokenizer) Encode(text string, _ bool) ([]harmony.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	words := strings.Fields(text)
	ids := make([]harmony.Token, 0, len(words))

	for _, w := range words {
		id, ok := t.idOf[w]
		if !ok {
			id = t.nextID
			t.nextID++
			t.idOf[w] = id
			t.wordOf[id] = w
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (t *Tokenizer) Decode(ids []harmony.Token) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	words := make([]string, 0, len(ids))

	for _, id := range ids {
		w, ok := t.wordOf[id]
		if !ok {
			return "", fmt.Errorf("reference: unknown token id %d", id)
		}

		words = append(words, w)
	}

	return strings.Join(words, " "), nil
}

// SpecialID always reports !ok: this vocabulary has no reserved ids, so
// harmony.ResolveSpecial falls back to DefaultSpecialTokens for every
// boundary marker.
func (t *Tokenizer) SpecialID(harmony.SpecialTokenName) (harmony.Token, bool) {
	return 0, false
}

// Engine answers every call by echoing up to the last twelve words of the
// decoded prompt, prefixed with "You said: ", back in a final-channel
// Harmony message. It holds the same
// Tokenizer instance used to build the prompt so it can decode tokenIDs
// back to text.
type Engine struct {
	Tokenizer *Tokenizer
}

// NewEngine constructs an Engine bound to tok.
func NewEngine(tok *Tokenizer) *Engine {
	return &Engine{Tokenizer: tok}
}

func (e *Engine) reply(tokenIDs []harmony.Token) string {
	prompt, err := e.Tokenizer.Decode(tokenIDs)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return "Hello! How can I help you today?"
	}

	return fmt.Sprintf("You said: %s", lastSentence(prompt))
}

func lastSentence(prompt string) string {
	fields := strings.Fields(prompt)
	if len(fields) > 12 {
		fields = fields[len(fields)-12:]
	}

	return strings.Join(fields, " ")
}

// tokens renders a final-channel Harmony message as a sequence of literal
// text EngineTokens, matching the Parser's literal-marker fallback path
// (harmony/parser.go's isSpecial) since this tokenizer never resolves
// special ids.
func tokens(text string) []harmony.EngineToken {
	markers := []string{"<|start|>", "assistant", "<|channel|>", "final", "<|message|>"}
	out := make([]harmony.EngineToken, 0, len(markers)+len(strings.Fields(text))+1)

	for _, m := range markers {
		out = append(out, harmony.EngineToken{Text: m})
	}

	for _, w := range strings.Fields(text) {
		out = append(out, harmony.EngineToken{Text: w + " "})
	}

	out = append(out, harmony.EngineToken{Text: "<|return|>"})

	return out
}

func (e *Engine) Generate(_ context.Context, tokenIDs []harmony.Token, _ llm.SamplingParams) ([]harmony.EngineToken, error) {
	return tokens(e.reply(tokenIDs)), nil
}

func (e *Engine) GenerateStream(_ context.Context, tokenIDs []harmony.Token, _ llm.SamplingParams) (streams.Stream[harmony.EngineToken], error) {
	return streams.SliceStream(tokens(e.reply(tokenIDs))), nil
}

// Ready always reports true: there is no weight-loading phase to wait on.
func (e *Engine) Ready() bool { return true }

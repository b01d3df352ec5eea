package mediator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/engine"
	"github.com/looplj/harmonygate/harmony"
	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
)

// stubTokenizer never resolves special tokens by name, so
// harmony.ResolveSpecial falls back to DefaultSpecialTokens; the canned
// engine tokens carry no ids, so the parser matches boundary markers by
// their literal text.
type stubTokenizer struct{}

func (stubTokenizer) Encode(text string, _ bool) ([]harmony.Token, error) {
	ids := make([]harmony.Token, len(text))
	for i := range text {
		ids[i] = harmony.Token(i + 1)
	}

	return ids, nil
}

func (stubTokenizer) Decode(ids []harmony.Token) (string, error) {
	return "", nil
}

func (stubTokenizer) SpecialID(harmony.SpecialTokenName) (harmony.Token, bool) {
	return 0, false
}

func canned() []harmony.EngineToken {
	text := []string{
		"<|start|>", "assistant", "<|channel|>", "final", "<|message|>", "Hello", "<|return|>",
	}

	out := make([]harmony.EngineToken, len(text))
	for i, t := range text {
		out[i] = harmony.EngineToken{Text: t}
	}

	return out
}

type stubEngine struct {
	tokens []harmony.EngineToken
	err    error
}

func (s *stubEngine) Generate(context.Context, []harmony.Token, llm.SamplingParams) ([]harmony.EngineToken, error) {
	return s.tokens, s.err
}

func (s *stubEngine) GenerateStream(context.Context, []harmony.Token, llm.SamplingParams) (streams.Stream[harmony.EngineToken], error) {
	if s.err != nil {
		return nil, s.err
	}

	return streams.SliceStream(s.tokens), nil
}

func newTestMediator(t *testing.T, eng engine.Engine) *Mediator {
	t.Helper()

	m, err := New(Config{
		Tokenizer: stubTokenizer{},
		Engine:    eng,
		Lock:      engine.NewLock(),
	})
	require.NoError(t, err)

	return m
}

func testRequest() *llm.Request {
	return &llm.Request{
		RequestID:       "req-1",
		Messages:        []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Params:          llm.DefaultSamplingParams(),
		KnowledgeCutoff: "2024-06",
		CurrentDate:     "2026-07-31",
	}
}

func TestMediator_Generate(t *testing.T) {
	m := newTestMediator(t, &stubEngine{tokens: canned()})

	result, err := m.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Hello", result.Text)
	assert.Equal(t, llm.FinishStop, result.FinishReason)
	assert.Equal(t, int64(len(canned())), result.TokensGenerated)
}

func cannedToolCall() []harmony.EngineToken {
	text := []string{
		"<|start|>", "assistant", "<|channel|>", "tool_use", "<|message|>",
		`{"name":"get_weather","arguments":{"city":"Tokyo"}}`, "<|call|>",
	}

	out := make([]harmony.EngineToken, len(text))
	for i, t := range text {
		out[i] = harmony.EngineToken{Text: t}
	}

	return out
}

func TestMediator_Generate_ToolCallDetection(t *testing.T) {
	m := newTestMediator(t, &stubEngine{tokens: cannedToolCall()})

	req := testRequest()
	req.CaptureReasoning = false // the default: must not suppress tool_use detection.

	result, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, llm.FinishToolUse, result.FinishReason)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "get_weather", result.ToolCalls[0].Name)
}

func TestMediator_Generate_InvalidInput(t *testing.T) {
	m := newTestMediator(t, &stubEngine{tokens: canned()})

	req := testRequest()
	req.Messages = nil

	_, err := m.Generate(context.Background(), req)
	assert.ErrorIs(t, err, llm.ErrInvalidInput)
}

func TestMediator_GenerateStream(t *testing.T) {
	m := newTestMediator(t, &stubEngine{tokens: canned()})

	stream, err := m.GenerateStream(context.Background(), testRequest())
	require.NoError(t, err)

	var (
		deltas   []string
		terminal *llm.FinishReason
	)

	for stream.Next() {
		ev := stream.Current()
		if ev.FinishReason != nil {
			terminal = ev.FinishReason
			continue
		}

		deltas = append(deltas, ev.DeltaText)
	}

	require.NoError(t, stream.Err())
	require.NotNil(t, terminal)
	assert.Equal(t, llm.FinishStop, *terminal)
	assert.Equal(t, []string{"Hello"}, deltas)

	// the engine lock must be free again once the stream has drained.
	assert.Equal(t, 0, m.cfg.Lock.InFlight())
}

func TestMediator_GenerateStream_SingleTerminalEvent(t *testing.T) {
	m := newTestMediator(t, &stubEngine{tokens: canned()})

	stream, err := m.GenerateStream(context.Background(), testRequest())
	require.NoError(t, err)

	var terminalCount int

	for stream.Next() {
		if ev := stream.Current(); ev.FinishReason != nil {
			terminalCount++
		}
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, 1, terminalCount, "well-formed <|return|> stream must emit exactly one terminal event")
}

func TestMediator_GenerateStream_Cancel(t *testing.T) {
	// A long canned stream so Cancel has room to land before exhaustion.
	tokens := append(canned(), canned()...)
	m := newTestMediator(t, &stubEngine{tokens: tokens})

	stream, err := m.GenerateStream(context.Background(), testRequest())
	require.NoError(t, err)

	require.True(t, stream.Next())
	m.Cancel()

	var terminal *llm.FinishReason
	for stream.Next() {
		if ev := stream.Current(); ev.FinishReason != nil {
			terminal = ev.FinishReason
			break
		}
	}

	require.NotNil(t, terminal)
	assert.Equal(t, llm.FinishCancelled, *terminal)
}

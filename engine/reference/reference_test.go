package reference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/llm"
)

func TestTokenizer_EncodeDecodeRoundTrip(t *testing.T) {
	tok := New()

	ids, err := tok.Encode("hello there friend", true)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	text, err := tok.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "hello there friend", text)
}

func TestTokenizer_SpecialIDAlwaysMisses(t *testing.T) {
	tok := New()

	_, ok := tok.SpecialID("start")
	assert.False(t, ok)
}

func TestEngine_GenerateEchoesPrompt(t *testing.T) {
	tok := New()

	ids, err := tok.Encode("what is the weather", true)
	require.NoError(t, err)

	eng := NewEngine(tok)

	out, err := eng.Generate(context.Background(), ids, llm.SamplingParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	var text string
	for _, tk := range out {
		text += tk.Text
	}

	assert.Contains(t, text, "what is the weather")
	assert.Contains(t, text, "<|channel|>")
	assert.Contains(t, text, "final")
}

func TestEngine_GenerateStream(t *testing.T) {
	tok := New()

	ids, err := tok.Encode("hi", true)
	require.NoError(t, err)

	eng := NewEngine(tok)

	stream, err := eng.GenerateStream(context.Background(), ids, llm.SamplingParams{})
	require.NoError(t, err)
	defer stream.Close()

	var count int
	for stream.Next() {
		count++
	}

	require.NoError(t, stream.Err())
	assert.Greater(t, count, 0)
}

func TestEngine_Ready(t *testing.T) {
	eng := NewEngine(New())
	assert.True(t, eng.Ready())
}

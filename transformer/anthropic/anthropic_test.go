package anthropic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
)

func TestParseTextUnion(t *testing.T) {
	assert.Equal(t, "", ParseTextUnion(nil))
	assert.Equal(t, "hi", ParseTextUnion(json.RawMessage(`"hi"`)))
	assert.Equal(t, "ab", ParseTextUnion(json.RawMessage(`[{"type":"text","text":"a"},{"type":"text","text":"b"},{"type":"image","text":"ignored"}]`)))
}

func TestDialect_TransformRequest(t *testing.T) {
	d := New("claude-harmony", "2024-06", "2026-07-31")

	body := []byte(`{"model":"claude-harmony","system":"be terse","messages":[{"role":"user","content":"hi"}],"max_tokens":256,"stop_sequences":["END"]}`)

	req, err := d.TransformRequest(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, llm.APIFormatAnthropicMessage, req.APIFormat)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be terse", req.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, int64(256), req.Params.MaxTokens)
	assert.Equal(t, []string{"END"}, req.Params.StopSequences)

	wantMessages := []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "hi"},
	}
	if diff := cmp.Diff(wantMessages, req.Messages); diff != "" {
		t.Errorf("unexpected messages (-want +got):\n%s", diff)
	}
}

func TestDialect_TransformRequest_MissingMaxTokens(t *testing.T) {
	d := New("claude-harmony", "2024-06", "2026-07-31")

	_, err := d.TransformRequest(context.Background(), []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`))
	assert.Error(t, err)
}

func TestDialect_TransformResponse(t *testing.T) {
	d := New("claude-harmony", "2024-06", "2026-07-31")

	out, err := d.TransformResponse(context.Background(), &llm.GenerationResult{
		Text:            "hello",
		TokensGenerated: 3,
		PromptTokens:    5,
		FinishReason:    llm.FinishLength,
	})
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "max_tokens", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hello", resp.Content[0].Text)
	assert.Equal(t, int64(5), resp.Usage.InputTokens)
}

func TestDialect_TransformResponse_Thinking(t *testing.T) {
	d := New("claude-harmony", "2024-06", "2026-07-31")

	out, err := d.TransformResponse(context.Background(), &llm.GenerationResult{
		Text:         "hello",
		Analysis:     "reasoning trace",
		FinishReason: llm.FinishStop,
	})
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Contains(t, resp.Content[0].Text, "<thinking>reasoning trace</thinking>")
	assert.Contains(t, resp.Content[0].Text, "hello")
}

func TestDialect_TransformStream(t *testing.T) {
	d := New("claude-harmony", "2024-06", "2026-07-31")

	stop := llm.FinishStop
	events := streams.SliceStream([]llm.StreamEvent{
		{IsFinalChannel: true, DeltaText: "He"},
		{IsFinalChannel: true, DeltaText: "llo"},
		{FinishReason: &stop},
	})

	out, err := d.TransformStream(context.Background(), events)
	require.NoError(t, err)

	frames, err := streams.Collect(out)
	require.NoError(t, err)

	var names []string
	for _, f := range frames {
		names = append(names, f.Event)
	}

	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, names)
}

func TestDialect_TransformError(t *testing.T) {
	d := New("claude-harmony", "2024-06", "2026-07-31")

	status, body := d.TransformError(context.Background(), llm.ErrContextOverflow)
	assert.Equal(t, 400, status)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "error", env.Type)
	assert.Equal(t, "context_overflow", env.Error.Type)
}

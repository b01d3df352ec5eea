package openai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
	"github.com/looplj/harmonygate/transformer"
)

func TestParseStopSequences(t *testing.T) {
	assert.Nil(t, ParseStopSequences(nil))
	assert.Equal(t, []string{"STOP"}, ParseStopSequences(json.RawMessage(`"STOP"`)))
	assert.Equal(t, []string{"a", "b"}, ParseStopSequences(json.RawMessage(`["a","b"]`)))
}

func TestDialect_TransformRequest(t *testing.T) {
	d := New("gpt-harmony", "2024-06", "2026-07-31")

	body := []byte(`{"model":"gpt-harmony","messages":[{"role":"user","content":"hi"}],"temperature":0.5,"stop":["END"],"stream":true}`)

	req, err := d.TransformRequest(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, llm.APIFormatOpenAIChatCompletion, req.APIFormat)
	assert.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, 0.5, req.Params.Temperature)
	assert.Equal(t, []string{"END"}, req.Params.StopSequences)
	assert.True(t, req.Stream)
	assert.Equal(t, "2024-06", req.KnowledgeCutoff)
}

func TestDialect_TransformRequest_Invalid(t *testing.T) {
	d := New("gpt-harmony", "2024-06", "2026-07-31")

	_, err := d.TransformRequest(context.Background(), []byte(`{"model":"","messages":[]}`))
	assert.ErrorIs(t, err, transformer.ErrInvalidRequest)
}

func TestDialect_TransformResponse(t *testing.T) {
	d := New("gpt-harmony", "2024-06", "2026-07-31")

	out, err := d.TransformResponse(context.Background(), &llm.GenerationResult{
		Text:            "hello",
		TokensGenerated: 3,
		PromptTokens:    5,
		FinishReason:    llm.FinishStop,
	})
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "gpt-harmony", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", *resp.Choices[0].FinishReason)
	assert.Equal(t, int64(8), resp.Usage.TotalTokens)
	assert.Equal(t, "fp_gpt-harmony_2024-06", resp.SystemFingerprint)
}

func TestDialect_TransformStream(t *testing.T) {
	d := New("gpt-harmony", "2024-06", "2026-07-31")

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
	require.Len(t, frames, 5)

	var first StreamChunk
	require.NoError(t, json.Unmarshal(frames[0].Data, &first))
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)

	var second StreamChunk
	require.NoError(t, json.Unmarshal(frames[1].Data, &second))
	assert.Equal(t, "He", second.Choices[0].Delta.Content)

	var terminal StreamChunk
	require.NoError(t, json.Unmarshal(frames[3].Data, &terminal))
	assert.Equal(t, "stop", *terminal.Choices[0].FinishReason)

	assert.Equal(t, "[DONE]", string(frames[4].Data))
}

func TestDialect_TransformError(t *testing.T) {
	d := New("gpt-harmony", "2024-06", "2026-07-31")

	status, body := d.TransformError(context.Background(), llm.ErrInvalidInput)
	assert.Equal(t, 400, status)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "invalid_request_error", env.Error.Type)
}

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/harmonygate/llm"
)

func TestDetect_SingleCall(t *testing.T) {
	parsed := &llm.ParsedResponse{
		Channels: map[string]string{"tool_use": `{"name":"get_weather","arguments":{"city":"sf"}}`},
	}

	calls, err := Detect(parsed)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"sf"}`, calls[0].Arguments)
}

func TestDetect_MultipleCalls(t *testing.T) {
	parsed := &llm.ParsedResponse{
		Channels: map[string]string{
			"tool_use": `{"tool_calls":[{"id":"call_1","name":"a","arguments":{}},{"id":"call_2","name":"b","arguments":{}}]}`,
		},
	}

	calls, err := Detect(parsed)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "b", calls[1].Name)
}

func TestDetect_MalformedJSONRepaired(t *testing.T) {
	parsed := &llm.ParsedResponse{
		Channels: map[string]string{"tool_use": `{name:"get_weather", arguments:{"city":"sf",}}`},
	}

	calls, err := Detect(parsed)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
}

func TestDetect_NoToolCallReturnsNilNoError(t *testing.T) {
	parsed := &llm.ParsedResponse{Final: "just a regular answer"}

	calls, err := Detect(parsed)
	require.NoError(t, err)
	assert.Nil(t, calls)
}

func TestDetect_CommentaryFallback(t *testing.T) {
	parsed := &llm.ParsedResponse{Commentary: `{"name":"lookup","arguments":{}}`}

	calls, err := Detect(parsed)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
}

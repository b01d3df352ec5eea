package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/looplj/harmonygate/llm"
)

func weatherTool() llm.Tool {
	return llm.Tool{
		Name: "get_weather",
		Parameters: []llm.ToolParam{
			{Name: "city", Type: "string", Required: true},
			{Name: "units", Type: "string"},
		},
	}
}

func TestValidateArguments_Valid(t *testing.T) {
	call := llm.ToolCall{Name: "get_weather", Arguments: `{"city":"sf","units":"celsius"}`}
	assert.NoError(t, ValidateArguments(call, weatherTool()))
}

func TestValidateArguments_MissingRequired(t *testing.T) {
	call := llm.ToolCall{Name: "get_weather", Arguments: `{"units":"celsius"}`}
	assert.Error(t, ValidateArguments(call, weatherTool()))
}

func TestValidateArguments_WrongType(t *testing.T) {
	call := llm.ToolCall{Name: "get_weather", Arguments: `{"city":42}`}
	assert.Error(t, ValidateArguments(call, weatherTool()))
}

func TestValidateArguments_MalformedJSON(t *testing.T) {
	call := llm.ToolCall{Name: "get_weather", Arguments: `not json`}
	assert.Error(t, ValidateArguments(call, weatherTool()))
}

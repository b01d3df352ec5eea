// Package anthropic implements the Anthropic messages dialect of the API
// façade (C9), grounded on the teacher's llm/transformer/anthropic package
// structure with its remote-provider outbound half dropped: this gateway
// renders responses for a local engine rather than forwarding HTTP
// requests to Anthropic's own API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
	"github.com/looplj/harmonygate/transformer"
)

const thinkingOpenTag = "<thinking>"
const thinkingCloseTag = "</thinking>\n\n"

var finishReasonTable = map[llm.FinishReason]string{
	llm.FinishStop:      "end_turn",
	llm.FinishLength:    "max_tokens",
	llm.FinishToolUse:   "tool_use",
	llm.FinishError:     "error",
	llm.FinishCancelled: "cancelled",
}

// Dialect implements transformer.Dialect for the Anthropic messages wire
// format.
type Dialect struct {
	ModelName       string
	KnowledgeCutoff string
	CurrentDate     string
}

// New constructs an Anthropic Dialect.
func New(modelName, knowledgeCutoff, currentDate string) *Dialect {
	return &Dialect{ModelName: modelName, KnowledgeCutoff: knowledgeCutoff, CurrentDate: currentDate}
}

func (d *Dialect) APIFormat() llm.APIFormat {
	return llm.APIFormatAnthropicMessage
}

// ParseTextUnion resolves spec.md §4.9's "string or list of typed text
// blocks" union (shared by Message.Content and Request.System), honoring
// only type:"text" blocks and concatenating them, mirroring the teacher's
// shared.IsAnthropicRedactedContent-style content-shape helpers.
func ParseTextUnion(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	result := gjson.ParseBytes(raw)

	if result.Type == gjson.String {
		return result.String()
	}

	if result.IsArray() {
		var parts []string

		result.ForEach(func(_, v gjson.Result) bool {
			if v.Get("type").String() == "text" {
				parts = append(parts, v.Get("text").String())
			}

			return true
		})

		return strings.Join(parts, "")
	}

	return ""
}

// TransformRequest parses a raw Anthropic messages body into a
// dialect-neutral llm.Request, folding system into a synthetic first
// system message (spec.md §4.9).
func (d *Dialect) TransformRequest(_ context.Context, body []byte) (*llm.Request, error) {
	var req Request

	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", transformer.ErrInvalidRequest, err)
	}

	if req.Model == "" {
		return nil, fmt.Errorf("%w: model is required", transformer.ErrInvalidRequest)
	}

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages are required", transformer.ErrInvalidRequest)
	}

	if req.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive", transformer.ErrInvalidRequest)
	}

	var messages []llm.Message

	if system := ParseTextUnion(req.System); system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}

	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: ParseTextUnion(m.Content)})
	}

	params := llm.DefaultSamplingParams()
	params.MaxTokens = req.MaxTokens

	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}

	if req.TopP != nil {
		params.TopP = *req.TopP
	}

	params.StopSequences = req.StopSequences

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", transformer.ErrInvalidRequest, err)
	}

	return &llm.Request{
		APIFormat:       llm.APIFormatAnthropicMessage,
		Messages:        messages,
		Params:          params,
		Stream:          req.Stream,
		KnowledgeCutoff: d.KnowledgeCutoff,
		CurrentDate:     d.CurrentDate,
	}, nil
}

// renderText prepends the analysis channel wrapped in <thinking> tags. The
// mediator only populates Analysis when the originating request opted into
// reasoning capture, so this needs no flag of its own.
func renderText(result *llm.GenerationResult) string {
	if result.Analysis == "" {
		return result.Text
	}

	return thinkingOpenTag + result.Analysis + thinkingCloseTag + result.Text
}

// TransformResponse renders a complete GenerationResult as a non-streaming
// Anthropic messages response.
func (d *Dialect) TransformResponse(_ context.Context, result *llm.GenerationResult) ([]byte, error) {
	resp := Response{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Content:    []ContentBlock{{Type: "text", Text: renderText(result)}},
		Model:      d.ModelName,
		StopReason: transformer.MapFinishReason(result.FinishReason, finishReasonTable),
		Usage: Usage{
			InputTokens:  result.PromptTokens,
			OutputTokens: result.TokensGenerated,
		},
	}

	return json.Marshal(resp)
}

// TransformStream renders mediator StreamEvents as the Anthropic multi-event
// SSE sequence: message_start, content_block_start, a content_block_delta
// per text delta, content_block_stop, message_delta, message_stop.
func (d *Dialect) TransformStream(
	_ context.Context,
	events streams.Stream[llm.StreamEvent],
) (streams.Stream[transformer.Frame], error) {
	id := "msg_" + uuid.NewString()
	started := false

	frame := func(event string, v any) (transformer.Frame, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return transformer.Frame{}, err
		}

		return transformer.Frame{Event: event, Data: data}, nil
	}

	return streams.ExpandErr(events, func(ev llm.StreamEvent) ([]transformer.Frame, error) {
		var frames []transformer.Frame

		if ev.FinishReason != nil {
			stopFrame, err := frame("content_block_stop", ContentBlockStopEvent{Type: "content_block_stop", Index: 0})
			if err != nil {
				return nil, err
			}

			deltaFrame, err := frame("message_delta", MessageDeltaEvent{
				Type:  "message_delta",
				Delta: MessageDelta{StopReason: transformer.MapFinishReason(*ev.FinishReason, finishReasonTable)},
			})
			if err != nil {
				return nil, err
			}

			endFrame, err := frame("message_stop", MessageStopEvent{Type: "message_stop"})
			if err != nil {
				return nil, err
			}

			frames = append(frames, stopFrame, deltaFrame, endFrame)

			return frames, nil
		}

		if !ev.IsFinalChannel || ev.DeltaText == "" {
			return nil, nil
		}

		if !started {
			started = true

			startFrame, err := frame("message_start", MessageStartEvent{
				Type: "message_start",
				Message: ResponseHeader{
					ID:      id,
					Type:    "message",
					Role:    "assistant",
					Content: []ContentBlock{},
					Model:   d.ModelName,
				},
			})
			if err != nil {
				return nil, err
			}

			blockFrame, err := frame("content_block_start", ContentBlockStartEvent{
				Type:         "content_block_start",
				Index:        0,
				ContentBlock: ContentBlock{Type: "text", Text: ""},
			})
			if err != nil {
				return nil, err
			}

			frames = append(frames, startFrame, blockFrame)
		}

		deltaFrame, err := frame("content_block_delta", ContentBlockDeltaEvent{
			Type:  "content_block_delta",
			Index: 0,
			Delta: TextDelta{Type: "text_delta", Text: ev.DeltaText},
		})
		if err != nil {
			return nil, err
		}

		frames = append(frames, deltaFrame)

		return frames, nil
	}), nil
}

// TransformError renders err as an Anthropic-shaped error envelope.
func (d *Dialect) TransformError(_ context.Context, err error) (int, []byte) {
	status, kind, code, msg := transformer.ClassifyForHTTP(err)

	body, _ := json.Marshal(ErrorEnvelope{Type: "error", Error: ErrorDetail{Type: kind, Message: msg, Code: code}})

	return status, body
}

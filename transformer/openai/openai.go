// Package openai implements the OpenAI chat completions dialect of the API
// façade (C9), grounded on the teacher's llm/transformer/openai package
// (InboundTransformer/OutboundTransformer method shapes collapsed onto a
// single Dialect since this gateway has no remote provider to forward to).
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/looplj/harmonygate/llm"
	"github.com/looplj/harmonygate/streams"
	"github.com/looplj/harmonygate/transformer"
)

var finishReasonTable = map[llm.FinishReason]string{
	llm.FinishStop:      "stop",
	llm.FinishLength:    "length",
	llm.FinishToolUse:   "tool_use",
	llm.FinishError:     "error",
	llm.FinishCancelled: "cancelled",
}

// Dialect implements transformer.Dialect for the OpenAI chat completions
// wire format.
type Dialect struct {
	ModelName       string
	KnowledgeCutoff string
	CurrentDate     string
}

// New constructs an OpenAI Dialect. modelName is reported back in every
// response; knowledgeCutoff/currentDate feed the Harmony system block via
// the resulting llm.Request.
func New(modelName, knowledgeCutoff, currentDate string) *Dialect {
	return &Dialect{ModelName: modelName, KnowledgeCutoff: knowledgeCutoff, CurrentDate: currentDate}
}

func (d *Dialect) APIFormat() llm.APIFormat {
	return llm.APIFormatOpenAIChatCompletion
}

// ParseStopSequences resolves spec.md §4.9's "stop may be string or list"
// union using gjson rather than a hand-rolled UnmarshalJSON, mirroring the
// teacher's gjson.GetBytes-based loose-JSON reads (e.g.
// llm/transformer/anthropic/claudecode/utils.go).
func ParseStopSequences(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	result := gjson.ParseBytes(raw)

	switch {
	case result.IsArray():
		var out []string

		result.ForEach(func(_, v gjson.Result) bool {
			out = append(out, v.String())
			return true
		})

		return out
	case result.Type == gjson.String:
		return []string{result.String()}
	default:
		return nil
	}
}

// TransformRequest parses a raw OpenAI chat completions body into a
// dialect-neutral llm.Request (spec.md §4.9).
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

	messages := make([]llm.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}

	params := llm.DefaultSamplingParams()

	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}

	if req.TopP != nil {
		params.TopP = *req.TopP
	}

	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}

	if req.PresencePenalty != nil {
		params.PresencePenalty = *req.PresencePenalty
	}

	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = *req.FrequencyPenalty
	}

	params.StopSequences = ParseStopSequences(req.Stop)

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", transformer.ErrInvalidRequest, err)
	}

	return &llm.Request{
		APIFormat:       llm.APIFormatOpenAIChatCompletion,
		Messages:        messages,
		Params:          params,
		Stream:          req.Stream,
		KnowledgeCutoff: d.KnowledgeCutoff,
		CurrentDate:     d.CurrentDate,
	}, nil
}

// TransformResponse renders a complete GenerationResult as a non-streaming
// chat.completion response.
func (d *Dialect) TransformResponse(_ context.Context, result *llm.GenerationResult) ([]byte, error) {
	reason := transformer.MapFinishReason(result.FinishReason, finishReasonTable)

	resp := Response{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   d.ModelName,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ResponseMessage{Role: "assistant", Content: result.Text},
				FinishReason: &reason,
			},
		},
		Usage: &Usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.TokensGenerated,
			TotalTokens:      result.PromptTokens + result.TokensGenerated,
		},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	// system_fingerprint is left unset on the Response struct (the field is
	// omitted when empty) and patched onto the marshaled envelope the same way the teacher's channel-override
	// layer patches arbitrary keys into an outbound body
	// (internal/server/orchestrator/override.go's sjson.SetBytes).
	return sjson.SetBytes(raw, "system_fingerprint", d.fingerprint())
}

// fingerprint derives a stable, non-secret identifier for the model/cutoff
// pairing this Dialect was constructed with.
func (d *Dialect) fingerprint() string {
	return fmt.Sprintf("fp_%s_%s", d.ModelName, d.KnowledgeCutoff)
}

// TransformStream renders mediator StreamEvents as chat.completion.chunk SSE
// frames terminated by "[DONE]" (spec.md §4.9): the first chunk carries only
// delta.role, subsequent chunks carry delta.content, and the terminal chunk
// carries an empty delta plus finish_reason.
func (d *Dialect) TransformStream(
	_ context.Context,
	events streams.Stream[llm.StreamEvent],
) (streams.Stream[transformer.Frame], error) {
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	sentRole := false

	chunk := func(choice Choice) (transformer.Frame, error) {
		data, err := json.Marshal(StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   d.ModelName,
			Choices: []Choice{choice},
		})
		if err != nil {
			return transformer.Frame{}, err
		}

		return transformer.Frame{Data: data}, nil
	}

	return streams.ExpandErr(events, func(ev llm.StreamEvent) ([]transformer.Frame, error) {
		var frames []transformer.Frame

		if ev.FinishReason != nil {
			reason := transformer.MapFinishReason(*ev.FinishReason, finishReasonTable)

			f, err := chunk(Choice{Index: 0, Delta: &Delta{}, FinishReason: &reason})
			if err != nil {
				return nil, err
			}

			frames = append(frames, f, transformer.Frame{Data: []byte("[DONE]")})

			return frames, nil
		}

		if !ev.IsFinalChannel || ev.DeltaText == "" {
			return nil, nil
		}

		if !sentRole {
			sentRole = true

			roleFrame, err := chunk(Choice{Index: 0, Delta: &Delta{Role: "assistant"}})
			if err != nil {
				return nil, err
			}

			frames = append(frames, roleFrame)
		}

		contentFrame, err := chunk(Choice{Index: 0, Delta: &Delta{Content: ev.DeltaText}})
		if err != nil {
			return nil, err
		}

		frames = append(frames, contentFrame)

		return frames, nil
	}), nil
}

// TransformError renders err as an OpenAI-shaped error envelope.
func (d *Dialect) TransformError(_ context.Context, err error) (int, []byte) {
	status, kind, code, msg := transformer.ClassifyForHTTP(err)

	body, _ := json.Marshal(ErrorEnvelope{Error: ErrorDetail{Message: msg, Type: kind, Code: code}})

	return status, body
}

package harmony

import (
	"fmt"
	"strings"

	"github.com/looplj/harmonygate/llm"
)

// Wire literal markers (spec.md §6 "Harmony wire format").
const (
	litStart   = "<|start|>"
	litEnd     = "<|end|>"
	litMessage = "<|message|>"
	litChannel = "<|channel|>"
	litReturn  = "<|return|>"
	litCall    = "<|call|>"
)

const identityLine = "You are ChatGPT, a large language model trained by OpenAI."

const defaultDeveloperInstructions = "You are a helpful AI assistant."

// PromptMeta carries bookkeeping about a built prompt that isn't part of
// the token sequence itself.
type PromptMeta struct {
	MessageCount int
	HasTools     bool
	Reasoning    llm.ReasoningEffort
}

// Prompt is the output of Build: the sole input the engine consumes, plus
// a debug rendering that exists only for logging.
type Prompt struct {
	TokenIDs []Token
	TextDebug string
	Meta      PromptMeta
}

// BuildParams bundles everything Build needs to render a generation turn.
type BuildParams struct {
	Tokenizer Tokenizer

	Messages []llm.Message
	Tools    []llm.Tool

	Reasoning       llm.ReasoningEffort
	KnowledgeCutoff string
	CurrentDate     string

	// RouteToolCallsToToolUse adds the system-block line declaring that
	// tool calls are routed onto the tool_use channel (spec.md §4.2.1).
	RouteToolCallsToToolUse bool
}

// Build composes the system, developer, and conversation blocks followed
// by an open assistant generation prompt, and encodes the result (C2).
func Build(params BuildParams) (*Prompt, error) {
	if params.KnowledgeCutoff == "" {
		return nil, fmt.Errorf("%w: knowledge_cutoff is empty", llm.ErrInvalidInput)
	}

	if params.CurrentDate == "" {
		return nil, fmt.Errorf("%w: current_date is empty", llm.ErrInvalidInput)
	}

	if err := llm.ValidateMessages(params.Messages); err != nil {
		return nil, err
	}

	for _, t := range params.Tools {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	var b strings.Builder

	writeSystemBlock(&b, params)
	writeDeveloperBlock(&b, params)
	writeConversationBlock(&b, params.Messages)
	writeGenerationPrompt(&b)

	text := b.String()

	tokenIDs, err := params.Tokenizer.Encode(text, true)
	if err != nil {
		return nil, fmt.Errorf("harmony: failed to encode prompt: %w", err)
	}

	return &Prompt{
		TokenIDs:  tokenIDs,
		TextDebug: text,
		Meta: PromptMeta{
			MessageCount: len(params.Messages),
			HasTools:     len(params.Tools) > 0,
			Reasoning:    params.Reasoning,
		},
	}, nil
}

func writeSystemBlock(b *strings.Builder, params BuildParams) {
	b.WriteString(litStart)
	b.WriteString(string(RoleMarkerSystem))
	b.WriteString(litMessage)
	b.WriteString(identityLine)
	b.WriteString("\n")
	fmt.Fprintf(b, "Knowledge cutoff: %s\n", params.KnowledgeCutoff)
	fmt.Fprintf(b, "Current date: %s\n", params.CurrentDate)
	b.WriteString("\n")
	fmt.Fprintf(b, "Reasoning: %s\n", params.Reasoning)
	b.WriteString("\n")
	b.WriteString("# Valid channels: analysis, commentary, final. Channel must be included for every message.")

	if params.RouteToolCallsToToolUse {
		b.WriteString("\nCalls to any tool must be routed on the tool_use channel.")
	}

	b.WriteString(litEnd)
}

func writeDeveloperBlock(b *strings.Builder, params BuildParams) {
	instructions := defaultDeveloperInstructions
	if sys, ok := llm.FirstSystemMessage(params.Messages); ok {
		instructions = sys
	}

	b.WriteString(litStart)
	b.WriteString(string(RoleMarkerDeveloper))
	b.WriteString(litMessage)
	b.WriteString("# Instructions\n")
	b.WriteString(instructions)

	if len(params.Tools) > 0 {
		b.WriteString("\n\n# Tools\n")

		for _, t := range params.Tools {
			writeToolSignature(b, t)
		}
	}

	b.WriteString(litEnd)
}

func writeToolSignature(b *strings.Builder, t llm.Tool) {
	b.WriteString("function ")
	b.WriteString(t.Name)
	b.WriteString("(")

	for i, p := range t.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(p.Name)

		if !p.Required {
			b.WriteString("?")
		}

		b.WriteString(": ")
		b.WriteString(p.Type)

		if p.Description != "" {
			b.WriteString(" // ")
			b.WriteString(p.Description)
		}
	}

	b.WriteString(")")

	if t.Description != "" {
		b.WriteString(" // ")
		b.WriteString(t.Description)
	}

	b.WriteString("\n")
}

func writeConversationBlock(b *strings.Builder, messages []llm.Message) {
	for _, m := range messages {
		switch m.Role {
		case llm.RoleUser:
			b.WriteString(litStart)
			b.WriteString(string(RoleMarkerUser))
			b.WriteString(litMessage)
			b.WriteString(m.Content)
			b.WriteString(litEnd)
		case llm.RoleAssistant:
			b.WriteString(litStart)
			b.WriteString(string(RoleMarkerAssistant))
			b.WriteString(litChannel)
			b.WriteString(string(ChannelMarkerFinal))
			b.WriteString(litMessage)
			b.WriteString(m.Content)
			b.WriteString(litEnd)
		case llm.RoleSystem:
			// Already folded into the developer block.
		case llm.RoleDeveloper, llm.RoleTool:
			b.WriteString(litStart)
			b.WriteString(string(m.Role))
			b.WriteString(litMessage)
			b.WriteString(m.Content)
			b.WriteString(litEnd)
		}
	}
}

func writeGenerationPrompt(b *strings.Builder) {
	b.WriteString(litStart)
	b.WriteString(string(RoleMarkerAssistant))
}

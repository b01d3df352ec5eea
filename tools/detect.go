// Package tools implements best-effort tool-call detection (C14) out of a
// parsed generation's tool_use/commentary channel text. Detection only —
// dispatch is explicitly out of scope (spec.md §1 Non-goals), mirroring the
// teacher's llm/tools CLI, which treats tool-call payloads as opaque JSON
// blobs to read and convert, never execute.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/looplj/harmonygate/llm"
)

// candidate is the loosely-typed shape a detected tool call payload is
// expected to conform to: either a single {"name", "arguments"} object, or
// a {"tool_calls": [...]} envelope wrapping several.
type candidate struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	ToolCalls []candidate     `json:"tool_calls"`
}

// Detect scans a parsed response's tool_use/commentary channel text for
// function-call-shaped JSON, repairing common malformations (trailing
// commas, missing quotes) before parsing. It returns nil, nil when the
// channel holds no tool-call-shaped payload — this is the common case, not
// an error.
func Detect(parsed *llm.ParsedResponse) ([]llm.ToolCall, error) {
	if parsed == nil {
		return nil, nil
	}

	text := toolChannelText(parsed)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		// Malformed beyond repair: per the parser's must-never-throw
		// policy, detection failures are swallowed rather than surfaced.
		return nil, nil
	}

	var top candidate
	if err := json.Unmarshal([]byte(repaired), &top); err != nil {
		return nil, nil
	}

	calls := flatten(top)
	if len(calls) == 0 {
		return nil, nil
	}

	out := make([]llm.ToolCall, 0, len(calls))

	for i, c := range calls {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}

		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}

		out = append(out, llm.ToolCall{
			ID:        id,
			Name:      c.Name,
			Arguments: string(c.Arguments),
		})
	}

	return out, nil
}

func flatten(c candidate) []candidate {
	if len(c.ToolCalls) > 0 {
		return c.ToolCalls
	}

	if c.Name == "" {
		return nil
	}

	return []candidate{c}
}

// toolChannelText prefers the dedicated tool_use channel, falling back to
// commentary (the channel OpenAI-style function-calling Harmony traces
// often use instead).
func toolChannelText(parsed *llm.ParsedResponse) string {
	if text, ok := parsed.Channels["tool_use"]; ok && text != "" {
		return text
	}

	return parsed.Commentary
}

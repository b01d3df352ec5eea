package tools

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/looplj/harmonygate/llm"
)

// BuildSchema renders a declared Tool's flat parameter list as a
// jsonschema.Schema object type, the same schema shape the teacher's
// gemini inbound converter walks with xjson.Transform, built here instead
// of transformed.
func BuildSchema(tool llm.Tool) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(tool.Parameters)),
	}

	for _, p := range tool.Parameters {
		propType := p.Type
		if propType == "" {
			propType = "string"
		}

		schema.Properties[p.Name] = &jsonschema.Schema{Type: propType}

		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}

	return schema
}

// ValidateArguments checks a detected ToolCall's argument payload against
// the declared Tool's parameter schema. Called out as an optional,
// best-effort step by spec.md §4.9's "dispatch is out of scope" note — a
// caller that does want stricter checking before acting on a detected call
// can use it, but Detect itself never calls it.
func ValidateArguments(call llm.ToolCall, tool llm.Tool) error {
	schema := BuildSchema(tool)

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tools: resolve schema for %q: %w", tool.Name, err)
	}

	var args any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return fmt.Errorf("tools: arguments for %q are not valid JSON: %w", call.Name, err)
	}

	if err := resolved.Validate(args); err != nil {
		return fmt.Errorf("tools: arguments for %q do not match declared schema: %w", call.Name, err)
	}

	return nil
}

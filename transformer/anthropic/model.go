package anthropic

import "encoding/json"

// Message is the wire shape of a single Anthropic messages-API turn.
// Content is left raw because it may be a plain string or a list of typed
// content blocks; ParseTextUnion resolves the union.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentBlock is one entry of a list-shaped Content or System field. Only
// Type=="text" is honored per spec.md §4.9; other block types are ignored.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Request is the wire shape of spec.md §4.9's Anthropic messages request.
// System is left raw because it may be a string or a list of text blocks.
type Request struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	MaxTokens     int64           `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Usage is the wire shape of spec.md §4.9's Anthropic token usage object.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is the non-streaming Anthropic messages response shape.
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// MessageStartEvent is the first event of an Anthropic SSE stream.
type MessageStartEvent struct {
	Type    string         `json:"type"`
	Message ResponseHeader `json:"message"`
}

// ResponseHeader is the partial Response carried by message_start, before
// any content or usage has accumulated.
type ResponseHeader struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
	Model   string         `json:"model"`
	Usage   Usage          `json:"usage"`
}

// ContentBlockStartEvent announces a new content block index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// TextDelta is the delta payload of a content_block_delta event.
type TextDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ContentBlockDeltaEvent carries one incremental text delta.
type ContentBlockDeltaEvent struct {
	Type  string    `json:"type"`
	Index int       `json:"index"`
	Delta TextDelta `json:"delta"`
}

// ContentBlockStopEvent closes a content block index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDelta is the payload of a message_delta event.
type MessageDelta struct {
	StopReason string `json:"stop_reason"`
}

// MessageDeltaEvent carries the terminal stop_reason and final usage.
type MessageDeltaEvent struct {
	Type  string       `json:"type"`
	Delta MessageDelta `json:"delta"`
	Usage Usage        `json:"usage"`
}

// MessageStopEvent closes the Anthropic SSE stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// ErrorDetail is the inner body of an Anthropic-shaped error envelope.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope is the Anthropic-shaped `{"type":"error","error":{...}}`
// error body.
type ErrorEnvelope struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

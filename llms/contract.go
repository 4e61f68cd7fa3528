// Package llms implements the LLM Client contract from spec.md §6: a
// provider-agnostic chat/function-calling interface the scheduler and
// planner depend on, plus a retrying decorator and a structured-output
// schema helper.
package llms

import "context"

// Role is the speaker of one Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
	Name    string // set on Role == tool, names the tool the result came from
}

// ResponseFormat selects how the provider should shape its reply.
type ResponseFormat string

const (
	FormatText       ResponseFormat = "text"
	FormatJSON       ResponseFormat = "json"
	FormatJSONSchema ResponseFormat = "json_schema"
)

// FunctionSchema describes one callable function offered to the model.
type FunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema, typically produced by schema.go
}

// Options configures one Chat call.
type Options struct {
	Temperature    float64
	MaxTokens      int
	ResponseFormat ResponseFormat
	Schema         map[string]any // required when ResponseFormat == FormatJSONSchema
	Functions      []FunctionSchema
}

// FunctionCall is populated when the model chooses to call a function
// instead of replying with text.
type FunctionCall struct {
	Name      string
	Arguments string // raw JSON
}

// Response is the LLM Client contract's reply shape: exactly one of Text,
// JSON or Call is meaningful, selected by the request's ResponseFormat /
// Functions.
type Response struct {
	Text       string
	JSON       string // raw JSON text when ResponseFormat was json/json_schema
	Call       *FunctionCall
	TokensUsed int
}

// StreamChunk is one piece of a streaming response.
type StreamChunk struct {
	Delta string
	Done  bool
}

// Client is the LLM Client contract. Streaming is permitted but never
// required by the scheduler (spec.md §6).
type Client interface {
	Chat(ctx context.Context, messages []Message, opts Options) (Response, error)
	ChatStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error)
	ModelName() string
}

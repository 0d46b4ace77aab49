// Package ai defines the chat-model boundary: request/response types, the
// Provider interface, retry policy, and the classification of provider errors
// into fixed user-safe messages.
package ai

import (
	"context"
	"encoding/json"
)

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Message is one entry in the conversation sent to the model.
type Message struct {
	Role       string     `json:"role"` // user, assistant, tool
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool messages
	ToolName   string     `json:"tool_name,omitempty"`    // tool messages
}

// ChatRequest represents one request to the model.
type ChatRequest struct {
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// ChatResponse is the model's reply: text content, tool calls, or both.
type ChatResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// Provider is an abstract chat-completion service.
type Provider interface {
	// ID returns the provider identifier (e.g. "openai").
	ID() string

	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Package tools provides the agent's tool registry and the built-in web
// search tool. Tool failures never escape as errors: every failure mode is
// converted to an in-band result string the model can read.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mementolabs/memento/internal/ai"
)

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool is the interface all tools implement.
type Tool interface {
	// Name returns the tool's unique name.
	Name() string

	// Description returns a natural-language description for the model.
	Description() string

	// Schema returns the JSON schema for the tool's input.
	Schema() json.RawMessage

	// Execute runs the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error)
}

// Registry manages available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions returns all tools as model tool definitions.
func (r *Registry) Definitions() []ai.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ai.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, ai.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.Schema(),
		})
	}
	return defs
}

// Execute runs a tool and returns the result. Unknown tools and tool errors
// become error-flavored results, never panics or propagated errors.
func (r *Registry) Execute(ctx context.Context, call *ai.ToolCall) *ToolResult {
	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("model requested unknown tool", "tool", call.Name)
		return &ToolResult{
			Content: fmt.Sprintf("Tool '%s' not found", call.Name),
			IsError: true,
		}
	}

	slog.Debug("executing tool", "tool", call.Name, "tool_call_id", call.ID)
	result, err := tool.Execute(ctx, call.Input)
	if err != nil {
		slog.Warn("tool execution failed", "tool", call.Name, "error", err)
		return &ToolResult{
			Content: fmt.Sprintf("Error calling tool '%s': %v", call.Name, err),
			IsError: true,
		}
	}
	return result
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mementolabs/memento/internal/ai"
)

type stubTool struct {
	name   string
	result *ToolResult
	err    error
}

func (s *stubTool) Name() string             { return s.name }
func (s *stubTool) Description() string      { return "stub" }
func (s *stubTool) Schema() json.RawMessage  { return json.RawMessage(`{"type":"object"}`) }
func (s *stubTool) Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	return s.result, s.err
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "nope"})

	if !result.IsError {
		t.Error("expected error result")
	}
	if result.Content != "Tool 'nope' not found" {
		t.Errorf("unexpected content: %q", result.Content)
	}
}

func TestRegistryToolErrorIsInBand(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "boom", err: errors.New("exploded")})

	result := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "boom"})
	if !result.IsError {
		t.Error("expected error result")
	}
	if result.Content != "Error calling tool 'boom': exploded" {
		t.Errorf("unexpected content: %q", result.Content)
	}
}

func TestRegistryExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "ok", result: &ToolResult{Content: "done"}})

	result := r.Execute(context.Background(), &ai.ToolCall{ID: "c1", Name: "ok"})
	if result.IsError {
		t.Error("unexpected error result")
	}
	if result.Content != "done" {
		t.Errorf("unexpected content: %q", result.Content)
	}
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "a"})
	r.Register(&stubTool{name: "b"})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
		if len(d.InputSchema) == 0 {
			t.Errorf("definition %s missing schema", d.Name)
		}
	}
	if !names["a"] || !names["b"] {
		t.Errorf("missing definitions: %v", names)
	}
}

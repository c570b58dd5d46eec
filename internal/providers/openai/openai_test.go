package openai

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yysun/agent-world-sub001/internal/dispatch"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("", "", "gpt-4o"); err == nil {
		t.Error("New should reject an empty API key")
	}
}

func TestNew_AcceptsBaseURLOverride(t *testing.T) {
	a, err := New("sk-test", "https://gateway.example.com/v1", "gpt-4o")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.model != "gpt-4o" {
		t.Errorf("model = %q", a.model)
	}
}

func TestAdapter_ToMessages(t *testing.T) {
	a := &Adapter{model: "gpt-4o"}
	msgs := []orchmodel.AgentMessage{
		{Role: orchmodel.RoleUser, Content: "hi"},
		{Role: orchmodel.RoleAssistant, Content: "", ToolCalls: []orchmodel.ToolCall{
			{ID: "call_1", Function: orchmodel.ToolCallFunction{Name: "create_agent", Arguments: `{"name":"bob"}`}},
		}},
		{Role: orchmodel.RoleTool, Content: "done", ToolCallID: "call_1"},
	}

	out := a.toMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if out[0].Role != "user" || out[0].Content != "hi" {
		t.Errorf("out[0] = %+v", out[0])
	}
	if len(out[1].ToolCalls) != 1 || out[1].ToolCalls[0].Function.Name != "create_agent" {
		t.Errorf("out[1].ToolCalls = %+v", out[1].ToolCalls)
	}
	if out[2].ToolCallID != "call_1" {
		t.Errorf("out[2].ToolCallID = %q, want call_1", out[2].ToolCallID)
	}
}

func TestAdapter_ToTools(t *testing.T) {
	a := &Adapter{}
	if got := a.toTools(nil); got != nil {
		t.Errorf("toTools(nil) = %v, want nil", got)
	}

	tools := []dispatch.ToolDefinition{
		{Name: "create_agent", Description: "Create a new agent", Parameters: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`)},
	}
	out := a.toTools(tools)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Function.Name != "create_agent" {
		t.Errorf("out[0].Function.Name = %q", out[0].Function.Name)
	}
	if out[0].Type != openai.ToolTypeFunction {
		t.Errorf("out[0].Type = %q, want function", out[0].Type)
	}
}

func TestAdapter_ToTools_InvalidSchemaFallsBackToEmptyObject(t *testing.T) {
	a := &Adapter{}
	tools := []dispatch.ToolDefinition{
		{Name: "broken", Parameters: json.RawMessage(`not json`)},
	}
	out := a.toTools(tools)
	schema, ok := out[0].Function.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("Parameters type = %T, want map[string]any", out[0].Function.Parameters)
	}
	if schema["type"] != "object" {
		t.Errorf("fallback schema = %+v", schema)
	}
}

func TestConvertToolCalls(t *testing.T) {
	in := []openai.ToolCall{
		{ID: "call_1", Function: openai.FunctionCall{Name: "create_agent", Arguments: `{}`}},
	}
	out := convertToolCalls(in)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Type != "function" || out[0].ID != "call_1" || out[0].Function.Name != "create_agent" {
		t.Errorf("out[0] = %+v", out[0])
	}
}

func TestConvertToolCalls_Empty(t *testing.T) {
	out := convertToolCalls(nil)
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}

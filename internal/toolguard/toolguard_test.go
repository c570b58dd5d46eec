package toolguard

import (
	"context"
	"testing"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

func TestValidateToolParametersMissingRequired(t *testing.T) {
	schema := []byte(`{"required":["name"],"properties":{"name":{"type":"string"}}}`)
	res := ValidateToolParameters(map[string]any{}, schema, "create_agent")
	if res.Valid {
		t.Fatalf("expected invalid result for missing required field")
	}
}

func TestValidateToolParametersCoercesStringToArray(t *testing.T) {
	schema := []byte(`{"properties":{"tags":{"type":"array"}}}`)
	res := ValidateToolParameters(map[string]any{"tags": "one"}, schema, "t")
	if !res.Valid {
		t.Fatalf("expected valid: %s", res.Error)
	}
	arr, ok := res.CorrectedArgs["tags"].([]any)
	if !ok || len(arr) != 1 || arr[0] != "one" {
		t.Fatalf("got %#v", res.CorrectedArgs["tags"])
	}
}

func TestValidateToolParametersCoercesStringToNumber(t *testing.T) {
	schema := []byte(`{"properties":{"count":{"type":"number"}}}`)
	res := ValidateToolParameters(map[string]any{"count": "42"}, schema, "t")
	if !res.Valid || res.CorrectedArgs["count"] != float64(42) {
		t.Fatalf("got %#v", res.CorrectedArgs)
	}
}

func TestValidateToolParametersStrictSchemaRejectsEnumMismatch(t *testing.T) {
	schema := []byte(`{"properties":{"mode":{"type":"string","enum":["fast","slow"]}}}`)
	res := ValidateToolParameters(map[string]any{"mode": "turbo"}, schema, "t")
	if res.Valid {
		t.Fatalf("expected invalid result for enum mismatch")
	}
}

func TestValidateToolParametersStrictSchemaAcceptsEnumMatch(t *testing.T) {
	schema := []byte(`{"properties":{"mode":{"type":"string","enum":["fast","slow"]}}}`)
	res := ValidateToolParameters(map[string]any{"mode": "fast"}, schema, "t")
	if !res.Valid {
		t.Fatalf("expected valid: %s", res.Error)
	}
}

func TestValidateToolParametersMalformedSchemaRejected(t *testing.T) {
	schema := []byte(`{"required":["name"`) // malformed JSON, unmarshal fails earlier
	res := ValidateToolParameters(map[string]any{"name": "x"}, schema, "t")
	if res.Valid {
		t.Fatalf("expected invalid result for malformed schema")
	}
}

func TestMatchesToolPattern(t *testing.T) {
	if !MatchesToolPattern("mcp:server.tool", "mcp:*") {
		t.Fatalf("expected mcp:* to match")
	}
	if !MatchesToolPattern("read_file", "read*") {
		t.Fatalf("expected prefix wildcard to match")
	}
	if !MatchesToolPattern("my_tool", "*_tool") {
		t.Fatalf("expected suffix wildcard to match")
	}
	if MatchesToolPattern("exec", "read*") {
		t.Fatalf("expected no match")
	}
}

func TestFilterEmptyNamedCalls(t *testing.T) {
	calls := []orchmodel.ToolCall{
		{ID: "1", Function: orchmodel.ToolCallFunction{Name: "exec"}},
		{ID: "2", Function: orchmodel.ToolCallFunction{Name: ""}},
	}
	valid, errs := FilterEmptyNamedCalls(calls)
	if len(valid) != 1 || valid[0].ID != "1" {
		t.Fatalf("got %+v", valid)
	}
	if len(errs) != 1 || errs[0].ToolCallID != "2" {
		t.Fatalf("got %+v", errs)
	}
}

type fakeApprovalTool struct{ requires bool }

func (f *fakeApprovalTool) Name() string        { return "create_agent" }
func (f *fakeApprovalTool) Description() string { return "" }
func (f *fakeApprovalTool) Schema() []byte      { return []byte(`{"required":["name"]}`) }
func (f *fakeApprovalTool) ApprovalRequired() bool { return f.requires }
func (f *fakeApprovalTool) Execute(ctx context.Context, tc orchmodel.ToolContext, argsJSON []byte) (*orchmodel.ToolResult, error) {
	return &orchmodel.ToolResult{Content: "executed"}, nil
}

func TestWrapToolWithValidationApprovalGate(t *testing.T) {
	wrapped := WrapToolWithValidation(&fakeApprovalTool{requires: true})
	res, err := wrapped.Execute(context.Background(), orchmodel.ToolContext{}, []byte(`{"name":"bob"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.StopProcessing {
		t.Fatalf("expected StopProcessing for approval-required tool")
	}
}

func TestWrapToolWithValidationDelegates(t *testing.T) {
	wrapped := WrapToolWithValidation(&fakeApprovalTool{requires: false})
	res, err := wrapped.Execute(context.Background(), orchmodel.ToolContext{}, []byte(`{"name":"bob"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "executed" {
		t.Fatalf("expected delegation to inner tool, got %+v", res)
	}
}

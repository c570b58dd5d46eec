// Package dispatch implements the provider-agnostic LLM dispatch loop:
// it serializes memory through transcript.Prepare, attaches tools,
// calls the provider in streaming or non-streaming mode, executes any
// tool calls in order (each once, under a per-call timeout), and recurses on
// follow-up turns until a final text response or the turn budget is
// exhausted.
//
// Grounded on the teacher's internal/agent/loop.go (AgenticLoop,
// LoopState, phase functions) and internal/agent/executor.go (parallel
// tool execution, retry/backoff, panic recovery, per-tool timeout).
package dispatch

import (
	"context"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// ToolDefinition is the provider-facing tool description.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []byte // JSON schema
}

// ToolCallDelta is one incremental update to a streamed tool call,
// merged by stable integer index.
type ToolCallDelta struct {
	Index            int
	ID               string
	FunctionName     string
	ArgumentsDelta   string
}

// StreamResult is returned once a streaming provider call completes.
type StreamResult struct {
	FinalContent string
	ToolCalls    []orchmodel.ToolCall
	Usage        *orchmodel.TokenUsage
}

// GenerateResult is returned by a non-streaming provider call.
type GenerateResult struct {
	Content   string
	ToolCalls []orchmodel.ToolCall
	Usage     *orchmodel.TokenUsage
}

// Provider is the external LLM provider interface. ContentDeltas
// receives text chunks as they stream in; ToolCallDeltas receives
// incremental tool-call fragments. Either callback may be nil.
type Provider interface {
	Stream(ctx context.Context, messages []orchmodel.AgentMessage, tools []ToolDefinition, onContentDelta func(string), onToolCallDelta func(ToolCallDelta)) (StreamResult, error)
	Generate(ctx context.Context, messages []orchmodel.AgentMessage, tools []ToolDefinition) (GenerateResult, error)
}

// Package orchmodel defines the shared data types that flow between the
// orchestration core's subsystems: worlds, agents, messages, and the
// event payloads published on a world's event bus.
package orchmodel

import (
	"context"
	"time"
)

// Tool is the contract every built-in and MCP-backed tool implements.
// Schema returns a JSON-schema document describing the tool's
// parameters; Execute receives the raw JSON arguments produced by the
// LLM tool call.
type Tool interface {
	Name() string
	Description() string
	Schema() []byte
	Execute(ctx context.Context, tc ToolContext, argsJSON []byte) (*ToolResult, error)
}

// Provider identifies the LLM backend an agent is bound to.
type Provider string

const (
	ProviderOpenAI           Provider = "openai"
	ProviderAnthropic        Provider = "anthropic"
	ProviderGoogle           Provider = "google"
	ProviderAzure            Provider = "azure"
	ProviderXAI              Provider = "xai"
	ProviderOpenAICompatible Provider = "openai-compatible"
	ProviderOllama           Provider = "ollama"
)

// World is the top-level container for a conversation: agents, chats,
// an event bus, and configuration. Its id is stable for the lifetime of
// the instance; the event bus is recreated (not mutated) on refresh.
type World struct {
	ID              string
	Name            string
	Description     string
	TurnLimit       int
	ChatLLMProvider Provider
	ChatLLMModel    string
	MCPConfig       map[string]any
	Variables       string // KEY=value lines; see ids.GetEnvValueFromText

	CurrentChatID string
	IsProcessing  bool
}

// Agent is an LLM-backed participant addressed by @id within a world.
type Agent struct {
	ID           string
	Name         string
	Type         string
	Provider     Provider
	Model        string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int
	AutoReply    bool

	LLMCallCount int
	LastLLMCall  time.Time

	Memory []AgentMessage
}

// Role is the chat-completion role of an AgentMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallFunction is the function payload of a tool call.
type ToolCallFunction struct {
	Name      string
	Arguments string // JSON-encoded arguments
}

// ToolCall is an LLM-produced request to invoke a named function.
type ToolCall struct {
	ID       string
	Type     string // always "function"
	Function ToolCallFunction
}

// AgentMessage is one turn in an agent's memory / conversation history.
type AgentMessage struct {
	Role       Role
	Content    string
	Sender     string // stripped before sending to the LLM
	ToolCallID string
	ToolCalls  []ToolCall
	CreatedAt  time.Time
	ChatID     string

	// ClientOnly marks a message that must never reach the LLM provider
	// (synthetic pause messages, client-side bookkeeping).
	ClientOnly bool
}

// Clone returns a deep copy safe to mutate without affecting memory.
func (m AgentMessage) Clone() AgentMessage {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return out
}

// WorldMessageEvent is published on the "message" channel of a world bus.
type WorldMessageEvent struct {
	Content   string
	Sender    string
	Timestamp time.Time
	MessageID string
}

// SSEType enumerates the WorldSSEEvent.Type values.
type SSEType string

const (
	SSEStart      SSEType = "start"
	SSEChunk      SSEType = "chunk"
	SSEEnd        SSEType = "end"
	SSEError      SSEType = "error"
	SSEToolStream SSEType = "tool-stream"
	SSEToolStart  SSEType = "tool-start"
	SSEToolResult SSEType = "tool-result"
	SSEToolError  SSEType = "tool-error"
)

// TokenUsage carries provider-reported token counts for a turn.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// ToolExecutionPayload describes a tool invocation for an SSE event.
type ToolExecutionPayload struct {
	ToolCallID string
	ToolName   string
	Stream     string // "stdout" | "stderr", only set for SSEToolStream
	Preview    string
	DurationMs int64
	Success    bool
}

// WorldSSEEvent is published on the "sse" channel describing LLM/tool
// streaming progress.
type WorldSSEEvent struct {
	AgentName     string
	Type          SSEType
	Content       string
	Error         string
	MessageID     string
	Usage         *TokenUsage
	ToolExecution *ToolExecutionPayload
}

// Chat is a named conversation inside a world with its own history.
type Chat struct {
	ID           string
	Name         string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Summary      string
	Tags         []string

	// Untitled replaces the brittle "name == \"New Chat\"" sentinel from
	// the original source with an explicit flag (see DESIGN.md open
	// question #3).
	Untitled bool
}

// WorldChat is a snapshot of world/agents/messages at save time.
type WorldChat struct {
	Chat    Chat
	World   World
	Agents  []Agent
	Created time.Time
}

// ToolResult is the outcome of a single tool invocation. StopProcessing
// signals the dispatch loop to pause and bubble the synthetic assistant
// message up (an approval or HITL redirect) instead of continuing the
// turn.
type ToolResult struct {
	Content         string
	IsError         bool
	StopProcessing  bool
	ApprovalMessage string
}

// ToolContext is threaded into every Tool.Execute call.
type ToolContext struct {
	World             *World
	Agent             *Agent
	ChatID            string
	ToolCallID        string
	WorkingDirectory  string
	Messages          []AgentMessage
}


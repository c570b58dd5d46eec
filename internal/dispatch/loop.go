package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
	"github.com/yysun/agent-world-sub001/internal/toolguard"
	"github.com/yysun/agent-world-sub001/internal/transcript"
)

// ToolRegistry resolves a tool by name and lists tool definitions for
// attaching to a provider call.
type ToolRegistry interface {
	Get(name string) (orchmodel.Tool, bool)
	Definitions() []ToolDefinition
}

// SSEPublisher forwards streaming progress onto a world's "sse"
// channel. Implemented by internal/worldbus.
type SSEPublisher interface {
	PublishSSE(worldID string, event orchmodel.WorldSSEEvent)
}

// MessagePublisher forwards a completed turn onto a world's "message"
// channel. Implemented by internal/worldbus.
type MessagePublisher interface {
	PublishMessage(worldID string, event orchmodel.WorldMessageEvent)
}

// Persister saves agent state after each turn. Its implementation (a
// StorageAPI-backed persister) lives outside this package, but the
// loop calls it so a real backend can be wired in without changing
// dispatch's logic.
type Persister interface {
	PersistAgentMemory(worldID, agentID string, memory []orchmodel.AgentMessage) error
	PersistAgentCallCount(worldID, agentID string, count int, lastCall time.Time) error
}

// MaxFollowUpTurns bounds how many provider round-trips one dispatch
// call may take before giving up (distinct from the world's turnLimit,
// which bounds LLM calls across a whole conversation, not one turn).
const MaxFollowUpTurns = 25

// EnableOllamaTools gates whether tools are attached for the ollama
// provider, a feature-flag carve-out for models with flaky tool support.
type EnableOllamaTools func(agent *orchmodel.Agent) bool

// PostProcess runs auto-mention post-processing over a pure-text
// completion before it is appended to memory and published. Wired in
// by internal/worldbus; left nil it is a no-op pass-through.
type PostProcess func(response, sender, agentID string) string

// Tracer opens spans around one LLM turn or one tool execution.
// Implemented by internal/telemetry; left nil it is a no-op.
type Tracer interface {
	StartTurn(ctx context.Context, worldID, agentID string, turn int) (context.Context, func(error))
	StartTool(ctx context.Context, name string) (context.Context, func(error))
}

type noopTracer struct{}

func (noopTracer) StartTurn(ctx context.Context, _, _ string, _ int) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (noopTracer) StartTool(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// Loop is the provider-agnostic LLM dispatch loop.
type Loop struct {
	executorConfig ExecutorConfig
	sse            SSEPublisher
	messages       MessagePublisher
	persister      Persister
	ollamaGate     EnableOllamaTools
	streamingOn    bool
	postProcess    PostProcess
	tracer         Tracer
}

// NewLoop constructs a dispatch loop. sse/persister may be nil to
// disable their side effects, primarily for tests.
func NewLoop(sse SSEPublisher, persister Persister, streamingOn bool) *Loop {
	return &Loop{
		executorConfig: DefaultExecutorConfig(),
		sse:            sse,
		persister:      persister,
		streamingOn:    streamingOn,
		ollamaGate:     func(*orchmodel.Agent) bool { return false },
		postProcess:    func(response, sender, agentID string) string { return response },
		tracer:         noopTracer{},
	}
}

// SetTracer installs a span tracer. Passing nil restores the no-op.
func (l *Loop) SetTracer(t Tracer) {
	if t == nil {
		t = noopTracer{}
	}
	l.tracer = t
}

// SetMessagePublisher installs the "message" channel publisher.
func (l *Loop) SetMessagePublisher(m MessagePublisher) {
	l.messages = m
}

// SetPostProcess installs the auto-mention post-processing hook.
func (l *Loop) SetPostProcess(p PostProcess) {
	if p == nil {
		p = func(response, sender, agentID string) string { return response }
	}
	l.postProcess = p
}

// SetOllamaGate installs the ollama tool-attachment feature flag.
func (l *Loop) SetOllamaGate(g EnableOllamaTools) {
	if g == nil {
		g = func(*orchmodel.Agent) bool { return false }
	}
	l.ollamaGate = g
}

// Result is what a dispatch run hands back to the caller's per-agent
// handler.
type Result struct {
	FinalText      string
	StopProcessing bool
	Cancelled      bool
}

// Run executes the dispatch loop for one incoming turn: it mutates
// agent.Memory in place (appending the assistant's final message, or a
// synthetic pause message on a HITL/approval stop), and returns the
// final text response.
func (l *Loop) Run(ctx context.Context, world *orchmodel.World, agent *orchmodel.Agent, registry ToolRegistry, provider Provider, chatID, sender string) (Result, error) {
	messageID := uuid.NewString()
	attachTools := true

	for turn := 0; turn < MaxFollowUpTurns; turn++ {
		result, err, done := l.runOneTurn(ctx, world, agent, registry, provider, chatID, sender, messageID, turn, &attachTools)
		if done {
			return result, err
		}
	}

	return Result{}, ErrMaxFollowUps
}

// runOneTurn executes one provider round-trip plus any tool calls it
// requests. done is true when Run should return (result, err)
// immediately instead of looping to the next turn.
func (l *Loop) runOneTurn(ctx context.Context, world *orchmodel.World, agent *orchmodel.Agent, registry ToolRegistry, provider Provider, chatID, sender, messageID string, turn int, attachTools *bool) (result Result, err error, done bool) {
	ctx, endTurn := l.tracer.StartTurn(ctx, world.ID, agent.ID, turn)
	defer func() { endTurn(err) }()

	{
		prepared := transcript.Prepare(agent.Memory)

		var tools []ToolDefinition
		if *attachTools && provider != nil && registry != nil {
			if agent.Provider != orchmodel.ProviderOllama || l.ollamaGate(agent) {
				tools = registry.Definitions()
			}
		}

		agent.LLMCallCount++
		agent.LastLLMCall = time.Now()
		if l.persister != nil {
			_ = l.persister.PersistAgentCallCount(world.ID, agent.ID, agent.LLMCallCount, agent.LastLLMCall)
		}

		if provider == nil {
			return Result{}, ErrNoProvider, true
		}

		var content string
		var rawToolCalls []orchmodel.ToolCall
		var usage *orchmodel.TokenUsage

		if l.streamingOn {
			l.publishSSE(world.ID, orchmodel.WorldSSEEvent{AgentName: agent.ID, Type: orchmodel.SSEStart, MessageID: messageID})
			res, err := provider.Stream(ctx, prepared, tools,
				func(delta string) {
					l.publishSSE(world.ID, orchmodel.WorldSSEEvent{AgentName: agent.ID, Type: orchmodel.SSEChunk, Content: delta, MessageID: messageID})
				},
				nil,
			)
			if err != nil {
				if ctx.Err() != nil {
					return Result{Cancelled: true}, ErrCancelled, true
				}
				l.publishSSE(world.ID, orchmodel.WorldSSEEvent{AgentName: agent.ID, Type: orchmodel.SSEError, Error: err.Error(), MessageID: messageID})
				return Result{}, fmt.Errorf("dispatch: provider stream failed: %w", err), true
			}
			content = res.FinalContent
			rawToolCalls = res.ToolCalls
			usage = res.Usage
			l.publishSSE(world.ID, orchmodel.WorldSSEEvent{AgentName: agent.ID, Type: orchmodel.SSEEnd, MessageID: messageID, Usage: usage})
		} else {
			res, err := provider.Generate(ctx, prepared, tools)
			if err != nil {
				if ctx.Err() != nil {
					return Result{Cancelled: true}, ErrCancelled, true
				}
				return Result{}, fmt.Errorf("dispatch: provider generate failed: %w", err), true
			}
			content = res.Content
			rawToolCalls = res.ToolCalls
			usage = res.Usage
		}

		validCalls, errorMsgs := toolguard.FilterEmptyNamedCalls(rawToolCalls)
		if len(validCalls) == 0 {
			finalText := l.postProcess(content, sender, agent.ID)
			for _, em := range errorMsgs {
				agent.Memory = append(agent.Memory, em)
			}
			agent.Memory = append(agent.Memory, orchmodel.AgentMessage{
				Role:      orchmodel.RoleAssistant,
				Content:   finalText,
				Sender:    agent.ID,
				CreatedAt: time.Now(),
				ChatID:    chatID,
			})
			l.persist(world.ID, agent)
			l.publishMessage(world.ID, orchmodel.WorldMessageEvent{Content: finalText, Sender: agent.ID, Timestamp: time.Now(), MessageID: messageID})
			return Result{FinalText: finalText}, nil, true
		}

		assistantMsg := orchmodel.AgentMessage{
			Role:      orchmodel.RoleAssistant,
			Content:   content,
			ToolCalls: validCalls,
			CreatedAt: time.Now(),
			ChatID:    chatID,
		}
		agent.Memory = append(agent.Memory, assistantMsg)
		for _, em := range errorMsgs {
			agent.Memory = append(agent.Memory, em)
		}

		var pending []pendingToolCall
		for _, call := range validCalls {
			if err := parseToolArguments(call.Function.Arguments); err != nil {
				agent.Memory = append(agent.Memory, orchmodel.AgentMessage{
					Role:       orchmodel.RoleTool,
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("Error: malformed arguments for %s: %v", call.Function.Name, err),
				})
				continue
			}
			tool, ok := registry.Get(call.Function.Name)
			if !ok {
				agent.Memory = append(agent.Memory, orchmodel.AgentMessage{
					Role:       orchmodel.RoleTool,
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("Error: tool %q not found", call.Function.Name),
				})
				continue
			}
			pending = append(pending, pendingToolCall{call: call, tool: tool})
		}

		tc := orchmodel.ToolContext{World: world, Agent: agent, ChatID: chatID, Messages: agent.Memory}
		stopProcessing := false
		var approvalMessage string

		for _, outcome := range l.executeToolsSequentially(ctx, pending, tc) {
			l.publishSSE(world.ID, orchmodel.WorldSSEEvent{
				AgentName: agent.ID, Type: orchmodel.SSEToolStart, MessageID: uuid.NewString(),
				ToolExecution: &orchmodel.ToolExecutionPayload{ToolCallID: outcome.callID, ToolName: outcome.name},
			})

			if outcome.err == ErrCancelled {
				return Result{Cancelled: true}, ErrCancelled, true
			}

			content := ""
			success := outcome.err == nil && (outcome.result == nil || !outcome.result.IsError)
			if outcome.err != nil {
				content = fmt.Sprintf("Error: %v", outcome.err)
			} else if outcome.result != nil {
				content = outcome.result.Content
				if outcome.result.StopProcessing {
					stopProcessing = true
					approvalMessage = outcome.result.ApprovalMessage
				}
			}

			agent.Memory = append(agent.Memory, orchmodel.AgentMessage{
				Role:       orchmodel.RoleTool,
				ToolCallID: outcome.callID,
				Content:    content,
			})

			sseType := orchmodel.SSEToolResult
			if !success {
				sseType = orchmodel.SSEToolError
			}
			preview := content
			if len(preview) > 200 {
				preview = preview[:200]
			}
			l.publishSSE(world.ID, orchmodel.WorldSSEEvent{
				AgentName: agent.ID, Type: sseType, MessageID: uuid.NewString(),
				ToolExecution: &orchmodel.ToolExecutionPayload{
					ToolCallID: outcome.callID, ToolName: outcome.name, Success: success,
					Preview: preview, DurationMs: outcome.elapsed.Milliseconds(),
				},
			})
		}

		if stopProcessing {
			agent.Memory = append(agent.Memory, orchmodel.AgentMessage{
				Role:       orchmodel.RoleAssistant,
				Content:    approvalMessage,
				ClientOnly: true,
				CreatedAt:  time.Now(),
				ChatID:     chatID,
			})
			l.persist(world.ID, agent)
			return Result{StopProcessing: true}, nil, true
		}

		l.persist(world.ID, agent)
		*attachTools = false // never attach tools on a follow-up turn
	}

	return Result{}, nil, false
}

func (l *Loop) publishSSE(worldID string, event orchmodel.WorldSSEEvent) {
	if l.sse != nil {
		l.sse.PublishSSE(worldID, event)
	}
}

func (l *Loop) persist(worldID string, agent *orchmodel.Agent) {
	if l.persister != nil {
		_ = l.persister.PersistAgentMemory(worldID, agent.ID, agent.Memory)
	}
}

func (l *Loop) publishMessage(worldID string, event orchmodel.WorldMessageEvent) {
	if l.messages != nil {
		l.messages.PublishMessage(worldID, event)
	}
}

// marshalToolCalls re-encodes tool calls into a JSON string. Nothing in
// this module calls it; the provider adapters do their own encoding.
func marshalToolCalls(calls []orchmodel.ToolCall) (string, error) {
	b, err := json.Marshal(calls)
	return string(b), err
}

// Package openai adapts the sashabaranov/go-openai client to
// dispatch.Provider, grounded on the teacher's
// internal/agent/providers/openai.go message/tool conversion and
// indexed streaming tool-call merge.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yysun/agent-world-sub001/internal/dispatch"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// Adapter implements dispatch.Provider against the OpenAI chat API.
type Adapter struct {
	client *openai.Client
	model  string
}

// New constructs an Adapter. baseURL overrides the default API origin
// for OpenAI-compatible gateways; pass "" to use OpenAI's default.
func New(apiKey, baseURL, model string) (*Adapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key not configured")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Adapter{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (a *Adapter) toMessages(messages []orchmodel.AgentMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == orchmodel.RoleTool {
			msg.ToolCallID = m.ToolCallID
		}
		if len(m.ToolCalls) > 0 {
			msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				msg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			}
		}
		out = append(out, msg)
	}
	return out
}

func (a *Adapter) toTools(tools []dispatch.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

// Generate implements dispatch.Provider's non-streaming call.
func (a *Adapter) Generate(ctx context.Context, messages []orchmodel.AgentMessage, tools []dispatch.ToolDefinition) (dispatch.GenerateResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: a.toMessages(messages),
		Tools:    a.toTools(tools),
	}
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return dispatch.GenerateResult{}, fmt.Errorf("openai: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return dispatch.GenerateResult{}, errors.New("openai: empty response")
	}
	choice := resp.Choices[0]
	return dispatch.GenerateResult{
		Content:   choice.Message.Content,
		ToolCalls: convertToolCalls(choice.Message.ToolCalls),
		Usage: &orchmodel.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Stream implements dispatch.Provider's streaming call, merging
// incremental tool-call deltas by their stable Index 
func (a *Adapter) Stream(ctx context.Context, messages []orchmodel.AgentMessage, tools []dispatch.ToolDefinition, onContentDelta func(string), onToolCallDelta func(dispatch.ToolCallDelta)) (dispatch.StreamResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: a.toMessages(messages),
		Tools:    a.toTools(tools),
		Stream:   true,
	}
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return dispatch.StreamResult{}, fmt.Errorf("openai: stream: %w", err)
	}
	defer stream.Close()

	var content string
	merged := map[int]*orchmodel.ToolCall{}
	order := []int{}

	for {
		select {
		case <-ctx.Done():
			return dispatch.StreamResult{}, ctx.Err()
		default:
		}

		chunk, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}
			return dispatch.StreamResult{}, fmt.Errorf("openai: stream recv: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content += delta.Content
			if onContentDelta != nil {
				onContentDelta(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			existing, ok := merged[idx]
			if !ok {
				existing = &orchmodel.ToolCall{Type: "function"}
				merged[idx] = existing
				order = append(order, idx)
			}
			if tc.ID != "" {
				existing.ID = tc.ID
			}
			if tc.Function.Name != "" {
				existing.Function.Name = tc.Function.Name
			}
			existing.Function.Arguments += tc.Function.Arguments
			if onToolCallDelta != nil {
				onToolCallDelta(dispatch.ToolCallDelta{
					Index:          idx,
					ID:             tc.ID,
					FunctionName:   tc.Function.Name,
					ArgumentsDelta: tc.Function.Arguments,
				})
			}
		}
	}

	toolCalls := make([]orchmodel.ToolCall, 0, len(order))
	for _, idx := range order {
		toolCalls = append(toolCalls, *merged[idx])
	}

	return dispatch.StreamResult{FinalContent: content, ToolCalls: toolCalls}, nil
}

func convertToolCalls(in []openai.ToolCall) []orchmodel.ToolCall {
	out := make([]orchmodel.ToolCall, len(in))
	for i, tc := range in {
		out[i] = orchmodel.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: orchmodel.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}

// Package anthropic adapts the anthropics/anthropic-sdk-go client to
// dispatch.Provider, grounded on the teacher's
// internal/agent/providers/anthropic.go streaming event switch
// (content_block_start/delta/stop, message_delta, message_stop) and
// content-block message conversion.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yysun/agent-world-sub001/internal/dispatch"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

const defaultMaxTokens = 4096

// Adapter implements dispatch.Provider against the Anthropic Messages API.
type Adapter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New constructs an Adapter. baseURL overrides the default API origin.
func New(apiKey, baseURL, model string) (*Adapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Adapter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}, nil
}

// splitSystem pulls leading system-role messages out, since Anthropic
// carries the system prompt as a top-level param rather than a message.
func splitSystem(messages []orchmodel.AgentMessage) (string, []orchmodel.AgentMessage) {
	var system strings.Builder
	rest := make([]orchmodel.AgentMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == orchmodel.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system.String(), rest
}

func toMessageParams(messages []orchmodel.AgentMessage) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		var content []anthropic.ContentBlockParamUnion

		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		if m.Role == orchmodel.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					return nil, fmt.Errorf("anthropic: tool call %s has invalid arguments: %w", tc.ID, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		}

		var message anthropic.MessageParam
		if m.Role == orchmodel.RoleAssistant {
			message = anthropic.NewAssistantMessage(content...)
		} else {
			message = anthropic.NewUserMessage(content...)
		}
		out = append(out, message)
	}
	return out, nil
}

func toTools(tools []dispatch.ToolDefinition) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		var raw map[string]any
		if err := json.Unmarshal(t.Parameters, &raw); err == nil {
			if props, ok := raw["properties"]; ok {
				schema.Properties = props
			}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func (a *Adapter) buildParams(messages []orchmodel.AgentMessage, tools []dispatch.ToolDefinition) (anthropic.MessageNewParams, error) {
	system, rest := splitSystem(messages)
	converted, err := toMessageParams(rest)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  converted,
		MaxTokens: a.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if t := toTools(tools); len(t) > 0 {
		params.Tools = t
	}
	return params, nil
}

// Generate implements dispatch.Provider's non-streaming call.
func (a *Adapter) Generate(ctx context.Context, messages []orchmodel.AgentMessage, tools []dispatch.ToolDefinition) (dispatch.GenerateResult, error) {
	params, err := a.buildParams(messages, tools)
	if err != nil {
		return dispatch.GenerateResult{}, err
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return dispatch.GenerateResult{}, fmt.Errorf("anthropic: generate: %w", err)
	}

	var content string
	var calls []orchmodel.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content += block.Text
		case "tool_use":
			toolUse := block.AsToolUse()
			calls = append(calls, orchmodel.ToolCall{
				ID:   toolUse.ID,
				Type: "function",
				Function: orchmodel.ToolCallFunction{
					Name:      toolUse.Name,
					Arguments: string(toolUse.Input),
				},
			})
		}
	}

	return dispatch.GenerateResult{
		Content:   content,
		ToolCalls: calls,
		Usage: &orchmodel.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

// Stream implements dispatch.Provider's streaming call.
func (a *Adapter) Stream(ctx context.Context, messages []orchmodel.AgentMessage, tools []dispatch.ToolDefinition, onContentDelta func(string), onToolCallDelta func(dispatch.ToolCallDelta)) (dispatch.StreamResult, error) {
	params, err := a.buildParams(messages, tools)
	if err != nil {
		return dispatch.StreamResult{}, err
	}
	stream := a.client.Messages.NewStreaming(ctx, params)

	var content string
	var inputTokens, outputTokens int
	merged := map[int]*orchmodel.ToolCall{}
	order := []int{}
	var currentToolArgs strings.Builder
	currentIndex := -1

	for stream.Next() {
		select {
		case <-ctx.Done():
			return dispatch.StreamResult{}, ctx.Err()
		default:
		}

		event := stream.Current()
		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}

		case "content_block_start":
			cbs := event.AsContentBlockStart()
			if cbs.ContentBlock.Type == "tool_use" {
				toolUse := cbs.ContentBlock.AsToolUse()
				idx := int(cbs.Index)
				merged[idx] = &orchmodel.ToolCall{ID: toolUse.ID, Type: "function", Function: orchmodel.ToolCallFunction{Name: toolUse.Name}}
				order = append(order, idx)
				currentIndex = idx
				currentToolArgs.Reset()
			}

		case "content_block_delta":
			cbd := event.AsContentBlockDelta()
			delta := cbd.Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					content += delta.Text
					if onContentDelta != nil {
						onContentDelta(delta.Text)
					}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" && currentIndex >= 0 {
					currentToolArgs.WriteString(delta.PartialJSON)
					if onToolCallDelta != nil {
						onToolCallDelta(dispatch.ToolCallDelta{Index: currentIndex, ArgumentsDelta: delta.PartialJSON})
					}
				}
			}

		case "content_block_stop":
			if currentIndex >= 0 {
				if tc, ok := merged[currentIndex]; ok {
					tc.Function.Arguments = currentToolArgs.String()
				}
				currentIndex = -1
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return dispatch.StreamResult{}, fmt.Errorf("anthropic: stream: %w", err)
	}

	toolCalls := make([]orchmodel.ToolCall, 0, len(order))
	for _, idx := range order {
		toolCalls = append(toolCalls, *merged[idx])
	}

	return dispatch.StreamResult{
		FinalContent: content,
		ToolCalls:    toolCalls,
		Usage:        &orchmodel.TokenUsage{InputTokens: inputTokens, OutputTokens: outputTokens},
	}, nil
}

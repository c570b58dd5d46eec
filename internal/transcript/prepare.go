// Package transcript prepares an agent's in-memory message history for
// submission to an LLM provider: it strips client-only bookkeeping,
// removes orphaned or reserved tool calls, and parses the synthetic
// enhanced-string tool-result encoding produced by pause-point tools.
package transcript

import (
	"encoding/json"
	"strings"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// ClientToolPrefix marks tool names that are handled entirely on the
// client and must never be sent to the LLM provider.
const ClientToolPrefix = "client."

// Prepare returns a copy of messages safe to send to a chat-completion
// API,:
//  1. deep clone so memory is never mutated,
//  2. drop ClientOnly messages,
//  3. strip client.-prefixed tool_calls from assistant messages,
//  4. drop tool messages with no matching assistant tool_call (including
//     ones answering a just-removed client-prefixed call),
//  5. prune any remaining unresolved tool_calls from assistant messages,
//     dropping the assistant message entirely if nothing is left of it.
func Prepare(messages []orchmodel.AgentMessage) []orchmodel.AgentMessage {
	cloned := make([]orchmodel.AgentMessage, 0, len(messages))
	for _, m := range messages {
		if m.ClientOnly {
			continue
		}
		cloned = append(cloned, m.Clone())
	}

	removedCallIDs := map[string]bool{}
	for i := range cloned {
		if cloned[i].Role != orchmodel.RoleAssistant || len(cloned[i].ToolCalls) == 0 {
			continue
		}
		kept := cloned[i].ToolCalls[:0:0]
		for _, tc := range cloned[i].ToolCalls {
			if strings.HasPrefix(tc.Function.Name, ClientToolPrefix) {
				removedCallIDs[tc.ID] = true
				continue
			}
			kept = append(kept, tc)
		}
		cloned[i].ToolCalls = kept
	}

	assistantCallIDs := map[string]bool{}
	for _, m := range cloned {
		if m.Role == orchmodel.RoleAssistant {
			for _, tc := range m.ToolCalls {
				assistantCallIDs[tc.ID] = true
			}
		}
	}

	filtered := make([]orchmodel.AgentMessage, 0, len(cloned))
	for _, m := range cloned {
		if m.Role == orchmodel.RoleTool {
			if m.ToolCallID == "" || removedCallIDs[m.ToolCallID] || !assistantCallIDs[m.ToolCallID] {
				continue
			}
		}
		filtered = append(filtered, m)
	}

	answered := map[string]bool{}
	for _, m := range filtered {
		if m.Role == orchmodel.RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	out := make([]orchmodel.AgentMessage, 0, len(filtered))
	for _, m := range filtered {
		if m.Role == orchmodel.RoleAssistant && len(m.ToolCalls) > 0 {
			kept := m.ToolCalls[:0:0]
			for _, tc := range m.ToolCalls {
				if answered[tc.ID] {
					kept = append(kept, tc)
				}
			}
			m.ToolCalls = kept
			if m.Content == "" && len(m.ToolCalls) == 0 {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// enhancedToolResult is the JSON shape of a synthetic tool-result string
// produced by pause-point tools (e.g. the approval wrapper).
type enhancedToolResult struct {
	Type       string `json:"__type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	AgentID    string `json:"agentId,omitempty"`
}

// ParseEnhancedToolResult attempts to interpret content as a
// "__type":"tool_result" JSON envelope. On success it returns the
// decoded tool message plus the optional out-of-band agentId for
// addressing, and ok=true. Non-JSON or non-matching content returns
// ok=false without error.
func ParseEnhancedToolResult(content string) (msg orchmodel.AgentMessage, agentID string, ok bool) {
	var decoded enhancedToolResult
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return orchmodel.AgentMessage{}, "", false
	}
	if decoded.Type != "tool_result" {
		return orchmodel.AgentMessage{}, "", false
	}
	return orchmodel.AgentMessage{
		Role:       orchmodel.RoleTool,
		ToolCallID: decoded.ToolCallID,
		Content:    decoded.Content,
	}, decoded.AgentID, true
}

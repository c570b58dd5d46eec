package toolguard

import (
	"strings"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// NormalizeToolName lowercases and trims a tool name, mirroring the
// teacher's internal/tools/policy.NormalizeTool (minus alias expansion,
// which belongs to the caller's policy layer, not to tool-call hygiene).
func NormalizeToolName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchesToolPattern reports whether name matches an exact name, an
// "mcp:*" wildcard, a "prefix*" wildcard, or a "*suffix" wildcard, per
// the teacher's matchToolPattern (internal/agent/tool_registry.go).
func MatchesToolPattern(name, pattern string) bool {
	name = NormalizeToolName(name)
	pattern = NormalizeToolName(pattern)
	switch {
	case pattern == "*":
		return true
	case pattern == name:
		return true
	case strings.HasSuffix(pattern, "*") && strings.HasPrefix(name, strings.TrimSuffix(pattern, "*")):
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(name, strings.TrimPrefix(pattern, "*")):
		return true
	default:
		return false
	}
}

// MatchesAnyToolPattern reports whether name matches any pattern.
func MatchesAnyToolPattern(name string, patterns []string) bool {
	for _, p := range patterns {
		if MatchesToolPattern(name, p) {
			return true
		}
	}
	return false
}

// PendingCall wraps a raw LLM tool call.
type PendingCall struct {
	Call orchmodel.ToolCall
}

// FilterEmptyNamedCalls splits calls into valid and invalid (empty or
// whitespace-only function name, or a name longer than
// MaxToolNameLength) groups, and synthesizes a tool-result
// message for each invalid call explaining the malformed call.
func FilterEmptyNamedCalls(calls []orchmodel.ToolCall) (valid []orchmodel.ToolCall, errorMessages []orchmodel.AgentMessage) {
	for _, c := range calls {
		if strings.TrimSpace(c.Function.Name) == "" {
			errorMessages = append(errorMessages, orchmodel.AgentMessage{
				Role:       orchmodel.RoleTool,
				ToolCallID: c.ID,
				Content:    "Error: malformed tool call: missing function name",
			})
			continue
		}
		if len(c.Function.Name) > MaxToolNameLength {
			errorMessages = append(errorMessages, orchmodel.AgentMessage{
				Role:       orchmodel.RoleTool,
				ToolCallID: c.ID,
				Content:    "Error: tool name exceeds maximum length",
			})
			continue
		}
		valid = append(valid, c)
	}
	return valid, errorMessages
}

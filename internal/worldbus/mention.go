package worldbus

import (
	"regexp"
	"strings"

	"github.com/yysun/agent-world-sub001/internal/dispatch"
	"github.com/yysun/agent-world-sub001/internal/ids"
)

// InstallAutoMention wires its auto-mention post-processing
// into a dispatch loop's final-text hook.
func InstallAutoMention(loop *dispatch.Loop) {
	loop.SetPostProcess(func(response, sender, agentID string) string {
		response = removeSelfMentions(response, agentID)
		if shouldAutoMention(response, sender, agentID) {
			return addAutoMention(response, sender)
		}
		return response
	})
}

// hasAnyMentionAtBeginning reports whether response has a
// paragraph-beginning mention anywhere (used to decide whether
// addAutoMention should stay silent).
func hasAnyMentionAtBeginning(response string) bool {
	return len(ids.ExtractParagraphBeginningMentions(response)) > 0
}

// getValidMentions returns the paragraph-beginning mentions of response
// that do not equal agentID (case-insensitive).
func getValidMentions(response, agentID string) []string {
	var out []string
	for _, m := range ids.ExtractParagraphBeginningMentions(response) {
		if !strings.EqualFold(m, agentID) {
			out = append(out, m)
		}
	}
	return out
}

var leadingSelfMention = regexp.MustCompile(`^([ \t]*)@`)

// removeSelfMentions strips leading consecutive "@agentId" occurrences
// from the front of response, preserving the original leading
// whitespace and the case of any remaining text.
func removeSelfMentions(response, agentID string) string {
	rest := response
	for {
		m := leadingSelfMention.FindStringSubmatchIndex(rest)
		if m == nil {
			break
		}
		lead := rest[m[2]:m[3]]
		after := rest[m[1]:]
		token := ""
		i := 0
		for i < len(after) && isMentionChar(after[i]) {
			token += string(after[i])
			i++
		}
		if !strings.EqualFold(token, agentID) {
			break
		}
		rest = lead + strings.TrimLeft(after[i:], " \t")
	}
	return rest
}

func isMentionChar(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// shouldAutoMention reports whether an auto-mention prefix must be
// added to response before it is broadcast on behalf of agentID.
func shouldAutoMention(response, sender, agentID string) bool {
	if strings.TrimSpace(response) == "" {
		return false
	}
	if strings.EqualFold(sender, agentID) {
		return false
	}
	if ids.DetermineSenderType(sender) != ids.SenderAgent {
		return false
	}
	return len(getValidMentions(response, agentID)) == 0
}

// addAutoMention prepends "@sender " to response unless response
// already carries any paragraph-beginning mention.
func addAutoMention(response, sender string) string {
	if hasAnyMentionAtBeginning(response) {
		return response
	}
	return "@" + sender + " " + response
}

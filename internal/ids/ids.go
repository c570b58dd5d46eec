// Package ids implements the identifier and mention utilities shared
// across the orchestration core: kebab-casing agent names, extracting
// @mentions from message text, and classifying sender types.
package ids

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRun  = regexp.MustCompile(`[^a-z0-9]+`)
	trimDashes   = regexp.MustCompile(`^-+|-+$`)
	mentionToken = regexp.MustCompile(`@([a-zA-Z0-9_-]+)`)
)

// ToKebabCase lowercases name and maps every run of non-alphanumeric
// characters to a single '-', trimming leading/trailing dashes. It is
// idempotent: ToKebabCase(ToKebabCase(x)) == ToKebabCase(x).
func ToKebabCase(name string) string {
	lower := strings.ToLower(name)
	dashed := nonAlnumRun.ReplaceAllString(lower, "-")
	return trimDashes.ReplaceAllString(dashed, "")
}

// ExtractMentions returns every @token occurrence in text, lowercased,
// in order of appearance (duplicates included).
func ExtractMentions(text string) []string {
	matches := mentionToken.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}

// ExtractParagraphBeginningMentions returns only the mentions that begin
// a paragraph: the start of the string, or immediately after a blank
// line ("\n\n"), optionally preceded by horizontal whitespace.
func ExtractParagraphBeginningMentions(text string) []string {
	var out []string
	paragraphs := splitParagraphs(text)
	for _, p := range paragraphs {
		trimmed := strings.TrimLeft(p, " \t")
		loc := mentionToken.FindStringSubmatchIndex(trimmed)
		if loc == nil || loc[0] != 0 {
			continue
		}
		out = append(out, strings.ToLower(trimmed[loc[2]:loc[3]]))
	}
	return out
}

// splitParagraphs splits text on blank-line boundaries ("\n\n", allowing
// extra blank lines), preserving the original string content per segment
// except for the separator itself.
func splitParagraphs(text string) []string {
	var out []string
	rest := text
	for {
		idx := strings.Index(rest, "\n\n")
		if idx < 0 {
			out = append(out, rest)
			return out
		}
		out = append(out, rest[:idx])
		rest = strings.TrimLeft(rest[idx:], "\n")
	}
}

var humanAliases = map[string]bool{
	"human": true,
	"user":  true,
	"HUMAN": true,
}

// SenderType classifies the sender of a world/agent message.
type SenderType string

const (
	SenderSystem SenderType = "system"
	SenderWorld  SenderType = "world"
	SenderHuman  SenderType = "human"
	SenderAgent  SenderType = "agent"
)

// DetermineSenderType classifies sender: "system" and
// "world" are literal sentinels, a missing sender or a recognized human
// alias is "human", anything else is "agent".
func DetermineSenderType(sender string) SenderType {
	switch sender {
	case "system":
		return SenderSystem
	case "world":
		return SenderWorld
	case "":
		return SenderHuman
	}
	if humanAliases[sender] || strings.EqualFold(sender, "human") || strings.EqualFold(sender, "user") {
		return SenderHuman
	}
	return SenderAgent
}

// GetEnvValueFromText parses a simple "KEY=value" lines block (the
// World.Variables text) and returns the first value matching key, or
// ("", false) if not found.
func GetEnvValueFromText(variablesBlock, key string) (string, bool) {
	for _, line := range strings.Split(variablesBlock, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		k := strings.TrimSpace(line[:eq])
		if k == key {
			return strings.TrimSpace(line[eq+1:]), true
		}
	}
	return "", false
}

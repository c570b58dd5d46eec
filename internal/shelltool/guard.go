package shelltool

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/yysun/agent-world-sub001/internal/ids"
)

// DefaultTimeoutSeconds matches the shell-command config default.
const DefaultTimeoutSeconds = 600

// TrustedWorkingDirectory resolves the cwd a shell tool is allowed to
// operate within, using a three-tier precedence:
//  1. an explicit context.workingDirectory,
//  2. the world's variables block key "working_directory",
//  3. the process-wide default (user home).
// The LLM-supplied args.directory is never consulted here — only the
// directory-mismatch guard in ValidateDirectory sees it.
func TrustedWorkingDirectory(explicitCtxDir, worldVariables string) string {
	if explicitCtxDir != "" {
		return explicitCtxDir
	}
	if wd, ok := ids.GetEnvValueFromText(worldVariables, "working_directory"); ok && wd != "" {
		return wd
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// ValidateDirectory enforces the directory-mismatch guard: if the LLM
// supplied a directory argument, it must canonicalize inside trustedCwd.
func ValidateDirectory(trustedCwd, llmDirectory string) (string, error) {
	if llmDirectory == "" {
		return trustedCwd, nil
	}
	resolved, err := Resolver{Root: trustedCwd}.Resolve(llmDirectory)
	if err != nil {
		return "", fmt.Errorf("Error: requested directory %q is outside world working directory", llmDirectory)
	}
	return resolved, nil
}

// TokenizePathCandidates splits command+parameters on whitespace and
// returns every token that looks like a path: absolute, ~-prefixed,
// ./ or ../-prefixed, a -flag=/path form, or containing a slash.
func TokenizePathCandidates(command string, parameters []string) []string {
	var candidates []string
	tokens := append(strings.Fields(command), parameters...)
	for _, tok := range tokens {
		if looksLikePath(tok) {
			candidates = append(candidates, stripFlagPrefix(tok))
		}
	}
	return candidates
}

func looksLikePath(tok string) bool {
	if strings.HasPrefix(tok, "/") || strings.HasPrefix(tok, "~") ||
		strings.HasPrefix(tok, "./") || strings.HasPrefix(tok, "../") {
		return true
	}
	if eq := strings.Index(tok, "="); eq >= 0 && strings.Contains(tok[eq+1:], "/") {
		return true
	}
	return strings.Contains(tok, "/")
}

func stripFlagPrefix(tok string) string {
	if eq := strings.Index(tok, "="); eq >= 0 && strings.HasPrefix(tok, "-") {
		return tok[eq+1:]
	}
	return tok
}

// ValidatePathScope canonicalizes every path-like token in the command
// and parameters and requires each to lie within trustedCwd.
func ValidatePathScope(trustedCwd, command string, parameters []string) error {
	resolver := Resolver{Root: trustedCwd}
	for _, tok := range TokenizePathCandidates(command, parameters) {
		expanded := expandHome(tok)
		if _, err := resolver.Resolve(expanded); err != nil {
			return fmt.Errorf("Error: path %q is outside world working directory", tok)
		}
	}
	return nil
}

func expandHome(tok string) string {
	if !strings.HasPrefix(tok, "~") {
		return tok
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return tok
	}
	return home + strings.TrimPrefix(tok, "~")
}

// inlineScriptPatterns matches interpreter invocations that embed a
// script inline, which could otherwise smuggle paths past the
// tokenizer (e.g. `sh -c "cat /etc/passwd"`, `python -c "..."`).
var inlineScriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(^|[\s;|&])(sh|bash|zsh|ksh|dash)\s+-c\b`),
	regexp.MustCompile(`(^|[\s;|&])(node|nodejs)\s+-e\b`),
	regexp.MustCompile(`(^|[\s;|&])python[0-9.]*\s+-c\b`),
	regexp.MustCompile(`(^|[\s;|&])pwsh\s+-command\b`),
	regexp.MustCompile(`(^|[\s;|&])env\s+\S+\s+(sh|bash|python[0-9.]*|node)\s+-[ce]\b`),
}

// ValidateNoInlineScript rejects commands that invoke an interpreter
// with an embedded script argument passed directly on the command line.
func ValidateNoInlineScript(command string) error {
	lower := strings.ToLower(command)
	for _, p := range inlineScriptPatterns {
		if p.MatchString(lower) {
			return fmt.Errorf("Error: inline interpreter scripts are not permitted")
		}
	}
	return nil
}

// QuoteIfNeeded wraps a parameter in double quotes if it contains
// whitespace or quote characters.
func QuoteIfNeeded(param string) string {
	if strings.ContainsAny(param, " \t\"'") {
		escaped := strings.ReplaceAll(param, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return param
}

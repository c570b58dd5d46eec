package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// ExecutorConfig tunes the per-tool-call timeout, mirroring the
// teacher's internal/agent/executor.go ExecutorConfig. MaxRetries and
// BackoffBase are not read by the executor: every tool call runs once.
type ExecutorConfig struct {
	DefaultTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
}

// DefaultExecutorConfig matches the teacher's defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout: 30 * time.Second,
		MaxRetries:     0, // not read; tool calls are never retried
		BackoffBase:    200 * time.Millisecond,
	}
}

// pendingToolCall bundles the LLM's raw call with the resolved tool.
type pendingToolCall struct {
	call orchmodel.ToolCall
	tool orchmodel.Tool
}

// toolOutcome is one tool execution's result, keyed back to its call.
type toolOutcome struct {
	callID  string
	name    string
	result  *orchmodel.ToolResult
	err     error
	elapsed time.Duration
}

// executeToolsSequentially runs each call's tool in order: tool-call
// sequences within one assistant turn execute sequentially (in-order
// iteration) to preserve dependency relationships — a deliberate
// deviation from the teacher's executor.go (which parallelizes
// independent tool calls), grounded on the same panic-recovery/timeout
// substrate, just iterated serially.
func (l *Loop) executeToolsSequentially(ctx context.Context, pending []pendingToolCall, tc orchmodel.ToolContext) []toolOutcome {
	outcomes := make([]toolOutcome, 0, len(pending))
	for _, p := range pending {
		outcomes = append(outcomes, l.executeOneWithRecovery(ctx, p, tc))
	}
	return outcomes
}

func (l *Loop) executeOneWithRecovery(ctx context.Context, p pendingToolCall, tc orchmodel.ToolContext) (outcome toolOutcome) {
	outcome.callID = p.call.ID
	outcome.name = p.call.Function.Name

	ctx, endTool := l.tracer.StartTool(ctx, outcome.name)
	defer func() { endTool(outcome.err) }()

	timeout := l.executorConfig.DefaultTimeout
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		res *orchmodel.ToolResult
		err error
	}
	resultCh := make(chan execResult, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- execResult{err: fmt.Errorf("tool %s panicked: %v", p.call.Function.Name, r)}
			}
		}()
		res, err := p.tool.Execute(runCtx, tc, []byte(p.call.Function.Arguments))
		resultCh <- execResult{res: res, err: err}
	}()

	select {
	case r := <-resultCh:
		outcome.result = r.res
		outcome.err = r.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			outcome.err = ErrCancelled
		} else {
			outcome.err = fmt.Errorf("tool %s timed out after %v", p.call.Function.Name, timeout)
		}
	}
	outcome.elapsed = time.Since(start)
	return outcome
}

// parseToolArguments validates that a tool call's arguments are
// syntactically valid JSON before execution, surfacing a parse failure
// as a tool-result error rather than failing the whole turn.
func parseToolArguments(argsJSON string) error {
	if argsJSON == "" {
		return nil
	}
	var v map[string]any
	return json.Unmarshal([]byte(argsJSON), &v)
}

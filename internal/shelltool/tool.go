// Package shelltool implements the shell-command tool:
// it spawns commands through /bin/sh, streams stdout/stderr onto the
// world bus, enforces trusted-cwd containment, and records lifecycle
// transitions in an internal/shellproc.Registry.
//
// Grounded on the teacher's internal/tools/exec/manager.go (spawn
// idiom, limitedBuffer) and internal/tools/exec/tools.go (Tool shape).
package shelltool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
	"github.com/yysun/agent-world-sub001/internal/shellproc"
)

// StreamSink receives streamed stdout/stderr chunks as tool-stream SSE
// events. No type in this module implements it; a nil Stream disables
// streaming.
type StreamSink interface {
	PublishToolStream(worldID, toolCallID, stream, chunk string)
}

// Args is the LLM-facing parameter shape for the shell command tool.
type Args struct {
	Command   string   `json:"command"`
	Parameters []string `json:"parameters,omitempty"`
	Directory string   `json:"directory,omitempty"`
	Input     string   `json:"input,omitempty"`
	TimeoutMs int64    `json:"timeout_ms,omitempty"`
}

// Tool is the shell-command built-in tool.
type Tool struct {
	Registry *shellproc.Registry
	Stream   StreamSink
}

// New creates a shell-command tool backed by registry, streaming
// through sink (sink may be nil to disable streaming, e.g. in tests).
func New(registry *shellproc.Registry, sink StreamSink) *Tool {
	return &Tool{Registry: registry, Stream: sink}
}

func (t *Tool) Name() string        { return "exec" }
func (t *Tool) Description() string { return "Run a shell command within the world's trusted working directory." }
func (t *Tool) Schema() []byte {
	return []byte(`{"required":["command"],"properties":{"command":{"type":"string"},"parameters":{"type":"array"},"directory":{"type":"string"},"input":{"type":"string"},"timeout_ms":{"type":"number"}}}`)
}

// processHandle adapts an *exec.Cmd to shellproc.Handle.
type processHandle struct {
	cmd *exec.Cmd
}

func (h *processHandle) Signal() error {
	if h.cmd.Process == nil {
		return fmt.Errorf("shelltool: process not started")
	}
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (t *Tool) Execute(ctx context.Context, tc orchmodel.ToolContext, argsJSON []byte) (*orchmodel.ToolResult, error) {
	var args Args
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: malformed exec arguments: %v", err)}, nil
	}
	if strings.TrimSpace(args.Command) == "" {
		return &orchmodel.ToolResult{IsError: true, Content: "Error: command is required"}, nil
	}

	var worldVars, worldID string
	if tc.World != nil {
		worldVars = tc.World.Variables
		worldID = tc.World.ID
	}
	trustedCwd := TrustedWorkingDirectory(tc.WorkingDirectory, worldVars)

	cwd, err := ValidateDirectory(trustedCwd, args.Directory)
	if err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: err.Error()}, nil
	}
	if err := ValidatePathScope(trustedCwd, args.Command, args.Parameters); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: err.Error()}, nil
	}
	if err := ValidateNoInlineScript(args.Command); err != nil {
		return &orchmodel.ToolResult{IsError: true, Content: err.Error()}, nil
	}

	fullCommand := args.Command
	for _, p := range args.Parameters {
		fullCommand += " " + QuoteIfNeeded(p)
	}

	timeout := time.Duration(args.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds * time.Second
	}

	rec := t.Registry.Create(args.Command, args.Parameters, cwd, worldID, tc.ChatID)
	_ = t.Registry.Transition(rec.ExecutionID, shellproc.StatusStarting, shellproc.Patch{})

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", fullCommand)
	cmd.Dir = cwd
	if args.Input != "" {
		cmd.Stdin = strings.NewReader(args.Input)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		_ = t.Registry.Transition(rec.ExecutionID, shellproc.StatusFailed, errPatch(err))
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %v", err)}, nil
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		_ = t.Registry.Transition(rec.ExecutionID, shellproc.StatusFailed, errPatch(err))
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %v", err)}, nil
	}

	if err := cmd.Start(); err != nil {
		_ = t.Registry.Transition(rec.ExecutionID, shellproc.StatusFailed, errPatch(err))
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: %v", err)}, nil
	}
	_ = t.Registry.AttachHandle(rec.ExecutionID, &processHandle{cmd: cmd})
	_ = t.Registry.Transition(rec.ExecutionID, shellproc.StatusRunning, shellproc.Patch{})

	var stdout, stderr strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go t.pump(stdoutPipe, &stdout, "stdout", worldID, tc.ToolCallID, &wg)
	go t.pump(stderrPipe, &stderr, "stderr", worldID, tc.ToolCallID, &wg)
	wg.Wait()

	waitErr := cmd.Wait()
	stdoutLen := stdout.Len()
	stderrLen := stderr.Len()

	if cur, ok := t.Registry.Get(rec.ExecutionID); ok {
		rec = cur
	}
	status, exitCode, signal, resultErr := classifyOutcome(runCtx, rec, waitErr)
	patch := shellproc.Patch{
		ExitCode:  &exitCode,
		StdoutLen: &stdoutLen,
		StderrLen: &stderrLen,
	}
	if signal != "" {
		patch.Signal = &signal
	}
	if resultErr != "" {
		patch.Error = &resultErr
	}
	_ = t.Registry.Transition(rec.ExecutionID, status, patch)

	if status != shellproc.StatusCompleted {
		msg := resultErr
		if msg == "" {
			msg = string(status)
		}
		return &orchmodel.ToolResult{IsError: true, Content: fmt.Sprintf("Error: command %s: %s\nstdout: %s\nstderr: %s", status, msg, stdout.String(), stderr.String())}, nil
	}
	return &orchmodel.ToolResult{Content: fmt.Sprintf("exit_code: %d\nstdout: %s\nstderr: %s", exitCode, stdout.String(), stderr.String())}, nil
}

func errPatch(err error) shellproc.Patch {
	msg := err.Error()
	return shellproc.Patch{Error: &msg}
}

func (t *Tool) pump(r io.Reader, dest *strings.Builder, stream, worldID, toolCallID string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		dest.WriteString(line)
		dest.WriteByte('\n')
		if t.Stream != nil {
			t.Stream.PublishToolStream(worldID, toolCallID, stream, line)
		}
	}
}

// classifyOutcome determines the terminal status for a finished process
//: completed (exit 0), failed (non-zero exit), timed_out
// (context deadline exceeded), or canceled (context canceled or the
// record's CancelRequested flag was set).
func classifyOutcome(ctx context.Context, rec shellproc.Record, waitErr error) (status shellproc.Status, exitCode int, signal, errMsg string) {
	if ctx.Err() == context.DeadlineExceeded {
		return shellproc.StatusTimedOut, -1, "SIGTERM", "command timed out"
	}
	if ctx.Err() == context.Canceled || rec.CancelRequested {
		return shellproc.StatusCanceled, -1, "SIGTERM", "command canceled"
	}
	if waitErr == nil {
		return shellproc.StatusCompleted, 0, "", ""
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return shellproc.StatusFailed, exitErr.ExitCode(), "", waitErr.Error()
	}
	return shellproc.StatusFailed, -1, "", waitErr.Error()
}

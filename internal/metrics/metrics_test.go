package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// New registers on the default registry, so exactly one instance is
// built for this whole file and shared across subtests to avoid a
// "duplicate metrics collector registration" panic.
func TestMetrics(t *testing.T) {
	m := New()

	t.Run("RecordLLMRequest", func(t *testing.T) {
		m.RecordLLMRequest("openai", "gpt-4o", "success", 250*time.Millisecond, 100, 50)
		if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("openai", "gpt-4o", "success")); got < 1 {
			t.Errorf("LLMRequestCounter = %v, want >= 1", got)
		}
		if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("openai", "gpt-4o", "input")); got < 100 {
			t.Errorf("LLMTokensUsed(input) = %v, want >= 100", got)
		}
		if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("openai", "gpt-4o", "output")); got < 50 {
			t.Errorf("LLMTokensUsed(output) = %v, want >= 50", got)
		}
	})

	t.Run("RecordLLMRequest_ZeroTokensNotRecorded", func(t *testing.T) {
		m.RecordLLMRequest("anthropic", "claude", "error", time.Second, 0, 0)
		if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("anthropic", "claude", "input")); got != 0 {
			t.Errorf("LLMTokensUsed(input) = %v, want 0 for a zero-token call", got)
		}
	})

	t.Run("RecordToolExecution", func(t *testing.T) {
		m.RecordToolExecution("create_agent", "success", 10*time.Millisecond)
		if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("create_agent", "success")); got < 1 {
			t.Errorf("ToolExecutionCounter = %v, want >= 1", got)
		}
	})

	t.Run("RecordHITLResolution", func(t *testing.T) {
		m.RecordHITLResolution("user", 30*time.Second)
		if got := testutil.ToFloat64(m.HITLRequestCounter.WithLabelValues("user")); got < 1 {
			t.Errorf("HITLRequestCounter = %v, want >= 1", got)
		}
	})

	t.Run("RecordShellProcess", func(t *testing.T) {
		m.RecordShellProcess("completed", 5*time.Second)
		if got := testutil.ToFloat64(m.ShellProcessCounter.WithLabelValues("completed")); got < 1 {
			t.Errorf("ShellProcessCounter = %v, want >= 1", got)
		}
	})

	t.Run("SetWorldProcessing", func(t *testing.T) {
		m.SetWorldProcessing("w1", true)
		if got := testutil.ToFloat64(m.WorldActivity.WithLabelValues("w1")); got != 1 {
			t.Errorf("WorldActivity(w1) = %v, want 1", got)
		}
		m.SetWorldProcessing("w1", false)
		if got := testutil.ToFloat64(m.WorldActivity.WithLabelValues("w1")); got != 0 {
			t.Errorf("WorldActivity(w1) = %v, want 0 after clearing", got)
		}
	})
}

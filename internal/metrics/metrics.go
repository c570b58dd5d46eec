// Package metrics exposes the orchestration core's Prometheus metrics.
//
// Grounded on the teacher's internal/observability/metrics.go: a single
// struct of promauto-registered vectors with small recording methods,
// scaled down to this core's own concerns (dispatch turns, tool
// execution, HITL, shell processes, world activity) instead of the
// teacher's channel/webhook/database surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/histogram/gauge the core records.
type Metrics struct {
	LLMRequestDuration *prometheus.HistogramVec
	LLMRequestCounter  *prometheus.CounterVec
	LLMTokensUsed      *prometheus.CounterVec

	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	HITLRequestCounter  *prometheus.CounterVec
	HITLResolutionTime  *prometheus.HistogramVec

	ShellProcessCounter  *prometheus.CounterVec
	ShellProcessDuration *prometheus.HistogramVec

	ActiveWorlds  prometheus.Gauge
	ActiveAgents  *prometheus.GaugeVec
	WorldActivity *prometheus.GaugeVec
}

// New creates and registers every metric on the default registry. Call
// once at process startup.
func New() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchcore_llm_request_duration_seconds",
				Help:    "Duration of LLM provider calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchcore_llm_requests_total",
				Help: "Total LLM provider calls by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchcore_llm_tokens_total",
				Help: "Total tokens consumed by provider, model, and kind",
			},
			[]string{"provider", "model", "kind"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchcore_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		HITLRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchcore_hitl_requests_total",
				Help: "Total HITL requests by resolution source",
			},
			[]string{"source"},
		),
		HITLResolutionTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchcore_hitl_resolution_seconds",
				Help:    "Time from HITL request to resolution in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"source"},
		),
		ShellProcessCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchcore_shell_processes_total",
				Help: "Total shell processes by terminal status",
			},
			[]string{"status"},
		),
		ShellProcessDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchcore_shell_process_duration_seconds",
				Help:    "Shell process wall time in seconds",
				Buckets: []float64{0.1, 1, 5, 30, 60, 300, 600},
			},
			[]string{"status"},
		),
		ActiveWorlds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "orchcore_active_worlds",
			Help: "Number of worlds currently subscribed/attached",
		}),
		ActiveAgents: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchcore_active_agents",
				Help: "Number of agents currently registered, by world",
			},
			[]string{"world_id"},
		),
		WorldActivity: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchcore_world_processing",
				Help: "1 if a world is currently processing, else 0",
			},
			[]string{"world_id"},
		),
	}
}

// RecordLLMRequest records one provider call's outcome.
func (m *Metrics) RecordLLMRequest(provider, model, status string, d time.Duration, inputTokens, outputTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordToolExecution records one tool call's outcome.
func (m *Metrics) RecordToolExecution(toolName, status string, d time.Duration) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

// RecordHITLResolution records a HITL request's resolution.
func (m *Metrics) RecordHITLResolution(source string, d time.Duration) {
	m.HITLRequestCounter.WithLabelValues(source).Inc()
	m.HITLResolutionTime.WithLabelValues(source).Observe(d.Seconds())
}

// RecordShellProcess records a shell process's terminal status.
func (m *Metrics) RecordShellProcess(status string, d time.Duration) {
	m.ShellProcessCounter.WithLabelValues(status).Inc()
	m.ShellProcessDuration.WithLabelValues(status).Observe(d.Seconds())
}

// SetWorldProcessing updates the per-world processing gauge.
func (m *Metrics) SetWorldProcessing(worldID string, processing bool) {
	v := 0.0
	if processing {
		v = 1.0
	}
	m.WorldActivity.WithLabelValues(worldID).Set(v)
}

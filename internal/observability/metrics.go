package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting runtime metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - LLM request performance and response times across providers
//   - Tool execution patterns and latencies
//   - Error rates categorized by type and component
//   - Active thread counts for capacity planning
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", time.Since(start).Seconds(), 100, 500)
type Metrics struct {
	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization.
	// Labels: provider, model
	ContextWindowUsed *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (executor|router|provider|spawnguard), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveThreads is a gauge tracking currently-running agent threads.
	// Labels: role (main|sub)
	ActiveThreads *prometheus.GaugeVec

	// TurnDuration measures turn lifetime in seconds.
	TurnDuration *prometheus.HistogramVec

	// TurnAttempts counts turn attempts by outcome (for retry tracking).
	// Labels: status (success|retry|failed)
	TurnAttempts *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available via a prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cokra_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cokra_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cokra_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cokra_llm_cost_usd_total",
				Help: "Estimated LLM API cost in USD",
			},
			[]string{"provider", "model"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cokra_context_window_tokens",
				Help:    "Context window tokens used per turn",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cokra_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cokra_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cokra_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveThreads: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cokra_active_threads",
				Help: "Current number of active agent threads by role",
			},
			[]string{"role"},
		),

		TurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cokra_turn_duration_seconds",
				Help:    "Duration of turns in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{},
		),

		TurnAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cokra_turn_attempts_total",
				Help: "Total number of turn attempts by status",
			},
			[]string{"status"},
		),
	}
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// ThreadStarted increments the active threads gauge.
func (m *Metrics) ThreadStarted(role string) {
	m.ActiveThreads.WithLabelValues(role).Inc()
}

// ThreadEnded decrements the active threads gauge.
func (m *Metrics) ThreadEnded(role string) {
	m.ActiveThreads.WithLabelValues(role).Dec()
}

// RecordTurn records turn completion duration and outcome.
func (m *Metrics) RecordTurn(durationSeconds float64, status string) {
	m.TurnDuration.WithLabelValues().Observe(durationSeconds)
	m.TurnAttempts.WithLabelValues(status).Inc()
}

// RecordLLMCost records estimated API cost.
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records context window utilization.
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

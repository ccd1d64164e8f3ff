// Package observability provides structured logging and metrics for the
// agent runtime.
//
// # Overview
//
// The package covers two of the usual three observability pillars:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//
// Distributed tracing is not part of this engine's scope: it has no
// network-facing surface of its own (see cmd/cokra's "serve" stub), so
// there is no request to trace across process boundaries.
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - LLM API request latency and token usage, by provider and model
//   - Tool execution performance, by tool name
//   - Error rates by component and type
//   - Active thread counts
//   - Turn duration and outcome
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... call the provider ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", time.Since(start).Seconds(), 120, 480)
//
// # Logging
//
// Logging is built on log/slog and provides:
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - JSON or text output format, selected by internal/config's LoggingConfig
//   - Context-carried correlation (request_id, session_id, user_id, thread_id)
//   - Redaction of sensitive data (API keys, tokens, passwords) before a
//     record is ever written
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  cfg.Logging.Level,
//	    Format: cfg.Logging.Format,
//	})
//	ctx := observability.AddThreadID(context.Background(), threadId.String())
//	logger.Info(ctx, "turn started", "model", cfg.LLM.DefaultProvider)
package observability

// Package observability provides logging and metrics support for the
// literature digest service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for runs, keywords, citations, translation, and mail
//   - Context helpers for propagating run and keyword identifiers
//   - A zerolog adapter for the cron scheduler
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("daily run started")
//
// Add keyword context to logger:
//
//	logger = observability.WithKeywordContext(logger, keyword, len(emails))
//
// # Metrics
//
// Initialize metrics once per process:
//
//	metrics := observability.NewMetrics("literature_digest")
//
// Record metrics:
//
//	metrics.RecordRunStarted()
//	metrics.RecordCitations("cited", 0.75, 1)
//	metrics.RecordMailSend("delivered")
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - run_id: Daily run identifier
//   - keyword: Subscription keyword being processed
//   - recipients: Number of recipients for the keyword
//   - account: Outbound mail account username
//   - recipient: Report recipient address
//   - task: LLM task (query_generator, summarizer, abstract_translator)
//   - provider, model: LLM provider name and model
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability

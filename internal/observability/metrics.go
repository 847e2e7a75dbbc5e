package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the literature digest service.
// Metrics are organized by subsystem: runs, keywords, search, citations,
// translation, mail, and LLM operations. All counters and histograms are
// registered via promauto with the default Prometheus registry.
//
// Record methods are safe to call on a nil *Metrics, so components built
// without metrics (tests, one-shot CLI runs) need no guards.
type Metrics struct {
	// RunsStarted counts daily runs that passed the guard and began work.
	RunsStarted prometheus.Counter

	// RunsCompleted counts runs that finished without a setup failure.
	RunsCompleted prometheus.Counter

	// RunsFailed counts runs aborted by a failure outside the keyword loop.
	RunsFailed prometheus.Counter

	// RunsSkipped counts triggers skipped because today's marker was present.
	RunsSkipped prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// KeywordsProcessed counts keyword pipelines, labeled by final status.
	KeywordsProcessed *prometheus.CounterVec

	// ArticlesFetched observes the number of articles returned per keyword search.
	ArticlesFetched prometheus.Histogram

	// SearchDuration observes article search duration in seconds, labeled by source.
	SearchDuration *prometheus.HistogramVec

	// SearchesFailed counts failed article searches, labeled by source.
	SearchesFailed *prometheus.CounterVec

	// CitationReferenceRate observes the fraction of articles cited per review.
	CitationReferenceRate prometheus.Histogram

	// CitationOutcomes counts reconciled reviews, labeled by outcome (cited, uncited).
	CitationOutcomes *prometheus.CounterVec

	// CitationsSkipped counts out-of-range citation markers.
	CitationsSkipped prometheus.Counter

	// TranslationBatches counts translation batches, labeled by outcome.
	TranslationBatches *prometheus.CounterVec

	// MailSends counts final delivery results, labeled by outcome.
	MailSends *prometheus.CounterVec

	// MailRetries counts retries after transient SMTP failures.
	MailRetries prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by task and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by task, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by task and model.
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of daily runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of daily runs completed",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of daily runs that failed during setup",
		}),
		RunsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_skipped_total",
			Help:      "Total number of triggers skipped because the day already ran",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of daily runs in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200, 14400},
		}),

		// Keywords and search
		KeywordsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keywords_processed_total",
			Help:      "Total number of keyword pipelines by status",
		}, []string{"status"}),
		ArticlesFetched: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_per_keyword",
			Help:      "Number of articles returned per keyword search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of article searches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of failed article searches by source",
		}, []string{"source"}),

		// Citations
		CitationReferenceRate: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "citation_reference_rate",
			Help:      "Fraction of articles cited by generated reviews",
			Buckets:   []float64{0, 0.2, 0.5, 0.8, 1},
		}),
		CitationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citation_outcomes_total",
			Help:      "Total number of reconciled reviews by outcome",
		}, []string{"outcome"}),
		CitationsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_skipped_total",
			Help:      "Total number of citation markers outside the article list",
		}),

		// Translation
		TranslationBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_batches_total",
			Help:      "Total number of abstract translation batches by outcome",
		}, []string{"outcome"}),

		// Mail
		MailSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_sends_total",
			Help:      "Total number of report deliveries by outcome",
		}, []string{"outcome"}),
		MailRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_retries_total",
			Help:      "Total number of delivery retries after transient SMTP errors",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"task", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"task", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"task", "model"}),
	}
}

// RecordRunStarted records that a run has started.
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
}

// RecordRunCompleted records that a run has completed.
func (m *Metrics) RecordRunCompleted(durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records that a run has failed.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunSkipped records a trigger skipped by the daily guard.
func (m *Metrics) RecordRunSkipped() {
	if m == nil {
		return
	}
	m.RunsSkipped.Inc()
}

// RecordKeyword records the final status of a keyword pipeline.
func (m *Metrics) RecordKeyword(status string) {
	if m == nil {
		return
	}
	m.KeywordsProcessed.WithLabelValues(status).Inc()
}

// RecordSearchCompleted records a successful search.
func (m *Metrics) RecordSearchCompleted(source string, articleCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.ArticlesFetched.Observe(float64(articleCount))
}

// RecordSearchFailed records a failed search.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordCitations records the result of citation reconciliation.
func (m *Metrics) RecordCitations(outcome string, rate float64, skipped int) {
	if m == nil {
		return
	}
	m.CitationOutcomes.WithLabelValues(outcome).Inc()
	m.CitationReferenceRate.Observe(rate)
	m.CitationsSkipped.Add(float64(skipped))
}

// RecordTranslationBatch records one translation batch outcome.
func (m *Metrics) RecordTranslationBatch(outcome string) {
	if m == nil {
		return
	}
	m.TranslationBatches.WithLabelValues(outcome).Inc()
}

// RecordMailSend records the final result of one delivery.
func (m *Metrics) RecordMailSend(outcome string) {
	if m == nil {
		return
	}
	m.MailSends.WithLabelValues(outcome).Inc()
}

// RecordMailRetry records a retry after a transient SMTP failure.
func (m *Metrics) RecordMailRetry() {
	if m == nil {
		return
	}
	m.MailRetries.Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(task, model string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(task, model).Inc()
	m.LLMRequestDuration.WithLabelValues(task, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(task, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsFailed.WithLabelValues(task, model, errorType).Inc()
}

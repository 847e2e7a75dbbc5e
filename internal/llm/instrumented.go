package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/observability"
)

// instrumented records metrics and logs around every Generate call.
type instrumented struct {
	next    Generator
	task    string
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// Instrument wraps g so each call is timed, counted under task, and logged.
// A nil metrics value disables metrics.
func Instrument(task string, g Generator, metrics *observability.Metrics, logger zerolog.Logger) Generator {
	return &instrumented{
		next:    g,
		task:    task,
		metrics: metrics,
		logger:  observability.WithLLMContext(logger, task, g.Provider(), g.Model()),
	}
}

func (i *instrumented) Generate(ctx context.Context, prompt string) (*Completion, error) {
	start := time.Now()
	log := i.contextLogger(ctx)
	log.Debug().Int("prompt_chars", len(prompt)).Msg("llm request started")

	completion, err := i.next.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		errType := ErrorType(err)
		i.metrics.RecordLLMRequestFailed(i.task, i.next.Model(), errType)
		log.Error().
			Err(err).
			Str("error_type", errType).
			Dur("duration", elapsed).
			Msg("llm request failed")
		return nil, err
	}

	i.metrics.RecordLLMRequest(i.task, i.next.Model(), elapsed.Seconds())
	log.Info().
		Dur("duration", elapsed).
		Int("input_tokens", completion.InputTokens).
		Int("output_tokens", completion.OutputTokens).
		Int("response_chars", len(completion.Text)).
		Msg("llm request completed")
	return completion, nil
}

// contextLogger adds the run and keyword carried by ctx, if any.
func (i *instrumented) contextLogger(ctx context.Context) zerolog.Logger {
	lc := i.logger.With()
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		lc = lc.Str("run_id", runID)
	}
	if keyword := observability.KeywordFromContext(ctx); keyword != "" {
		lc = lc.Str("keyword", keyword)
	}
	return lc.Logger()
}

func (i *instrumented) Provider() string { return i.next.Provider() }
func (i *instrumented) Model() string    { return i.next.Model() }

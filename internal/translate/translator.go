// Package translate translates article abstracts in batches through an LLM.
//
// Abstracts are joined into one prompt per batch with a separator line and
// the model is expected to answer with the same number of translations in
// the same order. Every article that enters translation leaves it with
// some text: the translation, or a sentinel naming what went wrong.
package translate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/llm"
	"github.com/helixir/literature-digest-service/internal/observability"
)

const (
	// Separator joins abstracts inside a batch prompt.
	Separator = "\n|||---|||\n"

	// PromptVariable is the placeholder the translation prompt receives the batch in.
	PromptVariable = "abstracts_batch"

	DefaultBatchSize  = 5
	DefaultBatchDelay = 5 * time.Second
)

// Sentinel texts stored as the translated abstract when no translation exists.
const (
	// PendingText is preset on every article before translation starts and
	// is what articles in batches that were never reached keep.
	PendingText = "Translation service call failed"
	// MismatchText marks a batch whose response had the wrong number of parts.
	MismatchText = "Translation failed or response was malformed"
	// ErrorText marks a batch whose provider call failed.
	ErrorText = "An error occurred during translation"
)

// Outcome tags the result of one batch.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeMismatched Outcome = "mismatched"
	OutcomeFailed     Outcome = "failed"
)

// BatchResult describes one translated batch.
type BatchResult struct {
	// Start is the offset of the batch within the translated articles.
	Start   int
	Size    int
	Outcome Outcome
	// Parts is the number of translations the response contained.
	Parts int
	Err   error
}

// Result holds translations keyed by PMID together with per-batch outcomes.
type Result struct {
	Translations map[string]string
	Batches      []BatchResult
}

// Count returns how many batches ended with outcome.
func (r *Result) Count(outcome Outcome) int {
	n := 0
	for _, b := range r.Batches {
		if b.Outcome == outcome {
			n++
		}
	}
	return n
}

// Config configures a Translator.
type Config struct {
	// Template is the translate_abstract prompt; it must contain {abstracts_batch}.
	Template   string
	BatchSize  int
	BatchDelay time.Duration
}

// Translator turns English abstracts into translated text.
type Translator struct {
	generator llm.Generator
	template  string
	batchSize int
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// Option customizes a Translator.
type Option func(*Translator)

// WithSleep replaces the function used to wait between batches.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Translator) {
		t.sleep = sleep
	}
}

// WithMetrics records batch outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Translator) {
		t.metrics = m
	}
}

// New creates a Translator.
func New(generator llm.Generator, cfg Config, logger zerolog.Logger, opts ...Option) *Translator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}

	t := &Translator{
		generator: generator,
		template:  cfg.Template,
		batchSize: cfg.BatchSize,
		delay:     cfg.BatchDelay,
		sleep:     Sleep,
		logger:    logger.With().Str("component", "translator").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate translates the abstracts of articles that do not carry a
// translated abstract yet. It never returns an error: failures are recorded
// as sentinel texts and batch outcomes. Cancelling ctx stops before the next
// batch; unreached articles keep PendingText.
func (t *Translator) Translate(ctx context.Context, articles []domain.Article) *Result {
	result := &Result{Translations: map[string]string{}}

	var pending []domain.Article
	for _, a := range articles {
		if a.TranslatedAbstract != "" {
			continue
		}
		if _, seen := result.Translations[a.PMID]; seen {
			continue
		}
		result.Translations[a.PMID] = PendingText
		pending = append(pending, a)
	}
	if len(pending) == 0 {
		return result
	}

	t.logger.Info().
		Int("articles", len(pending)).
		Int("batch_size", t.batchSize).
		Msg("translating abstracts")

	for start := 0; start < len(pending); start += t.batchSize {
		if ctx.Err() != nil {
			t.logger.Warn().Int("remaining", len(pending)-start).Msg("translation cancelled")
			break
		}

		end := min(start+t.batchSize, len(pending))
		batch := pending[start:end]
		br := t.translateBatch(ctx, start, batch, result.Translations)
		result.Batches = append(result.Batches, br)
		t.metrics.RecordTranslationBatch(string(br.Outcome))

		if end < len(pending) && t.delay > 0 {
			t.logger.Debug().Dur("delay", t.delay).Msg("waiting before next translation batch")
			if err := t.sleep(ctx, t.delay); err != nil {
				t.logger.Warn().Err(err).Int("remaining", len(pending)-end).Msg("translation cancelled")
				break
			}
		}
	}

	return result
}

func (t *Translator) translateBatch(ctx context.Context, start int, batch []domain.Article, out map[string]string) BatchResult {
	br := BatchResult{Start: start, Size: len(batch)}
	log := t.logger.With().Int("batch_start", start+1).Int("batch_end", start+len(batch)).Logger()

	abstracts := make([]string, len(batch))
	for i, a := range batch {
		abstracts[i] = a.Abstract
	}

	prompt, err := llm.RenderPrompt(t.template, map[string]string{PromptVariable: strings.Join(abstracts, Separator)})
	if err == nil {
		var completion *llm.Completion
		completion, err = t.generator.Generate(ctx, prompt)
		if err == nil {
			parts := strings.Split(completion.Text, strings.TrimSpace(Separator))
			br.Parts = len(parts)
			if len(parts) == len(batch) {
				for i, a := range batch {
					out[a.PMID] = strings.TrimSpace(parts[i])
				}
				br.Outcome = OutcomeMatched
				log.Info().Msg("translation batch completed")
				return br
			}

			for _, a := range batch {
				out[a.PMID] = MismatchText
			}
			br.Outcome = OutcomeMismatched
			log.Warn().
				Int("expected", len(batch)).
				Int("received", len(parts)).
				Msg("translation batch returned the wrong number of parts")
			return br
		}
	}

	for _, a := range batch {
		out[a.PMID] = ErrorText
	}
	br.Outcome = OutcomeFailed
	br.Err = err
	log.Error().Err(err).Msg("translation batch failed")
	return br
}

// Merge returns copies of articles with TranslatedAbstract set from
// translations, matched by PMID. Articles without an entry are unchanged.
func Merge(articles []domain.Article, translations map[string]string) []domain.Article {
	out := domain.CloneArticles(articles)
	for i := range out {
		if text, ok := translations[out[i].PMID]; ok {
			out[i].TranslatedAbstract = text
		}
	}
	return out
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

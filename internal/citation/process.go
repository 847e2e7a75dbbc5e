package citation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
)

// Review is a generated review after citation processing.
type Review struct {
	// Body is the review text without its references section, with every
	// marker renumbered to match Result.Articles.
	Body string
	// RawRefs are the references extracted from the stripped body, unvalidated.
	RawRefs []int
	Result  Result
	// Recovered is set when processing panicked and fell back to OutcomeUncited.
	Recovered string
}

// Process strips the references section from text, reconciles the markers
// in the remaining body against articles and rewrites the body. Unexpected
// failures are recovered and reported as an uncited review.
func Process(text string, articles []domain.Article, logger zerolog.Logger) (review Review) {
	body := StripReferences(text)

	defer func() {
		if r := recover(); r != nil {
			review = Review{
				Body:      body,
				RawRefs:   []int{},
				Result:    uncited(articles),
				Recovered: fmt.Sprint(r),
			}
			logger.Error().
				Str("panic", review.Recovered).
				Int("articles", len(articles)).
				Msg("citation processing failed, treating review as uncited")
		}
	}()

	raw := ExtractReferences(body)
	res := Reconcile(raw, articles)
	review = Review{
		Body:    Rewrite(body, res.OldToNew),
		RawRefs: raw,
		Result:  res,
	}
	logResult(logger, review)
	return review
}

func logResult(logger zerolog.Logger, review Review) {
	res := review.Result
	if res.Outcome == OutcomeUncited {
		logger.Warn().
			Str("outcome", string(res.Outcome)).
			Int("articles", res.Stats.Total).
			Msg("no citations found in review, keeping all articles")
		return
	}

	if len(res.Skipped) > 0 {
		logger.Warn().
			Ints("skipped", res.Skipped).
			Int("articles", res.Stats.Total).
			Msg("review cited articles outside the list")
	}

	event := logger.Info()
	if res.Stats.Band == BandLow || res.Stats.Band == BandMinimal {
		event = logger.Warn()
	}
	event.
		Str("outcome", string(res.Outcome)).
		Ints("ordered_refs", res.OrderedOldRefs).
		Int("referenced", res.Stats.Referenced).
		Int("unreferenced", res.Stats.Unreferenced).
		Float64("reference_rate", res.Stats.Rate).
		Str("band", string(res.Stats.Band)).
		Msg("citations reconciled")
}

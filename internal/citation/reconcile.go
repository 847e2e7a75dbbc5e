package citation

import (
	"github.com/helixir/literature-digest-service/internal/domain"
)

// Outcome tags how a review cited its sources.
type Outcome string

const (
	// OutcomeCited means at least one citation marker was found.
	OutcomeCited Outcome = "cited"
	// OutcomeUncited means no markers were found, or reconciliation could not
	// complete. Every article is kept in its original order.
	OutcomeUncited Outcome = "uncited"
)

// Band classifies the share of articles a review referenced. It only drives
// log severity.
type Band string

const (
	BandFull      Band = "full"
	BandSelective Band = "selective"
	BandLow       Band = "low"
	BandMinimal   Band = "minimal"
)

// Reference rate thresholds for Band.
const (
	fullCoverageRate      = 0.8
	selectiveCoverageRate = 0.5
	lowCoverageRate       = 0.2
)

// Stats summarizes how much of the article list was referenced.
type Stats struct {
	Total        int
	Referenced   int
	Unreferenced int
	// UnreferencedIndices lists the old 1-based positions never cited.
	UnreferencedIndices []int
	// Rate is Referenced/Total, or 0 when there are no articles.
	Rate float64
	Band Band
}

// Result is the outcome of reconciling a reference sequence with an article list.
type Result struct {
	Outcome Outcome
	// OrderedOldRefs holds the unique, in-range old indices in first-appearance order.
	OrderedOldRefs []int
	// OldToNew maps each entry of OrderedOldRefs to its 1-based rank.
	OldToNew map[int]int
	// Articles are copies of the selected articles in citation order, each
	// stamped with its new CitationIndex. For OutcomeUncited this is the whole
	// list in original order.
	Articles []domain.Article
	// Skipped holds unique out-of-range references in first-appearance order.
	Skipped []int
	Stats   Stats
}

// Reconcile validates, deduplicates and renumbers rawRefs against articles.
// It never fails: out-of-range references are recorded in Skipped and an
// empty reference list yields OutcomeUncited. The input slice is not
// modified. Identical inputs always produce identical results.
func Reconcile(rawRefs []int, articles []domain.Article) Result {
	unique := dedupInts(rawRefs)
	if len(unique) == 0 {
		return uncited(articles)
	}

	res := Result{
		Outcome:        OutcomeCited,
		OrderedOldRefs: make([]int, 0, len(unique)),
		OldToNew:       make(map[int]int, len(unique)),
		Articles:       make([]domain.Article, 0, len(unique)),
	}

	for _, old := range unique {
		if old < 1 || old > len(articles) {
			res.Skipped = append(res.Skipped, old)
			continue
		}
		res.OrderedOldRefs = append(res.OrderedOldRefs, old)
		newIdx := len(res.OrderedOldRefs)
		res.OldToNew[old] = newIdx

		a := articles[old-1].Clone()
		a.CitationIndex = newIdx
		res.Articles = append(res.Articles, a)
	}

	res.Stats = computeStats(len(articles), res.OldToNew)
	return res
}

// uncited keeps every article in original order with citation index equal
// to its 1-based position.
func uncited(articles []domain.Article) Result {
	res := Result{
		Outcome:        OutcomeUncited,
		OrderedOldRefs: []int{},
		OldToNew:       map[int]int{},
		Articles:       make([]domain.Article, len(articles)),
	}
	for i, a := range articles {
		c := a.Clone()
		c.CitationIndex = i + 1
		res.Articles[i] = c
	}
	res.Stats = computeStats(len(articles), res.OldToNew)
	return res
}

func computeStats(total int, referenced map[int]int) Stats {
	s := Stats{
		Total:      total,
		Referenced: len(referenced),
	}
	s.Unreferenced = total - s.Referenced
	for i := 1; i <= total; i++ {
		if _, ok := referenced[i]; !ok {
			s.UnreferencedIndices = append(s.UnreferencedIndices, i)
		}
	}
	if total > 0 {
		s.Rate = float64(s.Referenced) / float64(total)
	}
	s.Band = classify(s.Rate)
	return s
}

func classify(rate float64) Band {
	switch {
	case rate >= fullCoverageRate:
		return BandFull
	case rate >= selectiveCoverageRate:
		return BandSelective
	case rate >= lowCoverageRate:
		return BandLow
	default:
		return BandMinimal
	}
}

func dedupInts(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// UniqueByPMID drops articles whose PMID was already seen, keeping order.
// Articles with an empty PMID are always kept.
func UniqueByPMID(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.PMID != "" {
			if _, ok := seen[a.PMID]; ok {
				continue
			}
			seen[a.PMID] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}

// Package papersources provides the article search abstraction used by the
// daily pipeline and the shared HTTP plumbing for search clients.
//
// Example usage:
//
//	source := pubmed.New(cfg, logger)
//	result, err := source.Search(ctx, papersources.SearchParams{
//		Query:      `glioma AND ("2026/03/01"[Date - Publication])`,
//		MaxResults: 20,
//	})
package papersources

import (
	"context"
	"time"

	"github.com/helixir/literature-digest-service/internal/domain"
)

// SearchParams defines the parameters for an article search.
type SearchParams struct {
	// Query is the search term in the source's native query language (required).
	Query string

	// MaxResults limits the number of articles returned.
	// A value of 0 uses the source's default limit.
	MaxResults int
}

// SearchResult contains the results from an article search.
type SearchResult struct {
	// Articles are returned in source order. That order defines the 1-based
	// positions the review prompt and citation reconciliation refer to.
	Articles []domain.Article

	// TotalResults is the total number of matches reported by the source,
	// which may exceed len(Articles).
	TotalResults int

	// Source names the source that produced these results.
	Source string

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// ArticleSource searches a bibliographic database.
type ArticleSource interface {
	// Search returns the articles matching params. An empty result is not
	// an error. The context should be used for cancellation.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// Name returns a human-readable name for logs and metrics.
	Name() string
}

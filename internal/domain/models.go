// Package domain provides domain models and business logic for the Literature Digest Service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the outcome of one daily run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// KeywordStatus represents the outcome of the pipeline for one keyword.
type KeywordStatus string

const (
	// KeywordStatusDelivered means a report was rendered and handed to the mailer.
	KeywordStatusDelivered KeywordStatus = "delivered"
	// KeywordStatusNoArticles means the search returned nothing; no mail is sent.
	KeywordStatusNoArticles KeywordStatus = "no_articles"
	// KeywordStatusFailed means a stage raised and the keyword was abandoned.
	KeywordStatusFailed KeywordStatus = "failed"
)

// Subscription binds a search keyword to the recipients of its report.
type Subscription struct {
	Keyword string
	Emails  []string
}

// KeywordOutcome records what happened to one keyword during a run.
type KeywordOutcome struct {
	Keyword         string
	Status          KeywordStatus
	ArticlesFound   int
	CitedArticles   int
	Recipients      int
	DeliveredEmails int
	Error           string
}

// RunSummary describes a complete daily run for the admin report and run events.
type RunSummary struct {
	RunID     uuid.UUID
	Status    RunStatus
	StartedAt time.Time
	EndedAt   time.Time
	Keywords  []KeywordOutcome
	// Error is set when the run failed outside the per-keyword loop.
	Error string
}

// NewRunSummary starts a summary for a run beginning at the given time.
func NewRunSummary(startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New(),
		Status:    RunStatusRunning,
		StartedAt: startedAt,
	}
}

// Duration returns the elapsed time of the run. A run that has not ended
// reports zero.
func (s *RunSummary) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Finish stamps the end time and final status.
func (s *RunSummary) Finish(endedAt time.Time, err error) {
	s.EndedAt = endedAt
	if err != nil {
		s.Status = RunStatusFailed
		s.Error = err.Error()
		return
	}
	s.Status = RunStatusSucceeded
}

// Add appends a keyword outcome.
func (s *RunSummary) Add(outcome KeywordOutcome) {
	s.Keywords = append(s.Keywords, outcome)
}

// FailedKeywords counts keywords whose pipeline failed.
func (s *RunSummary) FailedKeywords() int {
	n := 0
	for _, k := range s.Keywords {
		if k.Status == KeywordStatusFailed {
			n++
		}
	}
	return n
}

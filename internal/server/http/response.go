package httpserver

import (
	"time"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/schedule"
)

// Run response types for JSON serialization.

type statusResponse struct {
	Running     bool                `json:"running"`
	HasRunToday bool                `json:"has_run_today"`
	LastRun     *runSummaryResponse `json:"last_run,omitempty"`
}

type runSummaryResponse struct {
	RunID          string            `json:"run_id"`
	Status         string            `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        *time.Time        `json:"ended_at,omitempty"`
	Duration       string            `json:"duration,omitempty"`
	FailedKeywords int               `json:"failed_keywords"`
	Keywords       []keywordResponse `json:"keywords"`
	ErrorMessage   string            `json:"error_message,omitempty"`
}

type keywordResponse struct {
	Keyword         string `json:"keyword"`
	Status          string `json:"status"`
	ArticlesFound   int    `json:"articles_found"`
	CitedArticles   int    `json:"cited_articles"`
	Recipients      int    `json:"recipients"`
	DeliveredEmails int    `json:"delivered_emails"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

type startRunResponse struct {
	Accepted bool   `json:"accepted"`
	Force    bool   `json:"force"`
	Message  string `json:"message"`
}

// statusToResponse converts a runner status to its JSON form.
func statusToResponse(st schedule.Status) statusResponse {
	resp := statusResponse{
		Running:     st.Running,
		HasRunToday: st.HasRunToday,
	}
	if st.LastRun != nil {
		resp.LastRun = runSummaryToResponse(st.LastRun)
	}
	return resp
}

// runSummaryToResponse converts a domain.RunSummary to its JSON form.
func runSummaryToResponse(s *domain.RunSummary) *runSummaryResponse {
	resp := &runSummaryResponse{
		RunID:          s.RunID.String(),
		Status:         string(s.Status),
		StartedAt:      s.StartedAt,
		FailedKeywords: s.FailedKeywords(),
		Keywords:       make([]keywordResponse, 0, len(s.Keywords)),
		ErrorMessage:   s.Error,
	}
	if !s.EndedAt.IsZero() {
		ended := s.EndedAt
		resp.EndedAt = &ended
		resp.Duration = s.Duration().String()
	}
	for _, k := range s.Keywords {
		resp.Keywords = append(resp.Keywords, keywordResponse{
			Keyword:         k.Keyword,
			Status:          string(k.Status),
			ArticlesFound:   k.ArticlesFound,
			CitedArticles:   k.CitedArticles,
			Recipients:      k.Recipients,
			DeliveredEmails: k.DeliveredEmails,
			ErrorMessage:    k.Error,
		})
	}
	return resp
}

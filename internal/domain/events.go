package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for run events.
const (
	EventTypeRunCompleted = "digest.run.completed"
	EventTypeRunFailed    = "digest.run.failed"
)

// RunEvent represents a run lifecycle event published to the event bus.
type RunEvent struct {
	EventID      string
	EventVersion int
	EventType    string
	RunID        string
	Payload      []byte
	CreatedAt    time.Time
}

// RunEventPayload is the JSON body of a RunEvent.
type RunEventPayload struct {
	RunID           string          `json:"run_id"`
	Status          RunStatus       `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         time.Time       `json:"ended_at"`
	DurationSeconds float64         `json:"duration_seconds"`
	Keywords        []KeywordResult `json:"keywords"`
	Error           string          `json:"error,omitempty"`
}

// KeywordResult is the per-keyword part of a RunEventPayload.
type KeywordResult struct {
	Keyword       string        `json:"keyword"`
	Status        KeywordStatus `json:"status"`
	ArticlesFound int           `json:"articles_found"`
	CitedArticles int           `json:"cited_articles"`
	Recipients    int           `json:"recipients"`
	Delivered     int           `json:"delivered"`
	Error         string        `json:"error,omitempty"`
}

// NewRunEvent builds the event describing a finished run.
// The payload is JSON-serialized automatically.
func NewRunEvent(summary *RunSummary) (*RunEvent, error) {
	payload := RunEventPayload{
		RunID:           summary.RunID.String(),
		Status:          summary.Status,
		StartedAt:       summary.StartedAt,
		EndedAt:         summary.EndedAt,
		DurationSeconds: summary.Duration().Seconds(),
		Keywords:        make([]KeywordResult, 0, len(summary.Keywords)),
		Error:           summary.Error,
	}
	for _, k := range summary.Keywords {
		payload.Keywords = append(payload.Keywords, KeywordResult{
			Keyword:       k.Keyword,
			Status:        k.Status,
			ArticlesFound: k.ArticlesFound,
			CitedArticles: k.CitedArticles,
			Recipients:    k.Recipients,
			Delivered:     k.DeliveredEmails,
			Error:         k.Error,
		})
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	eventType := EventTypeRunCompleted
	if summary.Status == RunStatusFailed {
		eventType = EventTypeRunFailed
	}

	return &RunEvent{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		RunID:        summary.RunID.String(),
		Payload:      payloadBytes,
		CreatedAt:    time.Now(),
	}, nil
}

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/observability"
)

// maxRequestBodySize limits request bodies to 64 KB.
const maxRequestBodySize = 64 << 10

// startRunRequest is the optional JSON body of POST /runs.
type startRunRequest struct {
	// Force bypasses the daily marker check.
	Force       bool   `json:"force"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// getStatus handles GET /status.
func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusToResponse(s.runner.Status()))
}

// startRun handles POST /runs. The run proceeds in the background; the
// response only reports whether it was accepted.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startRunRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	if s.runner.Running() {
		writeError(w, http.StatusConflict, domain.ErrAlreadyRunning.Error())
		return
	}

	requestID := observability.RequestIDFromContext(r.Context())
	log := s.logger.With().
		Str("request_id", requestID).
		Str("requested_by", req.RequestedBy).
		Bool("force", req.Force).
		Logger()
	log.Info().Msg("run requested over HTTP")

	ctx := observability.WithRequestID(s.runCtx, requestID)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		summary, err := s.runner.Run(ctx, req.Force)
		switch {
		case errors.Is(err, domain.ErrAlreadyRunning):
			log.Warn().Msg("run already in progress, request dropped")
		case err != nil:
			log.Error().Err(err).Msg("requested run failed")
		case summary != nil:
			log.Info().
				Str("run_id", summary.RunID.String()).
				Str("status", string(summary.Status)).
				Msg("requested run finished")
		}
	}()

	writeJSON(w, http.StatusAccepted, startRunResponse{
		Accepted: true,
		Force:    req.Force,
		Message:  "run started",
	})
}

// Package httpserver provides the operational HTTP server of the literature
// digest service: health probes, Prometheus metrics, run status and manual
// run triggering.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/schedule"
)

// RunController runs the daily job and reports its state.
type RunController interface {
	Run(ctx context.Context, force bool) (*domain.RunSummary, error)
	Running() bool
	Status() schedule.Status
}

// Server is the operational HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	runner     RunController
	metrics    http.Handler
	cfg        Config
	logger     zerolog.Logger

	// runCtx is the parent context of runs started over HTTP.
	runCtx context.Context
	// runs tracks runs started over HTTP until they return.
	runs sync.WaitGroup
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath exposes Prometheus metrics; empty disables the endpoint.
	MetricsPath string
}

// NewServer creates a new HTTP server. Runs triggered over HTTP use runCtx
// as their parent so that they stop with the process, not with the request.
func NewServer(runCtx context.Context, cfg Config, runner RunController, logger zerolog.Logger) *Server {
	s := &Server{
		runner:  runner,
		metrics: promhttp.Handler(),
		cfg:     cfg,
		logger:  logger.With().Str("component", "http-server").Logger(),
		runCtx:  runCtx,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)
		r.Get("/status", s.getStatus)
		r.Post("/runs", s.startRun)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server, then waits for runs
// started over HTTP to return. Runs stop when runCtx is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("requested run still in progress at shutdown")
		return ctx.Err()
	}
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the process can accept run requests.
func (s *Server) readinessHandler(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  "runner not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"running": s.runner.Running(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/observability"
)

// Job performs one complete daily run. A returned error means the run failed
// before or outside the per-keyword loop; keyword failures are reported in
// the summary only.
type Job interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) (*domain.RunSummary, error)

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) (*domain.RunSummary, error) {
	return f(ctx)
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.RunEvent) error
}

// Status is a point-in-time view of the runner.
type Status struct {
	Running     bool               `json:"running"`
	HasRunToday bool               `json:"has_run_today"`
	LastRun     *domain.RunSummary `json:"last_run,omitempty"`
}

// Runner executes the job behind the daily guard and allows one run at a time.
type Runner struct {
	guard     *Guard
	job       Job
	publisher EventPublisher
	metrics   *observability.Metrics
	logger    zerolog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunSummary
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithPublisher publishes a run event after every executed run.
func WithPublisher(p EventPublisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithRunnerMetrics records run counters and durations.
func WithRunnerMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a Runner.
func NewRunner(guard *Guard, job Job, logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		guard:  guard,
		job:    job,
		logger: logger.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Guard returns the runner's guard.
func (r *Runner) Guard() *Guard {
	return r.guard
}

// Run executes the job unless today is already marked. With force the marker
// check is bypassed, but a successful run still marks today. A run that is
// skipped returns a summary with status skipped and no error. Overlapping
// calls fail with domain.ErrAlreadyRunning.
//
// Today is marked only when the job returns no error.
func (r *Runner) Run(ctx context.Context, force bool) (*domain.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, domain.ErrAlreadyRunning
	}
	defer r.running.Store(false)

	if !force && r.guard.HasRunToday() {
		r.logger.Info().Msg("daily run already completed today, skipping")
		r.metrics.RecordRunSkipped()
		now := time.Now()
		summary := domain.NewRunSummary(now)
		summary.Status = domain.RunStatusSkipped
		summary.EndedAt = now
		return summary, nil
	}

	if force {
		r.logger.Info().Msg("forced run, marker check bypassed")
	}

	r.metrics.RecordRunStarted()
	started := time.Now()

	summary, err := r.job.Run(ctx)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		r.metrics.RecordRunFailed(elapsed)
		r.logger.Error().Err(err).Msg("daily run failed, today is not marked")
	} else {
		r.metrics.RecordRunCompleted(elapsed)
		if markErr := r.guard.MarkToday(); markErr != nil {
			r.logger.Error().Err(markErr).Msg("failed to write run marker")
		}
	}

	if summary != nil {
		r.mu.Lock()
		r.last = summary
		r.mu.Unlock()
		r.publish(ctx, summary)
	}

	return summary, err
}

func (r *Runner) publish(ctx context.Context, summary *domain.RunSummary) {
	if r.publisher == nil {
		return
	}
	event, err := domain.NewRunEvent(summary)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build run event")
		return
	}
	// Publishing outlives cancellation of the trigger context.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, event); err != nil {
		r.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("failed to publish run event")
	}
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Status returns the current runner state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()
	return Status{
		Running:     r.running.Load(),
		HasRunToday: r.guard.HasRunToday(),
		LastRun:     last,
	}
}

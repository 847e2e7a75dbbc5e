package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-digest-service/internal/domain"
	"github.com/helixir/literature-digest-service/internal/observability"
)

// ParseRunTime parses an "HH:MM" time of day.
func ParseRunTime(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("run time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("run time %q: invalid hour", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("run time %q: invalid minute", s)
	}
	return hour, minute, nil
}

// ShouldCatchUp reports whether now is past today's trigger time.
func ShouldCatchUp(now time.Time, hour, minute int) bool {
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return now.After(scheduled)
}

// DaemonConfig configures a Daemon.
type DaemonConfig struct {
	// RunTime is the daily trigger time as HH:MM.
	RunTime string
	// Location is the zone RunTime is evaluated in; nil means time.Local.
	Location *time.Location
	// CatchUp runs immediately at startup when RunTime has passed today.
	CatchUp bool
}

// Daemon fires the runner once a day.
type Daemon struct {
	runner  *Runner
	hour    int
	minute  int
	loc     *time.Location
	catchUp bool
	now     func() time.Time
	cron    *cron.Cron
	logger  zerolog.Logger
}

// NewDaemon creates a Daemon. The trigger is registered but not started.
func NewDaemon(runner *Runner, cfg DaemonConfig, logger zerolog.Logger) (*Daemon, error) {
	hour, minute, err := ParseRunTime(cfg.RunTime)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	cronLogger := observability.NewCronLogger(logger)
	return &Daemon{
		runner:  runner,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		catchUp: cfg.CatchUp,
		now:     time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Spec returns the cron expression of the daily trigger.
func (d *Daemon) Spec() string {
	return fmt.Sprintf("%d %d * * *", d.minute, d.hour)
}

// Run starts the trigger, performs the startup catch-up, and blocks until
// ctx is cancelled. It waits for an in-flight run to return before exiting.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.cron.AddFunc(d.Spec(), func() { d.fire(ctx, "schedule") }); err != nil {
		return fmt.Errorf("register daily trigger %q: %w", d.Spec(), err)
	}
	d.cron.Start()

	d.logger.Info().
		Str("run_time", fmt.Sprintf("%02d:%02d", d.hour, d.minute)).
		Str("timezone", d.loc.String()).
		Time("next_run", d.Next()).
		Msg("daily trigger scheduled")

	if d.catchUp {
		now := d.now().In(d.loc)
		switch {
		case !ShouldCatchUp(now, d.hour, d.minute):
			d.logger.Info().Msg("before today's run time, waiting for the trigger")
		case d.runner.Guard().HasRunToday():
			d.logger.Info().Msg("run time has passed but today already ran, no catch-up")
		default:
			d.logger.Info().Msg("run time has passed and today has not run, catching up now")
			d.fire(ctx, "catch_up")
		}
	}

	<-ctx.Done()
	d.logger.Info().Msg("stopping daily trigger")
	<-d.cron.Stop().Done()
	return nil
}

// Next returns the next trigger time, or zero before Run registers it.
func (d *Daemon) Next() time.Time {
	entries := d.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (d *Daemon) fire(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	log := d.logger.With().Str("trigger", trigger).Logger()
	summary, err := d.runner.Run(ctx, false)
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		log.Warn().Msg("previous run still in progress, trigger ignored")
	case err != nil:
		log.Error().Err(err).Msg("daily run failed")
	case summary != nil:
		log.Info().Str("status", string(summary.Status)).Msg("daily run finished")
	}
}

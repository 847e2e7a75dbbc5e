// Package schedule runs the daily digest job at most once per calendar day.
//
// A Guard persists the date of the last successful run in a small JSON
// marker file. A Runner wraps the job with the guard and rejects overlapping
// runs. A Daemon fires the Runner from a daily cron trigger and catches up
// at startup when today's trigger time has already passed.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMarkerPath is the marker file used when none is configured.
const DefaultMarkerPath = ".daily_run_marker.json"

const markerDateLayout = "2006-01-02"

// Marker is the on-disk record of the last successful run.
type Marker struct {
	LastRunDate string `json:"last_run_date"`
	Timestamp   string `json:"timestamp"`
}

// Guard reads and writes the daily run marker.
type Guard struct {
	path   string
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewGuard creates a guard for the marker at path. Calendar days are
// evaluated in loc; a nil loc means time.Local.
func NewGuard(path string, loc *time.Location, logger zerolog.Logger) *Guard {
	if path == "" {
		path = DefaultMarkerPath
	}
	if loc == nil {
		loc = time.Local
	}
	return &Guard{
		path:   path,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "run_guard").Str("marker", path).Logger(),
	}
}

// Path returns the marker file path.
func (g *Guard) Path() string {
	return g.path
}

func (g *Guard) today() string {
	return g.now().In(g.loc).Format(markerDateLayout)
}

// Read returns the current marker. A missing file yields os.ErrNotExist.
func (g *Guard) Read() (*Marker, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode marker: %w", err)
	}
	if _, err := time.Parse(markerDateLayout, m.LastRunDate); err != nil {
		return nil, fmt.Errorf("invalid last_run_date %q: %w", m.LastRunDate, err)
	}
	return &m, nil
}

// HasRunToday reports whether the marker records today. It never fails: a
// missing, unreadable or malformed marker, or one from another day, counts
// as not run.
func (g *Guard) HasRunToday() bool {
	m, err := g.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.logger.Warn().Err(err).Msg("ignoring unreadable run marker")
		}
		return false
	}
	return m.LastRunDate == g.today()
}

// MarkToday records today as run. The file is replaced atomically.
func (g *Guard) MarkToday() error {
	now := g.now().In(g.loc)
	m := Marker{
		LastRunDate: now.Format(markerDateLayout),
		Timestamp:   now.Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}

	dir := filepath.Dir(g.path)
	tmp, err := os.CreateTemp(dir, ".marker-*.tmp")
	if err != nil {
		return fmt.Errorf("create marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), g.path); err != nil {
		return fmt.Errorf("replace marker: %w", err)
	}

	g.logger.Info().Str("last_run_date", m.LastRunDate).Msg("marked today as run")
	return nil
}

// Clear deletes the marker so today's run can happen again. It reports
// whether a marker existed.
func (g *Guard) Clear() (bool, error) {
	err := os.Remove(g.path)
	switch {
	case err == nil:
		g.logger.Info().Msg("run marker cleared")
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		g.logger.Info().Msg("no run marker to clear")
		return false, nil
	default:
		return false, fmt.Errorf("remove marker: %w", err)
	}
}

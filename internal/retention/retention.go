// Package retention periodically removes old published artifacts, stale
// uploads and ledger events.
package retention

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// EventPruner drops ledger entries older than a cutoff.
type EventPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stats summarizes one sweep.
type Stats struct {
	Files  int
	Held   int // old files skipped because a job still references them
	Events int64
	Errors int
}

// Sweeper removes regular files older than MaxAge from Dirs and prunes the
// event ledger with the same cutoff.
type Sweeper struct {
	Dirs   []string
	MaxAge time.Duration
	Events EventPruner
	// InUse, when set, protects files a pending conversion still needs.
	InUse func(path string) bool

	now func() time.Time
}

// NewSweeper returns a sweeper. A nil pruner skips the ledger.
func NewSweeper(maxAge time.Duration, events EventPruner, dirs ...string) *Sweeper {
	return &Sweeper{Dirs: dirs, MaxAge: maxAge, Events: events, now: time.Now}
}

// Sweep runs once. Individual failures are logged and counted.
func (s *Sweeper) Sweep(ctx context.Context) Stats {
	var st Stats
	if s.MaxAge <= 0 {
		return st
	}
	cutoff := s.now().Add(-s.MaxAge)

	for _, dir := range s.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !stderrors.Is(err, os.ErrNotExist) {
				slog.Warn("Retention sweep cannot read directory", logfields.Path(dir), logfields.Error(err))
				st.Errors++
			}
			continue
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return st
			}
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if s.InUse != nil && s.InUse(path) {
				st.Held++
				continue
			}
			if err := os.Remove(path); err != nil && !stderrors.Is(err, os.ErrNotExist) {
				slog.Warn("Retention sweep failed to remove file", logfields.Path(path), logfields.Error(err))
				st.Errors++
				continue
			}
			st.Files++
		}
	}

	if s.Events != nil {
		n, err := s.Events.DeleteBefore(ctx, cutoff)
		if err != nil {
			slog.Warn("Retention sweep failed to prune events", logfields.Error(err))
			st.Errors++
		}
		st.Events = n
	}

	slog.Info("Retention sweep finished",
		slog.Int("files", st.Files),
		slog.Int("held", st.Held),
		slog.Int64("events", st.Events),
		slog.Int("errors", st.Errors))
	return st
}

// Scheduler wraps gocron to run a Sweeper on an interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	sweeper   *Sweeper
}

// NewScheduler creates a scheduler running sweeper every interval.
func NewScheduler(sweeper *Sweeper, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) { sweeper.Sweep(ctx) }),
		gocron.WithName("retention-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	return &Scheduler{scheduler: s, sweeper: sweeper}, nil
}

// Start begins the schedule.
func (s *Scheduler) Start() {
	slog.Info("Starting retention scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running sweep.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping retention scheduler")
	return s.scheduler.Shutdown()
}

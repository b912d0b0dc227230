// Package scheduler runs the periodic class instance jobs: moving instances
// through their lifecycle and materializing upcoming weekly slots.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gym-booking-service/internal/config"
	"gym-booking-service/internal/service"

	"github.com/robfig/cron/v3"
)

type InstanceMaintainer interface {
	AdvanceStatuses(ctx context.Context, now time.Time) (*service.AdvanceResult, error)
	MaterializeAll(ctx context.Context, from, to time.Time) (int, error)
}

type Scheduler struct {
	cron       *cron.Cron
	maintainer InstanceMaintainer
	daysAhead  int
	now        func() time.Time
}

func New(maintainer InstanceMaintainer, cfg config.SchedulerConfig, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	daysAhead := cfg.MaterializeDaysAhead
	if daysAhead <= 0 {
		daysAhead = 14
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		maintainer: maintainer,
		daysAhead:  daysAhead,
		now:        time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.StatusSpec, func() { s.AdvanceStatuses(context.Background()) }); err != nil {
		return nil, fmt.Errorf("status schedule %q: %w", cfg.StatusSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.MaterializeSpec, func() { s.Materialize(context.Background()) }); err != nil {
		return nil, fmt.Errorf("materialize schedule %q: %w", cfg.MaterializeSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the scheduler and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) AdvanceStatuses(ctx context.Context) {
	result, err := s.maintainer.AdvanceStatuses(ctx, s.now())
	if err != nil {
		slog.ErrorContext(ctx, "advancing class instance statuses failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "class instance statuses advanced", "started", result.Started, "completed", result.Completed)
}

// Materialize creates instances for the next daysAhead days.
func (s *Scheduler) Materialize(ctx context.Context) {
	from := s.now()
	to := from.AddDate(0, 0, s.daysAhead)

	created, err := s.maintainer.MaterializeAll(ctx, from, to)
	if err != nil {
		slog.ErrorContext(ctx, "materializing class instances failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "class instances materialized", "created", created, "from", from, "to", to)
}

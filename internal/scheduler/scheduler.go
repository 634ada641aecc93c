package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "notioncal/internal/log"
	"notioncal/internal/syncer"
)

// Refresher is the part of the sync controller the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) syncer.RefreshReport
}

// Scheduler runs a refresh on a cron schedule.
type Scheduler struct {
	schedule  string
	loc       *time.Location
	refresher Refresher
	log       *appLog.Logger

	// RunOnStart triggers one refresh before the first scheduled tick.
	RunOnStart bool
}

// New validates schedule (standard 5-field cron or a descriptor such as
// "@every 5m") and returns a scheduler for it.
func New(schedule string, loc *time.Location, r Refresher) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		schedule:   schedule,
		loc:        loc,
		refresher:  r,
		log:        appLog.Named("scheduler"),
		RunOnStart: true,
	}, nil
}

// Run blocks until ctx is cancelled. Overlapping ticks are skipped while a
// refresh is still running.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		),
	)
	id, err := c.AddFunc(s.schedule, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	if s.RunOnStart {
		s.tick(ctx)
	}

	c.Start()
	s.log.Info("scheduler started", "schedule", s.schedule, "next", c.Entry(id).Next)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report := s.refresher.Refresh(ctx)
	if report.Skipped {
		s.log.Debug("refresh skipped, no credential")
		return
	}
	s.log.Info("scheduled refresh done",
		"events", report.Events,
		"failed_sources", len(report.Failed),
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
}

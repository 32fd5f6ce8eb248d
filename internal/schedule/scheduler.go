// Package schedule runs recurring audits on cron expressions from
// configuration.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/internal/pipeline"
)

// Scheduler kicks off configured audits on their cron schedules. Each tick
// creates a fresh audit; history accumulates so score comparisons have
// something to compare.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *pipeline.Orchestrator
	schedules    []config.ScheduleConfig
	log          logger.Interface
}

// NewScheduler creates a scheduler over the configured recurring audits.
func NewScheduler(orchestrator *pipeline.Orchestrator, schedules []config.ScheduleConfig, log logger.Interface) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		orchestrator: orchestrator,
		schedules:    schedules,
		log:          log.WithComponent("schedule"),
	}
}

// Start registers every schedule and begins ticking. Invalid cron
// expressions fail registration up front.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, sched := range s.schedules {
		sched := sched
		_, err := s.cron.AddFunc(sched.Cron, func() {
			s.runScheduled(ctx, sched)
		})
		if err != nil {
			return fmt.Errorf("failed to register schedule %q (%s): %w", sched.Name, sched.Cron, err)
		}
		s.log.Info("schedule registered",
			"name", sched.Name,
			"cron", sched.Cron,
			"url", sched.URL,
		)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop. Audits already started keep running.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runScheduled(ctx context.Context, sched config.ScheduleConfig) {
	audit, err := s.orchestrator.CreateAudit(ctx, sched.URL, sched.MaxPages)
	if err != nil {
		s.log.Error("failed to create scheduled audit",
			"name", sched.Name,
			"error", err,
		)
		return
	}

	if err := s.orchestrator.Start(ctx, audit.ID); err != nil {
		s.log.Error("failed to start scheduled audit",
			"name", sched.Name,
			"audit_id", audit.ID,
			"error", err,
		)
		return
	}

	s.log.Info("scheduled audit started",
		"name", sched.Name,
		"audit_id", audit.ID,
	)
}

// Package rescore wires up the cron job that periodically recomputes the
// cached scores of every active application, so boards stay accurate as
// candidate profiles and assessments change between stage moves.
package rescore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"selecta/pipeline-service/internal/pipeline"
)

// Scheduler wraps robfig/cron and manages the rescore sweep.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *pipeline.Service
	spec     string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that sweeps every intervalHours hours.
func New(svc *pipeline.Service, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.DefaultLogger)),
		pipeline: svc,
		spec:     fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the sweep and starts the scheduler. Also runs one sweep
// immediately so scores cached before a profile edit do not linger until
// the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	slog.Info("rescore scheduler started", "spec", s.spec)

	go s.runSweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("rescore scheduler stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	slog.Info("rescore sweep started")

	n, err := s.pipeline.RescoreActive(ctx)
	if err != nil {
		slog.Error("rescore sweep failed", "err", err)
		return
	}

	slog.Info("rescore sweep complete", "applications", n)
}

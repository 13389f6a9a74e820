/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/storehours/internal/storefront"
	"github.com/friendsincode/storehours/internal/telemetry"
)

const defaultInterval = 30 * time.Second

// Recomputer refreshes snapshots whose transition has passed.
type Recomputer interface {
	RunScheduledRecompute(ctx context.Context) (storefront.RecomputeStats, error)
}

// Service drives scheduled recomputes on a fixed interval.
type Service struct {
	runner   Recomputer
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	lastRun   time.Time
	lastStats storefront.RecomputeStats
}

// New constructs the scheduler service.
func New(runner Recomputer, interval time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		runner:   runner,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run executes the scheduler loop until the context is cancelled. The first
// pass runs immediately.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler loop started")
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one recompute pass.
func (s *Service) Tick(ctx context.Context) (storefront.RecomputeStats, error) {
	telemetry.SchedulerTicksTotal.Inc()
	started := time.Now()

	stats, err := s.runner.RunScheduledRecompute(ctx)
	telemetry.SchedulerTickDuration.Observe(time.Since(started).Seconds())

	switch {
	case err != nil && errors.Is(err, context.Canceled):
	case err != nil:
		telemetry.SchedulerErrorsTotal.WithLabelValues("due").Inc()
		s.logger.Error().Err(err).Msg("scheduled recompute failed")
	case stats.Failed > 0:
		telemetry.SchedulerErrorsTotal.WithLabelValues("recompute").Add(float64(stats.Failed))
	}

	s.mu.Lock()
	s.lastRun = started
	s.lastStats = stats
	s.mu.Unlock()
	return stats, err
}

// LastRun returns when the most recent pass started and what it did.
func (s *Service) LastRun() (time.Time, storefront.RecomputeStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastStats
}

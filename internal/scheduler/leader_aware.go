/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Elector reports leadership of the recompute loop.
type Elector interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// LeaderAwareScheduler wraps a scheduler and only runs when this instance is the leader.
type LeaderAwareScheduler struct {
	scheduler *Service
	election  Elector
	logger    zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewLeaderAware creates a leader-aware scheduler wrapper.
func NewLeaderAware(scheduler *Service, election Elector, logger zerolog.Logger) *LeaderAwareScheduler {
	return &LeaderAwareScheduler{
		scheduler: scheduler,
		election:  election,
		logger:    logger.With().Str("component", "leader_aware_scheduler").Logger(),
	}
}

// Start begins monitoring leadership status and manages scheduler lifecycle.
func (las *LeaderAwareScheduler) Start(ctx context.Context) error {
	las.logger.Info().Msg("starting leader-aware scheduler")

	las.mu.Lock()
	las.ctx = ctx
	las.mu.Unlock()

	if err := las.election.Start(ctx); err != nil {
		return err
	}
	go las.monitorLeadership(ctx)
	return nil
}

// Stop halts the scheduler and releases leadership.
func (las *LeaderAwareScheduler) Stop(ctx context.Context) error {
	las.logger.Info().Msg("stopping leader-aware scheduler")
	err := las.election.Stop(ctx)
	las.stopScheduler()
	return err
}

// IsLeader returns whether this instance is the leader.
func (las *LeaderAwareScheduler) IsLeader() bool {
	return las.election.IsLeader()
}

// Running reports whether the scheduler loop is active on this instance.
func (las *LeaderAwareScheduler) Running() bool {
	las.mu.Lock()
	defer las.mu.Unlock()
	return las.cancel != nil
}

func (las *LeaderAwareScheduler) monitorLeadership(ctx context.Context) {
	leaderCh := las.election.LeaderCh()

	if las.election.IsLeader() {
		las.startScheduler()
	}

	for {
		select {
		case <-ctx.Done():
			las.stopScheduler()
			return
		case isLeader := <-leaderCh:
			if isLeader {
				las.logger.Info().Msg("became leader, starting scheduler")
				las.startScheduler()
			} else {
				las.logger.Warn().Msg("lost leadership, stopping scheduler")
				las.stopScheduler()
			}
		}
	}
}

func (las *LeaderAwareScheduler) startScheduler() {
	las.mu.Lock()
	defer las.mu.Unlock()
	if las.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(las.ctx)
	stopped := make(chan struct{})
	las.cancel = cancel
	las.stopped = stopped

	go func() {
		defer close(stopped)
		if err := las.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			las.logger.Error().Err(err).Msg("scheduler error")
		}
	}()
}

// stopScheduler cancels the loop and waits for the in-flight pass to end.
func (las *LeaderAwareScheduler) stopScheduler() {
	las.mu.Lock()
	cancel, stopped := las.cancel, las.stopped
	las.cancel, las.stopped = nil, nil
	las.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

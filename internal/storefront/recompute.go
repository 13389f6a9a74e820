/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/telemetry"
)

// RecomputeStats summarises one scheduled recompute pass.
type RecomputeStats struct {
	Due        int           `json:"due"`
	Recomputed int           `json:"recomputed"`
	Evicted    int           `json:"evicted"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// RunScheduledRecompute refreshes every merchant whose snapshot transition
// has passed. A merchant that fails keeps its overdue index entry and is
// retried on the next pass; others are unaffected.
func (s *Service) RunScheduledRecompute(ctx context.Context) (RecomputeStats, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "storefront.RunScheduledRecompute")
	defer span.End()

	started := time.Now()
	now := s.now()

	due, err := s.cache.Due(ctx, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return RecomputeStats{}, err
	}
	telemetry.RecomputeDueMerchants.Set(float64(len(due)))

	stats := RecomputeStats{Due: len(due)}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)

dispatch:
	for _, id := range due {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break dispatch
			}
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(merchantID string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.recompute(ctx, merchantID, now, TriggerScheduled)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.Recomputed++
			case errors.Is(err, availability.ErrScheduleMissing):
				stats.Evicted++
			default:
				stats.Failed++
				s.logger.Warn().Err(err).Str("merchant_id", merchantID).Msg("scheduled recompute failed")
			}
		}(id)
	}
	wg.Wait()

	if size, ok := s.cache.IndexSize(ctx); ok {
		telemetry.RecomputeIndexSize.Set(float64(size))
	}

	stats.Duration = time.Since(started)
	telemetry.RecomputeDuration.WithLabelValues(TriggerScheduled).Observe(stats.Duration.Seconds())
	telemetry.AddSpanAttributes(span, map[string]any{
		"due":        stats.Due,
		"recomputed": stats.Recomputed,
		"failed":     stats.Failed,
	})

	if stats.Due > 0 {
		s.logger.Info().
			Int("due", stats.Due).
			Int("recomputed", stats.Recomputed).
			Int("evicted", stats.Evicted).
			Int("failed", stats.Failed).
			Dur("duration", stats.Duration).
			Msg("scheduled recompute finished")
	}
	return stats, ctx.Err()
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storefront answers whether merchants are open and applies
// schedule and holiday changes.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/cache"
	"github.com/friendsincode/storehours/internal/events"
	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/scheduling"
	"github.com/friendsincode/storehours/internal/store"
	"github.com/friendsincode/storehours/internal/telemetry"
)

const tracerName = "storehours/storefront"

// ErrHolidayInPast is returned when a holiday would already be over.
var ErrHolidayInPast = errors.New("open_after must be in the future")

// Recompute triggers, used as metric labels and event payloads.
const (
	TriggerRead      = "read"
	TriggerSchedule  = "schedule"
	TriggerHoliday   = "holiday"
	TriggerScheduled = "scheduled"
)

// Repository is the persistence the service reads and writes.
type Repository interface {
	GetSlots(ctx context.Context, ids []string) ([]models.WeeklySlot, error)
	GetHolidays(ctx context.Context, ids []string, now time.Time) ([]models.HolidayOverride, error)
	Transaction(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Result is the answer to an availability read. Merchants without a
// schedule are listed in Missing instead of Snapshots.
type Result struct {
	Snapshots map[string]availability.Snapshot
	Missing   []string
}

// Service coordinates validation, persistence, calculation and caching.
type Service struct {
	repo      Repository
	calc      *availability.Calculator
	validator *scheduling.Validator
	cache     *cache.Cache
	bus       *events.Bus
	logger    zerolog.Logger

	now     func() time.Time
	workers int
	limiter *rate.Limiter
}

// NewService wires a storefront service. bus may be nil.
func NewService(repo Repository, calc *availability.Calculator, validator *scheduling.Validator, c *cache.Cache, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		calc:      calc,
		validator: validator,
		cache:     c,
		bus:       bus,
		logger:    logger.With().Str("component", "storefront").Logger(),
		now:       time.Now,
		workers:   1,
	}
}

// SetRecomputeLimits bounds scheduled recomputes to workers in parallel and
// ratePerSecond merchants per second. A rate of zero means unlimited.
func (s *Service) SetRecomputeLimits(workers int, ratePerSecond float64) {
	if workers < 1 {
		workers = 1
	}
	s.workers = workers
	s.limiter = nil
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
}

// SetClock replaces the service's time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// GetAvailability returns a snapshot for every requested merchant that has
// a schedule. Cached snapshots are served while valid; the rest are computed
// and written back.
func (s *Service) GetAvailability(ctx context.Context, ids []string) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "storefront.GetAvailability")
	defer span.End()

	ids = uniqueIDs(ids)
	now := s.now()
	result := Result{Snapshots: make(map[string]availability.Snapshot, len(ids))}
	if len(ids) == 0 {
		return result, nil
	}

	cached, err := s.cache.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Int("merchants", len(ids)).Msg("cache read failed, computing directly")
	}

	var misses []string
	for _, id := range ids {
		snap, ok := cached[id]
		if ok && snap.ValidAt(now) {
			result.Snapshots[id] = snap
			continue
		}
		misses = append(misses, id)
	}
	telemetry.CacheHitsTotal.Add(float64(len(ids) - len(misses)))
	telemetry.CacheMissesTotal.Add(float64(len(misses)))
	telemetry.AddSpanAttributes(span, map[string]any{
		"merchants": len(ids),
		"misses":    len(misses),
	})

	if len(misses) == 0 {
		return result, nil
	}

	computed, missing, err := s.computeMany(ctx, misses, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, err
	}
	for id, snap := range computed {
		result.Snapshots[id] = snap
		s.store(ctx, id, snap, now, TriggerRead)
	}
	result.Missing = missing
	return result, nil
}

// computeMany calculates snapshots for ids with two repository reads.
func (s *Service) computeMany(ctx context.Context, ids []string, now time.Time) (map[string]availability.Snapshot, []string, error) {
	slots, err := s.repo.GetSlots(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	holidays, err := s.repo.GetHolidays(ctx, ids, now)
	if err != nil {
		return nil, nil, err
	}

	slotsBy := make(map[string][]models.WeeklySlot, len(ids))
	for _, sl := range slots {
		slotsBy[sl.MerchantID] = append(slotsBy[sl.MerchantID], sl)
	}
	holidayBy := make(map[string]*models.HolidayOverride, len(holidays))
	for i := range holidays {
		holidayBy[holidays[i].MerchantID] = &holidays[i]
	}

	out := make(map[string]availability.Snapshot, len(ids))
	var missing []string
	for _, id := range ids {
		snap, err := s.calc.Calculate(slotsBy[id], holidayBy[id], now)
		if errors.Is(err, availability.ErrScheduleMissing) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("calculate %s: %w", id, err)
		}
		out[id] = snap
	}
	return out, missing, nil
}

// recompute derives one merchant's snapshot from the repository and caches
// it. A merchant without a schedule is evicted and ErrScheduleMissing
// returned.
func (s *Service) recompute(ctx context.Context, merchantID string, now time.Time, trigger string) (availability.Snapshot, error) {
	computed, missing, err := s.computeMany(ctx, []string{merchantID}, now)
	if err != nil {
		telemetry.RecomputeTotal.WithLabelValues(trigger, "error").Inc()
		return availability.Snapshot{}, err
	}
	if len(missing) > 0 {
		telemetry.RecomputeTotal.WithLabelValues(trigger, "missing").Inc()
		if err := s.cache.Delete(ctx, merchantID); err != nil {
			s.logger.Debug().Err(err).Str("merchant_id", merchantID).Msg("cache evict failed")
		}
		return availability.Snapshot{}, availability.ErrScheduleMissing
	}

	snap := computed[merchantID]
	s.store(ctx, merchantID, snap, now, trigger)
	return snap, nil
}

// store writes snap to the cache. Cache failures never fail the caller.
func (s *Service) store(ctx context.Context, merchantID string, snap availability.Snapshot, now time.Time, trigger string) {
	telemetry.RecomputeTotal.WithLabelValues(trigger, "ok").Inc()
	telemetry.SnapshotStateTotal.WithLabelValues(string(snap.State())).Inc()

	if err := s.cache.Upsert(ctx, merchantID, snap, now); err != nil {
		s.logger.Debug().Err(err).Str("merchant_id", merchantID).Msg("cache upsert failed")
	}

	s.bus.Publish(events.EventAvailabilityRecomputed, events.Payload{
		events.KeyMerchantID: merchantID,
		events.KeyTrigger:    trigger,
		events.KeyState:      string(snap.State()),
	})
}

// ReplaceSchedule validates slots, swaps the merchant's schedule for them
// and refreshes the cached snapshot. An empty slot list clears the schedule.
func (s *Service) ReplaceSchedule(ctx context.Context, merchantID string, schedulingType scheduling.SchedulingType, slots []scheduling.SlotInput) (scheduling.Schedule, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "storefront.ReplaceSchedule")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"merchant_id": merchantID, "slots": len(slots)})

	schedule, err := s.validator.Validate(schedulingType, slots)
	if err != nil {
		return scheduling.Schedule{}, err
	}

	rows := make([]models.WeeklySlot, 0, schedule.Len())
	for _, e := range schedule.Entries() {
		rows = append(rows, models.WeeklySlot{
			ID:         uuid.NewString(),
			MerchantID: merchantID,
			SlotName:   e.Name,
			StartTime:  e.Interval.Start,
			EndTime:    e.Interval.End,
		})
	}

	if err := s.repo.Transaction(ctx, func(tx *store.Tx) error {
		return tx.ReplaceSlots(merchantID, rows)
	}); err != nil {
		telemetry.RecordError(span, err)
		return scheduling.Schedule{}, err
	}

	now := s.now()
	if _, err := s.recompute(ctx, merchantID, now, TriggerSchedule); err != nil && !errors.Is(err, availability.ErrScheduleMissing) {
		// The schedule is saved; the next read or tick repairs the cache.
		s.logger.Warn().Err(err).Str("merchant_id", merchantID).Msg("recompute after schedule replace failed")
	}

	actor := ActorFromContext(ctx)
	s.bus.Publish(events.EventScheduleReplaced, events.Payload{
		events.KeyMerchantID: merchantID,
		events.KeyActorKind:  string(actor.Kind),
		events.KeyActorID:    actor.ID,
		"scheduling_type":    string(schedule.Type),
		"slots":              schedule.Len(),
	})

	s.logger.Info().
		Str("merchant_id", merchantID).
		Str("scheduling_type", string(schedule.Type)).
		Int("slots", schedule.Len()).
		Msg("schedule replaced")
	return schedule, nil
}

// GetSchedule returns the merchant's current schedule.
func (s *Service) GetSchedule(ctx context.Context, merchantID string) (scheduling.Schedule, error) {
	rows, err := s.repo.GetSlots(ctx, []string{merchantID})
	if err != nil {
		return scheduling.Schedule{}, err
	}
	if len(rows) == 0 {
		return scheduling.Schedule{}, availability.ErrScheduleMissing
	}

	names := make([]scheduling.SlotName, 0, len(rows))
	schedule := scheduling.Schedule{Slots: make(map[scheduling.SlotName][]scheduling.Interval)}
	for _, r := range rows {
		names = append(names, r.SlotName)
		schedule.Slots[r.SlotName] = append(schedule.Slots[r.SlotName], r.Interval())
	}
	for name := range schedule.Slots {
		intervals := schedule.Slots[name]
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })
	}
	schedule.Type = scheduling.InferSchedulingType(names)
	return schedule, nil
}

// ActiveHoliday returns the merchant's live holiday override, or nil.
func (s *Service) ActiveHoliday(ctx context.Context, merchantID string) (*models.HolidayOverride, error) {
	holidays, err := s.repo.GetHolidays(ctx, []string{merchantID}, s.now())
	if err != nil {
		return nil, err
	}
	if len(holidays) == 0 {
		return nil, nil
	}
	return &holidays[0], nil
}

// OnMerchantDeleted drops the merchant's cached snapshot and recompute entry.
func (s *Service) OnMerchantDeleted(ctx context.Context, merchantID string) error {
	err := s.cache.Delete(ctx, merchantID)
	if err != nil {
		s.logger.Warn().Err(err).Str("merchant_id", merchantID).Msg("cache cleanup for deleted merchant failed")
	}

	actor := ActorFromContext(ctx)
	s.bus.Publish(events.EventMerchantDeleted, events.Payload{
		events.KeyMerchantID: merchantID,
		events.KeyActorKind:  string(actor.Kind),
		events.KeyActorID:    actor.ID,
	})
	return err
}

// DeleteMerchant removes the merchant's schedule and overrides, then
// cleans up the cache.
func (s *Service) DeleteMerchant(ctx context.Context, merchantID string) error {
	if err := s.repo.Transaction(ctx, func(tx *store.Tx) error {
		return tx.DeleteMerchant(merchantID)
	}); err != nil {
		return err
	}
	// A failed cache delete leaves the merchant pending in the cache, which
	// never serves it; the rows are already gone.
	_ = s.OnMerchantDeleted(ctx, merchantID)
	return nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

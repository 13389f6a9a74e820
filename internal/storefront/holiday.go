/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storefront

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/events"
	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/store"
	"github.com/friendsincode/storehours/internal/telemetry"
)

// SetHoliday closes the merchant until openAfter, replacing any live
// override, and returns the refreshed snapshot.
func (s *Service) SetHoliday(ctx context.Context, merchantID string, actor models.Actor, openAfter time.Time) (availability.Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "storefront.SetHoliday")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"merchant_id": merchantID, "actor": actor.String()})

	if err := actor.Validate(); err != nil {
		return availability.Snapshot{}, err
	}
	now := s.now()
	if !openAfter.After(now) {
		return availability.Snapshot{}, ErrHolidayInPast
	}

	slots, err := s.repo.GetSlots(ctx, []string{merchantID})
	if err != nil {
		telemetry.RecordError(span, err)
		return availability.Snapshot{}, err
	}
	if len(slots) == 0 {
		return availability.Snapshot{}, availability.ErrScheduleMissing
	}

	holiday := &models.HolidayOverride{
		ID:            uuid.NewString(),
		MerchantID:    merchantID,
		CreatedByKind: actor.Kind,
		CreatedByID:   actor.ID,
		OpenAfter:     openAfter.UTC(),
	}
	var replaced bool
	if err := s.repo.Transaction(ctx, func(tx *store.Tx) error {
		var err error
		if replaced, err = tx.DeleteHoliday(merchantID); err != nil {
			return err
		}
		return tx.CreateHoliday(holiday)
	}); err != nil {
		telemetry.RecordError(span, err)
		return availability.Snapshot{}, err
	}

	snap, err := s.calc.Calculate(slots, holiday, now)
	if err != nil {
		return availability.Snapshot{}, err
	}
	s.store(ctx, merchantID, snap, now, TriggerHoliday)

	s.bus.Publish(events.EventHolidaySet, events.Payload{
		events.KeyMerchantID: merchantID,
		events.KeyActorKind:  string(actor.Kind),
		events.KeyActorID:    actor.ID,
		"holiday_id":         holiday.ID,
		"open_after":         holiday.OpenAfter.Format(time.RFC3339),
		"replaced":           replaced,
	})

	s.logger.Info().
		Str("merchant_id", merchantID).
		Str("actor", actor.String()).
		Time("open_after", holiday.OpenAfter).
		Msg("holiday set")
	return snap, nil
}

// ClearHoliday lifts the merchant's live override and returns the
// refreshed snapshot. Clearing when no override is live still recomputes.
func (s *Service) ClearHoliday(ctx context.Context, merchantID string) (availability.Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "storefront.ClearHoliday")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"merchant_id": merchantID})

	var removed bool
	if err := s.repo.Transaction(ctx, func(tx *store.Tx) error {
		var err error
		removed, err = tx.DeleteHoliday(merchantID)
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return availability.Snapshot{}, err
	}

	now := s.now()
	slots, err := s.repo.GetSlots(ctx, []string{merchantID})
	if err != nil {
		telemetry.RecordError(span, err)
		return availability.Snapshot{}, err
	}
	snap, err := s.calc.Calculate(slots, nil, now)
	if err != nil {
		if cerr := s.cache.Delete(ctx, merchantID); cerr != nil {
			s.logger.Debug().Err(cerr).Str("merchant_id", merchantID).Msg("cache evict failed")
		}
		return availability.Snapshot{}, err
	}
	s.store(ctx, merchantID, snap, now, TriggerHoliday)

	actor := ActorFromContext(ctx)
	s.bus.Publish(events.EventHolidayCleared, events.Payload{
		events.KeyMerchantID: merchantID,
		events.KeyActorKind:  string(actor.Kind),
		events.KeyActorID:    actor.ID,
		"removed":            removed,
	})

	s.logger.Info().
		Str("merchant_id", merchantID).
		Bool("removed", removed).
		Msg("holiday cleared")
	return snap, nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/storehours/internal/events"
	"github.com/friendsincode/storehours/internal/models"
)

const subscriberBuffer = 64

// audited maps bus events to the audit action they are recorded as.
var audited = []struct {
	event  events.EventType
	action models.AuditAction
}{
	{events.EventScheduleReplaced, models.AuditActionScheduleReplace},
	{events.EventHolidaySet, models.AuditActionHolidaySet},
	{events.EventHolidayCleared, models.AuditActionHolidayClear},
	{events.EventMerchantDeleted, models.AuditActionMerchantDelete},
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

type delivery struct {
	action  models.AuditAction
	payload events.Payload
}

// Start records audited events until ctx is cancelled. The subscriptions
// are in place before ready is closed; ready may be nil.
func (s *Service) Start(ctx context.Context, ready chan<- struct{}) {
	merged := make(chan delivery, subscriberBuffer)
	subs := make([]events.Subscriber, len(audited))
	for i, a := range audited {
		subs[i] = s.bus.SubscribeBuffered(a.event, subscriberBuffer)
	}
	defer func() {
		for i, a := range audited {
			s.bus.Unsubscribe(a.event, subs[i])
		}
	}()

	forwardCtx, stopForward := context.WithCancel(ctx)
	defer stopForward()
	for i, a := range audited {
		go forward(forwardCtx, subs[i], a.action, merged)
	}

	s.logger.Info().Msg("audit service started")
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case d := <-merged:
			s.logAuditEntry(ctx, d.action, d.payload)
		}
	}
}

func forward(ctx context.Context, sub events.Subscriber, action models.AuditAction, out chan<- delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			select {
			case out <- delivery{action: action, payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	now := s.now().UTC()
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		Timestamp:  now,
		ActorKind:  models.ActorKind(payload.String(events.KeyActorKind)),
		ActorID:    payload.String(events.KeyActorID),
		MerchantID: payload.String(events.KeyMerchantID),
		Action:     action,
		Details:    make(map[string]any),
		CreatedAt:  now,
	}

	for k, v := range payload {
		switch k {
		case events.KeyActorKind, events.KeyActorID, events.KeyMerchantID:
			continue
		}
		entry.Details[k] = v
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error().
			Err(err).
			Str("action", string(action)).
			Str("merchant_id", entry.MerchantID).
			Msg("failed to create audit log entry")
		return
	}

	s.logger.Debug().
		Str("action", string(action)).
		Str("merchant_id", entry.MerchantID).
		Str("actor_kind", string(entry.ActorKind)).
		Msg("audit entry recorded")
}

// Query filters audit history.
type Query struct {
	MerchantID string
	Action     models.AuditAction
	Limit      int
}

// List returns audit entries newest first.
func (s *Service) List(ctx context.Context, q Query) ([]models.AuditLog, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tx := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if q.MerchantID != "" {
		tx = tx.Where("merchant_id = ?", q.MerchantID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}

	var entries []models.AuditLog
	if err := tx.Order("timestamp DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"

	"github.com/friendsincode/storehours/internal/telemetry"
)

// EventType enumerates event categories.
type EventType string

const (
	EventScheduleReplaced       EventType = "schedule.replaced"
	EventHolidaySet             EventType = "holiday.set"
	EventHolidayCleared         EventType = "holiday.cleared"
	EventAvailabilityRecomputed EventType = "availability.recomputed"
	EventMerchantDeleted        EventType = "merchant.deleted"
)

// Payload keys shared by publishers and subscribers.
const (
	KeyMerchantID = "merchant_id"
	KeyActorKind  = "actor_kind"
	KeyActorID    = "actor_id"
	KeyTrigger    = "trigger"
	KeyState      = "state"
)

const defaultBuffer = 8

// Payload generic event payload.
type Payload map[string]any

// String returns the string value at key, or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Publishing never blocks; a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	return b.SubscribeBuffered(eventType, defaultBuffer)
}

// SubscribeBuffered registers a subscriber with room for size pending events.
func (b *Bus) SubscribeBuffered(eventType EventType, size int) Subscriber {
	if size < 1 {
		size = 1
	}
	ch := make(Subscriber, size)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. A nil bus discards the event.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
			telemetry.EventsDroppedTotal.WithLabelValues(string(eventType)).Inc()
		}
	}
}

// Unsubscribe removes the subscriber and closes it.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package availability

import "time"

// State summarizes a snapshot for metrics and logs.
type State string

const (
	StateOpen               State = "open"
	StateClosedForHoliday   State = "closed_for_holiday"
	StateClosedPastSchedule State = "closed_past_schedule"
)

// Snapshot is a merchant's availability at one instant together with the
// instant it next changes. When open, ClosingAt is set; when closed,
// NextOpensAt is set unless no opening could be found.
type Snapshot struct {
	IsOpen      bool       `json:"is_open"`
	IsHoliday   bool       `json:"is_holiday"`
	ClosingAt   *time.Time `json:"closing_at,omitempty"`
	NextOpensAt *time.Time `json:"next_opens_at,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedByID string     `json:"created_by_id,omitempty"`
}

// State returns the coarse state of s.
func (s Snapshot) State() State {
	switch {
	case s.IsOpen:
		return StateOpen
	case s.IsHoliday:
		return StateClosedForHoliday
	default:
		return StateClosedPastSchedule
	}
}

// Transition returns the instant s stops being valid. The second result is
// false when s carries no upcoming transition.
func (s Snapshot) Transition() (time.Time, bool) {
	if s.IsOpen {
		if s.ClosingAt == nil {
			return time.Time{}, false
		}
		return *s.ClosingAt, true
	}
	if s.NextOpensAt == nil {
		return time.Time{}, false
	}
	return *s.NextOpensAt, true
}

// ValidAt reports whether s still describes the merchant at now.
func (s Snapshot) ValidAt(now time.Time) bool {
	at, ok := s.Transition()
	return ok && now.Before(at)
}

// Equal compares two snapshots by instant rather than by location.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.IsOpen == o.IsOpen &&
		s.IsHoliday == o.IsHoliday &&
		s.CreatedBy == o.CreatedBy &&
		s.CreatedByID == o.CreatedByID &&
		equalInstant(s.ClosingAt, o.ClosingAt) &&
		equalInstant(s.NextOpensAt, o.NextOpensAt)
}

func equalInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package availability

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/storehours/internal/models"
)

// ErrScheduleMissing is returned when a merchant has no weekly slots.
var ErrScheduleMissing = errors.New("schedule missing")

// lookaheadDays is how many days past the reference date are searched
// for the next opening.
const lookaheadDays = 7

// Calculator derives availability snapshots from weekly slots and holiday
// overrides. Slot times are interpreted in the calculator's location.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a calculator for loc, or UTC when loc is nil.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc}
}

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string, logger zerolog.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", name).Msg("invalid timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

// Location returns the zone slot times are evaluated in.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Calculate returns the snapshot for a merchant at now. holiday may be nil
// and is ignored once it is deleted or its OpenAfter has passed. The
// result depends only on the arguments.
func (c *Calculator) Calculate(slots []models.WeeklySlot, holiday *models.HolidayOverride, now time.Time) (Snapshot, error) {
	if len(slots) == 0 {
		return Snapshot{}, ErrScheduleMissing
	}

	now = now.In(c.loc)
	reference := now

	var snap Snapshot
	if holiday.ActiveAt(now) {
		openAfter := holiday.OpenAfter.In(c.loc)
		snap.IsHoliday = true
		snap.NextOpensAt = &openAfter
		snap.CreatedBy = string(holiday.CreatedByKind)
		snap.CreatedByID = holiday.CreatedByID
		reference = openAfter
	}

	w, found := c.nextWindow(slots, reference)
	switch {
	case !found:
		// Leave NextOpensAt as the holiday release, if any.
	case snap.IsHoliday:
		if w.start.After(*snap.NextOpensAt) {
			start := w.start
			snap.NextOpensAt = &start
		}
	case !w.start.After(now):
		end := w.end
		snap.IsOpen = true
		snap.ClosingAt = &end
	default:
		start := w.start
		snap.NextOpensAt = &start
	}

	return snap, nil
}

type window struct {
	start time.Time
	end   time.Time
}

// nextWindow finds the window covering reference or, failing that, the
// earliest one after it. The search visits the reference date and at most
// lookaheadDays further dates, each from its midnight.
func (c *Calculator) nextWindow(slots []models.WeeklySlot, reference time.Time) (window, bool) {
	day := reference
	for i := 0; i <= lookaheadDays; i++ {
		if w, ok := bestWindowOn(slots, day, reference); ok {
			return w, true
		}
		y, m, d := day.Date()
		day = time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)
		reference = day
	}
	return window{}, false
}

// bestWindowOn picks among slots applying on day whose end is after
// reference. A window already started wins, latest start first; otherwise
// the earliest start wins and ties go to the later end.
func bestWindowOn(slots []models.WeeklySlot, day, reference time.Time) (window, bool) {
	weekday := day.Weekday()

	var covering, upcoming window
	var hasCovering, hasUpcoming bool

	for _, slot := range slots {
		if !slot.SlotName.AppliesOn(weekday) {
			continue
		}
		w := window{start: slot.StartTime.On(day), end: slot.EndTime.On(day)}
		if !w.end.After(reference) {
			continue
		}

		if !w.start.After(reference) {
			if !hasCovering || w.start.After(covering.start) ||
				(w.start.Equal(covering.start) && w.end.After(covering.end)) {
				covering, hasCovering = w, true
			}
			continue
		}

		if !hasUpcoming || w.start.Before(upcoming.start) ||
			(w.start.Equal(upcoming.start) && w.end.After(upcoming.end)) {
			upcoming, hasUpcoming = w, true
		}
	}

	if hasCovering {
		return covering, true
	}
	return upcoming, hasUpcoming
}

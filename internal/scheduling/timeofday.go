/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock minute within a day, 0 through 1439.
type TimeOfDay int

const (
	minutesPerDay = 24 * 60

	// Midnight is the first minute of the day.
	Midnight TimeOfDay = 0
	// LastMinute is 23:59.
	LastMinute TimeOfDay = minutesPerDay - 1
)

// NewTimeOfDay builds a time of day from an hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses a strict, zero-padded 24-hour "HHMM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
	}

	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[2]-'0')*10 + int(s[3]-'0')
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTimeFormat, s)
	}
	return NewTimeOfDay(hour, minute), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t is inside a single day.
func (t TimeOfDay) Valid() bool { return t >= Midnight && t <= LastMinute }

// String formats t as "HHMM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d%02d", t.Hour(), t.Minute())
}

// On anchors t to the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, int(t), 0, 0, day.Location())
}

// MarshalText encodes t as "HHMM".
func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidTimeFormat, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes an "HHMM" value.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interval is a half-open opening window [Start, End) within one day.
type Interval struct {
	Start TimeOfDay `json:"start_time" yaml:"start_time"`
	End   TimeOfDay `json:"end_time" yaml:"end_time"`
}

// Overlaps reports whether the two windows share any minute.
func (i Interval) Overlaps(o Interval) bool {
	return max(i.Start, o.Start) < min(i.End, o.End)
}

// Touches reports whether any endpoint of i equals any endpoint of o.
func (i Interval) Touches(o Interval) bool {
	return i.Start == o.Start || i.Start == o.End || i.End == o.Start || i.End == o.End
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// SchedulingType selects which slot names a schedule may use.
type SchedulingType string

const (
	SchedulingAll                 SchedulingType = "ALL"
	SchedulingWeekdaysAndWeekends SchedulingType = "WEEKDAYS_AND_WEEKENDS"
	SchedulingCustom              SchedulingType = "CUSTOM"
)

// SlotName identifies the group of days a weekly slot applies to.
type SlotName string

const (
	SlotAll      SlotName = "all"
	SlotWeekdays SlotName = "weekdays"
	SlotWeekends SlotName = "weekends"
	SlotMon      SlotName = "mon"
	SlotTue      SlotName = "tue"
	SlotWed      SlotName = "wed"
	SlotThu      SlotName = "thu"
	SlotFri      SlotName = "fri"
	SlotSat      SlotName = "sat"
	SlotSun      SlotName = "sun"
)

// canonicalOrder is the order slot groups are listed in schedules.
var canonicalOrder = []SlotName{
	SlotAll, SlotWeekdays, SlotWeekends,
	SlotMon, SlotTue, SlotWed, SlotThu, SlotFri, SlotSat, SlotSun,
}

var weekdayNames = [...]SlotName{
	time.Sunday:    SlotSun,
	time.Monday:    SlotMon,
	time.Tuesday:   SlotTue,
	time.Wednesday: SlotWed,
	time.Thursday:  SlotThu,
	time.Friday:    SlotFri,
	time.Saturday:  SlotSat,
}

// ParseSchedulingType accepts a scheduling type in any letter case.
func ParseSchedulingType(s string) (SchedulingType, error) {
	switch t := SchedulingType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SchedulingAll, SchedulingWeekdaysAndWeekends, SchedulingCustom:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSchedulingType, s)
	}
}

// AllowedNames lists the slot names permitted under t.
func (t SchedulingType) AllowedNames() []SlotName {
	switch t {
	case SchedulingAll:
		return []SlotName{SlotAll}
	case SchedulingWeekdaysAndWeekends:
		return []SlotName{SlotWeekdays, SlotWeekends}
	case SchedulingCustom:
		return []SlotName{SlotMon, SlotTue, SlotWed, SlotThu, SlotFri, SlotSat, SlotSun}
	default:
		return nil
	}
}

// Allows reports whether name may be used under t.
func (t SchedulingType) Allows(name SlotName) bool {
	for _, allowed := range t.AllowedNames() {
		if allowed == name {
			return true
		}
	}
	return false
}

// WeekdayName returns the three-letter slot name for a weekday.
func WeekdayName(day time.Weekday) SlotName {
	return weekdayNames[day]
}

// IsWeekend reports whether day is Saturday or Sunday.
func IsWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// DayFilter returns the slot names that apply on the given weekday.
func DayFilter(day time.Weekday) []SlotName {
	group := SlotWeekdays
	if IsWeekend(day) {
		group = SlotWeekends
	}
	return []SlotName{WeekdayName(day), SlotAll, group}
}

// AppliesOn reports whether slots named n are in effect on day.
func (n SlotName) AppliesOn(day time.Weekday) bool {
	for _, name := range DayFilter(day) {
		if name == n {
			return true
		}
	}
	return false
}

// InferSchedulingType derives the scheduling type a set of stored slot
// names was written under. It returns "" when names is empty.
func InferSchedulingType(names []SlotName) SchedulingType {
	for _, name := range names {
		switch name {
		case SlotAll:
			return SchedulingAll
		case SlotWeekdays, SlotWeekends:
			return SchedulingWeekdaysAndWeekends
		default:
			return SchedulingCustom
		}
	}
	return ""
}

// SlotInput is a proposed slot as submitted by a client.
type SlotInput struct {
	SlotName  string `json:"slot_name" yaml:"slot_name"`
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
}

// Schedule is a validated weekly schedule.
type Schedule struct {
	Type  SchedulingType          `json:"scheduling_type" yaml:"scheduling_type"`
	Slots map[SlotName][]Interval `json:"slots" yaml:"slots"`
}

// Entry is one slot of a schedule.
type Entry struct {
	Name     SlotName
	Interval Interval
}

// Entries flattens the schedule in canonical group order, each group
// sorted by start time.
func (s Schedule) Entries() []Entry {
	var entries []Entry
	for _, name := range canonicalOrder {
		for _, interval := range s.Slots[name] {
			entries = append(entries, Entry{Name: name, Interval: interval})
		}
	}
	return entries
}

// Len returns the total number of slots.
func (s Schedule) Len() int {
	n := 0
	for _, intervals := range s.Slots {
		n += len(intervals)
	}
	return n
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// MaxSlotsPerName caps the number of windows in one slot group.
const MaxSlotsPerName = 3

var (
	ErrInvalidSlotName       = errors.New("invalid slot name")
	ErrTooManySlots          = errors.New("too many slots")
	ErrInvalidTimeFormat     = errors.New("invalid time format")
	ErrConflictingSlot       = errors.New("conflicting slot")
	ErrUnknownSchedulingType = errors.New("unknown scheduling type")
)

// ValidationError reports which slot group failed validation and why.
type ValidationError struct {
	Kind     error
	SlotName string
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.SlotName)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.SlotName, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Code returns a stable snake_case identifier for API responses.
func (e *ValidationError) Code() string {
	switch {
	case errors.Is(e.Kind, ErrInvalidSlotName):
		return "invalid_slot_name"
	case errors.Is(e.Kind, ErrTooManySlots):
		return "too_many_slots"
	case errors.Is(e.Kind, ErrInvalidTimeFormat):
		return "invalid_time_format"
	case errors.Is(e.Kind, ErrConflictingSlot):
		return "conflicting_slot"
	case errors.Is(e.Kind, ErrUnknownSchedulingType):
		return "unknown_scheduling_type"
	default:
		return "invalid_schedule"
	}
}

// Validator checks proposed weekly schedules.
type Validator struct {
	logger zerolog.Logger
}

// NewValidator creates a new schedule validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		logger: logger.With().Str("component", "schedule_validator").Logger(),
	}
}

type slotGroup struct {
	name   SlotName
	inputs []SlotInput
}

// Validate checks slots against the scheduling type and returns the
// normalized schedule. Groups are checked in order of first appearance;
// within a group, names, count, time formats and pairwise conflicts are
// checked in that order and the first failure is returned.
func (v *Validator) Validate(schedulingType SchedulingType, slots []SlotInput) (Schedule, error) {
	if schedulingType.AllowedNames() == nil {
		return Schedule{}, &ValidationError{Kind: ErrUnknownSchedulingType, SlotName: string(schedulingType)}
	}

	groups := groupSlots(slots)
	schedule := Schedule{
		Type:  schedulingType,
		Slots: make(map[SlotName][]Interval, len(groups)),
	}

	for _, group := range groups {
		intervals, err := v.validateGroup(schedulingType, group)
		if err != nil {
			v.logger.Debug().
				Err(err).
				Str("scheduling_type", string(schedulingType)).
				Str("slot_name", string(group.name)).
				Msg("schedule rejected")
			return Schedule{}, err
		}
		schedule.Slots[group.name] = intervals
	}

	return schedule, nil
}

func (v *Validator) validateGroup(schedulingType SchedulingType, group slotGroup) ([]Interval, error) {
	if !schedulingType.Allows(group.name) {
		return nil, &ValidationError{
			Kind:     ErrInvalidSlotName,
			SlotName: string(group.name),
			Detail:   fmt.Sprintf("not allowed for %s", schedulingType),
		}
	}

	if len(group.inputs) > MaxSlotsPerName {
		return nil, &ValidationError{
			Kind:     ErrTooManySlots,
			SlotName: string(group.name),
			Detail:   fmt.Sprintf("%d slots, at most %d allowed", len(group.inputs), MaxSlotsPerName),
		}
	}

	intervals := make([]Interval, 0, len(group.inputs))
	for _, input := range group.inputs {
		interval, err := parseInterval(input)
		if err != nil {
			return nil, &ValidationError{
				Kind:     ErrInvalidTimeFormat,
				SlotName: string(group.name),
				Detail:   err.Error(),
			}
		}
		if interval.Start >= interval.End {
			return nil, &ValidationError{
				Kind:     ErrConflictingSlot,
				SlotName: string(group.name),
				Detail:   fmt.Sprintf("start_time %s must be before end_time %s", interval.Start, interval.End),
			}
		}
		intervals = append(intervals, interval)
	}

	if err := checkConflicts(group.name, intervals); err != nil {
		return nil, err
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
	return intervals, nil
}

func parseInterval(input SlotInput) (Interval, error) {
	start, err := ParseTimeOfDay(input.StartTime)
	if err != nil {
		return Interval{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := ParseTimeOfDay(input.EndTime)
	if err != nil {
		return Interval{}, fmt.Errorf("end_time: %w", err)
	}
	return Interval{Start: start, End: end}, nil
}

// checkConflicts rejects windows that overlap or share an endpoint.
func checkConflicts(name SlotName, intervals []Interval) error {
	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			a, b := intervals[i], intervals[j]
			if a.Overlaps(b) || a.Touches(b) {
				return &ValidationError{
					Kind:     ErrConflictingSlot,
					SlotName: string(name),
					Detail:   fmt.Sprintf("%s conflicts with %s", a, b),
				}
			}
		}
	}
	return nil
}

func groupSlots(slots []SlotInput) []slotGroup {
	var groups []slotGroup
	index := make(map[SlotName]int)
	for _, slot := range slots {
		name := SlotName(slot.SlotName)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, slotGroup{name: name})
		}
		groups[i].inputs = append(groups[i].inputs, slot)
	}
	return groups
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/friendsincode/storehours/internal/scheduling"
)

// WeeklySlot is one opening window of a merchant's weekly schedule.
type WeeklySlot struct {
	ID         string               `gorm:"type:uuid;primaryKey"`
	MerchantID string               `gorm:"type:varchar(64);index:idx_weekly_slot_merchant;not null"`
	SlotName   scheduling.SlotName  `gorm:"type:varchar(16);not null"`
	StartTime  scheduling.TimeOfDay `gorm:"not null"` // minutes after midnight
	EndTime    scheduling.TimeOfDay `gorm:"not null"`
	CreatedAt  time.Time
}

// TableName returns the table name for GORM.
func (WeeklySlot) TableName() string {
	return "weekly_slots"
}

// Interval returns the slot's window.
func (s WeeklySlot) Interval() scheduling.Interval {
	return scheduling.Interval{Start: s.StartTime, End: s.EndTime}
}

// HolidayOverride closes a merchant until OpenAfter.
type HolidayOverride struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	MerchantID    string    `gorm:"type:varchar(64);index:idx_holiday_merchant;not null"`
	CreatedByKind ActorKind `gorm:"type:varchar(16);not null"`
	CreatedByID   string    `gorm:"type:varchar(64);not null"`
	OpenAfter     time.Time `gorm:"not null"`
	IsDeleted     bool      `gorm:"index:idx_holiday_merchant;not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM.
func (HolidayOverride) TableName() string {
	return "holiday_overrides"
}

// ActiveAt reports whether the override still closes the merchant at now.
// A nil override is never active.
func (h *HolidayOverride) ActiveAt(now time.Time) bool {
	return h != nil && !h.IsDeleted && h.OpenAfter.After(now)
}

// CreatedBy returns the actor that placed the override.
func (h *HolidayOverride) CreatedBy() Actor {
	return Actor{Kind: h.CreatedByKind, ID: h.CreatedByID}
}

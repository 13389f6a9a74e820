/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists weekly slots and holiday overrides with gorm.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/storehours/internal/models"
)

// Store reads and writes merchant schedules and holiday overrides.
type Store struct {
	db *gorm.DB
}

// New wraps database.
func New(database *gorm.DB) *Store {
	return &Store{db: database}
}

// GetSlots returns the weekly slots of every merchant in ids, ordered by
// merchant, slot name and start time.
func (s *Store) GetSlots(ctx context.Context, ids []string) ([]models.WeeklySlot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var slots []models.WeeklySlot
	err := s.db.WithContext(ctx).
		Where("merchant_id IN ?", ids).
		Order("merchant_id, slot_name, start_time").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("load weekly slots: %w", err)
	}
	return slots, nil
}

// GetHolidays returns the live override of each merchant in ids whose
// OpenAfter is still ahead of now. At most one row per merchant is
// returned; should several survive, the newest wins.
func (s *Store) GetHolidays(ctx context.Context, ids []string, now time.Time) ([]models.HolidayOverride, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.HolidayOverride
	err := s.db.WithContext(ctx).
		Where("merchant_id IN ? AND is_deleted = ? AND open_after > ?", ids, false, now.UTC()).
		Order("merchant_id, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load holiday overrides: %w", err)
	}

	out := rows[:0]
	seen := make(map[string]bool, len(rows))
	for _, h := range rows {
		if seen[h.MerchantID] {
			continue
		}
		seen[h.MerchantID] = true
		out = append(out, h)
	}
	return out, nil
}

// Transaction runs fn in a database transaction. fn's error rolls it back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx})
	})
}

// Tx is the write side of the store, bound to one transaction.
type Tx struct {
	db *gorm.DB
}

// ReplaceSlots swaps a merchant's weekly slots for slots.
func (tx *Tx) ReplaceSlots(merchantID string, slots []models.WeeklySlot) error {
	if err := tx.db.Where("merchant_id = ?", merchantID).Delete(&models.WeeklySlot{}).Error; err != nil {
		return fmt.Errorf("delete weekly slots: %w", err)
	}
	if len(slots) == 0 {
		return nil
	}
	for i := range slots {
		slots[i].MerchantID = merchantID
	}
	if err := tx.db.Create(&slots).Error; err != nil {
		return fmt.Errorf("insert weekly slots: %w", err)
	}
	return nil
}

// DeleteHoliday soft-deletes the merchant's live override. It reports
// whether one existed.
func (tx *Tx) DeleteHoliday(merchantID string) (bool, error) {
	res := tx.db.Model(&models.HolidayOverride{}).
		Where("merchant_id = ? AND is_deleted = ?", merchantID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return false, fmt.Errorf("soft delete holiday override: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreateHoliday inserts h. Callers soft-delete the previous override first.
func (tx *Tx) CreateHoliday(h *models.HolidayOverride) error {
	if err := tx.db.Create(h).Error; err != nil {
		return fmt.Errorf("insert holiday override: %w", err)
	}
	return nil
}

// DeleteMerchant hard-deletes every row owned by merchantID.
func (tx *Tx) DeleteMerchant(merchantID string) error {
	if err := tx.db.Where("merchant_id = ?", merchantID).Delete(&models.WeeklySlot{}).Error; err != nil {
		return fmt.Errorf("delete weekly slots: %w", err)
	}
	if err := tx.db.Where("merchant_id = ?", merchantID).Delete(&models.HolidayOverride{}).Error; err != nil {
		return fmt.Errorf("delete holiday overrides: %w", err)
	}
	return nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/storehours/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.WeeklySlot{},
		&models.HolidayOverride{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	return applyActiveHolidayGuard(database)
}

// applyActiveHolidayGuard allows at most one live holiday override per
// merchant. MySQL has no partial indexes; the store's transaction covers it.
func applyActiveHolidayGuard(database *gorm.DB) error {
	switch database.Dialector.Name() {
	case "postgres", "sqlite":
	default:
		return nil
	}

	stmt := `CREATE UNIQUE INDEX IF NOT EXISTS ux_holiday_overrides_active
ON holiday_overrides (merchant_id)
WHERE NOT is_deleted`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply active holiday guard: %w", err)
	}
	return nil
}

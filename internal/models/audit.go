/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

const (
	AuditActionScheduleReplace AuditAction = "schedule.replace"
	AuditActionHolidaySet      AuditAction = "holiday.set"
	AuditActionHolidayClear    AuditAction = "holiday.clear"
	AuditActionMerchantDelete  AuditAction = "merchant.delete"
)

// AuditLog records changes to merchant availability inputs.
type AuditLog struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Timestamp  time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	ActorKind  ActorKind      `gorm:"type:varchar(16)"` // empty for system actions
	ActorID    string         `gorm:"type:varchar(64)"`
	MerchantID string         `gorm:"type:varchar(64);index:idx_audit_merchant;not null"`
	Action     AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	Details    map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt  time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}

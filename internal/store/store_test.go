/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/storehours/internal/db/dbtest"
	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/scheduling"
)

var now = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func slot(name scheduling.SlotName, start, end string) models.WeeklySlot {
	s, _ := scheduling.ParseTimeOfDay(start)
	e, _ := scheduling.ParseTimeOfDay(end)
	return models.WeeklySlot{ID: uuid.NewString(), SlotName: name, StartTime: s, EndTime: e}
}

func holiday(merchantID string, openAfter time.Time) *models.HolidayOverride {
	return &models.HolidayOverride{
		ID:            uuid.NewString(),
		MerchantID:    merchantID,
		CreatedByKind: models.ActorMerchant,
		CreatedByID:   merchantID,
		OpenAfter:     openAfter,
	}
}

func TestReplaceSlots(t *testing.T) {
	ctx := context.Background()
	s := New(dbtest.Open(t))

	err := s.Transaction(ctx, func(tx *Tx) error {
		return tx.ReplaceSlots("m1", []models.WeeklySlot{
			slot(scheduling.SlotMon, "1400", "1800"),
			slot(scheduling.SlotMon, "0900", "1200"),
		})
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.Transaction(ctx, func(tx *Tx) error {
		return tx.ReplaceSlots("m2", []models.WeeklySlot{slot(scheduling.SlotAll, "0000", "2359")})
	}); err != nil {
		t.Fatalf("replace m2: %v", err)
	}

	got, err := s.GetSlots(ctx, []string{"m1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0].StartTime.String() != "0900" || got[0].MerchantID != "m1" {
		t.Fatalf("unexpected slots: %+v", got)
	}

	if err := s.Transaction(ctx, func(tx *Tx) error {
		return tx.ReplaceSlots("m1", []models.WeeklySlot{slot(scheduling.SlotFri, "1000", "1800")})
	}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = s.GetSlots(ctx, []string{"m1", "m2"})
	if len(got) != 2 {
		t.Fatalf("expected one slot per merchant, got %+v", got)
	}
}

func TestReplaceSlotsRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New(dbtest.Open(t))
	_ = s.Transaction(ctx, func(tx *Tx) error {
		return tx.ReplaceSlots("m1", []models.WeeklySlot{slot(scheduling.SlotAll, "0800", "2000")})
	})

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Tx) error {
		if err := tx.ReplaceSlots("m1", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, _ := s.GetSlots(ctx, []string{"m1"})
	if len(got) != 1 {
		t.Fatalf("rollback lost slots: %+v", got)
	}
}

func TestHolidayLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(dbtest.Open(t))

	first := holiday("m1", now.Add(2*time.Hour))
	if err := s.Transaction(ctx, func(tx *Tx) error { return tx.CreateHoliday(first) }); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := holiday("m1", now.Add(6*time.Hour))
	err := s.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.DeleteHoliday("m1"); err != nil {
			return err
		}
		return tx.CreateHoliday(second)
	})
	if err != nil {
		t.Fatalf("replace holiday: %v", err)
	}

	got, err := s.GetHolidays(ctx, []string{"m1", "m2"}, now)
	if err != nil {
		t.Fatalf("get holidays: %v", err)
	}
	if len(got) != 1 || got[0].ID != second.ID {
		t.Fatalf("expected only the newest override, got %+v", got)
	}

	var removed bool
	if err := s.Transaction(ctx, func(tx *Tx) (err error) {
		removed, err = tx.DeleteHoliday("m1")
		return err
	}); err != nil || !removed {
		t.Fatalf("clear: removed=%v err=%v", removed, err)
	}
	got, _ = s.GetHolidays(ctx, []string{"m1"}, now)
	if len(got) != 0 {
		t.Fatalf("cleared holiday still returned: %+v", got)
	}
}

func TestGetHolidaysSkipsExpired(t *testing.T) {
	ctx := context.Background()
	s := New(dbtest.Open(t))
	_ = s.Transaction(ctx, func(tx *Tx) error { return tx.CreateHoliday(holiday("m1", now.Add(-time.Minute))) })

	got, err := s.GetHolidays(ctx, []string{"m1"}, now)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expired override returned: %+v", got)
	}
}

func TestDeleteMerchant(t *testing.T) {
	ctx := context.Background()
	s := New(dbtest.Open(t))
	_ = s.Transaction(ctx, func(tx *Tx) error {
		if err := tx.ReplaceSlots("m1", []models.WeeklySlot{slot(scheduling.SlotAll, "0800", "2000")}); err != nil {
			return err
		}
		return tx.CreateHoliday(holiday("m1", now.Add(time.Hour)))
	})

	if err := s.Transaction(ctx, func(tx *Tx) error { return tx.DeleteMerchant("m1") }); err != nil {
		t.Fatalf("delete merchant: %v", err)
	}
	slots, _ := s.GetSlots(ctx, []string{"m1"})
	hols, _ := s.GetHolidays(ctx, []string{"m1"}, now)
	if len(slots) != 0 || len(hols) != 0 {
		t.Fatalf("rows left behind: %v %v", slots, hols)
	}
}

func TestEmptyIDs(t *testing.T) {
	s := New(dbtest.Open(t))
	slots, err := s.GetSlots(context.Background(), nil)
	if err != nil || slots != nil {
		t.Fatalf("GetSlots(nil) = %v, %v", slots, err)
	}
}

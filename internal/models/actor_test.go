/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseActor(t *testing.T) {
	tests := []struct {
		in      string
		want    Actor
		wantErr bool
	}{
		{in: "admin:ops-7", want: Actor{Kind: ActorAdmin, ID: "ops-7"}},
		{in: "Merchant:m-42", want: Actor{Kind: ActorMerchant, ID: "m-42"}},
		{in: "merchant:", wantErr: true},
		{in: "robot:1", wantErr: true},
		{in: "admin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseActor(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidActor) {
					t.Fatalf("ParseActor(%q) error = %v, want ErrInvalidActor", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseActor(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseActor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestActorCanClear(t *testing.T) {
	admin := Actor{Kind: ActorAdmin, ID: "a1"}
	merchant := Actor{Kind: ActorMerchant, ID: "m1"}

	adminHoliday := &HolidayOverride{CreatedByKind: ActorAdmin, CreatedByID: "a1"}
	merchantHoliday := &HolidayOverride{CreatedByKind: ActorMerchant, CreatedByID: "m1"}

	if merchant.CanClear(adminHoliday) {
		t.Error("merchant must not clear an admin holiday")
	}
	if !admin.CanClear(adminHoliday) {
		t.Error("admin should clear an admin holiday")
	}
	if !admin.CanClear(merchantHoliday) {
		t.Error("admin should clear a merchant holiday")
	}
	if !merchant.CanClear(merchantHoliday) {
		t.Error("merchant should clear its own holiday")
	}
	if !merchant.CanClear(nil) {
		t.Error("clearing with no holiday should be allowed")
	}
}

func TestHolidayActiveAt(t *testing.T) {
	now := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

	var none *HolidayOverride
	if none.ActiveAt(now) {
		t.Error("nil holiday reported active")
	}

	h := &HolidayOverride{OpenAfter: now.Add(time.Hour)}
	if !h.ActiveAt(now) {
		t.Error("future holiday should be active")
	}
	if h.ActiveAt(now.Add(time.Hour)) {
		t.Error("holiday should end exactly at open_after")
	}

	h.IsDeleted = true
	if h.ActiveAt(now) {
		t.Error("deleted holiday reported active")
	}
}

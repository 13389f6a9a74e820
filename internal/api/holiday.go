/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/storefront"
)

type holidayRequest struct {
	OpenAfter time.Time     `json:"open_after"`
	Actor     *models.Actor `json:"actor,omitempty"`
}

type holidayResponse struct {
	ID          string    `json:"id"`
	MerchantID  string    `json:"merchant_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedByID string    `json:"created_by_id"`
	OpenAfter   time.Time `json:"open_after"`
	CreatedAt   time.Time `json:"created_at"`
}

func toHolidayResponse(h *models.HolidayOverride) holidayResponse {
	return holidayResponse{
		ID:          h.ID,
		MerchantID:  h.MerchantID,
		CreatedBy:   string(h.CreatedByKind),
		CreatedByID: h.CreatedByID,
		OpenAfter:   h.OpenAfter.UTC(),
		CreatedAt:   h.CreatedAt.UTC(),
	}
}

func (a *API) handleHolidayGet(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")

	holiday, err := a.svc.ActiveHoliday(r.Context(), merchantID)
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	if holiday == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, toHolidayResponse(holiday))
}

func (a *API) handleHolidaySet(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")

	var req holidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.OpenAfter.IsZero() {
		writeError(w, http.StatusBadRequest, "open_after_required")
		return
	}

	// X-Actor is the principal; a body actor may only repeat it.
	actor := storefront.ActorFromContext(r.Context())
	if req.Actor != nil && *req.Actor != actor {
		writeErrorMessage(w, http.StatusBadRequest, "actor_mismatch", "body actor must match "+ActorHeader)
		return
	}

	snap, err := a.svc.SetHoliday(r.Context(), merchantID, actor, req.OpenAfter)
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleHolidayClear lifts the live holiday. Merchants may not lift one an
// admin placed.
func (a *API) handleHolidayClear(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	actor := storefront.ActorFromContext(r.Context())
	if err := actor.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor")
		return
	}

	holiday, err := a.svc.ActiveHoliday(r.Context(), merchantID)
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	if !actor.CanClear(holiday) {
		writeError(w, http.StatusForbidden, "admin_holiday")
		return
	}

	snap, err := a.svc.ClearHoliday(r.Context(), merchantID)
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/storehours/internal/scheduling"
)

type scheduleRequest struct {
	SchedulingType string                 `json:"scheduling_type"`
	Slots          []scheduling.SlotInput `json:"slots"`
}

type scheduleResponse struct {
	MerchantID     string                 `json:"merchant_id"`
	SchedulingType string                 `json:"scheduling_type"`
	Slots          []scheduling.SlotInput `json:"slots"`
}

func toScheduleResponse(merchantID string, s scheduling.Schedule) scheduleResponse {
	resp := scheduleResponse{
		MerchantID:     merchantID,
		SchedulingType: string(s.Type),
		Slots:          make([]scheduling.SlotInput, 0, s.Len()),
	}
	for _, e := range s.Entries() {
		resp.Slots = append(resp.Slots, scheduling.SlotInput{
			SlotName:  string(e.Name),
			StartTime: e.Interval.Start.String(),
			EndTime:   e.Interval.End.String(),
		})
	}
	return resp
}

func (a *API) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")

	schedule, err := a.svc.GetSchedule(r.Context(), merchantID)
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(merchantID, schedule))
}

func (a *API) handleScheduleReplace(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	schedulingType, err := scheduling.ParseSchedulingType(req.SchedulingType)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "unknown_scheduling_type", err.Error())
		return
	}

	schedule, err := a.svc.ReplaceSchedule(r.Context(), merchantID, schedulingType, req.Slots)
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(merchantID, schedule))
}

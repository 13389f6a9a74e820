/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/storehours/internal/availability"
)

type availabilityResponse struct {
	Availability map[string]availability.Snapshot `json:"availability"`
	Missing      []string                         `json:"missing"`
}

// merchantIDs accepts repeated and comma separated merchant_id parameters.
func merchantIDs(r *http.Request) []string {
	var ids []string
	for _, v := range r.URL.Query()["merchant_id"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (a *API) handleAvailabilityBatch(w http.ResponseWriter, r *http.Request) {
	ids := merchantIDs(r)
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "merchant_id_required")
		return
	}
	if len(ids) > maxBatchMerchants {
		writeError(w, http.StatusBadRequest, "too_many_merchants")
		return
	}

	res, err := a.svc.GetAvailability(r.Context(), ids)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}

	missing := res.Missing
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Availability: res.Snapshots, Missing: missing})
}

func (a *API) handleAvailabilityGet(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")

	res, err := a.svc.GetAvailability(r.Context(), []string{merchantID})
	if err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	snap, ok := res.Snapshots[merchantID]
	if !ok {
		writeError(w, http.StatusNotFound, "schedule_missing")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

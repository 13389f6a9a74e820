/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/storehours/internal/audit"
	"github.com/friendsincode/storehours/internal/models"
)

type auditLogResponse struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ActorKind string         `json:"actor_kind,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

func toAuditLogResponse(log models.AuditLog) auditLogResponse {
	return auditLogResponse{
		ID:        log.ID,
		Timestamp: log.Timestamp.UTC(),
		ActorKind: string(log.ActorKind),
		ActorID:   log.ActorID,
		Action:    string(log.Action),
		Details:   log.Details,
	}
}

// handleAuditList returns the merchant's schedule and holiday history.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if a.auditSvc == nil {
		writeError(w, http.StatusNotImplemented, "audit_disabled")
		return
	}
	merchantID := chi.URLParam(r, "merchantID")

	q := audit.Query{
		MerchantID: merchantID,
		Action:     models.AuditAction(r.URL.Query().Get("action")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}

	logs, err := a.auditSvc.List(r.Context(), q)
	if err != nil {
		a.logger.Error().Err(err).Str("merchant_id", merchantID).Msg("failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	response := make([]auditLogResponse, len(logs))
	for i, log := range logs {
		response[i] = toAuditLogResponse(log)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merchant_id": merchantID,
		"audit_logs":  response,
	})
}

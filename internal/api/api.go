/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/storehours/internal/audit"
	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/scheduler"
	"github.com/friendsincode/storehours/internal/scheduling"
	"github.com/friendsincode/storehours/internal/storefront"
)

// ActorHeader carries the acting principal as "kind:id".
const ActorHeader = "X-Actor"

const maxBatchMerchants = 200

// API exposes HTTP handlers.
type API struct {
	svc       *storefront.Service
	scheduler *scheduler.Service
	auditSvc  *audit.Service
	logger    zerolog.Logger
}

// New creates the API router wrapper. sched and auditSvc may be nil.
func New(svc *storefront.Service, sched *scheduler.Service, auditSvc *audit.Service, logger zerolog.Logger) *API {
	return &API{
		svc:       svc,
		scheduler: sched,
		auditSvc:  auditSvc,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(actorMiddleware)

			r.Get("/availability", a.handleAvailabilityBatch)
			r.Post("/recompute", a.handleRecompute)

			r.Route("/merchants/{merchantID}", func(r chi.Router) {
				r.Delete("/", a.handleMerchantDelete)
				r.Get("/availability", a.handleAvailabilityGet)
				r.Get("/schedule", a.handleScheduleGet)
				r.Put("/schedule", a.handleScheduleReplace)
				r.Get("/holiday", a.handleHolidayGet)
				r.Put("/holiday", a.handleHolidaySet)
				r.Delete("/holiday", a.handleHolidayClear)
				r.Get("/audit", a.handleAuditList)
			})
		})
	})
}

// actorMiddleware puts the X-Actor principal, when present, on the context.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(ActorHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := models.ParseActor(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor")
			return
		}
		next.ServeHTTP(w, r.WithContext(storefront.WithActor(r.Context(), actor)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if a.scheduler != nil {
		if at, stats := a.scheduler.LastRun(); !at.IsZero() {
			resp["last_recompute"] = map[string]any{
				"started_at": at.UTC(),
				"due":        stats.Due,
				"recomputed": stats.Recomputed,
				"failed":     stats.Failed,
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var (
		stats storefront.RecomputeStats
		err   error
	)
	if a.scheduler != nil {
		stats, err = a.scheduler.Tick(r.Context())
	} else {
		stats, err = a.svc.RunScheduledRecompute(r.Context())
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("manual recompute failed")
		writeError(w, http.StatusServiceUnavailable, "recompute_failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleMerchantDelete(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	if err := a.svc.DeleteMerchant(r.Context(), merchantID); err != nil {
		a.writeServiceError(w, err, merchantID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeServiceError maps storefront errors onto HTTP responses.
func (a *API) writeServiceError(w http.ResponseWriter, err error, merchantID string) {
	var verr *scheduling.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorMessage(w, http.StatusBadRequest, verr.Code(), verr.Error())
	case errors.Is(err, storefront.ErrHolidayInPast):
		writeError(w, http.StatusBadRequest, "holiday_in_past")
	case errors.Is(err, models.ErrInvalidActor):
		writeError(w, http.StatusBadRequest, "invalid_actor")
	case errors.Is(err, availability.ErrScheduleMissing):
		writeError(w, http.StatusNotFound, "schedule_missing")
	default:
		a.logger.Error().Err(err).Str("merchant_id", merchantID).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

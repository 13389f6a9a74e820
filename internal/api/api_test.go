/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/storehours/internal/audit"
	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/cache"
	"github.com/friendsincode/storehours/internal/db/dbtest"
	"github.com/friendsincode/storehours/internal/events"
	"github.com/friendsincode/storehours/internal/scheduler"
	"github.com/friendsincode/storehours/internal/scheduling"
	"github.com/friendsincode/storehours/internal/store"
	"github.com/friendsincode/storehours/internal/storefront"
)

// Wednesday 6 March 2024, 09:00 UTC.
var testNow = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router chi.Router
	audit  *audit.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	database := dbtest.Open(t)
	bus := events.NewBus()

	c := cache.New(cache.NewMemoryStore(), cache.NewMemoryIndex(), cache.DefaultConfig(), logger)
	svc := storefront.NewService(store.New(database), availability.NewCalculator(time.UTC), scheduling.NewValidator(logger), c, bus, logger)
	svc.SetClock(func() time.Time { return testNow })

	auditSvc := audit.NewService(database, bus, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ready := make(chan struct{})
	go auditSvc.Start(ctx, ready)
	<-ready

	r := chi.NewRouter()
	New(svc, scheduler.New(svc, time.Minute, logger), auditSvc, logger).Routes(r)
	return &testServer{router: r, audit: auditSvc}
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func putDaily(t *testing.T, s *testServer, merchantID, start, end string) {
	t.Helper()
	rec := s.do(t, http.MethodPut, "/api/v1/merchants/"+merchantID+"/schedule", "merchant:"+merchantID, map[string]any{
		"scheduling_type": "ALL",
		"slots":           []map[string]string{{"slot_name": "all", "start_time": start, "end_time": end}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestScheduleRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/merchants/m1/schedule", "", map[string]any{
		"scheduling_type": "custom",
		"slots": []map[string]string{
			{"slot_name": "mon", "start_time": "1400", "end_time": "1800"},
			{"slot_name": "mon", "start_time": "0900", "end_time": "1200"},
			{"slot_name": "sat", "start_time": "1000", "end_time": "1300"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	put := decode[scheduleResponse](t, rec)
	assert.Equal(t, "CUSTOM", put.SchedulingType)
	require.Len(t, put.Slots, 3)
	assert.Equal(t, scheduling.SlotInput{SlotName: "mon", StartTime: "0900", EndTime: "1200"}, put.Slots[0])

	rec = s.do(t, http.MethodGet, "/api/v1/merchants/m1/schedule", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, put, decode[scheduleResponse](t, rec))
}

func TestScheduleValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{
			name: "overlap",
			body: map[string]any{"scheduling_type": "CUSTOM", "slots": []map[string]string{
				{"slot_name": "mon", "start_time": "1000", "end_time": "1200"},
				{"slot_name": "mon", "start_time": "1100", "end_time": "1300"},
			}},
			code: "conflicting_slot",
		},
		{
			name: "slot name not allowed",
			body: map[string]any{"scheduling_type": "ALL", "slots": []map[string]string{
				{"slot_name": "mon", "start_time": "1000", "end_time": "1200"},
			}},
			code: "invalid_slot_name",
		},
		{
			name: "bad time",
			body: map[string]any{"scheduling_type": "ALL", "slots": []map[string]string{
				{"slot_name": "all", "start_time": "9:00", "end_time": "1200"},
			}},
			code: "invalid_time_format",
		},
		{
			name: "unknown type",
			body: map[string]any{"scheduling_type": "SOMETIMES"},
			code: "unknown_scheduling_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPut, "/api/v1/merchants/m1/schedule", "", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestAvailabilityBatch(t *testing.T) {
	s := newTestServer(t)
	putDaily(t, s, "m1", "0800", "2000")
	putDaily(t, s, "m2", "1000", "1800")

	rec := s.do(t, http.MethodGet, "/api/v1/availability?merchant_id=m1,m2&merchant_id=ghost", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[availabilityResponse](t, rec)
	assert.True(t, resp.Availability["m1"].IsOpen)
	assert.False(t, resp.Availability["m2"].IsOpen)
	assert.Equal(t, []string{"ghost"}, resp.Missing)

	rec = s.do(t, http.MethodGet, "/api/v1/availability", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilitySingle(t *testing.T) {
	s := newTestServer(t)
	putDaily(t, s, "m1", "0000", "2359")

	rec := s.do(t, http.MethodGet, "/api/v1/merchants/m1/availability", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["is_open"])
	assert.Equal(t, "2024-03-06T23:59:00Z", body["closing_at"])

	rec = s.do(t, http.MethodGet, "/api/v1/merchants/ghost/availability", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "schedule_missing", decode[map[string]string](t, rec)["error"])
}

func TestHolidayWorkflow(t *testing.T) {
	s := newTestServer(t)
	putDaily(t, s, "m1", "0000", "2359")

	openAfter := testNow.Add(10 * time.Minute)
	rec := s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "admin:ops-7", map[string]any{
		"open_after": openAfter,
		"actor":      map[string]string{"kind": "admin", "id": "ops-7"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[availability.Snapshot](t, rec)
	assert.True(t, snap.IsHoliday)
	assert.Equal(t, "admin", snap.CreatedBy)

	rec = s.do(t, http.MethodGet, "/api/v1/merchants/m1/holiday", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops-7", decode[holidayResponse](t, rec).CreatedByID)

	// The merchant cannot lift an admin closure.
	rec = s.do(t, http.MethodDelete, "/api/v1/merchants/m1/holiday", "merchant:m1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/merchants/m1/holiday", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/merchants/m1/holiday", "admin:ops-7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[availability.Snapshot](t, rec).IsOpen)

	rec = s.do(t, http.MethodGet, "/api/v1/merchants/m1/holiday", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHolidayErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "merchant:m1", map[string]any{"open_after": testNow.Add(time.Hour)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	putDaily(t, s, "m1", "0000", "2359")
	rec = s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "merchant:m1", map[string]any{"open_after": testNow.Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "holiday_in_past", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "", map[string]any{"open_after": testNow.Add(time.Hour)})
	assert.Equal(t, "invalid_actor", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "wizard:x", map[string]any{"open_after": testNow.Add(time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHolidayActorComesFromHeader(t *testing.T) {
	s := newTestServer(t)
	putDaily(t, s, "m1", "0000", "2359")

	body := map[string]any{
		"open_after": testNow.Add(time.Hour),
		"actor":      map[string]string{"kind": "admin", "id": "ops"},
	}
	rec := s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "merchant:m1", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "actor_mismatch", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/merchants/m1/holiday", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "rejected request must not create a holiday")

	rec = s.do(t, http.MethodPut, "/api/v1/merchants/m1/holiday", "merchant:m1", map[string]any{"open_after": testNow.Add(time.Hour)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "merchant", decode[availability.Snapshot](t, rec).CreatedBy)

	// The merchant placed it, so the merchant may lift it.
	rec = s.do(t, http.MethodDelete, "/api/v1/merchants/m1/holiday", "merchant:m1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMerchantDelete(t *testing.T) {
	s := newTestServer(t)
	putDaily(t, s, "m1", "0000", "2359")

	rec := s.do(t, http.MethodDelete, "/api/v1/merchants/m1", "admin:ops", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/availability?merchant_id=m1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[availabilityResponse](t, rec)
	assert.Empty(t, resp.Availability)
	assert.Equal(t, []string{"m1"}, resp.Missing)
}

func TestRecompute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/recompute", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec), "due")

	rec = s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Contains(t, decode[map[string]any](t, rec), "last_recompute")
}

func TestAuditList(t *testing.T) {
	s := newTestServer(t)
	putDaily(t, s, "m1", "0900", "1700")

	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/merchants/m1/audit", "", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var body struct {
			AuditLogs []auditLogResponse `json:"audit_logs"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.AuditLogs) == 0 {
			return false
		}
		return body.AuditLogs[0].Action == "schedule.replace" && body.AuditLogs[0].ActorID == "m1"
	}, 2*time.Second, 10*time.Millisecond)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/cache"
	"github.com/friendsincode/storehours/internal/db/dbtest"
	"github.com/friendsincode/storehours/internal/events"
	"github.com/friendsincode/storehours/internal/models"
	"github.com/friendsincode/storehours/internal/scheduling"
	"github.com/friendsincode/storehours/internal/store"
)

// Wednesday 6 March 2024.
var wed0900 = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *store.Store
	cache *cache.Cache
	index *cache.MemoryIndex
	bus   *events.Bus
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New(dbtest.Open(t))
	return newFixtureWithRepo(t, st, st)
}

func newFixtureWithRepo(t *testing.T, st *store.Store, repo Repository) *fixture {
	t.Helper()
	return newFixtureWithCache(t, st, repo, cache.NewMemoryStore(), cache.DefaultConfig())
}

func newFixtureWithCache(t *testing.T, st *store.Store, repo Repository, snapshots cache.Store, cfg cache.Config) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	index := cache.NewMemoryIndex()
	c := cache.New(snapshots, index, cfg, logger)
	bus := events.NewBus()

	svc := NewService(repo, availability.NewCalculator(time.UTC), scheduling.NewValidator(logger), c, bus, logger)
	clock := wed0900
	svc.SetClock(func() time.Time { return clock })

	return &fixture{svc: svc, store: st, cache: c, index: index, bus: bus, clock: &clock}
}

func (f *fixture) at(t time.Time) { *f.clock = t }

func daily(start, end string) []scheduling.SlotInput {
	return []scheduling.SlotInput{{SlotName: "all", StartTime: start, EndTime: end}}
}

func TestReplaceScheduleCachesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	schedule, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, daily("1000", "1800"))
	require.NoError(t, err)
	assert.Equal(t, 1, schedule.Len())

	cached, err := f.cache.GetMany(ctx, []string{"m1"})
	require.NoError(t, err)
	snap, ok := cached["m1"]
	require.True(t, ok, "snapshot should be cached after replace")
	assert.False(t, snap.IsOpen)
	require.NotNil(t, snap.NextOpensAt)
	assert.True(t, snap.NextOpensAt.Equal(time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)))

	due, err := f.index.Due(ctx, time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, due)
}

func TestReplaceScheduleRejectsConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingCustom, []scheduling.SlotInput{
		{SlotName: "mon", StartTime: "1000", EndTime: "1200"},
		{SlotName: "mon", StartTime: "1100", EndTime: "1300"},
	})
	require.ErrorIs(t, err, scheduling.ErrConflictingSlot)

	slots, err := f.store.GetSlots(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, slots, "rejected schedule must not be persisted")
}

func TestReplaceScheduleWithNoSlotsClearsAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, daily("0800", "2000"))
	require.NoError(t, err)
	_, err = f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, nil)
	require.NoError(t, err)

	res, err := f.svc.GetAvailability(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, res.Snapshots)
	assert.Equal(t, []string{"m1"}, res.Missing)
}

func TestGetAvailabilityReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Written behind the service's back so the cache starts cold.
	require.NoError(t, f.store.Transaction(ctx, func(tx *store.Tx) error {
		return tx.ReplaceSlots("m1", []models.WeeklySlot{{ID: "s1", SlotName: scheduling.SlotAll, StartTime: 0, EndTime: scheduling.LastMinute}})
	}))

	res, err := f.svc.GetAvailability(ctx, []string{"m1", "m1", "unknown", ""})
	require.NoError(t, err)
	require.Contains(t, res.Snapshots, "m1")
	assert.True(t, res.Snapshots["m1"].IsOpen)
	assert.Equal(t, []string{"unknown"}, res.Missing)

	cached, err := f.cache.GetMany(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Contains(t, cached, "m1", "miss should be back-filled")
}

func TestGetAvailabilityIgnoresExpiredSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, daily("1000", "1800"))
	require.NoError(t, err)

	// Past the cached next_opens_at, before any scheduler pass.
	f.at(time.Date(2024, 3, 6, 10, 30, 0, 0, time.UTC))
	res, err := f.svc.GetAvailability(ctx, []string{"m1"})
	require.NoError(t, err)
	snap := res.Snapshots["m1"]
	assert.True(t, snap.IsOpen)
	require.NotNil(t, snap.ClosingAt)
	assert.True(t, snap.ClosingAt.Equal(time.Date(2024, 3, 6, 18, 0, 0, 0, time.UTC)))
}

func TestMerchantDeletedIsNotServedFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, daily("0000", "2359"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteMerchant(ctx, "m1"))

	cached, err := f.cache.GetMany(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, cached)
	n, err := f.index.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := f.svc.GetAvailability(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, res.Snapshots)
	assert.Equal(t, []string{"m1"}, res.Missing)
}

func TestOnMerchantDeletedForcesFreshLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub := f.bus.Subscribe(events.EventMerchantDeleted)

	_, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, daily("0000", "2359"))
	require.NoError(t, err)

	// Schedule rows change upstream without going through the service.
	require.NoError(t, f.store.Transaction(ctx, func(tx *store.Tx) error {
		return tx.ReplaceSlots("m1", nil)
	}))
	require.NoError(t, f.svc.OnMerchantDeleted(WithActor(ctx, models.Actor{Kind: models.ActorAdmin, ID: "ops"}), "m1"))

	res, err := f.svc.GetAvailability(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, res.Missing)

	select {
	case p := <-sub:
		assert.Equal(t, "m1", p.String(events.KeyMerchantID))
		assert.Equal(t, "ops", p.String(events.KeyActorID))
	default:
		t.Fatal("merchant.deleted not published")
	}
}

func TestGetSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.GetSchedule(ctx, "m1")
	require.ErrorIs(t, err, availability.ErrScheduleMissing)

	_, err = f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingWeekdaysAndWeekends, []scheduling.SlotInput{
		{SlotName: "weekdays", StartTime: "1300", EndTime: "1700"},
		{SlotName: "weekdays", StartTime: "0800", EndTime: "1200"},
		{SlotName: "weekends", StartTime: "1000", EndTime: "1400"},
	})
	require.NoError(t, err)

	schedule, err := f.svc.GetSchedule(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, scheduling.SchedulingWeekdaysAndWeekends, schedule.Type)
	require.Len(t, schedule.Slots[scheduling.SlotWeekdays], 2)
	assert.Equal(t, "0800", schedule.Slots[scheduling.SlotWeekdays][0].Start.String())
}

func TestReplaceSchedulePublishesActor(t *testing.T) {
	ctx := WithActor(context.Background(), models.Actor{Kind: models.ActorMerchant, ID: "m1"})
	f := newFixture(t)
	sub := f.bus.Subscribe(events.EventScheduleReplaced)

	_, err := f.svc.ReplaceSchedule(ctx, "m1", scheduling.SchedulingAll, daily("0900", "1700"))
	require.NoError(t, err)

	select {
	case p := <-sub:
		assert.Equal(t, "merchant", p.String(events.KeyActorKind))
		assert.Equal(t, "ALL", p.String("scheduling_type"))
	default:
		t.Fatal("schedule.replaced not published")
	}
}

type failingRepo struct {
	*store.Store
	failFor map[string]bool
}

func (r *failingRepo) GetSlots(ctx context.Context, ids []string) ([]models.WeeklySlot, error) {
	for _, id := range ids {
		if r.failFor[id] {
			return nil, errors.New("connection reset")
		}
	}
	return r.Store.GetSlots(ctx, ids)
}

func TestGetAvailabilityPropagatesRepositoryErrors(t *testing.T) {
	st := store.New(dbtest.Open(t))
	f := newFixtureWithRepo(t, st, &failingRepo{Store: st, failFor: map[string]bool{"m1": true}})

	_, err := f.svc.GetAvailability(context.Background(), []string{"m1"})
	require.Error(t, err)
}

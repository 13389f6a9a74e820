/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache holds the latest availability snapshot per merchant and the
// time-ordered index of when each snapshot goes stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/telemetry"
)

const (
	// DefaultGrace keeps a snapshot alive past its transition so the
	// scheduler has time to replace it.
	DefaultGrace = 15 * time.Minute
	// DefaultRetryAfter is how long the breaker stays open.
	DefaultRetryAfter = time.Minute

	minTTL = time.Second
)

// Key prefixes for Redis cache
const (
	KeySnapshot       = "storehours:availability:" // + merchant_id
	KeyRecomputeIndex = "storehours:availability:recompute"
)

// Store is a byte-oriented key/value store with expiry.
type Store interface {
	// MGet returns one value per key, nil for misses.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RecomputeIndex orders members by the instant they must be recomputed.
type RecomputeIndex interface {
	// Schedule inserts member or moves it to at.
	Schedule(ctx context.Context, member string, at time.Time) error
	// Due returns members scheduled at or before upper, earliest first.
	Due(ctx context.Context, upper time.Time) ([]string, error)
	Remove(ctx context.Context, members ...string) error
}

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Grace is added to the time left until a snapshot's transition to
	// form its TTL.
	Grace time.Duration

	// Fallback behavior
	DisableOnError bool          // stop using the store after an error
	RetryAfter     time.Duration // then retry it after this long
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		Grace:          DefaultGrace,
		DisableOnError: true,
		RetryAfter:     DefaultRetryAfter,
	}
}

// Cache stores snapshots and keeps the recompute index in step with them.
// Store errors trip a circuit breaker; while it is open reads miss and
// writes turn into deletes, so callers fall back to computing availability.
// A merchant whose delete failed is pending: it is never served from the
// store until the delete goes through.
type Cache struct {
	store  Store
	index  RecomputeIndex
	logger zerolog.Logger
	config Config

	mu         sync.RWMutex
	disabled   bool // Circuit breaker state
	disabledAt time.Time
	pending    map[string]struct{}
}

// New creates a cache over store and index.
func New(store Store, index RecomputeIndex, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	c := &Cache{
		store:   store,
		index:   index,
		logger:  logger.With().Str("component", "cache").Logger(),
		config:  cfg,
		pending: make(map[string]struct{}),
	}
	telemetry.CacheAvailable.Set(1)
	return c
}

// IsAvailable returns true if the cache is operational. Once RetryAfter has
// elapsed on an open breaker the next caller is let through to try again.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	disabled, since := c.disabled, c.disabledAt
	c.mu.RUnlock()
	if !disabled {
		return true
	}
	if c.config.RetryAfter <= 0 || time.Since(since) < c.config.RetryAfter {
		return false
	}

	c.mu.Lock()
	c.disabled = false
	c.mu.Unlock()
	telemetry.CacheAvailable.Set(1)
	c.logger.Info().Msg("re-enabling cache after cooldown")
	return true
}

// handleError handles store errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	telemetry.CacheErrorsTotal.WithLabelValues(operation).Inc()
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		alreadyDisabled := c.disabled
		c.disabled = true
		c.disabledAt = time.Now()
		c.mu.Unlock()
		if !alreadyDisabled {
			telemetry.CacheAvailable.Set(0)
			c.logger.Warn().Err(err).Str("operation", operation).Msg("disabling cache due to store error")
		}
	}
}

func snapshotKey(merchantID string) string {
	return KeySnapshot + merchantID
}

// GetMany returns the cached snapshots for ids. Missing ids are absent from
// the result. Undecodable entries are treated as misses.
func (c *Cache) GetMany(ctx context.Context, ids []string) (map[string]availability.Snapshot, error) {
	found := make(map[string]availability.Snapshot, len(ids))
	if len(ids) == 0 || !c.IsAvailable() {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKey(id)
	}

	if err := c.flushPending(ctx); err != nil {
		return found, err
	}

	values, err := c.store.MGet(ctx, keys...)
	if err != nil {
		c.handleError(err, "mget")
		return found, err
	}

	for i, data := range values {
		if data == nil || i >= len(ids) || c.isPending(ids[i]) {
			continue
		}
		var snap availability.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			c.logger.Debug().Err(err).Str("key", keys[i]).Msg("failed to unmarshal cached snapshot")
			continue
		}
		found[ids[i]] = snap
	}
	return found, nil
}

// Upsert stores snap and schedules its recompute at the snapshot's
// transition. A snapshot with no transition is not cached at all and any
// previous entry is dropped.
func (c *Cache) Upsert(ctx context.Context, merchantID string, snap availability.Snapshot, now time.Time) error {
	at, ok := snap.Transition()
	if !ok {
		return c.Delete(ctx, merchantID)
	}
	if !c.IsAvailable() {
		return c.invalidate(ctx, merchantID)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ttl := at.Sub(now) + c.config.Grace
	if ttl < minTTL {
		ttl = minTTL
	}

	if err := c.store.Set(ctx, snapshotKey(merchantID), data, ttl); err != nil {
		c.handleError(err, "set")
		_ = c.invalidate(ctx, merchantID)
		return err
	}
	c.clearPending(merchantID)
	if err := c.index.Schedule(ctx, merchantID, at); err != nil {
		c.handleError(err, "schedule")
		return err
	}
	return nil
}

// Delete removes the snapshot and the index entry. It is attempted even
// while the breaker is open.
func (c *Cache) Delete(ctx context.Context, merchantID string) error {
	return c.invalidate(ctx, merchantID)
}

// invalidate drops merchantID from the store and the index, marking it
// pending when that fails.
func (c *Cache) invalidate(ctx context.Context, merchantID string) error {
	err := c.remove(ctx, merchantID)

	c.mu.Lock()
	if err != nil {
		c.pending[merchantID] = struct{}{}
	} else {
		delete(c.pending, merchantID)
	}
	c.mu.Unlock()
	return err
}

func (c *Cache) remove(ctx context.Context, merchantIDs ...string) error {
	keys := make([]string, len(merchantIDs))
	for i, id := range merchantIDs {
		keys[i] = snapshotKey(id)
	}

	var errs []error
	if err := c.store.Del(ctx, keys...); err != nil {
		c.handleError(err, "delete")
		errs = append(errs, err)
	}
	if err := c.index.Remove(ctx, merchantIDs...); err != nil {
		c.handleError(err, "unschedule")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// flushPending retries the deletes that failed earlier.
func (c *Cache) flushPending(ctx context.Context) error {
	c.mu.RLock()
	if len(c.pending) == 0 {
		c.mu.RUnlock()
		return nil
	}
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	if err := c.remove(ctx, ids...); err != nil {
		return err
	}

	c.mu.Lock()
	for _, id := range ids {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.logger.Info().Int("merchants", len(ids)).Msg("flushed pending cache deletes")
	return nil
}

func (c *Cache) isPending(merchantID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[merchantID]
	return ok
}

func (c *Cache) clearPending(merchantID string) {
	c.mu.Lock()
	delete(c.pending, merchantID)
	c.mu.Unlock()
}

// Pending reports how many merchants are waiting for a delete to succeed.
func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Due returns merchants whose snapshot transition is at or before now.
func (c *Cache) Due(ctx context.Context, now time.Time) ([]string, error) {
	if !c.IsAvailable() {
		return nil, nil
	}

	ids, err := c.index.Due(ctx, now)
	if err != nil {
		c.handleError(err, "due")
		return nil, err
	}
	return ids, nil
}

type indexLen interface {
	Len(ctx context.Context) (int64, error)
}

// IndexSize reports how many merchants are scheduled for recompute. The
// second result is false when the index cannot report a size.
func (c *Cache) IndexSize(ctx context.Context) (int64, bool) {
	sized, ok := c.index.(indexLen)
	if !ok || !c.IsAvailable() {
		return 0, false
	}
	n, err := sized.Len(ctx)
	if err != nil {
		c.handleError(err, "index_len")
		return 0, false
	}
	return n, true
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return client, nil
}

// RedisStore keeps snapshots as plain Redis strings.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// MGet fetches all keys in one round trip.
func (s *RedisStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(keys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

// Set writes value with a TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Del removes keys.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// RedisIndex is a sorted set scored by unix seconds.
type RedisIndex struct {
	client redis.UniversalClient
	key    string
}

// NewRedisIndex uses the sorted set at key, or KeyRecomputeIndex when key
// is empty.
func NewRedisIndex(client redis.UniversalClient, key string) *RedisIndex {
	if key == "" {
		key = KeyRecomputeIndex
	}
	return &RedisIndex{client: client, key: key}
}

// Schedule sets member's score to at.
func (x *RedisIndex) Schedule(ctx context.Context, member string, at time.Time) error {
	return x.client.ZAdd(ctx, x.key, redis.Z{
		Score:  float64(at.Unix()),
		Member: member,
	}).Err()
}

// Due returns members with a score at or below upper.
func (x *RedisIndex) Due(ctx context.Context, upper time.Time) ([]string, error) {
	return x.client.ZRangeByScore(ctx, x.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(upper.Unix(), 10),
	}).Result()
}

// Remove deletes members from the index.
func (x *RedisIndex) Remove(ctx context.Context, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return x.client.ZRem(ctx, x.key, args...).Err()
}

// Len returns the number of scheduled members.
func (x *RedisIndex) Len(ctx context.Context) (int64, error) {
	return x.client.ZCard(ctx, x.key).Result()
}

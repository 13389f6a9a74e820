/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string
	DBBackend   DatabaseBackend
	DBDSN       string

	// Availability
	Timezone          string // IANA zone slot times are evaluated in
	RecomputeInterval time.Duration
	RecomputeWorkers  int
	RecomputeRate     float64 // merchants per second, 0 = unlimited
	CacheGrace        time.Duration

	// Cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	InstanceID            string

	LegacyEnvWarnings []string
}

// LoadDotEnv loads variables from the given .env files without overriding
// ones already set. A missing default ".env" is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(paths...)
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"STOREHOURS_ENV", "SH_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"STOREHOURS_HTTP_BIND", "SH_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"STOREHOURS_HTTP_PORT", "SH_HTTP_PORT"}, 8080),
		MetricsBind: getEnvAny([]string{"STOREHOURS_METRICS_BIND", "SH_METRICS_BIND"}, "127.0.0.1:9000"),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"STOREHOURS_DB_BACKEND", "SH_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:       getEnvAny([]string{"STOREHOURS_DB_DSN", "SH_DB_DSN"}, ""),

		Timezone:          getEnvAny([]string{"STOREHOURS_TIMEZONE", "SH_TIMEZONE"}, "UTC"),
		RecomputeInterval: time.Duration(getEnvIntAny([]string{"STOREHOURS_RECOMPUTE_INTERVAL_SECONDS", "SH_RECOMPUTE_INTERVAL_SECONDS"}, 30)) * time.Second,
		RecomputeWorkers:  getEnvIntAny([]string{"STOREHOURS_RECOMPUTE_WORKERS", "SH_RECOMPUTE_WORKERS"}, 4),
		RecomputeRate:     getEnvFloatAny([]string{"STOREHOURS_RECOMPUTE_RATE", "SH_RECOMPUTE_RATE"}, 0),
		CacheGrace:        time.Duration(getEnvIntAny([]string{"STOREHOURS_CACHE_GRACE_SECONDS", "SH_CACHE_GRACE_SECONDS"}, 900)) * time.Second,

		CacheEnabled:  getEnvBoolAny([]string{"STOREHOURS_CACHE_ENABLED", "SH_CACHE_ENABLED"}, true),
		RedisAddr:     getEnvAny([]string{"STOREHOURS_REDIS_ADDR", "SH_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"STOREHOURS_REDIS_PASSWORD", "SH_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"STOREHOURS_REDIS_DB", "SH_REDIS_DB"}, 0),

		TracingEnabled:    getEnvBoolAny([]string{"STOREHOURS_TRACING_ENABLED", "SH_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"STOREHOURS_OTLP_ENDPOINT", "SH_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"STOREHOURS_TRACING_SAMPLE_RATE", "SH_TRACING_SAMPLE_RATE"}, 1.0),

		LeaderElectionEnabled: getEnvBoolAny([]string{"STOREHOURS_LEADER_ELECTION_ENABLED", "SH_LEADER_ELECTION_ENABLED"}, false),
		InstanceID:            getEnvAny([]string{"STOREHOURS_INSTANCE_ID", "SH_INSTANCE_ID"}, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Validate checks values Load cannot default.
func (c *Config) Validate() error {
	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("STOREHOURS_DB_DSN or SH_DB_DSN must be provided")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid STOREHOURS_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.RecomputeInterval <= 0 {
		return fmt.Errorf("STOREHOURS_RECOMPUTE_INTERVAL_SECONDS must be positive")
	}
	if c.RecomputeWorkers < 1 {
		return fmt.Errorf("STOREHOURS_RECOMPUTE_WORKERS must be at least 1")
	}
	if c.RecomputeRate < 0 {
		return fmt.Errorf("STOREHOURS_RECOMPUTE_RATE must not be negative")
	}
	if c.CacheGrace < 0 {
		return fmt.Errorf("STOREHOURS_CACHE_GRACE_SECONDS must not be negative")
	}
	if c.LeaderElectionEnabled && !c.CacheEnabled {
		return fmt.Errorf("leader election requires Redis; set STOREHOURS_CACHE_ENABLED=true")
	}
	return nil
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// HTTPAddr returns the listen address for the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"DATABASE_URL":    "use STOREHOURS_DB_DSN (or SH_DB_DSN)",
		"REDIS_ADDR":      "use STOREHOURS_REDIS_ADDR (or SH_REDIS_ADDR)",
		"TZ_MERCHANTS":    "use STOREHOURS_TIMEZONE (or SH_TIMEZONE)",
		"TRACING_ENABLED": "use STOREHOURS_TRACING_ENABLED (or SH_TRACING_ENABLED)",
		"OTLP_ENDPOINT":   "use STOREHOURS_OTLP_ENDPOINT (or SH_OTLP_ENDPOINT)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first set environment variable value from keys, or def.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes":
				return true
			case "false", "0", "no":
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

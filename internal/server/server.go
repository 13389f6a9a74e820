/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/storehours/internal/api"
	"github.com/friendsincode/storehours/internal/audit"
	"github.com/friendsincode/storehours/internal/availability"
	"github.com/friendsincode/storehours/internal/cache"
	"github.com/friendsincode/storehours/internal/config"
	"github.com/friendsincode/storehours/internal/db"
	"github.com/friendsincode/storehours/internal/events"
	"github.com/friendsincode/storehours/internal/leadership"
	"github.com/friendsincode/storehours/internal/scheduler"
	"github.com/friendsincode/storehours/internal/scheduling"
	"github.com/friendsincode/storehours/internal/store"
	"github.com/friendsincode/storehours/internal/storefront"
	"github.com/friendsincode/storehours/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db                   *gorm.DB
	redis                *redis.Client
	cache                *cache.Cache
	api                  *api.API
	storefront           *storefront.Service
	scheduler            *scheduler.Service
	leaderAwareScheduler *scheduler.LeaderAwareScheduler
	bus                  *events.Bus
	auditSvc             *audit.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	srv, err := NewHeadless(cfg, logger)
	if err != nil {
		return nil, err
	}

	router := srv.router
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsRouter,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return srv, nil
}

// NewHeadless wires storage, cache and services without routes or
// background workers. Command line tools use it for one-off work.
func NewHeadless(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: chi.NewRouter(),
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}
	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		w.Header().Set("Cache-Control", "no-store")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	cacheCfg.Grace = s.cfg.CacheGrace

	var (
		snapshots cache.Store          = cache.NewMemoryStore()
		index     cache.RecomputeIndex = cache.NewMemoryIndex()
	)
	if s.cfg.CacheEnabled {
		client, err := cache.Connect(context.Background(), cacheCfg, s.logger)
		switch {
		case err == nil:
			s.redis = client
			s.DeferClose(client.Close)
			snapshots = cache.NewRedisStore(client)
			index = cache.NewRedisIndex(client, "")
		case s.cfg.LeaderElectionEnabled:
			return fmt.Errorf("leader election needs redis: %w", err)
		default:
			s.logger.Warn().Err(err).Msg("redis unavailable, using in-process cache")
		}
	}
	s.cache = cache.New(snapshots, index, cacheCfg, s.logger)

	calc := availability.NewCalculator(availability.LoadLocation(s.cfg.Timezone, s.logger))
	validator := scheduling.NewValidator(s.logger)

	s.storefront = storefront.NewService(store.New(database), calc, validator, s.cache, s.bus, s.logger)
	s.storefront.SetRecomputeLimits(s.cfg.RecomputeWorkers, s.cfg.RecomputeRate)

	s.scheduler = scheduler.New(s.storefront, s.cfg.RecomputeInterval, s.logger)

	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.DefaultConfig()
		if s.cfg.InstanceID != "" {
			electionConfig.InstanceID = s.cfg.InstanceID
		}
		election := leadership.NewElection(s.redis, electionConfig, s.logger)
		s.leaderAwareScheduler = scheduler.NewLeaderAware(s.scheduler, election, s.logger)

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", election.InstanceID()).
			Msg("leader election enabled for recompute scheduler")
	}

	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.api = api.New(s.storefront, s.scheduler, s.auditSvc, s.logger)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the Prometheus listener, nil when disabled.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Storefront returns the availability service.
func (s *Server) Storefront() *storefront.Service {
	return s.storefront
}

// Scheduler returns the recompute scheduler.
func (s *Server) Scheduler() *scheduler.Service {
	return s.scheduler
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	if s.leaderAwareScheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.leaderAwareScheduler.Stop(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader-aware scheduler shutdown error")
		}
		cancel()
	}
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx, nil)
		}()
	}

	// Start scheduler (leader-aware if configured, otherwise direct)
	if s.leaderAwareScheduler != nil {
		if err := s.leaderAwareScheduler.Start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader-aware scheduler failed to start")
		}
	} else if s.scheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("scheduler loop exited")
			}
		}()
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
					if size, ok := s.cache.IndexSize(ctx); ok {
						telemetry.RecomputeIndexSize.Set(float64(size))
					}
				}
			}
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`

		if s.leaderAwareScheduler != nil {
			if s.leaderAwareScheduler.IsLeader() {
				response += `,"leader":true`
			} else {
				response += `,"leader":false`
			}
		}

		response += `}`
		_, _ = w.Write([]byte(response))
	})

	s.api.Routes(s.router)
}

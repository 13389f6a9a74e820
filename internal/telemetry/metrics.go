package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_api_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storehours_api_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storehours_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Availability metrics
var (
	RecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_recompute_total",
		Help: "Snapshot computations by trigger and result.",
	}, []string{"trigger", "result"})

	RecomputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storehours_recompute_duration_seconds",
		Help:    "Time to load inputs and compute one snapshot.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"trigger"})

	SnapshotStateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_snapshot_state_total",
		Help: "Computed snapshots by resulting state.",
	}, []string{"state"})

	RecomputeDueMerchants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storehours_recompute_due_merchants",
		Help: "Merchants returned as due by the last scheduler tick.",
	})

	RecomputeIndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storehours_recompute_index_size",
		Help: "Merchants currently scheduled for recompute.",
	})
)

// Cache metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storehours_cache_hits_total",
		Help: "Snapshot reads served from cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storehours_cache_misses_total",
		Help: "Snapshot reads that required a computation.",
	})

	CacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_cache_errors_total",
		Help: "Cache store errors by operation.",
	}, []string{"operation"})

	CacheAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storehours_cache_available",
		Help: "1 while the cache circuit breaker is closed.",
	})
)

// Scheduler metrics
var (
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storehours_scheduler_ticks_total",
		Help: "Recompute scheduler ticks.",
	})

	SchedulerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_scheduler_errors_total",
		Help: "Scheduler failures by stage.",
	}, []string{"stage"})

	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storehours_scheduler_tick_duration_seconds",
		Help:    "Duration of one scheduler tick.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storehours_leader_election_status",
		Help: "1 when this instance holds the scheduler lease.",
	}, []string{"instance_id"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_leader_election_changes_total",
		Help: "Leadership transitions by instance and direction.",
	}, []string{"instance_id", "change"})
)

// Database and event metrics
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storehours_database_query_duration_seconds",
		Help:    "Database query latency by operation and table.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_database_errors_total",
		Help: "Database errors by operation.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storehours_database_connections_active",
		Help: "Open database connections.",
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_events_published_total",
		Help: "Events published on the in-process bus.",
	}, []string{"type"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storehours_events_dropped_total",
		Help: "Events dropped because a subscriber was full.",
	}, []string{"type"})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

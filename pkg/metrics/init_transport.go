package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTransportMetrics() {
	r.MigrationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_migrations_total",
			Help: "Total agents handed off to another rank at the space barrier",
		},
	)

	r.BarrierDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hospicon_barrier_duration_seconds",
			Help:    "Wall-clock duration of one resource manager's proxy/authority exchange",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"manager"}, // chairs, reception, triage, doctors, icu
	)
}

func (r *Registry) initPathfinderMetrics() {
	r.PathfinderCacheHits = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_pathfinder_cache_hits_total",
			Help: "Pathfinder route cache hits",
		},
	)

	r.PathfinderCacheMisses = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_pathfinder_cache_misses_total",
			Help: "Pathfinder route cache misses requiring a fresh A* search",
		},
	)
}

// Package metrics wraps a Prometheus registry exposing tick duration
// histograms, per-resource-manager queue depth gauges, infection-stage
// counters, and migration counters (adapted from the teacher's
// pkg/metrics, spec §4.C).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric hospicon exposes for one process.
type Registry struct {
	// Tick scheduler metrics
	TicksTotal         prometheus.Counter
	TickDuration       *prometheus.HistogramVec
	CurrentTick        prometheus.Gauge

	// Population metrics
	ActivePatients      prometheus.Gauge
	PatientsByState      *prometheus.GaugeVec
	AdmissionsTotal      prometheus.Counter
	DischargesTotal      prometheus.Counter
	DeathsTotal          prometheus.Counter
	NoAttentionTotal     prometheus.Counter

	// Infection metrics
	InfectionsTotal   prometheus.Counter
	ActiveInfections  *prometheus.GaugeVec
	CleaningEvents    *prometheus.CounterVec

	// Resource manager metrics
	ChairsInUse         prometheus.Gauge
	ReceptionQueueDepth prometheus.Gauge
	TriageQueueDepth    prometheus.Gauge
	DoctorQueueDepth    *prometheus.GaugeVec
	ICUBedsReserved     prometheus.Gauge
	ICUBedsInUse        prometheus.Gauge

	// Migration / transport metrics
	MigrationsTotal  prometheus.Counter
	BarrierDuration  *prometheus.HistogramVec

	// Pathfinder diagnostics
	PathfinderCacheHits   prometheus.Counter
	PathfinderCacheMisses prometheus.Counter

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with every metric
// registered against a fresh prometheus.Registry, so multiple ranks
// running in one test binary never collide on metric names.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.initSchedulerMetrics()
	r.initPopulationMetrics()
	r.initInfectionMetrics()
	r.initResourceMetrics()
	r.initTransportMetrics()
	r.initPathfinderMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry,
// for wiring into an HTTP handler.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

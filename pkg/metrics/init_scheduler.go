package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSchedulerMetrics() {
	r.TicksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_ticks_total",
			Help: "Total number of ticks completed by this process",
		},
	)

	r.TickDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hospicon_tick_phase_duration_seconds",
			Help:    "Wall-clock duration of one tick phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"}, // entry_source, agent_behavior, exit_sink, barrier
	)

	r.CurrentTick = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_current_tick",
			Help: "Current tick number",
		},
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initInfectionMetrics() {
	r.InfectionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_infections_total",
			Help: "Total newly infected humans and objects observed on this process",
		},
	)

	r.ActiveInfections = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hospicon_active_infections",
			Help: "Number of currently infected agents by infection stage",
		},
		[]string{"stage"}, // incubating, sick, contaminated
	)

	r.CleaningEvents = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospicon_cleaning_events_total",
			Help: "Total object decontamination events, by object type",
		},
		[]string{"type"}, // chair, bed
	)
}

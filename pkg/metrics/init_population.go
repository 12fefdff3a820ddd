package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPopulationMetrics() {
	r.ActivePatients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_active_patients",
			Help: "Number of patients currently resident on this process",
		},
	)

	r.PatientsByState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hospicon_patients_by_state",
			Help: "Number of resident patients in each FSM state",
		},
		[]string{"state"},
	)

	r.AdmissionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_admissions_total",
			Help: "Total patients created by the entry source",
		},
	)

	r.DischargesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_discharges_total",
			Help: "Total patients who exited the hospital alive",
		},
	)

	r.DeathsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_deaths_total",
			Help: "Total patients who died in the ICU",
		},
	)

	r.NoAttentionTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hospicon_no_attention_total",
			Help: "Total patients whose doctor-queue deadline expired",
		},
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initResourceMetrics() {
	r.ChairsInUse = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_chairs_in_use",
			Help: "Number of waiting-room chairs currently occupied",
		},
	)

	r.ReceptionQueueDepth = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_reception_queue_depth",
			Help: "Patients waiting for a reception desk turn",
		},
	)

	r.TriageQueueDepth = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_triage_queue_depth",
			Help: "Patients waiting for a triage turn",
		},
	)

	r.DoctorQueueDepth = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hospicon_doctor_queue_depth",
			Help: "Patients queued for a doctor, by specialty",
		},
		[]string{"specialty"},
	)

	r.ICUBedsReserved = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_icu_beds_reserved",
			Help: "ICU beds reserved (admitted or in-flight admission request)",
		},
	)

	r.ICUBedsInUse = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hospicon_icu_beds_in_use",
			Help: "ICU beds in use, sampled from the ICU authority's reserved-bed count",
		},
	)
}

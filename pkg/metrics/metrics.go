package metrics

import (
	"time"
)

// RecordTick marks completion of one scheduler tick.
func (r *Registry) RecordTick(tick uint64) {
	r.TicksTotal.Inc()
	r.CurrentTick.Set(float64(tick))
}

// RecordPhase records the wall-clock duration of one tick phase.
func (r *Registry) RecordPhase(phase string, duration time.Duration) {
	r.TickDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordAdmission records a patient minted by the entry source.
func (r *Registry) RecordAdmission() {
	r.AdmissionsTotal.Inc()
}

// RecordDeparture records one exit-sink departure by outcome.
func (r *Registry) RecordDeparture(deceased bool) {
	if deceased {
		r.DeathsTotal.Inc()
		return
	}
	r.DischargesTotal.Inc()
}

// RecordNoAttention records a patient whose doctor-queue deadline expired.
func (r *Registry) RecordNoAttention() {
	r.NoAttentionTotal.Inc()
}

// RecordInfection records one newly infected agent.
func (r *Registry) RecordInfection() {
	r.InfectionsTotal.Inc()
}

// RecordCleaning records one object decontamination event.
func (r *Registry) RecordCleaning(objectType string) {
	r.CleaningEvents.WithLabelValues(objectType).Inc()
}

// UpdatePopulation replaces the per-state resident patient gauges.
func (r *Registry) UpdatePopulation(total int, byState map[string]int) {
	r.ActivePatients.Set(float64(total))
	for state, n := range byState {
		r.PatientsByState.WithLabelValues(state).Set(float64(n))
	}
}

// UpdateInfectionStages replaces the per-stage active infection gauges.
func (r *Registry) UpdateInfectionStages(byStage map[string]int) {
	for stage, n := range byStage {
		r.ActiveInfections.WithLabelValues(stage).Set(float64(n))
	}
}

// UpdateResourceOccupancy snapshots every resource manager's current
// occupancy, sampled once per tick after the synchronization barrier.
func (r *Registry) UpdateResourceOccupancy(chairsInUse, receptionDepth, triageDepth int, doctorDepth map[string]int, icuReserved, icuInUse int) {
	r.ChairsInUse.Set(float64(chairsInUse))
	r.ReceptionQueueDepth.Set(float64(receptionDepth))
	r.TriageQueueDepth.Set(float64(triageDepth))
	for specialty, n := range doctorDepth {
		r.DoctorQueueDepth.WithLabelValues(specialty).Set(float64(n))
	}
	r.ICUBedsReserved.Set(float64(icuReserved))
	r.ICUBedsInUse.Set(float64(icuInUse))
}

// RecordMigrations records agents handed off to other ranks this tick.
func (r *Registry) RecordMigrations(n int) {
	for i := 0; i < n; i++ {
		r.MigrationsTotal.Inc()
	}
}

// RecordBarrier records the duration of one manager's proxy/authority
// exchange inside the synchronization barrier.
func (r *Registry) RecordBarrier(manager string, duration time.Duration) {
	r.BarrierDuration.WithLabelValues(manager).Observe(duration.Seconds())
}

// RecordPathfinderCache records a pathfinder cache lookup outcome.
func (r *Registry) RecordPathfinderCache(hit bool) {
	if hit {
		r.PathfinderCacheHits.Inc()
		return
	}
	r.PathfinderCacheMisses.Inc()
}

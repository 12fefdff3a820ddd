package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryInitializesEveryMetric(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)

	require.NotNil(t, r.TicksTotal)
	require.NotNil(t, r.TickDuration)
	require.NotNil(t, r.ActivePatients)
	require.NotNil(t, r.PatientsByState)
	require.NotNil(t, r.ChairsInUse)
	require.NotNil(t, r.DoctorQueueDepth)
	require.NotNil(t, r.ICUBedsReserved)
	require.NotNil(t, r.MigrationsTotal)
	require.NotNil(t, r.registry)
}

func TestDefaultRegistryReturnsSameInstance(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()
	assert.Same(t, r1, r2)
}

func TestRecordTickAdvancesCounterAndGauge(t *testing.T) {
	r := NewRegistry()

	r.RecordTick(1)
	r.RecordTick(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.TicksTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.CurrentTick))
}

func TestRecordDepartureSplitsByOutcome(t *testing.T) {
	r := NewRegistry()

	r.RecordDeparture(false)
	r.RecordDeparture(false)
	r.RecordDeparture(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.DischargesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.DeathsTotal))
}

func TestUpdatePopulationSetsPerStateGauges(t *testing.T) {
	r := NewRegistry()

	r.UpdatePopulation(5, map[string]int{"wait_in_doctor": 3, "sleep": 2})

	assert.Equal(t, float64(5), testutil.ToFloat64(r.ActivePatients))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.PatientsByState.WithLabelValues("wait_in_doctor")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.PatientsByState.WithLabelValues("sleep")))
}

func TestUpdateResourceOccupancySetsEveryGauge(t *testing.T) {
	r := NewRegistry()

	r.UpdateResourceOccupancy(4, 2, 1, map[string]int{"cardiology": 3}, 5, 4)

	assert.Equal(t, float64(4), testutil.ToFloat64(r.ChairsInUse))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.ReceptionQueueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.TriageQueueDepth))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.DoctorQueueDepth.WithLabelValues("cardiology")))
	assert.Equal(t, float64(5), testutil.ToFloat64(r.ICUBedsReserved))
	assert.Equal(t, float64(4), testutil.ToFloat64(r.ICUBedsInUse))
}

func TestRecordMigrationsIncrementsByCount(t *testing.T) {
	r := NewRegistry()
	r.RecordMigrations(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(r.MigrationsTotal))
}

func TestRecordPathfinderCacheSplitsHitsAndMisses(t *testing.T) {
	r := NewRegistry()
	r.RecordPathfinderCache(true)
	r.RecordPathfinderCache(true)
	r.RecordPathfinderCache(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.PathfinderCacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.PathfinderCacheMisses))
}

func TestRecordDepartureWritesRawCounterMetric(t *testing.T) {
	r := NewRegistry()

	r.RecordDeparture(false)
	r.RecordDeparture(false)

	var metric dto.Metric
	require.NoError(t, r.DischargesTotal.Write(&metric))
	assert.Equal(t, float64(2), metric.Counter.GetValue())
}

func TestUpdatePopulationWritesRawGaugeMetric(t *testing.T) {
	r := NewRegistry()

	r.UpdatePopulation(7, map[string]int{"wait_in_doctor": 3})

	var metric dto.Metric
	require.NoError(t, r.ActivePatients.Write(&metric))
	assert.Equal(t, float64(7), metric.Gauge.GetValue())

	var labeled dto.Metric
	require.NoError(t, r.PatientsByState.WithLabelValues("wait_in_doctor").Write(&labeled))
	assert.Equal(t, float64(3), labeled.Gauge.GetValue())
}

func TestRecordPhaseAndBarrierDoNotPanic(t *testing.T) {
	r := NewRegistry()
	r.RecordPhase("entry_source", 2*time.Millisecond)
	r.RecordBarrier("icu", 3*time.Millisecond)
}

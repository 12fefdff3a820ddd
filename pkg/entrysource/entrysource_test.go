package entrysource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/entrysource"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

func testPlan() *plan.Plan {
	obstacles := [][]bool{{true, true}, {true, true}}
	return plan.New(2, 2, obstacles, nil, nil, nil, nil, nil,
		geometry.DiscreteCoord{X: 0, Y: 0}, geometry.DiscreteCoord{X: 1, Y: 1}, plan.ICU{})
}

const secondsPerDay = 24 * 60 * 60

func TestNewRejectsIntervalNotDividingDay(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{1}},
		InfectedChance: []float64{0},
	}
	_, err := entrysource.New(testPlan(), dist, 1000)
	assert.Error(t, err)
}

func TestNewRejectsMismatchedDayCounts(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{1, 1}},
		InfectedChance: []float64{0, 0},
	}
	_, err := entrysource.New(testPlan(), dist, secondsPerDay/2)
	assert.Error(t, err)
}

func TestNewRejectsOutOfRangeInfectedChance(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{1, 1}},
		InfectedChance: []float64{1.5},
	}
	_, err := entrysource.New(testPlan(), dist, secondsPerDay/2)
	assert.Error(t, err)
}

func TestRunMintsOnePatientPerBinForAZeroHistogram(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{0, 0}},
		InfectedChance: []float64{0},
	}
	src, err := entrysource.New(testPlan(), dist, secondsPerDay/2)
	require.NoError(t, err)

	f := agent.NewFactory(0)
	params := infection.HumanParams{}
	stream := rng.New(1, 0)

	placed := map[agent.IDKey]geometry.ContinuousCoord{}
	place := func(id agent.ID, pos geometry.ContinuousCoord) { placed[id.Key()] = pos }

	// A zero histogram still owes "1" admission per bin per the
	// pro-rata formula's "+1" floor, so the very first tick of each
	// bin mints exactly one patient.
	created := src.Run(f, params, simclock.NewDateTime(0), stream, place)
	assert.Len(t, created, 1)
	assert.Len(t, placed, 1)

	// A second call within the same bin owes nothing more: expected
	// stays at 1 and generated[day][bin] is already 1.
	created = src.Run(f, params, simclock.NewDateTime(1), stream, place)
	assert.Empty(t, created)
}

func TestRunPacesAdmissionsAcrossABin(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{10}},
		InfectedChance: []float64{0},
	}
	src, err := entrysource.New(testPlan(), dist, secondsPerDay)
	require.NoError(t, err)

	f := agent.NewFactory(0)
	params := infection.HumanParams{}
	stream := rng.New(1, 0)
	place := func(agent.ID, geometry.ContinuousCoord) {}

	total := 0
	// Sample the day at 20 evenly spaced instants; by the end all 10 admissions for
	// the single bin must have been created exactly once each.
	for sec := uint64(0); sec < secondsPerDay; sec += secondsPerDay / 20 {
		created := src.Run(f, params, simclock.NewDateTime(sec), stream, place)
		total += len(created)
	}
	assert.Equal(t, 10, total)
}

func TestRunPlacesPatientsAtTheEntryTile(t *testing.T) {
	p := testPlan()
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{5}},
		InfectedChance: []float64{0},
	}
	src, err := entrysource.New(p, dist, secondsPerDay)
	require.NoError(t, err)

	f := agent.NewFactory(0)
	params := infection.HumanParams{}
	stream := rng.New(1, 0)

	var gotPos geometry.ContinuousCoord
	place := func(id agent.ID, pos geometry.ContinuousCoord) { gotPos = pos }

	created := src.Run(f, params, simclock.NewDateTime(0), stream, place)
	require.Len(t, created, 1)
	assert.Equal(t, p.Entry.ToContinuous(), gotPos)
}

func TestRunMintsNoPatientsPastTheDistributionsLastDay(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{10}},
		InfectedChance: []float64{0},
	}
	src, err := entrysource.New(testPlan(), dist, secondsPerDay)
	require.NoError(t, err)

	f := agent.NewFactory(0)
	params := infection.HumanParams{}
	stream := rng.New(1, 0)
	place := func(agent.ID, geometry.ContinuousCoord) {}

	created := src.Run(f, params, simclock.NewDateTime(secondsPerDay), stream, place)
	assert.Empty(t, created)
}

func TestRunPreInfectsAccordingToInfectedChance(t *testing.T) {
	dist := &config.PatientDistributionSpec{
		Daily:          [][]uint32{{1}},
		InfectedChance: []float64{1},
	}
	src, err := entrysource.New(testPlan(), dist, secondsPerDay)
	require.NoError(t, err)

	f := agent.NewFactory(0)
	params := infection.HumanParams{}
	stream := rng.New(1, 0)
	place := func(agent.ID, geometry.ContinuousCoord) {}

	created := src.Run(f, params, simclock.NewDateTime(0), stream, place)
	require.Len(t, created, 1)
	assert.True(t, created[0].PreAdmittedInfected)
}

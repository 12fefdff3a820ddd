package triage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/triage"
)

func testPlan(doctors ...plan.Doctor) *plan.Plan {
	obstacles := [][]bool{{true, true}, {true, true}}
	return plan.New(2, 2, obstacles, nil, nil, nil, nil, doctors,
		geometry.DiscreteCoord{X: 0, Y: 0}, geometry.DiscreteCoord{X: 1, Y: 1}, plan.ICU{})
}

func TestNewDiagnoserRejectsOutOfRangeReferralProbability(t *testing.T) {
	p := testPlan(plan.Doctor{Specialty: "cardiology"})

	_, err := triage.NewDiagnoser(p, -0.1, 0)
	assert.Error(t, err)

	_, err = triage.NewDiagnoser(p, 1.1, 0)
	assert.Error(t, err)
}

func TestNewDiagnoserRejectsPlanWithNoDoctors(t *testing.T) {
	p := testPlan()
	_, err := triage.NewDiagnoser(p, 0, 0)
	assert.Error(t, err)
}

func TestDiagnoseSetsDeadlineFromWindow(t *testing.T) {
	p := testPlan(plan.Doctor{Specialty: "cardiology"})
	d, err := triage.NewDiagnoser(p, 0, simclock.TimeDelta(42))
	require.NoError(t, err)

	stream := rng.New(1, 0)
	now := simclock.NewDateTime(100)
	diag := d.Diagnose(stream, now)

	assert.Equal(t, simclock.NewDateTime(142), diag.Deadline)
}

func TestDiagnoseAlwaysReferralsToICUWhenProbabilityIsOne(t *testing.T) {
	p := testPlan(plan.Doctor{Specialty: "cardiology"})
	d, err := triage.NewDiagnoser(p, 1, 0)
	require.NoError(t, err)

	stream := rng.New(1, 0)
	for i := 0; i < 20; i++ {
		diag := d.Diagnose(stream, simclock.NewDateTime(0))
		assert.Equal(t, triage.AreaICU, diag.Area)
		assert.Empty(t, diag.Specialty)
	}
}

func TestDiagnoseNeverReferralsToICUWhenProbabilityIsZero(t *testing.T) {
	p := testPlan(plan.Doctor{Specialty: "cardiology"}, plan.Doctor{Specialty: "neurology"})
	d, err := triage.NewDiagnoser(p, 0, 0)
	require.NoError(t, err)

	stream := rng.New(1, 0)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		diag := d.Diagnose(stream, simclock.NewDateTime(0))
		require.Equal(t, triage.AreaDoctor, diag.Area)
		require.NotEmpty(t, diag.Specialty)
		seen[diag.Specialty] = true
	}
	assert.True(t, seen["cardiology"] || seen["neurology"], "at least one of the staffed specialties must be drawn")
}

func TestAreaString(t *testing.T) {
	assert.Equal(t, "doctor", triage.AreaDoctor.String())
	assert.Equal(t, "icu", triage.AreaICU.String())
}

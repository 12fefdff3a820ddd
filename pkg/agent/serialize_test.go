package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

func TestPatientSerializeRoundTrip(t *testing.T) {
	params := infection.HumanParams{
		InfectProbability:        0.2,
		ContaminationProbability: 0.1,
		InfectDistance:           1.5,
		MinIncubation:            simclock.TimeDelta(10),
		MaxIncubation:            simclock.TimeDelta(100),
	}

	factory := agent.NewFactory(3)
	chair := geometry.ContinuousCoord{X: 4.5, Y: 2.5}
	original := &agent.Patient{
		ID:             factory.New(agent.KindPatient),
		Cycle:          infection.NewHumanCycle(params),
		State:          agent.StateWalkToChair1,
		StateEnteredAt: simclock.NewDateTime(42),
		AssignedChair:  &chair,
		Specialty:      "cardiology",
	}
	original.Cycle.SetSick(simclock.NewDateTime(10), "environment")

	data, err := agent.SerializePatient(original)
	require.NoError(t, err)

	restored, err := agent.DeserializePatient(data, params)
	require.NoError(t, err)

	assert.True(t, restored.ID.Equal(original.ID))
	assert.Equal(t, original.State, restored.State)
	assert.Equal(t, original.StateEnteredAt, restored.StateEnteredAt)
	assert.Equal(t, *original.AssignedChair, *restored.AssignedChair)
	assert.Equal(t, original.Specialty, restored.Specialty)
	assert.Equal(t, original.Cycle.Stage, restored.Cycle.Stage)
	assert.Equal(t, original.Cycle.InfectedBy, restored.Cycle.InfectedBy)
}

func TestPatientDeserializeDetectsCorruption(t *testing.T) {
	params := infection.HumanParams{}
	factory := agent.NewFactory(0)
	p := &agent.Patient{ID: factory.New(agent.KindPatient), Cycle: infection.NewHumanCycle(params)}

	data, err := agent.SerializePatient(p)
	require.NoError(t, err)

	data[0] ^= 0xFF
	_, err = agent.DeserializePatient(data, params)
	assert.Error(t, err)
}

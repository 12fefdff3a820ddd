package exitsink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/exitsink"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/space"
)

func TestSinkRemovesPatientsAtExitAndRecordsOutcome(t *testing.T) {
	part := space.NewPartition(10, 10, 1, 1)
	sp := space.New(part, 0)
	exitTile := geometry.DiscreteCoord{X: 9, Y: 9}

	factory := agent.NewFactory(0)
	params := infection.HumanParams{}

	discharged := &agent.Patient{ID: factory.New(agent.KindPatient), Cycle: infection.NewHumanCycle(params), State: agent.StateWalkToExit}
	deceased := &agent.Patient{ID: factory.New(agent.KindPatient), Cycle: infection.NewHumanCycle(params), State: agent.StateMorgue}

	sp.AddAgent(discharged.ID, exitTile.ToContinuous())
	sp.AddAgent(deceased.ID, exitTile.ToContinuous())

	patients := map[agent.IDKey]*agent.Patient{
		discharged.ID.Key(): discharged,
		deceased.ID.Key():   deceased,
	}

	sink := exitsink.New(exitTile)
	records := sink.Tick(sp, patients, simclock.NewDateTime(5))

	require.Len(t, records, 2)
	assert.Empty(t, patients, "both patients should be removed from the registry")
	assert.Empty(t, sp.LocalAgentIDs(), "both patients should be removed from space")

	var sawDischarged, sawDeceased bool
	for _, r := range records {
		switch r.Outcome {
		case exitsink.OutcomeDischarged:
			sawDischarged = true
		case exitsink.OutcomeDeceased:
			sawDeceased = true
		}
	}
	assert.True(t, sawDischarged)
	assert.True(t, sawDeceased)
}

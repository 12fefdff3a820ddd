// Package exitsink removes agents that reach the hospital exit tile
// and records their final disposition (spec §4.9 phase 4 "exit sink",
// grounded on original_source's hospital_exit::tick/kill_and_collect).
package exitsink

import (
	"github.com/google/uuid"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/space"
)

// Outcome is how a patient's stay ended.
type Outcome uint8

const (
	OutcomeDischarged Outcome = iota
	OutcomeDeceased
)

func (o Outcome) String() string {
	if o == OutcomeDeceased {
		return "deceased"
	}
	return "discharged"
}

// DepartureRecord is one patient's final disposition, collected for
// the stats writers (spec §6 "results.csv").
type DepartureRecord struct {
	RecordID   uuid.UUID
	AgentID    agent.ID
	Outcome    Outcome
	At         simclock.DateTime
	FinalStage infection.Stage
	InfectedBy string
}

// Sink removes patients standing on the exit tile and records them.
type Sink struct {
	location geometry.DiscreteCoord
	records  []DepartureRecord
}

// New constructs an exit sink watching location.
func New(location geometry.DiscreteCoord) *Sink {
	return &Sink{location: location}
}

// Tick scans the local region's exit tile, removing every patient
// standing there from both space and patients, and returns the
// records produced this tick (spec §4.9 phase 4).
func (s *Sink) Tick(sp *space.Space, patients map[agent.IDKey]*agent.Patient, now simclock.DateTime) []DepartureRecord {
	present := sp.AgentsInCell(s.location)
	var produced []DepartureRecord

	for _, ref := range present {
		if ref.ID.Kind != agent.KindPatient {
			continue
		}
		p, ok := patients[ref.ID.Key()]
		if !ok {
			continue
		}

		outcome := OutcomeDischarged
		if p.State == agent.StateMorgue {
			outcome = OutcomeDeceased
		}

		rec := DepartureRecord{
			RecordID:   uuid.New(),
			AgentID:    p.ID,
			Outcome:    outcome,
			At:         now,
			FinalStage: p.Cycle.Stage,
			InfectedBy: p.Cycle.InfectedBy,
		}
		produced = append(produced, rec)
		s.records = append(s.records, rec)

		sp.RemoveAgent(p.ID)
		delete(patients, ref.ID.Key())
	}

	return produced
}

// Records returns every departure recorded so far.
func (s *Sink) Records() []DepartureRecord { return s.records }

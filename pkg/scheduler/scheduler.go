// Package scheduler drives one rank through a single simulation tick
// in the strict phase order spec §4.9 requires: advance the clock,
// run the entry source, tick every locally resident agent in
// insertion order, run the exit sink, then detect cross-rank
// migrations. The synchronization barrier that follows (space
// migration handoff plus the five resource managers' proxy/authority
// exchange) is cluster-wide and lives in Cluster (cluster.go),
// since it needs every rank's Tick to have finished first.
package scheduler

import (
	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/exitsink"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/logging"
	"github.com/sti-hpc/hospicon/pkg/patientfsm"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/simulation"
	"github.com/sti-hpc/hospicon/pkg/space"
)

// MigrationOut is one patient this rank's Balance phase evicted,
// still attached to its live agent.Patient so the cluster can hand it
// to the destination rank. The cluster performs the
// serialize/deserialize round trip for wire integrity (spec §4.E);
// Tick itself only needs to stop tracking the departing patient.
type MigrationOut struct {
	Event   space.MigrationEvent
	Patient *agent.Patient
}

// Result is everything one rank's Tick produced that the cluster
// needs to act on beyond the rank's own updated state.
type Result struct {
	Admissions int
	Departures []exitsink.DepartureRecord
	Migrations []MigrationOut
}

// Tick runs phases 1-4 of spec §4.9 for r and returns the patients
// that must migrate to another rank. It must only be called once
// every rank has finished the previous tick's synchronization
// barrier.
func Tick(r *simulation.Rank) Result {
	r.Clock.Advance()
	now := r.Clock.Now()

	var result Result

	if r.EntrySource != nil {
		minted := r.EntrySource.Run(r.Factory, r.HumanParams, now, r.Stream,
			func(id agent.ID, pos geometry.ContinuousCoord) {
				r.Space.AddAgent(id, pos)
			})
		for _, p := range minted {
			r.Patients[p.ID.Key()] = p
			result.Admissions++
			if r.Metrics != nil {
				r.Metrics.RecordAdmission()
			}
		}
	}

	for _, id := range r.Space.LocalAgentIDs() {
		tickAgent(r, id, now)
	}

	if r.ExitSink != nil {
		result.Departures = r.ExitSink.Tick(r.Space, r.Patients, now)
		for _, dep := range result.Departures {
			if r.Metrics != nil {
				r.Metrics.RecordDeparture(dep.Outcome == exitsink.OutcomeDeceased)
			}
			logDeparture(r.Logger, dep)
		}
	}

	for _, evt := range r.Space.Balance() {
		p, ok := r.Patients[evt.ID.Key()]
		if !ok {
			// Only patients move under their own power; a fixture
			// reaching here would indicate a plan/partition mismatch.
			continue
		}
		delete(r.Patients, evt.ID.Key())
		result.Migrations = append(result.Migrations, MigrationOut{Event: evt, Patient: p})
	}
	if r.Metrics != nil && len(result.Migrations) > 0 {
		r.Metrics.RecordMigrations(len(result.Migrations))
	}

	return result
}

// tickAgent advances one locally-resident agent's behavior for this
// tick: a patient's FSM transition plus its infection cycle, a staff
// member's infection cycle only (staff never move or queue), or an
// object's contamination cycle.
func tickAgent(r *simulation.Rank, id agent.ID, now simclock.DateTime) {
	switch id.Kind {
	case agent.KindPatient:
		p, ok := r.Patients[id.Key()]
		if !ok {
			return
		}
		patientfsm.Tick(r.FSM, p)
		pos, _ := r.Space.GetContinuousLocation(p.ID)
		cell, _ := r.Space.GetDiscreteLocation(p.ID)
		env := environmentProbability(r, p.State)
		tickHuman(r, p.Cycle, now, pos, cell, p.ID, env)

	case agent.KindFixedPerson:
		staff, ok := r.StaffByID[id.Key()]
		if !ok {
			return
		}
		pos, ok := r.Space.GetContinuousLocation(staff.ID)
		if !ok {
			return
		}
		cell, _ := r.Space.GetDiscreteLocation(staff.ID)
		tickHuman(r, staff.Cycle, now, pos, cell, staff.ID, 0)

	case agent.KindObject:
		obj, ok := r.ObjectsByID[id.Key()]
		if !ok {
			return
		}
		before := obj.Cycle.Stage
		obj.Cycle.Tick(now, nearbyHumans(r, obj), r.Stream)
		if before != obj.Cycle.Stage && r.Metrics != nil {
			r.Metrics.RecordCleaning(obj.TypeTag)
		}
	}
}

// tickHuman advances one human infection cycle and, if this tick is
// the moment it first became incubating, immediately draws its
// incubation end so the RNG draw ordering stays fully under the
// scheduler's control (spec §4.4, infection.HumanCycle.DrawIncubationEnd).
func tickHuman(r *simulation.Rank, cycle *infection.HumanCycle, now simclock.DateTime, pos geometry.ContinuousCoord, cell geometry.DiscreteCoord, self agent.ID, env float64) {
	before := cycle.Stage
	cycle.Tick(now, pos, cell, humanNeighbors(r, pos, self), env, r.Stream)
	if before == infection.Healthy && cycle.Stage == infection.Incubating {
		cycle.DrawIncubationEnd(r.Stream)
		if r.Metrics != nil {
			r.Metrics.RecordInfection()
		}
	}
}

// environmentProbability returns the environmental infection hazard
// applying to a patient in state right now (spec §4.4 "Environmental
// source"); only patients in the ICU-bound states (WaitICU,
// WalkToICU, Sleep, LeaveICU) are exposed to it, so every other state
// sees the zero environment even on the rank hosting the ICU authority.
func environmentProbability(r *simulation.Rank, state agent.PatientState) float64 {
	switch state {
	case agent.StateWaitICU, agent.StateWalkToICU, agent.StateSleep, agent.StateLeaveICU:
		return r.ICUEnv.GetProbability()
	default:
		return 0
	}
}

// humanNeighbors gathers every contagious neighbor (human or object)
// within this rank's configured contagion radius of pos, excluding
// self.
func humanNeighbors(r *simulation.Rank, pos geometry.ContinuousCoord, self agent.ID) []infection.ContagiousNeighbor {
	refs := r.Space.AgentsAround(pos, r.MaxContagionRadius)
	out := make([]infection.ContagiousNeighbor, 0, len(refs))
	for _, ref := range refs {
		if ref.ID.Equal(self) {
			continue
		}
		switch ref.ID.Kind {
		case agent.KindPatient:
			if p, ok := r.Patients[ref.ID.Key()]; ok {
				out = append(out, agent.HumanNeighbor{Pos: ref.Continuous, Cycle: p.Cycle, Name: p.ID.String()})
			}
		case agent.KindFixedPerson:
			if s, ok := r.StaffByID[ref.ID.Key()]; ok {
				out = append(out, agent.HumanNeighbor{Pos: ref.Continuous, Cycle: s.Cycle, Name: s.ID.String()})
			}
		case agent.KindObject:
			if o, ok := r.ObjectsByID[ref.ID.Key()]; ok {
				out = append(out, agent.ObjectNeighbor{Pos: ref.Continuous, Cycle: o.Cycle, Name: o.ID.String()})
			}
		}
	}
	return out
}

// nearbyHumans gathers every human within obj's configured
// contamination radius, for the object's own contamination tick.
func nearbyHumans(r *simulation.Rank, obj *agent.Object) []infection.NearbyHuman {
	refs := r.Space.AgentsAround(obj.Location, r.MaxContagionRadius)
	out := make([]infection.NearbyHuman, 0, len(refs))
	for _, ref := range refs {
		dist := obj.Location.Distance(ref.Continuous)
		switch ref.ID.Kind {
		case agent.KindPatient:
			if p, ok := r.Patients[ref.ID.Key()]; ok {
				out = append(out, infection.NearbyHuman{
					Label:                    p.ID.String(),
					ContaminationProbability: p.Cycle.ContaminationProbability(),
					Distance:                 dist,
				})
			}
		case agent.KindFixedPerson:
			if s, ok := r.StaffByID[ref.ID.Key()]; ok {
				out = append(out, infection.NearbyHuman{
					Label:                    s.ID.String(),
					ContaminationProbability: s.Cycle.ContaminationProbability(),
					Distance:                 dist,
				})
			}
		}
	}
	return out
}

func logDeparture(l logging.Logger, dep exitsink.DepartureRecord) {
	if l == nil {
		return
	}
	l.Info("patient departed",
		logging.AgentID(dep.AgentID),
		logging.String("outcome", dep.Outcome.String()),
	)
}

package infection

import (
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// ObjectStage is an inanimate object's contamination stage.
type ObjectStage uint8

const (
	Clean ObjectStage = iota
	Contaminated
)

func (s ObjectStage) String() string {
	if s == Contaminated {
		return "contaminated"
	}
	return "clean"
}

// ContaminationEvent records one (source, instant) contamination,
// matching spec §3's `infected_by: Vec<(source_id, DateTime)>`.
type ContaminationEvent struct {
	Source string
	At     simclock.DateTime
}

// ObjectCycle is the per-agent infection state of an inanimate object
// such as a chair or ICU bed (spec §3 "Object infection cycle").
type ObjectCycle struct {
	params ObjectParams

	Stage     ObjectStage
	NextClean simclock.DateTime
	InfectedBy []ContaminationEvent
}

// NewObjectCycle constructs a clean object infection cycle, with its
// first cleaning scheduled one interval after construction time.
func NewObjectCycle(params ObjectParams, now simclock.DateTime) *ObjectCycle {
	return &ObjectCycle{
		params:    params,
		Stage:     Clean,
		NextClean: now.Plus(params.CleaningInterval),
	}
}

// InfectProbabilityAt returns params.InfectProbability if the object
// is Contaminated and pos is within contact distance, else 0 (spec
// §4.4 object get_infect_probability).
func (o *ObjectCycle) InfectProbabilityAt(myPos, targetPos geometry.ContinuousCoord) float64 {
	if o.Stage != Contaminated {
		return 0
	}
	if myPos.Distance(targetPos) > contactDistance {
		return 0
	}
	return o.params.InfectProbability
}

// NearbyHuman describes one human near the object for the purposes of
// its contamination tick.
type NearbyHuman struct {
	Label                    string
	ContaminationProbability float64
	Distance                 float64
}

// ObjectCycleState is the transmissible snapshot of an ObjectCycle,
// excluding the shared rank-local ObjectParams flyweight (spec §4.E,
// mirroring HumanCycleState).
type ObjectCycleState struct {
	Stage      ObjectStage
	NextClean  simclock.DateTime
	InfectedBy []ContaminationEvent
}

// Snapshot exports the migratable state of this cycle.
func (o *ObjectCycle) Snapshot() ObjectCycleState {
	return ObjectCycleState{Stage: o.Stage, NextClean: o.NextClean, InfectedBy: o.InfectedBy}
}

// RestoreObjectCycle rebuilds an ObjectCycle on the importing rank
// from a snapshot plus that rank's local ObjectParams flyweight.
func RestoreObjectCycle(params ObjectParams, s ObjectCycleState) *ObjectCycle {
	return &ObjectCycle{params: params, Stage: s.Stage, NextClean: s.NextClean, InfectedBy: s.InfectedBy}
}

// Tick advances the object's contamination cycle by one tick (spec
// §4.4 "Object tick"). Cleaning takes priority over contamination in
// the same tick: a Clean object whose next_clean has arrived stays
// Clean and reschedules; a Contaminated object whose next_clean has
// arrived resets to Clean. Otherwise nearby contagious humans may
// contaminate it.
func (o *ObjectCycle) Tick(now simclock.DateTime, nearby []NearbyHuman, stream *rng.Stream) {
	if now.AtOrAfter(o.NextClean) {
		o.Stage = Clean
		o.NextClean = o.NextClean.Plus(o.params.CleaningInterval)
		return
	}

	if o.Stage == Contaminated {
		return
	}

	for _, h := range nearby {
		if h.ContaminationProbability <= 0 || h.Distance > o.params.Radius {
			continue
		}
		u := stream.Float64()
		if h.ContaminationProbability > u {
			o.Stage = Contaminated
			o.InfectedBy = append(o.InfectedBy, ContaminationEvent{Source: h.Label, At: now})
			return
		}
	}
}

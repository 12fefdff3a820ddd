package infection

import (
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// Stage is a human's epidemiological stage.
type Stage uint8

const (
	Healthy Stage = iota
	Incubating
	Sick
)

func (s Stage) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Incubating:
		return "incubating"
	case Sick:
		return "sick"
	default:
		return "unknown"
	}
}

// Mode is an overlay on Stage: Immune agents never progress past
// Healthy but still contaminate objects; Coma agents (reserved for
// ICU patients) are otherwise ordinary.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeImmune
	ModeComa
)

// ContagiousNeighbor is anything nearby that can transmit infection:
// another human, or a contaminated object. Defined structurally so
// this package never imports pkg/agent (spec §9: double-dispatch is
// resolved by the caller matching on the concrete kind, not by this
// package reaching back into agent identity).
type ContagiousNeighbor interface {
	// InfectProbabilityAt returns the probability this neighbor
	// infects a susceptible human standing at pos, or 0 if it poses
	// no risk from that distance right now.
	InfectProbabilityAt(pos geometry.ContinuousCoord) float64
	// Label identifies the source for HumanCycle.InfectedBy, e.g.
	// "patient#3@home=0" or "chair@(4,2)".
	Label() string
}

// HumanCycle is the per-agent infection state of a patient or staff
// member (spec §3 "Human infection cycle").
type HumanCycle struct {
	params HumanParams

	Stage Stage
	Mode  Mode

	InfectionTime  *simclock.DateTime
	IncubationEnd  *simclock.DateTime
	InfectedBy     string
	InfectLocation *geometry.DiscreteCoord
}

// NewHumanCycle constructs a healthy, non-immune human infection cycle.
func NewHumanCycle(params HumanParams) *HumanCycle {
	return &HumanCycle{params: params, Stage: Healthy, Mode: ModeNormal}
}

// NewImmuneHumanCycle constructs an immune human infection cycle
// (personnel.immunity, spec §6).
func NewImmuneHumanCycle(params HumanParams) *HumanCycle {
	return &HumanCycle{params: params, Stage: Healthy, Mode: ModeImmune}
}

// SetSick forces the cycle directly to Sick, used by the entry source
// when a newly admitted patient starts already infected (spec §4.7).
func (h *HumanCycle) SetSick(now simclock.DateTime, source string) {
	h.Stage = Sick
	t := now
	h.InfectionTime = &t
	h.InfectedBy = source
}

// InfectProbabilityAt implements ContagiousNeighbor: returns
// params.InfectProbability if the human is contagious (non-Healthy)
// and within infect distance of pos, else 0 (spec §4.4
// get_infect_probability).
func (h *HumanCycle) InfectProbabilityAt(myPos, targetPos geometry.ContinuousCoord) float64 {
	if h.Stage == Healthy {
		return 0
	}
	if myPos.Distance(targetPos) > h.params.InfectDistance {
		return 0
	}
	return h.params.InfectProbability
}

// ContaminationProbability returns the probability a non-healthy
// human contaminates an object it touches (spec §4.4
// get_contamination_probability).
func (h *HumanCycle) ContaminationProbability() float64 {
	if h.Stage == Healthy {
		return 0
	}
	return h.params.ContaminationProbability
}

// Tick advances the human infection cycle by one tick (spec §4.4
// "Human tick"). neighbors is every ContagiousNeighbor returned by a
// pkg/space AgentsAround/environment query at myPos; environmentProb
// is environment.GetProbability() for whichever environmental source
// applies (currently only the ICU, 0 outside it).
func (h *HumanCycle) Tick(now simclock.DateTime, myPos geometry.ContinuousCoord, myCell geometry.DiscreteCoord,
	neighbors []ContagiousNeighbor, environmentProb float64, stream *rng.Stream) {

	if h.Mode == ModeImmune {
		return // still contaminates objects elsewhere, but never gets sick itself
	}

	switch h.Stage {
	case Healthy:
		if stream.Bernoulli(environmentProb) {
			h.beginIncubation(now, myCell, "environment")
			return
		}
		for _, n := range neighbors {
			p := n.InfectProbabilityAt(myPos)
			u := stream.Float64()
			if p > u {
				h.beginIncubation(now, myCell, n.Label())
				break
			}
		}
	case Incubating:
		if h.IncubationEnd != nil && now.AtOrAfter(*h.IncubationEnd) {
			h.Stage = Sick
		}
	case Sick:
		// terminal stage within this model: no further transitions.
	}
}

func (h *HumanCycle) beginIncubation(now simclock.DateTime, cell geometry.DiscreteCoord, source string) {
	h.Stage = Incubating
	t := now
	h.InfectionTime = &t
	h.InfectedBy = source
	loc := cell
	h.InfectLocation = &loc
}

// HumanCycleState is the transmissible snapshot of a HumanCycle: every
// field except the shared, rank-local HumanParams flyweight, which
// migration never needs to carry because every rank loads the
// identical parameter set at startup (spec §4.E).
type HumanCycleState struct {
	Stage Stage
	Mode  Mode

	InfectionTime  *simclock.DateTime
	IncubationEnd  *simclock.DateTime
	InfectedBy     string
	InfectLocation *geometry.DiscreteCoord
}

// Snapshot exports the migratable state of this cycle.
func (h *HumanCycle) Snapshot() HumanCycleState {
	return HumanCycleState{
		Stage:          h.Stage,
		Mode:           h.Mode,
		InfectionTime:  h.InfectionTime,
		IncubationEnd:  h.IncubationEnd,
		InfectedBy:     h.InfectedBy,
		InfectLocation: h.InfectLocation,
	}
}

// RestoreHumanCycle rebuilds a HumanCycle on the importing rank from a
// snapshot plus that rank's local HumanParams flyweight.
func RestoreHumanCycle(params HumanParams, s HumanCycleState) *HumanCycle {
	return &HumanCycle{
		params:         params,
		Stage:          s.Stage,
		Mode:           s.Mode,
		InfectionTime:  s.InfectionTime,
		IncubationEnd:  s.IncubationEnd,
		InfectedBy:     s.InfectedBy,
		InfectLocation: s.InfectLocation,
	}
}

// DrawIncubationEnd draws IncubationEnd = InfectionTime + U[min,max]
// and must be called once, exactly when InfectionTime is set, so
// callers control the RNG draw ordering explicitly (kept out of Tick
// so the caller — which also draws the environment/neighbor
// Bernoulli — fully owns the per-tick RNG draw sequence for
// determinism). It does nothing if the cycle is not incubating or the
// end has already been drawn.
func (h *HumanCycle) DrawIncubationEnd(stream *rng.Stream) {
	if h.InfectionTime == nil || h.Stage != Incubating || h.IncubationEnd != nil {
		return
	}
	span := h.params.MaxIncubation.Sub(h.params.MinIncubation)
	delay := h.params.MinIncubation.Add(simclock.TimeDelta(stream.UniformSeconds(0, uint64(span))))
	end := h.InfectionTime.Plus(delay)
	h.IncubationEnd = &end
}

package agent

import (
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// PatientState enumerates every state of the patient finite-state
// machine (spec §4.6). Transition logic lives in pkg/patientfsm; this
// type stays here so agent.Patient, the resource managers, and the
// scheduler can all refer to "what state is this patient in" without
// pkg/agent depending on pkg/patientfsm.
type PatientState uint8

const (
	StateEntry PatientState = iota
	StateWaitChair1
	StateWalkToChair1
	StateWaitChair2
	StateWalkToChair2
	StateWaitChair3
	StateWalkToChair3
	StateWaitReceptionTurn
	StateWalkToReception
	StateWaitInReception
	StateWaitTriageTurn
	StateWalkToTriage
	StateWaitInTriage
	StateDispatch
	StateWaitForDoctor
	StateWalkToDoctor
	StateWaitInDoctor
	StateNoAttention
	StateWaitICU
	StateWalkToICU
	StateSleep
	StateMorgue
	StateLeaveICU
	StateWalkToExit
	StateAwaitingDeletion
)

func (s PatientState) String() string {
	names := [...]string{
		"entry", "wait_chair_1", "walk_to_chair_1", "wait_chair_2", "walk_to_chair_2",
		"wait_chair_3", "walk_to_chair_3", "wait_reception_turn", "walk_to_reception",
		"wait_in_reception", "wait_triage_turn", "walk_to_triage", "wait_in_triage",
		"dispatch", "wait_for_doctor", "walk_to_doctor", "wait_in_doctor", "no_attention",
		"wait_icu", "walk_to_icu", "sleep", "morgue", "leave_icu", "walk_to_exit",
		"awaiting_deletion",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Patient is the mutable record of a patient agent (spec §3). Fields
// beyond ID/Cycle/State are scratch space the FSM fills in as it moves
// the patient between chairs, reception, triage, a doctor and
// possibly the ICU.
type Patient struct {
	ID    ID
	Cycle *infection.HumanCycle
	State PatientState

	StateEnteredAt simclock.DateTime

	PreAdmittedInfected bool

	AssignedChair    *geometry.ContinuousCoord
	AssignedReceptor *geometry.ContinuousCoord
	AssignedTriage   *geometry.ContinuousCoord
	Specialty        string
	AssignedDoctor   *geometry.ContinuousCoord
	TimerDeadline    simclock.DateTime
	AssignedICU      *geometry.ContinuousCoord

	// DiagnosedICU distinguishes a triage diagnosis of "ICU" (Specialty
	// left empty) from "not yet diagnosed", since Dispatch's own
	// transitions fire one tick after the diagnosis was drawn.
	DiagnosedICU bool

	ICUSleepUntil  simclock.DateTime
	SurvivalRolled bool
	Survived       bool
}

// FixedPersonRole discriminates the three kinds of staff that never
// move (spec §3 "Fixed person").
type FixedPersonRole uint8

const (
	RoleReceptionist FixedPersonRole = iota
	RoleTriageNurse
	RoleDoctor
)

func (r FixedPersonRole) String() string {
	switch r {
	case RoleReceptionist:
		return "receptionist"
	case RoleTriageNurse:
		return "triage_nurse"
	case RoleDoctor:
		return "doctor"
	default:
		return "unknown"
	}
}

// FixedPerson is hospital staff stationed at one immobile location for
// the whole run (spec §3). Its infection cycle is driven by the same
// Tick logic as a patient's, it simply never changes position.
type FixedPerson struct {
	ID       ID
	Cycle    *infection.HumanCycle
	Role     FixedPersonRole
	Specialty string // only meaningful when Role == RoleDoctor
	Location geometry.ContinuousCoord
}

// Object is an inanimate contagious fixture: a waiting-room chair or
// an ICU bed (spec §3 "Object"). TypeTag indexes into
// parameters.objects, e.g. "chair" or "bed".
type Object struct {
	ID       ID
	Cycle    *infection.ObjectCycle
	TypeTag  string
	Location geometry.ContinuousCoord
}

// HumanNeighbor adapts a HumanCycle plus its current position into
// infection.ContagiousNeighbor, used when the scheduler assembles the
// neighbor list for a tick (spec §4.4).
type HumanNeighbor struct {
	Pos   geometry.ContinuousCoord
	Cycle *infection.HumanCycle
	Name  string
}

func (n HumanNeighbor) InfectProbabilityAt(pos geometry.ContinuousCoord) float64 {
	return n.Cycle.InfectProbabilityAt(n.Pos, pos)
}

func (n HumanNeighbor) Label() string { return n.Name }

// ObjectNeighbor adapts an ObjectCycle plus its position the same way.
type ObjectNeighbor struct {
	Pos   geometry.ContinuousCoord
	Cycle *infection.ObjectCycle
	Name  string
}

func (n ObjectNeighbor) InfectProbabilityAt(pos geometry.ContinuousCoord) float64 {
	return n.Cycle.InfectProbabilityAt(n.Pos, pos)
}

func (n ObjectNeighbor) Label() string { return n.Name }

// Package patientfsm implements the patient circulation state machine
// (spec §4.6), grounded on original_source's patient_fsm.cpp: a table
// of per-state guarded transitions, each firing the first guard that
// passes, running the outgoing state's exit action, the transition's
// own action, then installing the new state.
//
// The ICU branch here is richer than the transition table found in
// patient_fsm.cpp, which short-circuits straight from DISPATCH to
// WALK_TO_EXIT despite patient_fsm.hpp declaring WAIT_IN_ICU,
// WALK_TO_ICU, SLEEP, RESOLVE, LEAVE_ICU and MORGUE states — those
// states are never wired into that file's transition table. This
// package follows spec §4.5.4/§4.6 instead, which fully specifies
// bed admission, a sleep duration draw, and a death-probability roll.
package patientfsm

import (
	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/pathfinder"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/resourcemgr"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/space"
	"github.com/sti-hpc/hospicon/pkg/triage"
)

// Context bundles everything one rank's patient FSM needs to evaluate
// a tick: the shared clock and space, the resource manager proxies
// (or authorities, on the owning rank), the triage diagnoser, and the
// service-duration/ICU parameters loaded from the hospital document.
type Context struct {
	Clock      *simclock.Clock
	Space      *space.Space
	Plan       *plan.Plan
	Stream     *rng.Stream
	Pathfinder *pathfinder.Pathfinder

	Chairs    resourcemgr.ChairManager
	Reception resourcemgr.ServiceQueue
	Triage    resourcemgr.ServiceQueue
	Doctors   resourcemgr.DoctorQueues
	ICU       resourcemgr.ICUAdmission

	Diagnoser *triage.Diagnoser

	WalkSpeed         float64
	ReceptionDuration simclock.TimeDelta
	TriageDuration    simclock.TimeDelta
	DoctorDuration    map[string]simclock.TimeDelta

	ICUSleepTime []config.SleepTimeEntry
	ICUDeathProb float64
}

type guardFn func(*Context, *agent.Patient) bool
type actionFn func(*Context, *agent.Patient)

type transition struct {
	guard guardFn
	act   actionFn
	dest  agent.PatientState
}

var table map[agent.PatientState][]transition
var exitActions map[agent.PatientState]actionFn

func init() {
	table = buildTable()
	exitActions = buildExitActions()
}

// Tick evaluates p's current state's transition list, firing the
// first guard that passes. Exactly one transition fires per tick; if
// none matches, the patient does not move state (spec §4.6).
func Tick(ctx *Context, p *agent.Patient) {
	transitions, ok := table[p.State]
	if !ok {
		return
	}
	for _, t := range transitions {
		if !t.guard(ctx, p) {
			continue
		}
		if exit, ok := exitActions[p.State]; ok {
			exit(ctx, p)
		}
		t.act(ctx, p)
		p.State = t.dest
		p.StateEnteredAt = ctx.Clock.Now()
		return
	}
}

////////////////////////////////////////////////////////////////////////////
// Shared guards and actions
////////////////////////////////////////////////////////////////////////////

func alwaysTrue(*Context, *agent.Patient) bool { return true }
func noop(*Context, *agent.Patient)            {}

func requestChair(ctx *Context, p *agent.Patient) { ctx.Chairs.RequestChair(p.ID) }

func gotChair(ctx *Context, p *agent.Patient) bool {
	r, ok := ctx.Chairs.PeekResponse(p.ID)
	return ok && r.Location != nil
}

func setDestinationChair(ctx *Context, p *agent.Patient) {
	r, _ := ctx.Chairs.GetResponse(p.ID)
	p.AssignedChair = r.Location
}

func noChairAvailable(ctx *Context, p *agent.Patient) bool {
	r, ok := ctx.Chairs.PeekResponse(p.ID)
	if ok && r.Location == nil {
		ctx.Chairs.GetResponse(p.ID) // drain the negative response
		return true
	}
	return false
}

func timeElapsed(attentionEnd func(*agent.Patient) simclock.DateTime) guardFn {
	return func(ctx *Context, p *agent.Patient) bool {
		return attentionEnd(p).AtOrBefore(ctx.Clock.Now())
	}
}

func destination(p *agent.Patient) geometry.ContinuousCoord {
	switch {
	case p.AssignedICU != nil:
		return *p.AssignedICU
	case p.AssignedDoctor != nil:
		return *p.AssignedDoctor
	case p.AssignedTriage != nil:
		return *p.AssignedTriage
	case p.AssignedReceptor != nil:
		return *p.AssignedReceptor
	case p.AssignedChair != nil:
		return *p.AssignedChair
	default:
		return geometry.ContinuousCoord{}
	}
}

func arrived(ctx *Context, p *agent.Patient) bool {
	pos, ok := ctx.Space.GetContinuousLocation(p.ID)
	return ok && pos.Equal(destination(p))
}

func notArrived(ctx *Context, p *agent.Patient) bool { return !arrived(ctx, p) }

// walkTowards advances p one step along the pathfinder's shortest
// route to dest(p), rather than straight-line towards the final
// goal, so agents route around obstacles (spec §4.2/§4.3). A missing
// path (should not occur against a validated plan) falls back to the
// final goal directly rather than stalling the patient forever.
func walkTowards(dest func(*agent.Patient) geometry.DiscreteCoord) actionFn {
	return func(ctx *Context, p *agent.Patient) {
		goal := dest(p)
		from, _ := ctx.Space.GetDiscreteLocation(p.ID)
		next, err := ctx.Pathfinder.NextStep(from, goal)
		if err != nil {
			next = goal
		}
		ctx.Space.MoveTowards(p.ID, next, ctx.WalkSpeed)
	}
}

func chairDiscrete(p *agent.Patient) geometry.DiscreteCoord {
	if p.AssignedChair == nil {
		return geometry.DiscreteCoord{}
	}
	return p.AssignedChair.ToDiscrete()
}

func receptorDiscrete(p *agent.Patient) geometry.DiscreteCoord {
	if p.AssignedReceptor == nil {
		return geometry.DiscreteCoord{}
	}
	return p.AssignedReceptor.ToDiscrete()
}

func triageDiscrete(p *agent.Patient) geometry.DiscreteCoord {
	if p.AssignedTriage == nil {
		return geometry.DiscreteCoord{}
	}
	return p.AssignedTriage.ToDiscrete()
}

func doctorDiscrete(p *agent.Patient) geometry.DiscreteCoord {
	if p.AssignedDoctor == nil {
		return geometry.DiscreteCoord{}
	}
	return p.AssignedDoctor.ToDiscrete()
}

func icuDiscrete(p *agent.Patient) geometry.DiscreteCoord {
	if p.AssignedICU == nil {
		return geometry.DiscreteCoord{}
	}
	return p.AssignedICU.ToDiscrete()
}

func releaseChair(ctx *Context, p *agent.Patient) {
	if p.AssignedChair != nil {
		ctx.Chairs.ReleaseChair(*p.AssignedChair)
	}
}

func setExitMotive(ctx *Context, p *agent.Patient) {
	p.AssignedReceptor = nil
	p.AssignedTriage = nil
	p.AssignedDoctor = nil
	p.AssignedICU = nil
	exit := ctx.Plan.Exit.ToContinuous()
	p.AssignedChair = &exit
}

////////////////////////////////////////////////////////////////////////////
// Reception / triage
////////////////////////////////////////////////////////////////////////////

func enqueueReception(ctx *Context, p *agent.Patient) { ctx.Reception.Enqueue(p.ID) }

func receptionTurn(ctx *Context, p *agent.Patient) bool {
	_, ok := ctx.Reception.IsMyTurn(p.ID)
	return ok
}

func setDestinationReception(ctx *Context, p *agent.Patient) {
	loc, _ := ctx.Reception.IsMyTurn(p.ID)
	p.AssignedReceptor = &loc
}

func setReceptionTime(ctx *Context, p *agent.Patient) {
	p.TimerDeadline = ctx.Clock.Now().Plus(ctx.ReceptionDuration)
}

func enqueueTriage(ctx *Context, p *agent.Patient) { ctx.Triage.Enqueue(p.ID) }

func triageTurn(ctx *Context, p *agent.Patient) bool {
	_, ok := ctx.Triage.IsMyTurn(p.ID)
	return ok
}

func setDestinationTriage(ctx *Context, p *agent.Patient) {
	loc, _ := ctx.Triage.IsMyTurn(p.ID)
	p.AssignedTriage = &loc
}

func setTriageTime(ctx *Context, p *agent.Patient) {
	p.TimerDeadline = ctx.Clock.Now().Plus(ctx.TriageDuration)
}

func getDiagnosis(ctx *Context, p *agent.Patient) {
	d := ctx.Diagnoser.Diagnose(ctx.Stream, ctx.Clock.Now())
	if d.Area == triage.AreaICU {
		p.DiagnosedICU = true
		p.Specialty = ""
	} else {
		p.DiagnosedICU = false
		p.Specialty = d.Specialty
	}
	p.TimerDeadline = d.Deadline
}

func toDoctor(_ *Context, p *agent.Patient) bool { return !p.DiagnosedICU }
func toICU(_ *Context, p *agent.Patient) bool    { return p.DiagnosedICU }

////////////////////////////////////////////////////////////////////////////
// Doctor
////////////////////////////////////////////////////////////////////////////

func enqueueDoctor(ctx *Context, p *agent.Patient) {
	ctx.Doctors.Enqueue(p.Specialty, p.ID, p.TimerDeadline)
}

func doctorTurn(ctx *Context, p *agent.Patient) bool {
	_, ok := ctx.Doctors.IsMyTurn(p.Specialty, p.ID)
	return ok
}

func setDoctorDestination(ctx *Context, p *agent.Patient) {
	loc, _ := ctx.Doctors.IsMyTurn(p.Specialty, p.ID)
	p.AssignedDoctor = &loc
}

func doctorTimeout(ctx *Context, p *agent.Patient) bool {
	return p.TimerDeadline.Before(ctx.Clock.Now())
}

func setDoctorTime(ctx *Context, p *agent.Patient) {
	p.TimerDeadline = ctx.Clock.Now().Plus(ctx.DoctorDuration[p.Specialty])
}

func dequeueDoctor(ctx *Context, p *agent.Patient) { ctx.Doctors.Dequeue(p.Specialty, p.ID) }

////////////////////////////////////////////////////////////////////////////
// ICU
////////////////////////////////////////////////////////////////////////////

func requestBed(ctx *Context, p *agent.Patient) { ctx.ICU.RequestBed(p.ID) }

func bedGranted(ctx *Context, p *agent.Patient) bool {
	admitted, ok := ctx.ICU.PeekResponse(p.ID)
	return ok && admitted
}

func bedDenied(ctx *Context, p *agent.Patient) bool {
	admitted, ok := ctx.ICU.PeekResponse(p.ID)
	if ok && !admitted {
		ctx.ICU.GetResponse(p.ID)
		return true
	}
	return false
}

func setICUDestination(ctx *Context, p *agent.Patient) {
	ctx.ICU.GetResponse(p.ID)
	entry := ctx.Plan.ICU.Entry.ToContinuous()
	p.AssignedICU = &entry
}

func drawSleepTime(ctx *Context, p *agent.Patient) {
	weights := make([]float64, len(ctx.ICUSleepTime))
	for i, e := range ctx.ICUSleepTime {
		weights[i] = e.Probability
	}
	idx := ctx.Stream.WeightedPick(weights)
	duration := simclock.TimeDelta(ctx.ICUSleepTime[idx].Time.Seconds)
	p.ICUSleepUntil = ctx.Clock.Now().Plus(duration)
	p.Cycle.Mode = infection.ModeComa
	p.SurvivalRolled = false
}

func sleepTimeElapsedAndDied(ctx *Context, p *agent.Patient) bool {
	if p.ICUSleepUntil.After(ctx.Clock.Now()) {
		return false
	}
	rollSurvival(ctx, p)
	return !p.Survived
}

func sleepTimeElapsedAndSurvived(ctx *Context, p *agent.Patient) bool {
	if p.ICUSleepUntil.After(ctx.Clock.Now()) {
		return false
	}
	rollSurvival(ctx, p)
	return p.Survived
}

func rollSurvival(ctx *Context, p *agent.Patient) {
	if p.SurvivalRolled {
		return
	}
	p.Survived = ctx.Stream.Bernoulli(1 - ctx.ICUDeathProb)
	p.SurvivalRolled = true
}

func releaseBed(ctx *Context, p *agent.Patient) {
	ctx.ICU.ReleaseBed(p.ID)
	p.Cycle.Mode = infection.ModeNormal
}

////////////////////////////////////////////////////////////////////////////
// Transition table
////////////////////////////////////////////////////////////////////////////

func buildTable() map[agent.PatientState][]transition {
	t := make(map[agent.PatientState][]transition)

	t[agent.StateEntry] = []transition{
		{alwaysTrue, requestChair, agent.StateWaitChair1},
	}

	t[agent.StateWaitChair1] = []transition{
		{noChairAvailable, setExitMotive, agent.StateWalkToExit},
		{gotChair, setDestinationChair, agent.StateWalkToChair1},
	}
	t[agent.StateWalkToChair1] = []transition{
		{notArrived, walkTowards(chairDiscrete), agent.StateWalkToChair1},
		{arrived, enqueueReception, agent.StateWaitReceptionTurn},
	}
	t[agent.StateWaitReceptionTurn] = []transition{
		{receptionTurn, setDestinationReception, agent.StateWalkToReception},
	}
	t[agent.StateWalkToReception] = []transition{
		{notArrived, walkTowards(receptorDiscrete), agent.StateWalkToReception},
		{arrived, setReceptionTime, agent.StateWaitInReception},
	}
	t[agent.StateWaitInReception] = []transition{
		{timeElapsed(func(p *agent.Patient) simclock.DateTime { return p.TimerDeadline }), requestChair, agent.StateWaitChair2},
	}

	t[agent.StateWaitChair2] = []transition{
		{noChairAvailable, setExitMotive, agent.StateWalkToExit},
		{gotChair, setDestinationChair, agent.StateWalkToChair2},
	}
	t[agent.StateWalkToChair2] = []transition{
		{notArrived, walkTowards(chairDiscrete), agent.StateWalkToChair2},
		{arrived, enqueueTriage, agent.StateWaitTriageTurn},
	}
	t[agent.StateWaitTriageTurn] = []transition{
		{triageTurn, setDestinationTriage, agent.StateWalkToTriage},
	}
	t[agent.StateWalkToTriage] = []transition{
		{notArrived, walkTowards(triageDiscrete), agent.StateWalkToTriage},
		{arrived, setTriageTime, agent.StateWaitInTriage},
	}
	t[agent.StateWaitInTriage] = []transition{
		{timeElapsed(func(p *agent.Patient) simclock.DateTime { return p.TimerDeadline }), getDiagnosis, agent.StateDispatch},
	}

	t[agent.StateDispatch] = []transition{
		{toDoctor, requestChair, agent.StateWaitChair3},
		{toICU, requestBed, agent.StateWaitICU},
	}

	t[agent.StateWaitChair3] = []transition{
		{noChairAvailable, setExitMotive, agent.StateWalkToExit},
		{gotChair, setDestinationChair, agent.StateWalkToChair3},
	}
	t[agent.StateWalkToChair3] = []transition{
		{notArrived, walkTowards(chairDiscrete), agent.StateWalkToChair3},
		{arrived, enqueueDoctor, agent.StateWaitForDoctor},
	}
	t[agent.StateWaitForDoctor] = []transition{
		{doctorTurn, setDoctorDestination, agent.StateWalkToDoctor},
		{doctorTimeout, noop, agent.StateNoAttention},
	}
	t[agent.StateWalkToDoctor] = []transition{
		{notArrived, walkTowards(doctorDiscrete), agent.StateWalkToDoctor},
		{arrived, setDoctorTime, agent.StateWaitInDoctor},
	}
	t[agent.StateWaitInDoctor] = []transition{
		{timeElapsed(func(p *agent.Patient) simclock.DateTime { return p.TimerDeadline }), setExitMotive, agent.StateWalkToExit},
	}
	t[agent.StateNoAttention] = []transition{
		{alwaysTrue, setExitMotive, agent.StateWalkToExit},
	}

	t[agent.StateWaitICU] = []transition{
		{bedDenied, setExitMotive, agent.StateWalkToExit},
		{bedGranted, setICUDestination, agent.StateWalkToICU},
	}
	t[agent.StateWalkToICU] = []transition{
		{notArrived, walkTowards(icuDiscrete), agent.StateWalkToICU},
		{arrived, drawSleepTime, agent.StateSleep},
	}
	t[agent.StateSleep] = []transition{
		{sleepTimeElapsedAndDied, releaseBed, agent.StateMorgue},
		{sleepTimeElapsedAndSurvived, releaseBed, agent.StateLeaveICU},
	}
	t[agent.StateMorgue] = []transition{
		{alwaysTrue, setExitMotive, agent.StateWalkToExit},
	}
	t[agent.StateLeaveICU] = []transition{
		{alwaysTrue, setExitMotive, agent.StateWalkToExit},
	}

	t[agent.StateWalkToExit] = []transition{
		// setExitMotive stashes the exit coordinate in AssignedChair,
		// the same scratch slot every other Walk* state reads from.
		{notArrived, walkTowards(chairDiscrete), agent.StateWalkToExit},
		{arrived, noop, agent.StateAwaitingDeletion},
	}
	t[agent.StateAwaitingDeletion] = nil

	return t
}

func buildExitActions() map[agent.PatientState]actionFn {
	e := make(map[agent.PatientState]actionFn)
	e[agent.StateWaitReceptionTurn] = releaseChair
	e[agent.StateWaitTriageTurn] = releaseChair
	e[agent.StateWaitForDoctor] = releaseChair
	e[agent.StateWaitInReception] = func(ctx *Context, p *agent.Patient) { ctx.Reception.Dequeue(p.ID) }
	e[agent.StateWaitInTriage] = func(ctx *Context, p *agent.Patient) { ctx.Triage.Dequeue(p.ID) }
	e[agent.StateWaitInDoctor] = dequeueDoctor
	e[agent.StateNoAttention] = dequeueDoctor
	return e
}

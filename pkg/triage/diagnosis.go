// Package triage produces a doctor-or-ICU diagnosis for a patient
// leaving the triage queue (spec §4.6 "Dispatch"). The original
// implementation's diagnosis routine is not part of the retrieved
// source; this package reconstructs it from the diagnosis fields the
// patient FSM consumes (area assigned, specialty, deadline) and the
// doctor fixtures already present on the hospital plan.
package triage

import (
	"fmt"
	"sort"

	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// Area is where a diagnosed patient is routed.
type Area uint8

const (
	AreaDoctor Area = iota
	AreaICU
)

func (a Area) String() string {
	if a == AreaICU {
		return "icu"
	}
	return "doctor"
}

// Diagnosis is the outcome of one triage dispatch: either a doctor
// specialty with a deadline, or an ICU referral.
type Diagnosis struct {
	Area      Area
	Specialty string
	Deadline  simclock.DateTime
}

type specialtyWeight struct {
	name   string
	weight float64
}

// Diagnoser draws diagnoses weighted by how many doctors of each
// specialty staff the hospital, so busier specialties receive
// proportionally more referrals.
type Diagnoser struct {
	specialties         []specialtyWeight
	icuReferralProbability float64
	window              simclock.TimeDelta
}

// NewDiagnoser builds a Diagnoser from the plan's doctor fixtures.
// icuReferralProbability is parameters.icu.referral_probability;
// window is parameters.triage.diagnosis_window, the horizon added to
// "now" to produce a doctor-queue deadline.
func NewDiagnoser(p *plan.Plan, icuReferralProbability float64, window simclock.TimeDelta) (*Diagnoser, error) {
	if icuReferralProbability < 0 || icuReferralProbability > 1 {
		return nil, fmt.Errorf("triage: icu referral probability %v out of [0,1]", icuReferralProbability)
	}

	counts := make(map[string]int)
	for _, d := range p.Doctors {
		counts[d.Specialty]++
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("triage: hospital plan has no doctor fixtures to diagnose towards")
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, n := range names {
		total += counts[n]
	}

	specialties := make([]specialtyWeight, len(names))
	for i, n := range names {
		specialties[i] = specialtyWeight{name: n, weight: float64(counts[n]) / float64(total)}
	}

	return &Diagnoser{specialties: specialties, icuReferralProbability: icuReferralProbability, window: window}, nil
}

// Diagnose draws one diagnosis for the patient currently at the front
// of the triage queue.
func (d *Diagnoser) Diagnose(stream *rng.Stream, now simclock.DateTime) Diagnosis {
	deadline := now.Plus(d.window)

	if stream.Bernoulli(d.icuReferralProbability) {
		return Diagnosis{Area: AreaICU, Deadline: deadline}
	}

	weights := make([]float64, len(d.specialties))
	for i, s := range d.specialties {
		weights[i] = s.weight
	}
	idx := stream.WeightedPick(weights)
	return Diagnosis{Area: AreaDoctor, Specialty: d.specialties[idx].name, Deadline: deadline}
}

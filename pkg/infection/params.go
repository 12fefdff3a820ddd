// Package infection implements hospicon's contagion model: the human
// infection cycle, the object contamination cycle, and the
// environmental infection source (spec §4.4).
package infection

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// HumanParams are the shared (flyweight, spec §9) parameters governing
// every human's infection cycle.
type HumanParams struct {
	InfectProbability         float64
	ContaminationProbability  float64
	InfectDistance            float64
	MinIncubation, MaxIncubation simclock.TimeDelta
}

// ObjectParams are the shared parameters for one object type_tag
// (e.g. "chair", "bed").
type ObjectParams struct {
	TypeTag           string
	InfectProbability float64
	Radius            float64
	CleaningInterval  simclock.TimeDelta
}

// contactDistance is the fixed contact distance used by
// get_infect_probability for objects (spec §4.4: "≈0.2 cells").
const contactDistance = 0.2

// HumanParamsFromSpec builds HumanParams from the decoded hospital
// JSON `parameters.human` section.
func HumanParamsFromSpec(s config.HumanParamsSpec) (HumanParams, error) {
	if s.InfectProbability < 0 || s.InfectProbability > 1 {
		return HumanParams{}, fmt.Errorf("human.infect_probability out of [0,1]: %v", s.InfectProbability)
	}
	if s.ContaminationProbability < 0 || s.ContaminationProbability > 1 {
		return HumanParams{}, fmt.Errorf("human.contamination_probability out of [0,1]: %v", s.ContaminationProbability)
	}
	return HumanParams{
		InfectProbability:        s.InfectProbability,
		ContaminationProbability: s.ContaminationProbability,
		InfectDistance:           s.InfectDistance,
		MinIncubation:            simclock.TimeDelta(s.IncubationTime.Min.Seconds),
		MaxIncubation:            simclock.TimeDelta(s.IncubationTime.Max.Seconds),
	}, nil
}

// ObjectParamsFromSpec builds one ObjectParams from a decoded
// `parameters.objects.<type>` entry.
func ObjectParamsFromSpec(typeTag string, s config.ObjectParamsSpec) (ObjectParams, error) {
	if s.InfectProbability < 0 || s.InfectProbability > 1 {
		return ObjectParams{}, fmt.Errorf("objects.%s.infect_probability out of [0,1]: %v", typeTag, s.InfectProbability)
	}
	return ObjectParams{
		TypeTag:           typeTag,
		InfectProbability: s.InfectProbability,
		Radius:            s.Radius,
		CleaningInterval:  simclock.TimeDelta(s.CleaningInterval.Seconds),
	}, nil
}

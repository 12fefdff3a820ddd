package agent

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

// Fixtures is every startup agent this rank owns: the immobile staff
// and the waiting-room chairs/ICU beds (spec §3, §4.7 "startup
// fixture creation"). Patients are never part of Fixtures; they are
// minted later by the entry source.
type Fixtures struct {
	Receptionists []*FixedPerson
	TriageNurses  []*FixedPerson
	Doctors       []*FixedPerson
	Chairs        []*Object
	ICUBeds       []*Object
}

// BuildFixtures constructs every staff member and object belonging to
// the local region's plan fixtures, seeding each one's infection
// cycle from params and marking personnel immune per
// parameters.personnel.immunity (spec §6).
func BuildFixtures(f *Factory, p *plan.Plan, params *config.ParametersSpec, now simclock.DateTime) (*Fixtures, error) {
	humanParams, err := infection.HumanParamsFromSpec(params.Human)
	if err != nil {
		return nil, fmt.Errorf("building fixtures: %w", err)
	}

	chairParams, ok := params.Objects["chair"]
	if !ok {
		return nil, fmt.Errorf("building fixtures: parameters.objects has no \"chair\" entry")
	}
	chairObjParams, err := infection.ObjectParamsFromSpec("chair", chairParams)
	if err != nil {
		return nil, fmt.Errorf("building fixtures: %w", err)
	}

	bedParams, ok := params.Objects["bed"]
	if !ok {
		return nil, fmt.Errorf("building fixtures: parameters.objects has no \"bed\" entry")
	}
	bedObjParams, err := infection.ObjectParamsFromSpec("bed", bedParams)
	if err != nil {
		return nil, fmt.Errorf("building fixtures: %w", err)
	}

	fx := &Fixtures{}

	newStaff := func() *infection.HumanCycle {
		if params.Personnel.Immunity > 0 {
			return infection.NewImmuneHumanCycle(humanParams)
		}
		return infection.NewHumanCycle(humanParams)
	}

	for _, r := range p.Receptionists {
		fx.Receptionists = append(fx.Receptionists, &FixedPerson{
			ID:       f.New(KindFixedPerson),
			Cycle:    newStaff(),
			Role:     RoleReceptionist,
			Location: r.StaffCell.ToContinuous(),
		})
	}

	for range p.Triages {
		fx.TriageNurses = append(fx.TriageNurses, &FixedPerson{
			ID:    f.New(KindFixedPerson),
			Cycle: newStaff(),
			Role:  RoleTriageNurse,
		})
	}

	for _, d := range p.Doctors {
		fx.Doctors = append(fx.Doctors, &FixedPerson{
			ID:        f.New(KindFixedPerson),
			Cycle:     newStaff(),
			Role:      RoleDoctor,
			Specialty: d.Specialty,
			Location:  d.StaffCell.ToContinuous(),
		})
	}

	for _, c := range p.Chairs {
		fx.Chairs = append(fx.Chairs, &Object{
			ID:       f.New(KindObject),
			Cycle:    infection.NewObjectCycle(chairObjParams, now),
			TypeTag:  "chair",
			Location: c.ToContinuous(),
		})
	}

	for i := uint32(0); i < params.ICU.Beds; i++ {
		fx.ICUBeds = append(fx.ICUBeds, &Object{
			ID:       f.New(KindObject),
			Cycle:    infection.NewObjectCycle(bedObjParams, now),
			TypeTag:  "bed",
			Location: p.ICU.Entry.ToContinuous(),
		})
	}

	return fx, nil
}

// NewPatient mints a fresh patient at the plan's entry tile, optionally
// pre-infected (spec §4.7's admission histogram draws this once at
// creation, before the patient ever enters space).
func NewPatient(f *Factory, p *plan.Plan, humanParams infection.HumanParams, now simclock.DateTime, stream *rng.Stream, infectedChance float64) *Patient {
	cycle := infection.NewHumanCycle(humanParams)
	preInfected := stream.Bernoulli(infectedChance)
	if preInfected {
		cycle.SetSick(now, "pre_admission")
	}
	return &Patient{
		ID:                  f.New(KindPatient),
		Cycle:               cycle,
		State:               StateEntry,
		StateEnteredAt:      now,
		PreAdmittedInfected: preInfected,
	}
}

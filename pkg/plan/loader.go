package plan

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/simerrors"
)

func toDiscrete(c config.Coord) geometry.DiscreteCoord {
	return geometry.DiscreteCoord{X: c.X, Y: c.Y}
}

// FromSpec builds an immutable Plan from a decoded hospital JSON
// building section. Unknown/out-of-bounds tiles are a fatal
// configuration error (spec §7: "plan file magic/version mismatch"
// class of errors — here, a structurally invalid grid).
func FromSpec(b config.BuildingSpec) (*Plan, error) {
	if b.Width <= 0 || b.Height <= 0 {
		return nil, simerrors.Fatalf("plan.FromSpec", "invalid plan dimensions %dx%d", b.Width, b.Height)
	}

	obstacles := make([][]bool, b.Width)
	for x := range obstacles {
		obstacles[x] = make([]bool, b.Height)
		for y := range obstacles[x] {
			obstacles[x][y] = true // walkable by default
		}
	}

	walls := make([]geometry.DiscreteCoord, 0, len(b.Walls))
	for _, w := range b.Walls {
		c := toDiscrete(w)
		if err := checkBounds(b, c); err != nil {
			return nil, err
		}
		obstacles[c.X][c.Y] = false
		walls = append(walls, c)
	}

	chairs := make([]geometry.DiscreteCoord, 0, len(b.Chairs))
	for _, ch := range b.Chairs {
		c := toDiscrete(ch)
		if err := checkBounds(b, c); err != nil {
			return nil, err
		}
		chairs = append(chairs, c)
	}

	triages := make([]Triage, 0, len(b.Triages))
	for _, t := range b.Triages {
		triages = append(triages, Triage{PatientCell: toDiscrete(t.PatientLocation)})
	}

	receptionists := make([]Receptionist, 0, len(b.Receptionists))
	for _, r := range b.Receptionists {
		receptionists = append(receptionists, Receptionist{
			StaffCell:   toDiscrete(r.ReceptionistLocation),
			PatientCell: toDiscrete(r.PatientLocation),
		})
	}

	doctors := make([]Doctor, 0, len(b.Doctors))
	for _, d := range b.Doctors {
		if d.Specialty == "" {
			return nil, simerrors.Fatalf("plan.FromSpec", "doctor fixture missing specialty")
		}
		doctors = append(doctors, Doctor{
			StaffCell:   toDiscrete(d.DoctorLocation),
			PatientCell: toDiscrete(d.PatientLocation),
			Specialty:   d.Specialty,
		})
	}

	entry := toDiscrete(b.Entry)
	exit := toDiscrete(b.Exit)
	if err := checkBounds(b, entry); err != nil {
		return nil, err
	}
	if err := checkBounds(b, exit); err != nil {
		return nil, err
	}

	icu := ICU{Entry: toDiscrete(b.ICU.EntryLocation), Exit: toDiscrete(b.ICU.ExitLocation)}

	return New(b.Width, b.Height, obstacles, walls, chairs, triages, receptionists, doctors, entry, exit, icu), nil
}

func checkBounds(b config.BuildingSpec, c geometry.DiscreteCoord) error {
	if c.X < 0 || c.Y < 0 || int(c.X) >= b.Width || int(c.Y) >= b.Height {
		return simerrors.Fatalf("plan.FromSpec", "coordinate %v out of bounds for %dx%d plan", c, b.Width, b.Height)
	}
	return nil
}

// Load reads a hospital JSON document from path and returns the
// parsed plan alongside the raw parameters section (needed by
// pkg/infection to build its shared parameter structs).
func Load(path string) (*Plan, *config.ParametersSpec, error) {
	spec, err := config.LoadHospitalSpec(path)
	if err != nil {
		return nil, nil, fmt.Errorf("plan.Load: %w", err)
	}
	p, err := FromSpec(spec.Building)
	if err != nil {
		return nil, nil, err
	}
	return p, &spec.Parameters, nil
}

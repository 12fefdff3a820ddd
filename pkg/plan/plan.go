// Package plan holds the immutable hospital floor plan: tiles, the
// obstacle mask, and indexed fixtures (spec §3 "Hospital plan").
package plan

import "github.com/sti-hpc/hospicon/pkg/geometry"

// Receptionist is a pair of staff/patient positions at a reception desk.
type Receptionist struct {
	StaffCell   geometry.DiscreteCoord
	PatientCell geometry.DiscreteCoord
}

// Triage is a patient-facing triage position.
type Triage struct {
	PatientCell geometry.DiscreteCoord
}

// Doctor is a specialty-tagged consulting position.
type Doctor struct {
	StaffCell   geometry.DiscreteCoord
	PatientCell geometry.DiscreteCoord
	Specialty   string
}

// ICU holds the two singleton ICU transition tiles. The ICU interior
// itself is spaceless (spec §4.5.4 / original_source icu.hpp): patients
// are absorbed into the ICU dimension at IcuEntry and respawned at
// IcuExit.
type ICU struct {
	Entry geometry.DiscreteCoord
	Exit  geometry.DiscreteCoord
}

// Plan is the immutable hospital floor plan, shared read-only by
// every process once loaded (spec §3: "Immutable after load").
type Plan struct {
	Width, Height int

	// obstacles[x][y] == true means walkable.
	obstacles [][]bool

	Walls         []geometry.DiscreteCoord
	Chairs        []geometry.DiscreteCoord
	Triages       []Triage
	Receptionists []Receptionist
	Doctors       []Doctor

	Entry geometry.DiscreteCoord
	Exit  geometry.DiscreteCoord
	ICU   ICU
}

// New builds a Plan from a pre-sized obstacle grid and fixture lists.
// Exit is forced non-walkable so path queries only ever step onto it
// when it is the explicit goal (spec §3).
func New(width, height int, obstacles [][]bool, walls, chairs []geometry.DiscreteCoord,
	triages []Triage, receptionists []Receptionist, doctors []Doctor,
	entry, exit geometry.DiscreteCoord, icu ICU) *Plan {

	p := &Plan{
		Width:         width,
		Height:        height,
		obstacles:     obstacles,
		Walls:         walls,
		Chairs:        chairs,
		Triages:       triages,
		Receptionists: receptionists,
		Doctors:       doctors,
		Entry:         entry,
		Exit:          exit,
		ICU:           icu,
	}
	p.obstacles[exit.X][exit.Y] = false
	return p
}

// Walkable reports whether a coordinate is inside the grid and marked
// walkable.
func (p *Plan) Walkable(c geometry.DiscreteCoord) bool {
	if c.X < 0 || c.Y < 0 || int(c.X) >= p.Width || int(c.Y) >= p.Height {
		return false
	}
	return p.obstacles[c.X][c.Y]
}

// InBounds reports whether a coordinate lies within the grid,
// irrespective of walkability.
func (p *Plan) InBounds(c geometry.DiscreteCoord) bool {
	return c.X >= 0 && c.Y >= 0 && int(c.X) < p.Width && int(c.Y) < p.Height
}

// DoctorsOfSpecialty returns, in plan order, every doctor fixture
// tagged with the given specialty.
func (p *Plan) DoctorsOfSpecialty(specialty string) []Doctor {
	var out []Doctor
	for _, d := range p.Doctors {
		if d.Specialty == specialty {
			out = append(out, d)
		}
	}
	return out
}

package infection

// Environment is a spaceless infection source whose hazard depends on
// aggregate state rather than point-to-point proximity (spec §3
// "Environment", currently only the ICU).
type Environment interface {
	GetProbability() float64
}

// ICUEnvironment is linear in current ICU occupancy, saturating at 1
// (spec §4.4 "Environmental source").
type ICUEnvironment struct {
	infectionChance float64
	occupied        func() (occupied, capacity uint32)
}

// NewICUEnvironment builds an ICU environmental source. occupied
// returns the live (occupied beds, total capacity) pair each time
// GetProbability is queried, so the hazard always reflects the
// current tick's occupancy.
func NewICUEnvironment(infectionChance float64, occupied func() (uint32, uint32)) *ICUEnvironment {
	return &ICUEnvironment{infectionChance: infectionChance, occupied: occupied}
}

// GetProbability returns infectionChance * (occupied/capacity),
// saturating at 1.
func (e *ICUEnvironment) GetProbability() float64 {
	occ, capacity := e.occupied()
	if capacity == 0 {
		return 0
	}
	p := e.infectionChance * (float64(occ) / float64(capacity))
	if p > 1 {
		return 1
	}
	return p
}

// ZeroEnvironment is the null environmental source used anywhere in
// the hospital outside the ICU.
type ZeroEnvironment struct{}

func (ZeroEnvironment) GetProbability() float64 { return 0 }

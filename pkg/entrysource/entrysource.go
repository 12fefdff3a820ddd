// Package entrysource mints new patients at the hospital's entry tile
// according to a per-day-and-interval admission histogram (spec
// §4.7). It owns no shared state beyond its own running counters and
// is driven once per tick by the scheduler, on the rank that hosts
// the entry tile.
package entrysource

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/config"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/infection"
	"github.com/sti-hpc/hospicon/pkg/plan"
	"github.com/sti-hpc/hospicon/pkg/rng"
	"github.com/sti-hpc/hospicon/pkg/simclock"
)

const secondsPerDay = 24 * 60 * 60

// Source creates patients at the entry tile, pacing admissions across
// each day's intervals to match the configured histogram. generated
// tracks, per day and interval, how many patients this source has
// already created; it only ever grows.
type Source struct {
	daily          [][]uint32
	infectedChance []float64
	intervalLength uint64
	entry          geometry.DiscreteCoord

	generated [][]uint32
}

// New validates dist against the plan and builds a Source. intervalLength
// is the width, in seconds, of one histogram bucket; it must evenly
// divide a day's seconds for "bin" to index daily consistently across
// the whole run.
func New(p *plan.Plan, dist *config.PatientDistributionSpec, intervalLength uint64) (*Source, error) {
	if intervalLength == 0 {
		return nil, fmt.Errorf("entry source: interval length must be positive")
	}
	if secondsPerDay%intervalLength != 0 {
		return nil, fmt.Errorf("entry source: interval length %d does not evenly divide a day", intervalLength)
	}
	if len(dist.Daily) != len(dist.InfectedChance) {
		return nil, fmt.Errorf("entry source: daily has %d days but infected_chance has %d", len(dist.Daily), len(dist.InfectedChance))
	}
	wantIntervals := int(secondsPerDay / intervalLength)
	for day, intervals := range dist.Daily {
		if len(intervals) != wantIntervals {
			return nil, fmt.Errorf("entry source: day %d has %d intervals, want %d", day, len(intervals), wantIntervals)
		}
	}
	for day, p := range dist.InfectedChance {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("entry source: infected_chance[%d] = %v out of [0,1]", day, p)
		}
	}

	generated := make([][]uint32, len(dist.Daily))
	for i, intervals := range dist.Daily {
		generated[i] = make([]uint32, len(intervals))
	}

	return &Source{
		daily:          dist.Daily,
		infectedChance: dist.InfectedChance,
		intervalLength: intervalLength,
		entry:          p.Entry,
		generated:      generated,
	}, nil
}

// Run computes the pro-rata admission target for the current instant
// and mints however many new patients are owed, placing each one at
// the entry tile and registering it with space (spec §4.7). Patients
// minted beyond the configured number of days are not created; the
// distribution is assumed to cover the full run length.
func (s *Source) Run(f *agent.Factory, humanParams infection.HumanParams, now simclock.DateTime, stream *rng.Stream, place func(id agent.ID, pos geometry.ContinuousCoord)) []*agent.Patient {
	day := int(now.Seconds() / secondsPerDay)
	if day >= len(s.daily) {
		return nil
	}
	secondsIntoDay := now.Seconds() % secondsPerDay
	bin := secondsIntoDay / s.intervalLength
	secondsIntoBin := secondsIntoDay % s.intervalLength

	target := s.daily[day][bin]
	expected := 1 + (secondsIntoBin*uint64(target))/s.intervalLength

	already := uint64(s.generated[day][bin])
	if expected <= already {
		return nil
	}
	owed := expected - already
	s.generated[day][bin] += uint32(owed)

	infectedChance := s.infectedChance[day]
	entryPos := s.entry.ToContinuous()

	patients := make([]*agent.Patient, 0, owed)
	for i := uint64(0); i < owed; i++ {
		p := agent.NewPatient(f, nil, humanParams, now, stream, infectedChance)
		place(p.ID, entryPos)
		patients = append(patients, p)
	}
	return patients
}

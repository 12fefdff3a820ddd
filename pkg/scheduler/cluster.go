package scheduler

import (
	"fmt"
	"sync"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/resourcemgr"
	"github.com/sti-hpc/hospicon/pkg/simerrors"
	"github.com/sti-hpc/hospicon/pkg/simulation"
)

// Cluster runs every rank of a single-binary multi-rank simulation
// through lock-step ticks: each rank's local phases (spec §4.9 steps
// 1-4) run sequentially in rank order — cheap, since they touch
// disjoint state — then the cross-rank migration handoff and the five
// resource managers' proxy/authority exchange run as this tick's
// synchronization barrier (step 5).
type Cluster struct {
	ranks []*simulation.Rank
	byID  map[int32]*simulation.Rank
}

// NewCluster builds a Cluster from every rank of one simulation run.
func NewCluster(ranks []*simulation.Rank) *Cluster {
	byID := make(map[int32]*simulation.Rank, len(ranks))
	for _, r := range ranks {
		byID[r.ID] = r
	}
	return &Cluster{ranks: ranks, byID: byID}
}

// Tick advances every rank by exactly one simulation tick and returns
// the combined per-rank results, indexed by rank ID.
func (c *Cluster) Tick() (map[int32]Result, error) {
	results := make(map[int32]Result, len(c.ranks))
	for _, r := range c.ranks {
		results[r.ID] = Tick(r)
	}

	if err := c.applyMigrations(results); err != nil {
		return nil, err
	}

	if err := c.syncManagers(); err != nil {
		return nil, err
	}

	c.sampleMetrics()

	return results, nil
}

// applyMigrations hands every evicted patient to its destination
// rank, round-tripping it through the wire serialization format so
// the checksum and gob-decode integrity path is exercised on every
// cross-rank hop, not only over a real network transport (spec §4.E).
func (c *Cluster) applyMigrations(results map[int32]Result) error {
	for _, r := range c.ranks {
		for _, mig := range results[r.ID].Migrations {
			dest, ok := c.byID[mig.Event.NewRank]
			if !ok {
				return simerrors.NewProcessFatal("cluster.applyMigrations",
					fmt.Errorf("patient %v migrated to unknown rank %d", mig.Patient.ID, mig.Event.NewRank))
			}

			wire, err := agent.SerializePatient(mig.Patient)
			if err != nil {
				return fmt.Errorf("cluster: serializing migrating patient %v: %w", mig.Patient.ID, err)
			}
			imported, err := agent.DeserializePatient(wire, dest.HumanParams)
			if err != nil {
				return fmt.Errorf("cluster: deserializing patient %v onto rank %d: %w", mig.Patient.ID, dest.ID, err)
			}

			importedID := dest.Space.ImportAgent(imported.ID, mig.Event.At)
			imported.ID = importedID
			dest.Patients[imported.ID.Key()] = imported
		}
	}
	return nil
}

// managerOrder is the fixed sync order spec §4.9 step 5b requires.
var managerOrder = []string{"chairs", "reception", "triage", "doctors", "icu"}

func (c *Cluster) syncManagers() error {
	for _, name := range managerOrder {
		if err := c.syncOne(name); err != nil {
			return fmt.Errorf("cluster: %s manager sync: %w", name, err)
		}
	}
	return nil
}

// syncOne runs one manager's Sync across every rank concurrently: the
// in-memory transport's authority and proxy sides block on each other
// over channels, so every rank's Sync call for this manager must be
// in flight at once rather than called out one rank at a time.
func (c *Cluster) syncOne(name string) error {
	var wg sync.WaitGroup
	errs := make([]error, len(c.ranks))

	for i, r := range c.ranks {
		wg.Add(1)
		go func(i int, r *simulation.Rank) {
			defer wg.Done()
			errs[i] = syncManager(name, r)
		}(i, r)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func syncManager(name string, r *simulation.Rank) error {
	var mgr interface{ Sync() error }
	switch name {
	case "chairs":
		mgr = r.Chairs
	case "reception":
		mgr = r.Reception
	case "triage":
		mgr = r.Triage
	case "doctors":
		mgr = r.Doctors
	case "icu":
		mgr = r.ICU
	default:
		return fmt.Errorf("unknown manager %q", name)
	}
	return mgr.Sync()
}

func (c *Cluster) sampleMetrics() {
	for _, r := range c.ranks {
		if r.Metrics == nil {
			continue
		}
		r.Metrics.RecordTick(r.Clock.Tick())

		byState := make(map[string]int)
		for _, p := range r.Patients {
			byState[p.State.String()]++
		}
		r.Metrics.UpdatePopulation(len(r.Patients), byState)

		chairsInUse, receptionDepth, triageDepth := 0, 0, 0
		doctorDepth := map[string]int{}
		if a, ok := r.Chairs.(*resourcemgr.ChairAuthority); ok {
			chairsInUse = a.OccupiedCount()
		}
		if a, ok := r.Reception.(*resourcemgr.QueueAuthority); ok {
			receptionDepth = a.Depth()
		}
		if a, ok := r.Triage.(*resourcemgr.QueueAuthority); ok {
			triageDepth = a.Depth()
		}
		if a, ok := r.Doctors.(*resourcemgr.DoctorAuthority); ok {
			doctorDepth = a.Depths()
		}
		icuReserved := uint32(0)
		if a, ok := r.ICU.(*resourcemgr.ICUAuthority); ok {
			icuReserved = a.ReservedBeds()
		}
		r.Metrics.UpdateResourceOccupancy(chairsInUse, receptionDepth, triageDepth, doctorDepth, int(icuReserved), int(icuReserved))
	}
}

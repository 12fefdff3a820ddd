// Package space implements hospicon's dual discrete/continuous
// coordinate system for agents: location storage, neighborhood
// queries, movement primitives, and cross-process ownership transfer
// (spec §4.3).
package space

import (
	"sort"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
)

// AgentRef is a lightweight snapshot of one agent's identity and
// position, returned by neighborhood queries. Space never exposes
// the agent's behavioral state (infection cycle, FSM) — those live
// in the owning agent registry, cross-referenced by ID.
type AgentRef struct {
	ID         agent.ID
	Discrete   geometry.DiscreteCoord
	Continuous geometry.ContinuousCoord
}

// MigrationEvent describes one agent whose continuous position left
// the local region during Balance and must be handed off to its new
// owning rank by the scheduler (the actual transport is an assumed
// primitive, spec §1).
type MigrationEvent struct {
	ID      agent.ID
	NewRank int32
	At      geometry.ContinuousCoord
}

type record struct {
	id         agent.ID
	discrete   geometry.DiscreteCoord
	continuous geometry.ContinuousCoord
}

// Space owns every locally-resident agent's position for one process.
// It is single-threaded: all mutation happens through its exported
// methods from the per-tick agent loop, never concurrently (spec §5).
type Space struct {
	partition *Partition
	localRank int32

	records map[agent.IDKey]*record
	// order preserves insertion order for deterministic local
	// iteration (spec §4.9 "local agents in insertion order").
	order []agent.IDKey
}

// New constructs a Space for localRank, using partition to decide
// cross-process ownership during Balance.
func New(partition *Partition, localRank int32) *Space {
	return &Space{
		partition: partition,
		localRank: localRank,
		records:   make(map[agent.IDKey]*record),
	}
}

// LocalRegion returns the region this process owns.
func (s *Space) LocalRegion() Region {
	return s.partition.RegionOf(s.localRank)
}

// AddAgent registers a newly-created or just-migrated-in agent at a
// continuous position.
func (s *Space) AddAgent(id agent.ID, pos geometry.ContinuousCoord) {
	key := id.Key()
	if _, exists := s.records[key]; exists {
		return
	}
	rec := &record{id: id, continuous: pos, discrete: pos.ToDiscrete()}
	s.records[key] = rec
	s.order = append(s.order, key)
}

// RemoveAgent deletes an agent's position record (used by the exit
// sink and by Balance when an agent migrates away).
func (s *Space) RemoveAgent(id agent.ID) {
	key := id.Key()
	if _, exists := s.records[key]; !exists {
		return
	}
	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// LocalAgentIDs returns every locally-resident agent id, in
// deterministic insertion order.
func (s *Space) LocalAgentIDs() []agent.ID {
	out := make([]agent.ID, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.records[k].id)
	}
	return out
}

// GetDiscreteLocation returns an agent's current cell.
func (s *Space) GetDiscreteLocation(id agent.ID) (geometry.DiscreteCoord, bool) {
	r, ok := s.records[id.Key()]
	if !ok {
		return geometry.DiscreteCoord{}, false
	}
	return r.discrete, true
}

// GetContinuousLocation returns an agent's true position.
func (s *Space) GetContinuousLocation(id agent.ID) (geometry.ContinuousCoord, bool) {
	r, ok := s.records[id.Key()]
	if !ok {
		return geometry.ContinuousCoord{}, false
	}
	return r.continuous, true
}

// MoveTo sets both the continuous and discrete position of an agent.
func (s *Space) MoveTo(id agent.ID, point geometry.ContinuousCoord) {
	r, ok := s.records[id.Key()]
	if !ok {
		return
	}
	r.continuous = point
	r.discrete = point.ToDiscrete()
}

// MoveTowards moves an agent from its current position towards the
// center of target by up to speed units, clamped to not overshoot,
// and returns the resulting continuous position (spec §4.3).
func (s *Space) MoveTowards(id agent.ID, target geometry.DiscreteCoord, speed float64) geometry.ContinuousCoord {
	r, ok := s.records[id.Key()]
	if !ok {
		return geometry.ContinuousCoord{}
	}
	next := r.continuous.MoveTowards(target.ToContinuous(), speed)
	r.continuous = next
	r.discrete = next.ToDiscrete()
	return next
}

// AgentsAround returns every agent whose continuous distance to
// center is <= radius, in deterministic order.
func (s *Space) AgentsAround(center geometry.ContinuousCoord, radius float64) []AgentRef {
	var out []AgentRef
	for _, k := range s.order {
		r := s.records[k]
		if r.continuous.Distance(center) <= radius {
			out = append(out, AgentRef{ID: r.id, Discrete: r.discrete, Continuous: r.continuous})
		}
	}
	return out
}

// AgentsInCell returns every agent whose discrete location equals cell.
func (s *Space) AgentsInCell(cell geometry.DiscreteCoord) []AgentRef {
	var out []AgentRef
	for _, k := range s.order {
		r := s.records[k]
		if r.discrete.Equal(cell) {
			out = append(out, AgentRef{ID: r.id, Discrete: r.discrete, Continuous: r.continuous})
		}
	}
	return out
}

// Balance scans every locally-resident agent and detects those whose
// continuous position has left the local region, returning them as
// MigrationEvents and removing them from this Space. It is the only
// place cross-process agent ownership changes, and must only be
// called from inside the scheduler's synchronization barrier (spec
// §4.9 step 5a).
func (s *Space) Balance() []MigrationEvent {
	var events []MigrationEvent
	region := s.LocalRegion()
	for _, k := range append([]agent.IDKey(nil), s.order...) {
		r := s.records[k]
		if region.Contains(r.discrete) {
			continue
		}
		newRank := s.partition.OwnerOf(r.discrete)
		events = append(events, MigrationEvent{ID: r.id, NewRank: newRank, At: r.continuous})
		s.RemoveAgent(r.id)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID.LocalID < events[j].ID.LocalID })
	return events
}

// ImportAgent places an agent arriving from another rank's migration
// event into this Space, updating its CurrentRank to the local rank.
func (s *Space) ImportAgent(id agent.ID, pos geometry.ContinuousCoord) agent.ID {
	id.CurrentRank = s.localRank
	s.AddAgent(id, pos)
	return id
}

// Package resourcemgr implements hospicon's five partitioned resource
// managers — chairs, reception, triage, doctors, ICU beds — each as
// an authority/proxy pair coupled by pkg/transport (spec §4.5).
package resourcemgr

import (
	"fmt"
	"sort"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/simerrors"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

// ChairRequestMsg is a petition for an empty chair (spec §4.5.1).
type ChairRequestMsg struct {
	AgentID agent.ID
}

// ChairReleaseMsg indicates a chair has been released.
type ChairReleaseMsg struct {
	ChairLocation geometry.ContinuousCoord
}

// ChairResponseMsg answers a ChairRequestMsg: Location is nil if the
// pool was saturated.
type ChairResponseMsg struct {
	AgentID  agent.ID
	Location *geometry.ContinuousCoord
}

// ChairManager is the interface shared by the proxy and authority
// implementations (spec §9: "a single trait with two implementations").
type ChairManager interface {
	RequestChair(id agent.ID)
	ReleaseChair(loc geometry.ContinuousCoord)
	PeekResponse(id agent.ID) (ChairResponseMsg, bool)
	GetResponse(id agent.ID) (ChairResponseMsg, bool)
	Sync() error
}

type chairSlot struct {
	Location geometry.ContinuousCoord
	InUse    bool
}

// ChairAuthority is the real chair pool owner. It also serves the
// local rank's own agents directly (no network hop needed for
// same-process requests), buffering them exactly like a remote proxy
// would so releases-before-requests ordering holds uniformly (spec
// §4.5.1, §4.5.5).
type ChairAuthority struct {
	transport transport.RankTransport
	pool      []chairSlot

	localRequests []ChairRequestMsg
	localReleases []ChairReleaseMsg

	responses map[agent.IDKey]ChairResponseMsg
}

// NewChairAuthority constructs the authoritative chair manager with a
// fixed pool of chair locations.
func NewChairAuthority(t transport.RankTransport, chairLocations []geometry.ContinuousCoord) *ChairAuthority {
	pool := make([]chairSlot, len(chairLocations))
	for i, loc := range chairLocations {
		pool[i] = chairSlot{Location: loc}
	}
	return &ChairAuthority{
		transport: t,
		pool:      pool,
		responses: make(map[agent.IDKey]ChairResponseMsg),
	}
}

func (a *ChairAuthority) RequestChair(id agent.ID) {
	a.localRequests = append(a.localRequests, ChairRequestMsg{AgentID: id})
}

func (a *ChairAuthority) ReleaseChair(loc geometry.ContinuousCoord) {
	a.localReleases = append(a.localReleases, ChairReleaseMsg{ChairLocation: loc})
}

func (a *ChairAuthority) PeekResponse(id agent.ID) (ChairResponseMsg, bool) {
	r, ok := a.responses[id.Key()]
	return r, ok
}

func (a *ChairAuthority) GetResponse(id agent.ID) (ChairResponseMsg, bool) {
	r, ok := a.responses[id.Key()]
	if ok {
		delete(a.responses, id.Key())
	}
	return r, ok
}

// Sync implements the authority side of spec §4.5.5's barrier phase:
// collect every proxy's releases and requests, apply releases before
// requests, then send each responder its answer.
func (a *ChairAuthority) Sync() error {
	remoteReleases, err := a.transport.RecvFromProxies(transport.TagChairs, 1)
	if err != nil {
		return fmt.Errorf("chair authority: recv releases: %w", err)
	}
	remoteRequests, err := a.transport.RecvFromProxies(transport.TagChairs, 0)
	if err != nil {
		return fmt.Errorf("chair authority: recv requests: %w", err)
	}

	// Apply releases first (spec §4.5.1: "authority applies releases
	// before requests in the same sync barrier"), local then remote in
	// deterministic rank order.
	a.applyReleases(a.localReleases)
	for _, rank := range sortedRanks(remoteReleases) {
		env := remoteReleases[rank]
		msgs, _ := env.Payload.([]ChairReleaseMsg)
		a.applyReleases(msgs)
	}
	a.localReleases = nil

	perRankResponses := make(map[int32][]ChairResponseMsg)
	applyRequests := func(reqs []ChairRequestMsg, owner int32) error {
		for _, req := range reqs {
			if _, exists := a.responses[req.AgentID.Key()]; exists {
				return simerrors.NewProcessFatal("chair authority", fmt.Errorf("duplicate outstanding chair response for %v", req.AgentID))
			}
			resp := a.assign(req.AgentID)
			if owner == a.transport.LocalRank() {
				a.responses[req.AgentID.Key()] = resp
			} else {
				perRankResponses[owner] = append(perRankResponses[owner], resp)
			}
		}
		return nil
	}

	if err := applyRequests(a.localRequests, a.transport.LocalRank()); err != nil {
		return err
	}
	a.localRequests = nil
	for _, rank := range sortedRanks(remoteRequests) {
		env := remoteRequests[rank]
		msgs, _ := env.Payload.([]ChairRequestMsg)
		if err := applyRequests(msgs, rank); err != nil {
			return err
		}
	}

	for _, rank := range sortedInt32Keys(perRankResponses) {
		if err := a.transport.SendResponse(transport.TagChairs, rank, transport.Envelope{Sub: 2, Payload: perRankResponses[rank]}); err != nil {
			return fmt.Errorf("chair authority: send responses to rank %d: %w", rank, err)
		}
	}
	return nil
}

func (a *ChairAuthority) applyReleases(releases []ChairReleaseMsg) {
	for _, rel := range releases {
		for i := range a.pool {
			if a.pool[i].Location == rel.ChairLocation {
				a.pool[i].InUse = false
				break
			}
		}
	}
}

func (a *ChairAuthority) assign(id agent.ID) ChairResponseMsg {
	for i := range a.pool {
		if !a.pool[i].InUse {
			a.pool[i].InUse = true
			loc := a.pool[i].Location
			return ChairResponseMsg{AgentID: id, Location: &loc}
		}
	}
	return ChairResponseMsg{AgentID: id, Location: nil}
}

// OccupiedCount returns how many chairs are currently in use
// (diagnostic/statistics use only).
func (a *ChairAuthority) OccupiedCount() int {
	n := 0
	for _, c := range a.pool {
		if c.InUse {
			n++
		}
	}
	return n
}

// ChairProxy buffers local requests/releases and exchanges them with
// the authority rank once per barrier.
type ChairProxy struct {
	transport transport.RankTransport

	requestBuffer []ChairRequestMsg
	releaseBuffer []ChairReleaseMsg
	pending       map[agent.IDKey]ChairResponseMsg
}

// NewChairProxy constructs a proxy chair manager.
func NewChairProxy(t transport.RankTransport) *ChairProxy {
	return &ChairProxy{transport: t, pending: make(map[agent.IDKey]ChairResponseMsg)}
}

func (p *ChairProxy) RequestChair(id agent.ID) {
	p.requestBuffer = append(p.requestBuffer, ChairRequestMsg{AgentID: id})
}

func (p *ChairProxy) ReleaseChair(loc geometry.ContinuousCoord) {
	p.releaseBuffer = append(p.releaseBuffer, ChairReleaseMsg{ChairLocation: loc})
}

func (p *ChairProxy) PeekResponse(id agent.ID) (ChairResponseMsg, bool) {
	r, ok := p.pending[id.Key()]
	return r, ok
}

func (p *ChairProxy) GetResponse(id agent.ID) (ChairResponseMsg, bool) {
	r, ok := p.pending[id.Key()]
	if ok {
		delete(p.pending, id.Key())
	}
	return r, ok
}

// Sync implements the proxy side of spec §4.5.5: send buffered
// releases (sub 1) then requests (sub 0), then receive this tick's
// responses.
func (p *ChairProxy) Sync() error {
	if err := p.transport.SendToAuthority(transport.TagChairs, transport.Envelope{Sub: 1, Payload: p.releaseBuffer}); err != nil {
		return fmt.Errorf("chair proxy: send releases: %w", err)
	}
	p.releaseBuffer = nil
	if err := p.transport.SendToAuthority(transport.TagChairs, transport.Envelope{Sub: 0, Payload: p.requestBuffer}); err != nil {
		return fmt.Errorf("chair proxy: send requests: %w", err)
	}
	p.requestBuffer = nil

	env, err := p.transport.RecvResponse(transport.TagChairs)
	if err != nil {
		return fmt.Errorf("chair proxy: recv responses: %w", err)
	}
	responses, _ := env.Payload.([]ChairResponseMsg)
	for _, r := range responses {
		if _, exists := p.pending[r.AgentID.Key()]; exists {
			return simerrors.NewProcessFatal("chair proxy", fmt.Errorf("duplicate outstanding chair response for %v", r.AgentID))
		}
		p.pending[r.AgentID.Key()] = r
	}
	return nil
}

func sortedRanks(m map[int32]transport.Envelope) []int32 {
	out := make([]int32, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedInt32Keys[V any](m map[int32]V) []int32 {
	out := make([]int32, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package resourcemgr

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/simerrors"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

// ICURequestMsg petitions for a reserved bed.
type ICURequestMsg struct {
	AgentID agent.ID
}

// ICUResponseMsg answers a request: Admitted is false if the ICU was
// saturated at the time of the request.
type ICUResponseMsg struct {
	AgentID  agent.ID
	Admitted bool
}

// ICUReleaseMsg frees one reserved bed, buffered the same way a chair
// release is, since the ICU authority may live on a different rank
// than the patient releasing the bed.
type ICUReleaseMsg struct {
	AgentID agent.ID
}

// ICUEvent is one admission, rejection, or release the authority
// processed during a Sync call, kept for the persisted
// icu_admissions_and_releases CSV (spec §6).
type ICUEvent struct {
	AgentID agent.ID
	Kind    string // "admission", "rejection", or "release"
}

// ICUAdmission is the interface shared by the real and proxy bed
// reservation managers (spec §4.5.5). Unlike the chair pool, the ICU
// only tracks a reservation counter here; occupancy and death rolls
// are the caller's concern once a patient is physically absorbed
// (real_icu.cpp separates request_bed/insert/remove for the same
// reason).
type ICUAdmission interface {
	RequestBed(id agent.ID)
	ReleaseBed(id agent.ID)
	PeekResponse(id agent.ID) (bool, bool)
	GetResponse(id agent.ID) (bool, bool)
	Sync() error
}

// ICUAuthority is the real bed-reservation counter. It does not track
// which patient occupies which bed; ReservedBeds/Capacity are read by
// the ICU infection environment, the per-tick metrics sampling and the
// ICU status output.
type ICUAuthority struct {
	transport transport.RankTransport
	capacity  uint32
	reserved  uint32

	responses map[agent.IDKey]ICUResponseMsg
	rejected  []agent.ID

	localRequests []ICURequestMsg
	localReleases []ICUReleaseMsg

	events []ICUEvent
}

// NewICUAuthority constructs the real ICU admission manager with a
// fixed bed capacity.
func NewICUAuthority(t transport.RankTransport, capacity uint32) *ICUAuthority {
	return &ICUAuthority{
		transport: t,
		capacity:  capacity,
		responses: make(map[agent.IDKey]ICUResponseMsg),
	}
}

func (a *ICUAuthority) RequestBed(id agent.ID) {
	a.localRequests = append(a.localRequests, ICURequestMsg{AgentID: id})
}

func (a *ICUAuthority) ReleaseBed(id agent.ID) {
	a.localReleases = append(a.localReleases, ICUReleaseMsg{AgentID: id})
}

func (a *ICUAuthority) PeekResponse(id agent.ID) (bool, bool) {
	r, ok := a.responses[id.Key()]
	return r.Admitted, ok
}

func (a *ICUAuthority) GetResponse(id agent.ID) (bool, bool) {
	r, ok := a.responses[id.Key()]
	if ok {
		delete(a.responses, id.Key())
	}
	return r.Admitted, ok
}

// ReservedBeds reports the current reservation counter (diagnostics).
func (a *ICUAuthority) ReservedBeds() uint32 { return a.reserved }

// Capacity reports the configured bed count.
func (a *ICUAuthority) Capacity() uint32 { return a.capacity }

// DrainEvents returns every admission, rejection, and release
// processed since the last call, clearing the internal buffer.
func (a *ICUAuthority) DrainEvents() []ICUEvent {
	events := a.events
	a.events = nil
	return events
}

// Release frees one reserved bed, called once a patient physically
// leaves the ICU ward (spec §4.5.5, real_icu.cpp's remove()).
func (a *ICUAuthority) Release() error {
	if a.reserved == 0 {
		return simerrors.NewProcessFatal("icu authority", fmt.Errorf("release called with no reserved beds"))
	}
	a.reserved--
	return nil
}

func (a *ICUAuthority) applyReleases(releases []ICUReleaseMsg) error {
	for _, rel := range releases {
		if err := a.Release(); err != nil {
			return err
		}
		a.events = append(a.events, ICUEvent{AgentID: rel.AgentID, Kind: "release"})
	}
	return nil
}

func (a *ICUAuthority) admit(id agent.ID) ICUResponseMsg {
	if a.reserved < a.capacity {
		a.reserved++
		a.events = append(a.events, ICUEvent{AgentID: id, Kind: "admission"})
		return ICUResponseMsg{AgentID: id, Admitted: true}
	}
	a.rejected = append(a.rejected, id)
	a.events = append(a.events, ICUEvent{AgentID: id, Kind: "rejection"})
	return ICUResponseMsg{AgentID: id, Admitted: false}
}

// Sync implements real_icu.cpp's sync(): apply every buffered release
// first (local then remote, in rank order), then process the local
// rank's own requests, then every proxy's, in rank order, so
// admission order is deterministic across a replay with the same
// seed.
func (a *ICUAuthority) Sync() error {
	remoteReleases, err := a.transport.RecvFromProxies(transport.TagICU, 1)
	if err != nil {
		return fmt.Errorf("icu authority: recv releases: %w", err)
	}
	remoteRequests, err := a.transport.RecvFromProxies(transport.TagICU, 0)
	if err != nil {
		return fmt.Errorf("icu authority: recv requests: %w", err)
	}

	if err := a.applyReleases(a.localReleases); err != nil {
		return err
	}
	a.localReleases = nil
	for _, rank := range sortedRanks(remoteReleases) {
		msgs, _ := remoteReleases[rank].Payload.([]ICUReleaseMsg)
		if err := a.applyReleases(msgs); err != nil {
			return err
		}
	}

	perRankResponses := make(map[int32][]ICUResponseMsg)

	for _, req := range a.localRequests {
		resp := a.admit(req.AgentID)
		a.responses[req.AgentID.Key()] = resp
	}
	a.localRequests = nil

	for _, rank := range sortedRanks(remoteRequests) {
		msgs, _ := remoteRequests[rank].Payload.([]ICURequestMsg)
		for _, req := range msgs {
			resp := a.admit(req.AgentID)
			perRankResponses[rank] = append(perRankResponses[rank], resp)
		}
	}

	for _, rank := range sortedInt32Keys(perRankResponses) {
		if err := a.transport.SendResponse(transport.TagICU, rank, transport.Envelope{Sub: 2, Payload: perRankResponses[rank]}); err != nil {
			return fmt.Errorf("icu authority: send responses to rank %d: %w", rank, err)
		}
	}
	return nil
}

// ICUProxy buffers bed requests and releases for the ICU authority.
type ICUProxy struct {
	transport transport.RankTransport

	requestBuffer []ICURequestMsg
	releaseBuffer []ICUReleaseMsg
	pending       map[agent.IDKey]ICUResponseMsg
}

// NewICUProxy constructs a proxy ICU admission manager.
func NewICUProxy(t transport.RankTransport) *ICUProxy {
	return &ICUProxy{transport: t, pending: make(map[agent.IDKey]ICUResponseMsg)}
}

func (p *ICUProxy) RequestBed(id agent.ID) {
	p.requestBuffer = append(p.requestBuffer, ICURequestMsg{AgentID: id})
}

func (p *ICUProxy) ReleaseBed(id agent.ID) {
	p.releaseBuffer = append(p.releaseBuffer, ICUReleaseMsg{AgentID: id})
}

func (p *ICUProxy) PeekResponse(id agent.ID) (bool, bool) {
	r, ok := p.pending[id.Key()]
	return r.Admitted, ok
}

func (p *ICUProxy) GetResponse(id agent.ID) (bool, bool) {
	r, ok := p.pending[id.Key()]
	if ok {
		delete(p.pending, id.Key())
	}
	return r.Admitted, ok
}

func (p *ICUProxy) Sync() error {
	if err := p.transport.SendToAuthority(transport.TagICU, transport.Envelope{Sub: 1, Payload: p.releaseBuffer}); err != nil {
		return fmt.Errorf("icu proxy: send releases: %w", err)
	}
	p.releaseBuffer = nil

	if err := p.transport.SendToAuthority(transport.TagICU, transport.Envelope{Sub: 0, Payload: p.requestBuffer}); err != nil {
		return fmt.Errorf("icu proxy: send requests: %w", err)
	}
	p.requestBuffer = nil

	env, err := p.transport.RecvResponse(transport.TagICU)
	if err != nil {
		return fmt.Errorf("icu proxy: recv responses: %w", err)
	}
	responses, _ := env.Payload.([]ICUResponseMsg)
	for _, r := range responses {
		p.pending[r.AgentID.Key()] = r
	}
	return nil
}

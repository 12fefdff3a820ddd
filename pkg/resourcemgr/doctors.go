package resourcemgr

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/simclock"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

// PatientTurn is one entry in a specialty's wait list: an agent and
// the deadline after which it gives up waiting (spec §4.5.4,
// doctors_queue.hpp's patient_turn).
type PatientTurn struct {
	AgentID agent.ID
	Timeout simclock.DateTime
}

// DoctorEnqueueMsg requests a turn with a specialty.
type DoctorEnqueueMsg struct {
	Specialty string
	Turn      PatientTurn
}

// DoctorDequeueMsg abandons or completes a turn.
type DoctorDequeueMsg struct {
	Specialty string
	AgentID   agent.ID
}

// DoctorFrontEntry pairs a dispatched agent with the doctor location
// it must walk to.
type DoctorFrontEntry struct {
	Specialty string
	AgentID   agent.ID
	Location  geometry.ContinuousCoord
}

// DoctorQueues is the interface shared by the real and proxy doctor
// dispatch managers (spec §4.5.4).
type DoctorQueues interface {
	Enqueue(specialty string, id agent.ID, timeout simclock.DateTime)
	Dequeue(specialty string, id agent.ID)
	IsMyTurn(specialty string, id agent.ID) (geometry.ContinuousCoord, bool)
	Sync() error
}

type doctorFrontKey struct {
	specialty string
	agent     agent.IDKey
}

// DoctorAuthority is the real multi-specialty dispatch manager. Each
// specialty has its own wait list, deadline-ordered after the first D
// "frozen" slots (D = number of doctors of that specialty), matching
// real_doctors.cpp's insert_in_order.
type DoctorAuthority struct {
	transport transport.RankTransport
	locations map[string][]geometry.ContinuousCoord // specialty -> doctor chair locations, in plan order
	queues    map[string][]PatientTurn

	front map[doctorFrontKey]geometry.ContinuousCoord

	localEnqueue []DoctorEnqueueMsg
	localDequeue []DoctorDequeueMsg
}

// NewDoctorAuthority constructs the real doctor dispatch manager.
// locations maps each specialty to the patient-facing chair location
// of every doctor of that specialty, in a fixed order.
func NewDoctorAuthority(t transport.RankTransport, locations map[string][]geometry.ContinuousCoord) *DoctorAuthority {
	return &DoctorAuthority{
		transport: t,
		locations: locations,
		queues:    make(map[string][]PatientTurn),
		front:     make(map[doctorFrontKey]geometry.ContinuousCoord),
	}
}

func (d *DoctorAuthority) Enqueue(specialty string, id agent.ID, timeout simclock.DateTime) {
	d.localEnqueue = append(d.localEnqueue, DoctorEnqueueMsg{Specialty: specialty, Turn: PatientTurn{AgentID: id, Timeout: timeout}})
}

func (d *DoctorAuthority) Dequeue(specialty string, id agent.ID) {
	d.localDequeue = append(d.localDequeue, DoctorDequeueMsg{Specialty: specialty, AgentID: id})
}

func (d *DoctorAuthority) IsMyTurn(specialty string, id agent.ID) (geometry.ContinuousCoord, bool) {
	loc, ok := d.front[doctorFrontKey{specialty: specialty, agent: id.Key()}]
	return loc, ok
}

// Depths reports the current queue length of every specialty, sampled
// once per tick for the resource occupancy gauges.
func (d *DoctorAuthority) Depths() map[string]int {
	out := make(map[string]int, len(d.queues))
	for specialty, q := range d.queues {
		out[specialty] = len(q)
	}
	return out
}

// insertInOrder keeps the first D positions untouched (D = number of
// doctors for specialty, i.e. the agents currently walking to or
// being attended) and inserts turn sorted by ascending Timeout after
// that, exactly as real_doctors.cpp does to avoid disturbing in-flight
// turns.
func (d *DoctorAuthority) insertInOrder(specialty string, turn PatientTurn) {
	queue := d.queues[specialty]
	frontSize := len(d.locations[specialty])
	if frontSize > len(queue) {
		frontSize = len(queue)
	}

	insertAt := len(queue)
	for i := frontSize; i < len(queue); i++ {
		if turn.Timeout.Before(queue[i].Timeout) {
			insertAt = i
			break
		}
	}

	queue = append(queue, PatientTurn{})
	copy(queue[insertAt+1:], queue[insertAt:])
	queue[insertAt] = turn
	d.queues[specialty] = queue
}

func (d *DoctorAuthority) removePatient(specialty string, id agent.ID) {
	queue := d.queues[specialty]
	for i, turn := range queue {
		if turn.AgentID.Equal(id) {
			d.queues[specialty] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// Sync applies every proxy's dequeues before enqueues (spec
// §4.5.5(b)), rebuilds each specialty's front by pairing doctor
// locations with the queue head, and broadcasts it.
func (d *DoctorAuthority) Sync() error {
	remoteEnqueue, err := d.transport.RecvFromProxies(transport.TagDoctors, 0)
	if err != nil {
		return fmt.Errorf("doctor authority: recv enqueues: %w", err)
	}
	remoteDequeue, err := d.transport.RecvFromProxies(transport.TagDoctors, 1)
	if err != nil {
		return fmt.Errorf("doctor authority: recv dequeues: %w", err)
	}

	for _, m := range d.localDequeue {
		d.removePatient(m.Specialty, m.AgentID)
	}
	d.localDequeue = nil
	for _, rank := range sortedRanks(remoteDequeue) {
		msgs, _ := remoteDequeue[rank].Payload.([]DoctorDequeueMsg)
		for _, m := range msgs {
			d.removePatient(m.Specialty, m.AgentID)
		}
	}

	for _, m := range d.localEnqueue {
		d.insertInOrder(m.Specialty, m.Turn)
	}
	d.localEnqueue = nil
	for _, rank := range sortedRanks(remoteEnqueue) {
		msgs, _ := remoteEnqueue[rank].Payload.([]DoctorEnqueueMsg)
		for _, m := range msgs {
			d.insertInOrder(m.Specialty, m.Turn)
		}
	}

	d.front = make(map[doctorFrontKey]geometry.ContinuousCoord)
	frontList := make([]DoctorFrontEntry, 0)
	for specialty, locs := range d.locations {
		queue := d.queues[specialty]
		for i := 0; i < len(locs) && i < len(queue); i++ {
			id := queue[i].AgentID
			loc := locs[i]
			d.front[doctorFrontKey{specialty: specialty, agent: id.Key()}] = loc
			frontList = append(frontList, DoctorFrontEntry{Specialty: specialty, AgentID: id, Location: loc})
		}
	}

	return d.transport.Broadcast(transport.TagDoctors, transport.Envelope{Sub: 2, Payload: frontList})
}

// DoctorProxy buffers enqueue/dequeue calls for the doctor dispatch
// authority, the same shape as ChairProxy and QueueProxy.
type DoctorProxy struct {
	transport transport.RankTransport

	enqueueBuffer []DoctorEnqueueMsg
	dequeueBuffer []DoctorDequeueMsg
	front         map[doctorFrontKey]geometry.ContinuousCoord
}

// NewDoctorProxy constructs a proxy doctor dispatch manager.
func NewDoctorProxy(t transport.RankTransport) *DoctorProxy {
	return &DoctorProxy{transport: t, front: make(map[doctorFrontKey]geometry.ContinuousCoord)}
}

func (d *DoctorProxy) Enqueue(specialty string, id agent.ID, timeout simclock.DateTime) {
	d.enqueueBuffer = append(d.enqueueBuffer, DoctorEnqueueMsg{Specialty: specialty, Turn: PatientTurn{AgentID: id, Timeout: timeout}})
}

func (d *DoctorProxy) Dequeue(specialty string, id agent.ID) {
	d.dequeueBuffer = append(d.dequeueBuffer, DoctorDequeueMsg{Specialty: specialty, AgentID: id})
}

func (d *DoctorProxy) IsMyTurn(specialty string, id agent.ID) (geometry.ContinuousCoord, bool) {
	loc, ok := d.front[doctorFrontKey{specialty: specialty, agent: id.Key()}]
	return loc, ok
}

func (d *DoctorProxy) Sync() error {
	if err := d.transport.SendToAuthority(transport.TagDoctors, transport.Envelope{Sub: 0, Payload: d.enqueueBuffer}); err != nil {
		return fmt.Errorf("doctor proxy: send enqueues: %w", err)
	}
	d.enqueueBuffer = nil
	if err := d.transport.SendToAuthority(transport.TagDoctors, transport.Envelope{Sub: 1, Payload: d.dequeueBuffer}); err != nil {
		return fmt.Errorf("doctor proxy: send dequeues: %w", err)
	}
	d.dequeueBuffer = nil

	env, err := d.transport.RecvResponse(transport.TagDoctors)
	if err != nil {
		return fmt.Errorf("doctor proxy: recv front: %w", err)
	}
	frontList, _ := env.Payload.([]DoctorFrontEntry)
	front := make(map[doctorFrontKey]geometry.ContinuousCoord, len(frontList))
	for _, e := range frontList {
		front[doctorFrontKey{specialty: e.Specialty, agent: e.AgentID.Key()}] = e.Location
	}
	d.front = front
	return nil
}

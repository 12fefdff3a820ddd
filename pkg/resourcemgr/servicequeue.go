package resourcemgr

import (
	"fmt"

	"github.com/sti-hpc/hospicon/pkg/agent"
	"github.com/sti-hpc/hospicon/pkg/geometry"
	"github.com/sti-hpc/hospicon/pkg/transport"
)

// QueueEnqueueMsg adds an agent to the back of a service queue
// (reception or triage, spec §4.5.2/§4.5.3).
type QueueEnqueueMsg struct {
	AgentID agent.ID
}

// QueueDequeueMsg removes an agent from a service queue, used once it
// has been attended or has abandoned its place.
type QueueDequeueMsg struct {
	AgentID agent.ID
}

// QueueFrontEntry pairs a waiting agent with the box/desk location it
// has been assigned.
type QueueFrontEntry struct {
	AgentID  agent.ID
	Location geometry.ContinuousCoord
}

// ServiceQueue is the interface shared by reception and triage, both
// of which are a plain FIFO dispatched against a fixed set of boxes
// (spec §4.5.2, §4.5.3).
type ServiceQueue interface {
	Enqueue(id agent.ID)
	Dequeue(id agent.ID)
	IsMyTurn(id agent.ID) (geometry.ContinuousCoord, bool)
	Sync() error
}

// QueueAuthority is the real FIFO owner for reception or triage. Like
// ChairAuthority, it buffers its own rank's calls identically to a
// proxy's so the same dequeue-before-enqueue ordering applies uniformly.
type QueueAuthority struct {
	transport transport.RankTransport
	tag       transport.Tag
	boxes     []geometry.ContinuousCoord

	queue []agent.ID
	front map[agent.IDKey]geometry.ContinuousCoord

	localEnqueue []QueueEnqueueMsg
	localDequeue []QueueDequeueMsg
}

// NewQueueAuthority constructs a real queue manager serving boxes
// locations (grounded on queue_manager.hpp's "boxes" vector).
func NewQueueAuthority(t transport.RankTransport, tag transport.Tag, boxes []geometry.ContinuousCoord) *QueueAuthority {
	return &QueueAuthority{
		transport: t,
		tag:       tag,
		boxes:     boxes,
		front:     make(map[agent.IDKey]geometry.ContinuousCoord),
	}
}

func (q *QueueAuthority) Enqueue(id agent.ID) {
	q.localEnqueue = append(q.localEnqueue, QueueEnqueueMsg{AgentID: id})
}

func (q *QueueAuthority) Dequeue(id agent.ID) {
	q.localDequeue = append(q.localDequeue, QueueDequeueMsg{AgentID: id})
}

func (q *QueueAuthority) IsMyTurn(id agent.ID) (geometry.ContinuousCoord, bool) {
	loc, ok := q.front[id.Key()]
	return loc, ok
}

// Depth reports the number of patients in the queue, including those
// at the front that hold a box but have not been dequeued yet,
// sampled once per tick for the resource occupancy gauges.
func (q *QueueAuthority) Depth() int {
	return len(q.queue)
}

func (q *QueueAuthority) applyEnqueue(id agent.ID) {
	q.queue = append(q.queue, id)
}

func (q *QueueAuthority) applyDequeue(id agent.ID) {
	for i, queued := range q.queue {
		if queued.Equal(id) {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
}

// Sync implements the authority side of the reception/triage barrier
// protocol: receive every proxy's enqueues (sub 0) then dequeues (sub
// 1), apply dequeues before enqueues (spec §4.5.5(b)), rebuild the
// front by pairing boxes with the queue head, then broadcast it to
// every proxy.
func (q *QueueAuthority) Sync() error {
	remoteEnqueue, err := q.transport.RecvFromProxies(q.tag, 0)
	if err != nil {
		return fmt.Errorf("queue authority %s: recv enqueues: %w", q.tag, err)
	}
	remoteDequeue, err := q.transport.RecvFromProxies(q.tag, 1)
	if err != nil {
		return fmt.Errorf("queue authority %s: recv dequeues: %w", q.tag, err)
	}

	for _, m := range q.localDequeue {
		q.applyDequeue(m.AgentID)
	}
	q.localDequeue = nil
	for _, rank := range sortedRanks(remoteDequeue) {
		msgs, _ := remoteDequeue[rank].Payload.([]QueueDequeueMsg)
		for _, m := range msgs {
			q.applyDequeue(m.AgentID)
		}
	}

	for _, m := range q.localEnqueue {
		q.applyEnqueue(m.AgentID)
	}
	q.localEnqueue = nil
	for _, rank := range sortedRanks(remoteEnqueue) {
		msgs, _ := remoteEnqueue[rank].Payload.([]QueueEnqueueMsg)
		for _, m := range msgs {
			q.applyEnqueue(m.AgentID)
		}
	}

	q.front = make(map[agent.IDKey]geometry.ContinuousCoord, len(q.boxes))
	frontList := make([]QueueFrontEntry, 0, len(q.boxes))
	for i := 0; i < len(q.boxes) && i < len(q.queue); i++ {
		id := q.queue[i]
		box := q.boxes[i]
		q.front[id.Key()] = box
		frontList = append(frontList, QueueFrontEntry{AgentID: id, Location: box})
	}

	return q.transport.Broadcast(q.tag, transport.Envelope{Sub: 2, Payload: frontList})
}

// QueueProxy mirrors ChairProxy's buffering shape for reception/triage.
type QueueProxy struct {
	transport transport.RankTransport
	tag       transport.Tag

	enqueueBuffer []QueueEnqueueMsg
	dequeueBuffer []QueueDequeueMsg
	front         map[agent.IDKey]geometry.ContinuousCoord
}

// NewQueueProxy constructs a proxy queue manager for tag.
func NewQueueProxy(t transport.RankTransport, tag transport.Tag) *QueueProxy {
	return &QueueProxy{transport: t, tag: tag, front: make(map[agent.IDKey]geometry.ContinuousCoord)}
}

func (q *QueueProxy) Enqueue(id agent.ID) {
	q.enqueueBuffer = append(q.enqueueBuffer, QueueEnqueueMsg{AgentID: id})
}

func (q *QueueProxy) Dequeue(id agent.ID) {
	q.dequeueBuffer = append(q.dequeueBuffer, QueueDequeueMsg{AgentID: id})
}

func (q *QueueProxy) IsMyTurn(id agent.ID) (geometry.ContinuousCoord, bool) {
	loc, ok := q.front[id.Key()]
	return loc, ok
}

func (q *QueueProxy) Sync() error {
	if err := q.transport.SendToAuthority(q.tag, transport.Envelope{Sub: 0, Payload: q.enqueueBuffer}); err != nil {
		return fmt.Errorf("queue proxy %s: send enqueues: %w", q.tag, err)
	}
	q.enqueueBuffer = nil
	if err := q.transport.SendToAuthority(q.tag, transport.Envelope{Sub: 1, Payload: q.dequeueBuffer}); err != nil {
		return fmt.Errorf("queue proxy %s: send dequeues: %w", q.tag, err)
	}
	q.dequeueBuffer = nil

	env, err := q.transport.RecvResponse(q.tag)
	if err != nil {
		return fmt.Errorf("queue proxy %s: recv front: %w", q.tag, err)
	}
	frontList, _ := env.Payload.([]QueueFrontEntry)
	front := make(map[agent.IDKey]geometry.ContinuousCoord, len(frontList))
	for _, e := range frontList {
		front[e.AgentID.Key()] = e.Location
	}
	q.front = front
	return nil
}

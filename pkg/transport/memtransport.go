package transport

import "fmt"

// Hub is the shared in-memory switchboard backing every rank's
// in-process transport handle. It is the default (no build tag)
// implementation, used for single-binary multi-rank runs and all
// tests, grounded on the teacher's pkg/pubsub channel/subscription
// idiom: one buffered channel per (tag, sub-conversation, rank) pair
// instead of a topic map, since the conversation shape here is fixed
// and known upfront rather than dynamic.
type Hub struct {
	rankCount int
	reqCh     map[Tag][]chan Envelope // sub 0: proxy -> authority requests/enqueues
	relCh     map[Tag][]chan Envelope // sub 1: proxy -> authority releases/dequeues
	respCh    map[Tag][]chan Envelope // sub 2: authority -> proxy responses/broadcasts
}

// tags hospicon's five resource managers use.
var allTags = []Tag{TagChairs, TagReception, TagTriage, TagDoctors, TagICU}

// NewHub builds a Hub sized for rankCount ranks. bufferSize bounds
// how many ticks a slow receiver may lag before SendToAuthority /
// Broadcast block; in a correct lock-step simulation this never
// exceeds 1.
func NewHub(rankCount, bufferSize int) *Hub {
	h := &Hub{
		rankCount: rankCount,
		reqCh:     make(map[Tag][]chan Envelope),
		relCh:     make(map[Tag][]chan Envelope),
		respCh:    make(map[Tag][]chan Envelope),
	}
	for _, tag := range allTags {
		h.reqCh[tag] = make([]chan Envelope, rankCount)
		h.relCh[tag] = make([]chan Envelope, rankCount)
		h.respCh[tag] = make([]chan Envelope, rankCount)
		for r := 0; r < rankCount; r++ {
			h.reqCh[tag][r] = make(chan Envelope, bufferSize)
			h.relCh[tag][r] = make(chan Envelope, bufferSize)
			h.respCh[tag][r] = make(chan Envelope, bufferSize)
		}
	}
	return h
}

// For binds a RankTransport handle for one rank to this Hub.
func (h *Hub) For(rank int32) RankTransport {
	return &memTransport{hub: h, rank: rank}
}

type memTransport struct {
	hub  *Hub
	rank int32
}

func (t *memTransport) LocalRank() int32 { return t.rank }

func (t *memTransport) SendToAuthority(tag Tag, env Envelope) error {
	switch env.Sub {
	case 0:
		t.hub.reqCh[tag][t.rank] <- env
	case 1:
		t.hub.relCh[tag][t.rank] <- env
	default:
		return fmt.Errorf("transport: unexpected sub %d for SendToAuthority", env.Sub)
	}
	return nil
}

func (t *memTransport) RecvFromProxies(tag Tag, sub int) (map[int32]Envelope, error) {
	out := make(map[int32]Envelope, t.hub.rankCount-1)
	var channels []chan Envelope
	switch sub {
	case 0:
		channels = t.hub.reqCh[tag]
	case 1:
		channels = t.hub.relCh[tag]
	default:
		return nil, fmt.Errorf("transport: unexpected sub %d for RecvFromProxies", sub)
	}
	for rank := int32(0); int(rank) < t.hub.rankCount; rank++ {
		if rank == t.rank {
			continue
		}
		out[rank] = <-channels[rank]
	}
	return out, nil
}

func (t *memTransport) SendResponse(tag Tag, destRank int32, env Envelope) error {
	t.hub.respCh[tag][destRank] <- env
	return nil
}

func (t *memTransport) Broadcast(tag Tag, env Envelope) error {
	for rank := int32(0); int(rank) < t.hub.rankCount; rank++ {
		if rank == t.rank {
			continue
		}
		t.hub.respCh[tag][rank] <- env
	}
	return nil
}

func (t *memTransport) RecvResponse(tag Tag) (Envelope, error) {
	return <-t.hub.respCh[tag][t.rank], nil
}

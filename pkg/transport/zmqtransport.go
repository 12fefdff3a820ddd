//go:build zmq
// +build zmq

package transport

import (
	"encoding/gob"
	"bytes"
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// Endpoints maps every rank to the ZeroMQ endpoint it listens on, e.g.
// {0: "tcp://10.0.0.1:5700", 1: "tcp://10.0.0.2:5700", ...}. Every
// rank binds one ROUTER socket at its own endpoint and connects one
// DEALER socket to every other rank it talks to, grounded on the
// teacher's zmq_primary.go / zmq_replica.go PUB/PULL/ROUTER split —
// simplified here to a single ROUTER per rank carrying all five
// managers' traffic, since the resource-manager message volume is far
// below a graph database's WAL stream.
type Endpoints map[int32]string

// ZMQTransport is the `zmq` build-tag RankTransport backend.
type ZMQTransport struct {
	rank      int32
	endpoints Endpoints

	mu      sync.Mutex
	router  *zmq.Socket
	dealers map[int32]*zmq.Socket

	pending map[string][]wireMsg // keyed by "tag|sub", buffered until RecvFromProxies/RecvResponse drains it

	authorityRanks map[Tag]int32
}

type wireMsg struct {
	from    int32
	payload []byte
}

type wireEnvelope struct {
	Sub     int
	Payload any
}

// NewZMQTransport binds rank's ROUTER socket and connects DEALER
// sockets to every other known rank.
func NewZMQTransport(rank int32, endpoints Endpoints) (*ZMQTransport, error) {
	router, err := zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		return nil, fmt.Errorf("zmq transport: new router: %w", err)
	}
	if err := router.SetIdentity(fmt.Sprintf("rank-%d", rank)); err != nil {
		return nil, fmt.Errorf("zmq transport: set identity: %w", err)
	}
	addr, ok := endpoints[rank]
	if !ok {
		return nil, fmt.Errorf("zmq transport: no endpoint configured for rank %d", rank)
	}
	if err := router.Bind(addr); err != nil {
		return nil, fmt.Errorf("zmq transport: bind %s: %w", addr, err)
	}

	t := &ZMQTransport{
		rank:      rank,
		endpoints: endpoints,
		router:    router,
		dealers:   make(map[int32]*zmq.Socket),
		pending:   make(map[string][]wireMsg),
	}

	for r, ep := range endpoints {
		if r == rank {
			continue
		}
		dealer, err := zmq.NewSocket(zmq.DEALER)
		if err != nil {
			return nil, fmt.Errorf("zmq transport: new dealer: %w", err)
		}
		if err := dealer.SetIdentity(fmt.Sprintf("rank-%d", rank)); err != nil {
			return nil, fmt.Errorf("zmq transport: set dealer identity: %w", err)
		}
		if err := dealer.Connect(ep); err != nil {
			return nil, fmt.Errorf("zmq transport: connect %s: %w", ep, err)
		}
		t.dealers[r] = dealer
	}
	return t, nil
}

// Close tears down every socket owned by this transport.
func (t *ZMQTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, d := range t.dealers {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.router.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (t *ZMQTransport) LocalRank() int32 { return t.rank }

func encodeEnvelope(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireEnvelope{Sub: env.Sub, Payload: env.Payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return Envelope{}, err
	}
	return Envelope{Sub: w.Sub, Payload: w.Payload}, nil
}

func (t *ZMQTransport) SendToAuthority(tag Tag, env Envelope) error {
	return t.sendTo(t.authorityForTag(tag), tag, env)
}

func (t *ZMQTransport) SendResponse(tag Tag, destRank int32, env Envelope) error {
	return t.sendTo(destRank, tag, env)
}

func (t *ZMQTransport) Broadcast(tag Tag, env Envelope) error {
	for r := range t.dealers {
		if err := t.sendTo(r, tag, env); err != nil {
			return err
		}
	}
	return nil
}

func (t *ZMQTransport) sendTo(dest int32, tag Tag, env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	dealer, ok := t.dealers[dest]
	if !ok {
		return fmt.Errorf("zmq transport: no dealer for rank %d", dest)
	}
	payload, err := encodeEnvelope(env)
	if err != nil {
		return fmt.Errorf("zmq transport: encode: %w", err)
	}
	if _, err := dealer.SendMessage(string(tag), env.Sub, payload); err != nil {
		return fmt.Errorf("zmq transport: send: %w", err)
	}
	return nil
}

// authorityForTag is resolved by the caller's manager construction,
// not the transport; ranks that never act as proxy for a given
// manager never call SendToAuthority for that tag, so this is always
// configured by the higher-level resourcemgr wiring.
func (t *ZMQTransport) authorityForTag(tag Tag) int32 {
	r, ok := t.authorityRanks[tag]
	if !ok {
		panic(fmt.Sprintf("zmq transport: no authority configured for tag %s", tag))
	}
	return r
}

// SetAuthorityRanks records which rank is authoritative for each
// manager tag, so SendToAuthority knows where to route.
func (t *ZMQTransport) SetAuthorityRanks(ranks map[Tag]int32) {
	t.authorityRanks = ranks
}

func (t *ZMQTransport) recvOne() error {
	frames, err := t.router.RecvMessage(0)
	if err != nil {
		return err
	}
	if len(frames) < 4 {
		return fmt.Errorf("zmq transport: malformed frame")
	}
	identity, tagStr, subStr, payload := frames[0], frames[1], frames[2], frames[3]
	_ = identity
	env, err := decodeEnvelope([]byte(payload))
	if err != nil {
		return err
	}
	_ = subStr
	key := fmt.Sprintf("%s|%d", tagStr, env.Sub)
	from := rankFromIdentity(identity)
	t.mu.Lock()
	t.pending[key] = append(t.pending[key], wireMsg{from: from, payload: []byte(payload)})
	t.mu.Unlock()
	return nil
}

func rankFromIdentity(identity string) int32 {
	var r int32
	fmt.Sscanf(identity, "rank-%d", &r)
	return r
}

func (t *ZMQTransport) RecvFromProxies(tag Tag, sub int) (map[int32]Envelope, error) {
	expected := len(t.dealers)
	out := make(map[int32]Envelope, expected)
	key := fmt.Sprintf("%s|%d", tag, sub)
	for len(out) < expected {
		t.mu.Lock()
		buffered := t.pending[key]
		t.pending[key] = nil
		t.mu.Unlock()
		for _, m := range buffered {
			env, err := decodeEnvelope(m.payload)
			if err != nil {
				return nil, err
			}
			out[m.from] = env
		}
		if len(out) < expected {
			if err := t.recvOne(); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (t *ZMQTransport) RecvResponse(tag Tag) (Envelope, error) {
	key := fmt.Sprintf("%s|2", tag)
	for {
		t.mu.Lock()
		buffered := t.pending[key]
		if len(buffered) > 0 {
			t.pending[key] = buffered[1:]
		}
		t.mu.Unlock()
		if len(buffered) > 0 {
			return decodeEnvelope(buffered[0].payload)
		}
		if err := t.recvOne(); err != nil {
			return Envelope{}, err
		}
	}
}

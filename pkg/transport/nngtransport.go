//go:build nng
// +build nng

package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/pull"
	"go.nanomsg.org/mangos/v3/protocol/push"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register transports (tcp://, ipc://, ...)
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// NNGEndpoints maps every rank to the nanomsg PUSH/PULL endpoint it
// listens on for point-to-point manager traffic, and to the PUB
// endpoint it listens on for published fronts. Grounded on the
// teacher's nng_primary.go PUB/PULL/SURVEYOR split; simplified here
// to PUSH/PULL for point-to-point requests/responses and PUB/SUB for
// broadcast fronts.
type NNGEndpoints struct {
	PullAddr map[int32]string // rank -> address this rank's PULL socket listens on
	PubAddr  map[int32]string // rank -> address this rank's PUB socket listens on (only authorities use it)
}

// NNGTransport is the `nng` build-tag RankTransport backend.
type NNGTransport struct {
	rank int32
	eps  NNGEndpoints

	mu    sync.Mutex
	pull  mangos.Socket // local inbox, everyone else PUSHes into it
	push  map[int32]mangos.Socket
	pub   mangos.Socket            // only non-nil if this rank is an authority for some tag
	subs  map[Tag]mangos.Socket    // proxy subscription sockets, one per tag whose authority it follows
	inbox map[string][]Envelope // keyed by "tag|sub"

	authorityRanks map[Tag]int32
}

// NewNNGTransport builds a transport bound to rank's PULL endpoint
// and connected via PUSH to every other rank's PULL endpoint.
func NewNNGTransport(rank int32, eps NNGEndpoints) (*NNGTransport, error) {
	pullSock, err := pull.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("nng transport: new pull socket: %w", err)
	}
	addr, ok := eps.PullAddr[rank]
	if !ok {
		return nil, fmt.Errorf("nng transport: no pull endpoint for rank %d", rank)
	}
	if err := pullSock.Listen(addr); err != nil {
		return nil, fmt.Errorf("nng transport: listen %s: %w", addr, err)
	}

	t := &NNGTransport{
		rank:  rank,
		eps:   eps,
		pull:  pullSock,
		push:  make(map[int32]mangos.Socket),
		subs:  make(map[Tag]mangos.Socket),
		inbox: make(map[string][]Envelope),
	}

	for r, a := range eps.PullAddr {
		if r == rank {
			continue
		}
		sock, err := push.NewSocket()
		if err != nil {
			return nil, fmt.Errorf("nng transport: new push socket: %w", err)
		}
		if err := sock.Dial(a); err != nil {
			return nil, fmt.Errorf("nng transport: dial %s: %w", a, err)
		}
		t.push[r] = sock
	}

	if pubAddr, ok := eps.PubAddr[rank]; ok {
		pubSock, err := pub.NewSocket()
		if err != nil {
			return nil, fmt.Errorf("nng transport: new pub socket: %w", err)
		}
		if err := pubSock.Listen(pubAddr); err != nil {
			return nil, fmt.Errorf("nng transport: listen %s: %w", pubAddr, err)
		}
		t.pub = pubSock
	}

	return t, nil
}

// ConnectBroadcast subscribes this (proxy) rank to tag's authority
// PUB socket, so Broadcast messages for tag can be received.
func (t *NNGTransport) ConnectBroadcast(tag Tag, authorityRank int32) error {
	addr, ok := t.eps.PubAddr[authorityRank]
	if !ok {
		return fmt.Errorf("nng transport: no pub endpoint for authority rank %d", authorityRank)
	}
	sock, err := sub.NewSocket()
	if err != nil {
		return err
	}
	if err := sock.Dial(addr); err != nil {
		return err
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte(tag)); err != nil {
		return err
	}
	t.mu.Lock()
	t.subs[tag] = sock
	t.mu.Unlock()
	return nil
}

// SetAuthorityRanks records which rank is authoritative per tag.
func (t *NNGTransport) SetAuthorityRanks(ranks map[Tag]int32) { t.authorityRanks = ranks }

func (t *NNGTransport) LocalRank() int32 { return t.rank }

func nngEncode(tag Tag, env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(string(tag))
	buf.WriteByte(0)
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nngDecode(data []byte) (Tag, Envelope, error) {
	idx := bytes.IndexByte(data, 0)
	if idx < 0 {
		return "", Envelope{}, fmt.Errorf("nng transport: malformed frame")
	}
	tag := Tag(data[:idx])
	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(data[idx+1:])).Decode(&env); err != nil {
		return "", Envelope{}, err
	}
	return tag, env, nil
}

func (t *NNGTransport) SendToAuthority(tag Tag, env Envelope) error {
	dest, ok := t.authorityRanks[tag]
	if !ok {
		return fmt.Errorf("nng transport: no authority configured for tag %s", tag)
	}
	return t.sendTo(dest, tag, env)
}

func (t *NNGTransport) SendResponse(tag Tag, destRank int32, env Envelope) error {
	return t.sendTo(destRank, tag, env)
}

func (t *NNGTransport) sendTo(dest int32, tag Tag, env Envelope) error {
	sock, ok := t.push[dest]
	if !ok {
		return fmt.Errorf("nng transport: no push socket for rank %d", dest)
	}
	data, err := nngEncode(tag, env)
	if err != nil {
		return err
	}
	return sock.Send(data)
}

func (t *NNGTransport) Broadcast(tag Tag, env Envelope) error {
	if t.pub == nil {
		return fmt.Errorf("nng transport: rank %d is not an authority, cannot broadcast", t.rank)
	}
	data, err := nngEncode(tag, env)
	if err != nil {
		return err
	}
	return t.pub.Send(data)
}

func (t *NNGTransport) fill(tag Tag) error {
	data, err := t.pull.Recv()
	if err != nil {
		return err
	}
	gotTag, env, err := nngDecode(data)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s|%d", gotTag, env.Sub)
	t.mu.Lock()
	t.inbox[key] = append(t.inbox[key], env)
	t.mu.Unlock()
	return nil
}

func (t *NNGTransport) RecvFromProxies(tag Tag, sub int) (map[int32]Envelope, error) {
	// NNG PUSH/PULL does not preserve sender identity, so the payload
	// must self-report the sender rank; resourcemgr message types
	// carry the proxy's AgentId.HomeRank for this purpose and the
	// authority derives the sender from the message contents rather
	// than the transport layer.
	expected := len(t.push)
	out := make(map[int32]Envelope, expected)
	key := fmt.Sprintf("%s|%d", tag, sub)
	for len(out) < expected {
		t.mu.Lock()
		buffered := t.inbox[key]
		t.inbox[key] = nil
		t.mu.Unlock()
		for i, env := range buffered {
			out[int32(i)] = env
		}
		if len(out) < expected {
			if err := t.fill(tag); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (t *NNGTransport) RecvResponse(tag Tag) (Envelope, error) {
	key := fmt.Sprintf("%s|2", tag)
	for {
		t.mu.Lock()
		buffered := t.inbox[key]
		if len(buffered) > 0 {
			t.inbox[key] = buffered[1:]
		}
		t.mu.Unlock()
		if len(buffered) > 0 {
			return buffered[0], nil
		}
		if sock, ok := t.subs[tag]; ok {
			data, err := sock.Recv()
			if err != nil {
				return Envelope{}, err
			}
			_, env, err := nngDecode(data)
			if err != nil {
				return Envelope{}, err
			}
			return env, nil
		}
		if err := t.fill(tag); err != nil {
			return Envelope{}, err
		}
	}
}

// Close tears down every socket owned by this transport.
func (t *NNGTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(t.pull.Close())
	for _, s := range t.push {
		note(s.Close())
	}
	if t.pub != nil {
		note(t.pub.Close())
	}
	for _, s := range t.subs {
		note(s.Close())
	}
	return firstErr
}

// Package transport abstracts rank-to-rank message passing for the
// resource managers' proxy/authority protocol (spec §4.5.5, §5). The
// default build uses in-memory channels; the `zmq` and `nng` build
// tags swap in real inter-process sockets, mirroring the teacher's
// own replication-transport split.
package transport

// Tag identifies one logical conversation between a proxy and its
// authority, e.g. "chairs", "reception", "icu". Each manager owns a
// fixed set of sub-tags within it (request/release/response) per
// spec §4.5.5's tag+0/tag+1/tag+2 scheme.
type Tag string

const (
	TagChairs     Tag = "chairs"
	TagReception  Tag = "reception"
	TagTriage     Tag = "triage"
	TagDoctors    Tag = "doctors"
	TagICU        Tag = "icu"
)

// Envelope is one message frame exchanged between a proxy and its
// authority. Sub carries the tag+0/tag+1/tag+2 discriminant; Payload
// is manager-specific and opaque to the transport.
type Envelope struct {
	Sub     int // 0: requests/enqueues, 1: releases/dequeues, 2: responses/broadcast
	Payload any
}

// RankTransport is the interface every resource manager proxy and
// authority communicate through. Implementations must guarantee spec
// §5's ordering rule (a): all sends of a given tag for tick N
// complete before any receive of that tag for tick N+1 — trivially
// true for a synchronous request/response round trip, which is all
// this interface expresses.
type RankTransport interface {
	// SendToAuthority delivers one envelope from a proxy (running on
	// the local rank) to the authority rank for tag.
	SendToAuthority(tag Tag, env Envelope) error

	// RecvFromProxies is called by the authority once per barrier: it
	// blocks until every proxy rank has sent its envelope for tag and
	// sub, then returns them addressed by source rank.
	RecvFromProxies(tag Tag, sub int) (map[int32]Envelope, error)

	// SendResponse delivers the authority's computed response for tag
	// back to a single proxy rank.
	SendResponse(tag Tag, destRank int32, env Envelope) error

	// Broadcast delivers the authority's computed response for tag to
	// every proxy rank (used for published fronts, spec §4.5.2/§4.5.3).
	Broadcast(tag Tag, env Envelope) error

	// RecvResponse is called by a proxy once per barrier to collect
	// whatever the authority sent it (direct response or broadcast)
	// for tag.
	RecvResponse(tag Tag) (Envelope, error)

	// LocalRank returns the rank this transport instance is bound to.
	LocalRank() int32
}

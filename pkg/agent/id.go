// Package agent defines hospicon's agent identity and the tagged-sum
// agent interface shared by patients, fixed staff, and objects
// (spec §3 "Agents", spec §9 "Polymorphic contagious_agent").
package agent

import "fmt"

// Kind discriminates the three agent tags. There is no dynamic-type
// interrogation beyond this single discriminant (spec §9).
type Kind uint8

const (
	KindPatient Kind = iota
	KindFixedPerson
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindPatient:
		return "patient"
	case KindFixedPerson:
		return "fixed_person"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// ID identifies an agent uniquely for its whole lifetime. Two ids are
// equal iff LocalID, HomeRank and Kind match; CurrentRank tracks
// whichever process currently owns the agent and does not
// participate in identity comparison (spec §3).
type ID struct {
	LocalID     uint32
	HomeRank    int32
	Kind        Kind
	CurrentRank int32
}

// Equal reports identity equality, ignoring CurrentRank.
func (a ID) Equal(b ID) bool {
	return a.LocalID == b.LocalID && a.HomeRank == b.HomeRank && a.Kind == b.Kind
}

// Key returns a value usable as a map key for identity-based lookups,
// deliberately excluding CurrentRank.
func (a ID) Key() IDKey {
	return IDKey{LocalID: a.LocalID, HomeRank: a.HomeRank, Kind: a.Kind}
}

// IDKey is the comparable identity-only projection of ID, safe to use
// as a Go map key (ID itself is also comparable, but Key makes the
// CurrentRank exclusion explicit at call sites).
type IDKey struct {
	LocalID  uint32
	HomeRank int32
	Kind     Kind
}

func (a ID) String() string {
	return fmt.Sprintf("%s#%d@home=%d,cur=%d", a.Kind, a.LocalID, a.HomeRank, a.CurrentRank)
}

// Factory mints sequential local ids for agents created on one
// process (the entry source and the startup fixture loader each own
// one Factory instance).
type Factory struct {
	homeRank int32
	next     uint32
}

// NewFactory builds an ID factory for agents homed on homeRank.
func NewFactory(homeRank int32) *Factory {
	return &Factory{homeRank: homeRank}
}

// New mints the next sequential ID of the given kind, currently owned
// by the factory's home rank.
func (f *Factory) New(kind Kind) ID {
	f.next++
	return ID{LocalID: f.next, HomeRank: f.homeRank, Kind: kind, CurrentRank: f.homeRank}
}

// Package rng provides the per-rank seeded random source hospicon
// requires for cross-tick determinism (spec §4.9: "a per-rank seeded
// RNG stream not shared across ranks").
package rng

import "math/rand"

// Stream is a single process's private RNG. It must never be shared
// between ranks: two ranks seeded identically but run independently
// would otherwise desynchronize from real MPI-ordering effects, and
// sharing a single *rand.Rand between ranks would make the "per
// process" substitutability explicit in the data model meaningless.
type Stream struct {
	r *rand.Rand
}

// New builds a Stream seeded deterministically from a base seed and
// the owning rank, so distinct ranks draw from distinct but
// reproducible sequences.
func New(baseSeed int64, rank int) *Stream {
	seed := baseSeed + int64(rank)*1_000_003 // large odd stride avoids adjacent-rank correlation
	return &Stream{r: rand.New(rand.NewSource(seed))}
}

// Float64 draws a uniform value in [0,1).
func (s *Stream) Float64() float64 { return s.r.Float64() }

// UniformSeconds draws a uniform integer number of seconds in [min,max].
func (s *Stream) UniformSeconds(min, max uint64) uint64 {
	if max <= min {
		return min
	}
	span := max - min + 1
	return min + uint64(s.r.Int63n(int64(span)))
}

// Bernoulli draws a boolean that is true with probability p.
func (s *Stream) Bernoulli(p float64) bool {
	return p > s.r.Float64()
}

// WeightedPick draws an index into weights proportional to each
// weight, where weights are assumed to sum to (approximately) 1.
func (s *Stream) WeightedPick(weights []float64) int {
	u := s.r.Float64()
	var acc float64
	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}
	return len(weights) - 1
}

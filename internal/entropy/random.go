// Package entropy provides deterministic random streams.
// Every stream is a pure function of (seed, salts), so a simulation resumed
// from a snapshot draws the same numbers it would have drawn uninterrupted.
package entropy

import "math/rand"

// Source derives independent streams from one run seed.
type Source struct {
	seed int64
}

// New creates a Source for the given run seed.
func New(seed int64) *Source {
	return &Source{seed: seed}
}

// Seed returns the run seed.
func (s *Source) Seed() int64 {
	return s.seed
}

// Stream returns a generator keyed by the salts, e.g. (agent id, tick).
func (s *Source) Stream(salts ...uint64) *rand.Rand {
	return rand.New(newSplitMix(Mix(s.seed, salts...)))
}

// Mix folds salts into seed with the splitmix64 finalizer.
func Mix(seed int64, salts ...uint64) uint64 {
	h := uint64(seed) ^ 0x9e3779b97f4a7c15
	h = fmix(h)
	for _, salt := range salts {
		h = fmix(h ^ (salt + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)))
	}
	return h
}

func fmix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// splitMix is a small-state rand.Source64; cheap enough to build per tick.
type splitMix struct {
	state uint64
}

func newSplitMix(seed uint64) *splitMix {
	return &splitMix{state: seed}
}

func (s *splitMix) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	return fmix(s.state)
}

func (s *splitMix) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

func (s *splitMix) Seed(seed int64) {
	s.state = uint64(seed)
}

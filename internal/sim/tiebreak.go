package sim

import "math/rand/v2"

// TieBreaker yields the keys used to order candidates with equal scores.
// One generator is created per run, seeded once, and consumed in pool order.
type TieBreaker interface {
	Next() uint64
}

// TieBreakerFactory creates the generator for a run from its seed.
type TieBreakerFactory func(seed int64) TieBreaker

// pcgTieBreaker wraps a PCG source; the algorithm is fixed by math/rand/v2
// so the sequence is identical on every host.
type pcgTieBreaker struct {
	rng *rand.Rand
}

// NewSeededTieBreaker returns the default deterministic generator.
func NewSeededTieBreaker(seed int64) TieBreaker {
	s := uint64(seed)
	return &pcgTieBreaker{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (t *pcgTieBreaker) Next() uint64 {
	return t.rng.Uint64()
}

package collab

import "math/rand"

// SystemRand wraps a seeded math/rand.Rand as a Rand. It is not safe for
// concurrent use; the gossip core only touches it from its single
// executor goroutine.
type SystemRand struct {
	r *rand.Rand
}

// NewSystemRand returns a Rand seeded with seed. Tests pass a fixed seed
// for reproducibility; production callers seed from time or crypto/rand.
func NewSystemRand(seed int64) *SystemRand {
	return &SystemRand{r: rand.New(rand.NewSource(seed))}
}

func (s *SystemRand) Shuffle(n int, swap func(i, j int)) { s.r.Shuffle(n, swap) }
func (s *SystemRand) Intn(n int) int                     { return s.r.Intn(n) }

package vm

import (
	"math/rand"
	"time"
)

// RandSource supplies the draws behind random(N%). *rand.Rand satisfies it.
type RandSource interface {
	Intn(n int) int
}

// NewRandSource returns a deterministic source for seed, or a time-seeded
// one when seed is 0.
func NewRandSource(seed int64) RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// chance reports true with probability pct/100.
func chance(src RandSource, pct int64) bool {
	switch {
	case pct <= 0:
		return false
	case pct >= 100:
		return true
	}
	return int64(src.Intn(100)) < pct
}

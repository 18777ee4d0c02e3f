package humanize

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Random is the randomness source shared by every humanizing decision.
type Random interface {
	// Chance returns true with probability p.
	Chance(p float64) bool
	// IntRange returns a uniform int in the closed range [min, max].
	IntRange(min, max int) int
	// Int64Range returns a uniform int64 in the closed range [min, max].
	Int64Range(min, max int64) int64
}

type lockedRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a deterministic source for the given seed.
func NewRandom(seed uint64) Random {
	return &lockedRandom{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSessionRandom seeds from the wall clock.
func NewSessionRandom() Random {
	return NewRandom(uint64(time.Now().UnixNano()))
}

func (l *lockedRandom) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64() < p
}

func (l *lockedRandom) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return min + l.r.IntN(max-min+1)
}

func (l *lockedRandom) Int64Range(min, max int64) int64 {
	if max <= min {
		return min
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return min + l.r.Int64N(max-min+1)
}

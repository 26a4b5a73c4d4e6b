package chaos

import (
	"math/rand/v2"
	"sync"
)

// Source supplies the randomness for injection decisions. An Injector shares
// its Source between every request goroutine, so implementations must be safe
// for concurrent use.
type Source interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type runtimeSource struct{}

func (runtimeSource) Float64() float64 { return rand.Float64() } // #nosec G404
func (runtimeSource) IntN(n int) int   { return rand.IntN(n) }   // #nosec G404

// DefaultSource draws from the math/rand/v2 top-level generator. Its state is
// kept per goroutine by the runtime, so callers never contend on a lock.
var DefaultSource Source = runtimeSource{}

// NewSeededSource returns a deterministic source for reproducible runs. It is
// safe for concurrent use. The sequence of draws is fixed by the seed, though
// which request receives which draw depends on scheduling.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} // #nosec G404
}

// lockedSource serializes access to a PCG generator, whose state is not safe
// to share.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// sourceOrDefault returns src, or DefaultSource when src is nil.
func sourceOrDefault(src Source) Source {
	if src == nil {
		return DefaultSource
	}
	return src
}

// uniformUint64 draws uniformly from [lo, hi]. Arguments may be reversed.
func uniformUint64(src Source, lo, hi uint64) uint64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := hi - lo
	if span == 0 {
		return lo
	}
	// Spans that fit an int use IntN for an exact uniform pick; anything wider
	// falls back to scaling a float draw.
	if span < uint64(maxInt) {
		return lo + uint64(src.IntN(int(span)+1))
	}
	return lo + uint64(src.Float64()*float64(span))
}

const maxInt = int(^uint(0) >> 1)

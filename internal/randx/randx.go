// Package randx is the randomization kernel behind plan generation: quota
// curves, domain/sender splits and hour/minute distributions, all drawn from
// a single seedable PRNG so that a fixed seed reproduces a full plan.
package randx

import (
	"math/rand"
	"sync"
	"time"
)

// Kernel wraps a seeded PRNG. All plan randomness flows through one kernel
// so call order is deterministic for a given seed. Safe for concurrent use.
type Kernel struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a kernel seeded from the clock.
func New() *Kernel {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a kernel with a fixed seed. Tests use this to pin plans.
func NewSeeded(seed int64) *Kernel {
	return &Kernel{rng: rand.New(rand.NewSource(seed))}
}

// Intn draws a uniform int in [0, n).
func (k *Kernel) Intn(n int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rng.Intn(n)
}

// IntRange draws a uniform int in [lo, hi]. Returns lo when hi <= lo.
func (k *Kernel) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return lo + k.rng.Intn(hi-lo+1)
}

// Float64 draws a uniform float in [0, 1).
func (k *Kernel) Float64() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rng.Float64()
}

// FloatRange draws a uniform float in [lo, hi).
func (k *Kernel) FloatRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return lo + k.rng.Float64()*(hi-lo)
}

// Perm returns a random permutation of [0, n).
func (k *Kernel) Perm(n int) []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rng.Perm(n)
}

// PickString returns a uniformly chosen element of items, or "" when empty.
func (k *Kernel) PickString(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[k.Intn(len(items))]
}

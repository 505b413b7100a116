// Package random draws the randomized workload sizes, identifiers and delays
// used by the traffic tasks.
package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Generator produces uniformly distributed integers in inclusive ranges.
//
// A Generator is safe for concurrent use; every task in the process shares
// one.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator seeded from the current time.
func New() *Generator {
	seed := uint64(time.Now().UnixNano())
	return NewSeeded(seed)
}

// NewSeeded returns a Generator with a fixed seed, giving a repeatable
// sequence of draws.
func NewSeeded(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Int returns a value uniformly selected from [min, max].
//
// If min > max the bounds are swapped, so Int(5, 2) draws from [2, 5].
func (g *Generator) Int(min, max int) int {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}

	g.mu.Lock()
	n := g.rnd.IntN(max - min + 1)
	g.mu.Unlock()

	return min + n
}

// Duration returns Int(min, max) multiplied by unit.
func (g *Generator) Duration(min, max int, unit time.Duration) time.Duration {
	return time.Duration(g.Int(min, max)) * unit
}

var std = New()

// Int draws from [min, max] using the process-wide generator.
func Int(min, max int) int {
	return std.Int(min, max)
}

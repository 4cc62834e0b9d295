// Package rng wraps the single source of randomness the kernel draws
// from. Every call site asks only for uniform_real() (§6); Green's
// functions and the Multi Builder layer their own distributions on top.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is the RNG contract consumed throughout the kernel.
type Source interface {
	// UniformReal draws from [0, 1).
	UniformReal() float64
}

// Gonum wraps a seeded PCG generator behind a gonum distuv.Uniform, so
// every draw in the kernel — including the ones made directly through
// distuv.Normal for Multi Builder BD steps — shares one deterministic
// stream.
type Gonum struct {
	gen     *rand.Rand
	uniform distuv.Uniform
}

// New builds a deterministic RNG from seed. The same seed always
// produces the same event sequence (§5: "deterministic under a seeded
// RNG").
func New(seed uint64) *Gonum {
	gen := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Gonum{
		gen:     gen,
		uniform: distuv.Uniform{Min: 0, Max: 1, Src: gen},
	}
}

func (g *Gonum) UniformReal() float64 {
	return g.uniform.Rand()
}

// Normal returns a zero-mean Gaussian with the given standard deviation,
// drawn from the same underlying stream. Used by the Multi Builder's BD
// microsteps (§4.4); the stand-in Green's-function samplers do not use it.
func (g *Gonum) Normal(stddev float64) float64 {
	n := distuv.Normal{Mu: 0, Sigma: stddev, Src: g.gen}
	return n.Rand()
}

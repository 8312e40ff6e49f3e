// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rng provides the per-chain random source and small vector
// helpers used throughout the sampler. Every chain owns an independent
// Source; none is shared across goroutines.
package rng

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Source is a per-chain random number generator. It is not safe for
// concurrent use by multiple goroutines; each chain owns exactly one.
type Source struct {
	rnd *rand.Rand
}

// New returns a Source seeded with seed. Chains are constructed with
// distinct seeds (typically drawn from the environment or a master
// seed sequence) so that their streams are independent.
func New(seed uint64) *Source {
	return &Source{rnd: rand.New(rand.NewSource(seed))}
}

// Rand exposes the underlying *rand.Rand so callers can hand it to a
// gonum.org/v1/gonum/stat/distuv distribution's Src field.
func (s *Source) Rand() *rand.Rand {
	return s.rnd
}

// Uniform draws from U(0,1).
func (s *Source) Uniform() float64 {
	return s.rnd.Float64()
}

// UniformRange draws from U(-1,1).
func (s *Source) UniformRange() float64 {
	return 2*s.rnd.Float64() - 1
}

// LogUniform draws ln(U) for U ~ U(0,1), used by the Metropolis
// acceptance test (comparing ln U against a log-probability delta
// avoids computing an extra exp).
func (s *Source) LogUniform() float64 {
	return math.Log(s.rnd.Float64())
}

// Dup returns a copy of v.
func Dup(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Min sets dst[i] = min(dst[i], other[i]) element-wise. gonum's own
// floats.Min only reduces a single slice to its scalar minimum (plus
// index), so this two-slice element-wise form has no direct floats
// equivalent and stays a plain loop.
func Min(dst, other []float64) {
	for i := range dst {
		if other[i] < dst[i] {
			dst[i] = other[i]
		}
	}
}

// Max sets dst[i] = max(dst[i], other[i]) element-wise, for the same
// reason Min is hand-written above.
func Max(dst, other []float64) {
	for i := range dst {
		if other[i] > dst[i] {
			dst[i] = other[i]
		}
	}
}

// Scale multiplies every element of v by c in place, delegating to
// gonum.org/v1/gonum/floats.Scale (which takes the scalar first).
func Scale(v []float64, c float64) {
	floats.Scale(c, v)
}

// WeightedSum returns sum_i w[i]*v[i], delegating to
// gonum.org/v1/gonum/floats.Dot. Panics if the slices differ in
// length, matching floats.Dot's own bounds-checking convention.
func WeightedSum(v, w []float64) float64 {
	return floats.Dot(v, w)
}

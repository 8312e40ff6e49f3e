// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ladder builds the inverse-temperature ladder mapping a chain
// index to a β value: six selectable spacing laws, automatic β₀, and
// the inter-chain stepwidth-factor inference the automatic β₀ formula
// depends on.
package ladder

import (
	"errors"
	"math"
)

// Law selects one of the six β-spacing laws. The zero value is
// Chebyshev, the default.
type Law int

const (
	// Chebyshev spaces β using a cosine law (the default).
	Chebyshev Law = iota
	// ChebyshevTemperature spaces 1/β using the same cosine law.
	ChebyshevTemperature
	// Equidistant spaces β linearly.
	Equidistant
	// EquidistantTemperature spaces 1/β linearly.
	EquidistantTemperature
	// EquidistantStepwidth spaces β by a squared-linear interpolation
	// between β0 and 1.
	EquidistantStepwidth
	// ChebyshevStepwidth spaces β by a squared-cosine interpolation
	// between β0 and 1.
	ChebyshevStepwidth
)

// String renders the law for logging and error messages.
func (l Law) String() string {
	switch l {
	case Chebyshev:
		return "chebyshev-beta"
	case ChebyshevTemperature:
		return "chebyshev-temperature"
	case Equidistant:
		return "equidistant-beta"
	case EquidistantTemperature:
		return "equidistant-temperature"
	case EquidistantStepwidth:
		return "equidistant-stepwidth"
	case ChebyshevStepwidth:
		return "chebyshev-stepwidth"
	default:
		return "unknown"
	}
}

// ErrTooFewChains is returned when NBeta < 2: a ladder needs at least
// the posterior chain (β=1) and one hot chain.
var ErrTooFewChains = errors.New("ladder: n_beta must be >= 2")

// ErrInvalidBeta0 is returned when β₀ is not in (0, 1).
var ErrInvalidBeta0 = errors.New("ladder: beta_0 must be in (0, 1)")

// equidistantBeta and the other five raw laws are all written to
// increase monotonically with i, from β0 (or its equivalent) at i=0 up
// to 1 at i=n-1, parameterised over (index, n_beta, beta0); Beta then
// reverses the index exactly once so that chain 0 ends up at β=1 and
// chain n_beta-1 ends up at β0.

func equidistantBeta(i, n int, beta0 float64) float64 {
	return beta0 + (1-beta0)*float64(i)/float64(n-1)
}

func equidistantTemperature(i, n int, beta0 float64) float64 {
	t0, t1 := 1/beta0, 1.0
	t := t0 + (t1-t0)*float64(i)/float64(n-1)
	return 1 / t
}

func chebyshevBeta(i, n int, beta0 float64) float64 {
	return beta0 + (1-beta0)/2*(1-math.Cos(float64(i)*math.Pi/float64(n-1)))
}

func chebyshevTemperature(i, n int, beta0 float64) float64 {
	t0, t1 := 1/beta0, 1.0
	t := t0 + (t1-t0)/2*(1-math.Cos(float64(i)*math.Pi/float64(n-1)))
	return 1 / t
}

// equidistantStepwidth and chebyshevStepwidth interpolate in stepwidth
// space: a squared linear (resp. cosine) interpolation fraction
// between β0 and 1.
func equidistantStepwidth(i, n int, beta0 float64) float64 {
	f := float64(i) / float64(n-1)
	return beta0 + (1-beta0)*f*f
}

func chebyshevStepwidth(i, n int, beta0 float64) float64 {
	f := (1 - math.Cos(float64(i)*math.Pi/float64(n-1))) / 2
	return beta0 + (1-beta0)*f*f
}

func (l Law) raw(i, n int, beta0 float64) float64 {
	switch l {
	case Chebyshev:
		return chebyshevBeta(i, n, beta0)
	case ChebyshevTemperature:
		return chebyshevTemperature(i, n, beta0)
	case Equidistant:
		return equidistantBeta(i, n, beta0)
	case EquidistantTemperature:
		return equidistantTemperature(i, n, beta0)
	case EquidistantStepwidth:
		return equidistantStepwidth(i, n, beta0)
	case ChebyshevStepwidth:
		return chebyshevStepwidth(i, n, beta0)
	default:
		panic("ladder: unknown law")
	}
}

// Beta returns β_i for chain index i in [0, nBeta), reversing the raw
// law's index so that chain 0 always has β=1 and chain nBeta-1 has
// β=β0.
func (l Law) Beta(i, nBeta int, beta0 float64) float64 {
	return l.raw(nBeta-i-1, nBeta, beta0)
}

// Build constructs the full ladder of nBeta β values for law l and
// β₀ beta0. It returns ErrTooFewChains or ErrInvalidBeta0 on invalid
// input; β[0] is always exactly 1 and β[nBeta-1] is always exactly
// beta0 (computed directly rather than through the law, avoiding
// floating-point drift at the endpoints).
func Build(l Law, nBeta int, beta0 float64) ([]float64, error) {
	if nBeta < 2 {
		return nil, ErrTooFewChains
	}
	if beta0 <= 0 || beta0 >= 1 {
		return nil, ErrInvalidBeta0
	}
	betas := make([]float64, nBeta)
	betas[0] = 1
	betas[nBeta-1] = beta0
	for i := 1; i < nBeta-1; i++ {
		betas[i] = l.Beta(i, nBeta, beta0)
	}
	return betas, nil
}

// betaZeroStepwidth is the fraction of a parameter's range that the
// hottest chain's step-after-√β-scaling is targeted to cover.
const betaZeroStepwidth = 0.1

// AutoBeta0 computes β₀ from chain 0's calibrated step widths and the
// per-parameter inter-chain stepwidth factors:
//
//	β₀ = max_i( (max_i-min_i) * BETA_0_STEPWIDTH / step_i / factor_i )^(-0.5)
//
// factors may be nil, in which case every factor is treated as 1 (used
// when no stepwidth-factor inference pass has been run).
func AutoBeta0(min, max, step, factors []float64) float64 {
	var worst float64
	for i := range step {
		factor := 1.0
		if factors != nil {
			factor = factors[i]
		}
		ratio := (max[i] - min[i]) * betaZeroStepwidth / step[i] / factor
		if ratio > worst {
			worst = ratio
		}
	}
	return math.Pow(worst, -0.5)
}

// StepwidthFactors computes the per-parameter inter-chain stepwidth
// factor from a calibrated chain-0 step vector (steps0, at β=1) and a
// calibrated chain-1 step vector (steps1, at provisional β beta1):
//
//	factor_i = (steps0_i / steps1_i) * beta1^(-0.5)
func StepwidthFactors(steps0, steps1 []float64, beta1 float64) []float64 {
	factors := make([]float64, len(steps0))
	scale := math.Pow(beta1, -0.5)
	for i := range steps0 {
		factors[i] = steps0[i] / steps1[i] * scale
	}
	return factors
}

// ScaleStepsForBeta returns chain 0's step vector rescaled for a hot
// chain at the given β, using the per-parameter stepwidth factor:
// step_i = steps0_i * β^(-0.5) * factor_i.
func ScaleStepsForBeta(steps0, factors []float64, beta float64) []float64 {
	scale := math.Pow(beta, -0.5)
	out := make([]float64, len(steps0))
	for i := range steps0 {
		out[i] = steps0[i] * scale * factors[i]
	}
	return out
}

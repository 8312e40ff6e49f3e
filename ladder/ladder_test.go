// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ladder

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEndpointsExact(t *testing.T) {
	for _, l := range []Law{Chebyshev, ChebyshevTemperature, Equidistant, EquidistantTemperature, EquidistantStepwidth, ChebyshevStepwidth} {
		betas, err := Build(l, 8, 0.05)
		require.NoError(t, err, l)
		assert.Equal(t, 1.0, betas[0], l)
		assert.Equal(t, 0.05, betas[len(betas)-1], l)
	}
}

func TestBuildMonotoneDecreasing(t *testing.T) {
	for _, l := range []Law{Chebyshev, ChebyshevTemperature, Equidistant, EquidistantTemperature, EquidistantStepwidth, ChebyshevStepwidth} {
		betas, err := Build(l, 10, 0.01)
		require.NoError(t, err, l)
		for i := 1; i < len(betas); i++ {
			require.Lessf(t, betas[i], betas[i-1], "law %v not monotone at index %d", l, i)
		}
	}
}

func TestBuildRejectsTooFewChains(t *testing.T) {
	_, err := Build(Chebyshev, 1, 0.1)
	require.ErrorIs(t, err, ErrTooFewChains)
}

func TestBuildRejectsInvalidBeta0(t *testing.T) {
	_, err := Build(Chebyshev, 5, 0)
	require.ErrorIs(t, err, ErrInvalidBeta0)
	_, err = Build(Chebyshev, 5, 1)
	require.ErrorIs(t, err, ErrInvalidBeta0)
}

func TestAutoBeta0MatchesWorstParameter(t *testing.T) {
	min := []float64{-10, -1}
	max := []float64{10, 1}
	step := []float64{1, 0.1}
	got := AutoBeta0(min, max, step, nil)
	// parameter 0: (20*0.1/1)^-0.5 = 2^-0.5; parameter 1: (2*0.1/0.1)^-0.5 = 2^-0.5
	want := math.Pow(2, -0.5)
	assert.InDelta(t, want, got, 1e-12)
}

func TestAutoBeta0WithFactors(t *testing.T) {
	min := []float64{0}
	max := []float64{10}
	step := []float64{1}
	factors := []float64{2}
	got := AutoBeta0(min, max, step, factors)
	want := math.Pow(10*0.1/1/2, -0.5)
	assert.InDelta(t, want, got, 1e-12)
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(Chebyshev, 8, 0.05)
	require.NoError(t, err)
	second, err := Build(Chebyshev, 8, 0.05)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Build(Chebyshev, 8, 0.05) is not deterministic (-first +second):\n%s", diff)
	}
}

func TestStepwidthFactorsAndScale(t *testing.T) {
	steps0 := []float64{1, 2}
	steps1 := []float64{0.5, 1}
	beta1 := 0.25
	factors := StepwidthFactors(steps0, steps1, beta1)
	assert.InDelta(t, 4.0, factors[0], 1e-12) // (1/0.5)*0.25^-0.5 = 2*2 = 4
	assert.InDelta(t, 4.0, factors[1], 1e-12)

	scaled := ScaleStepsForBeta(steps0, factors, 0.25)
	assert.InDelta(t, steps0[0]*2*factors[0], scaled[0], 1e-12)
}

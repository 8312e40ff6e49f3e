// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ensemble

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptmcmc-project/ptmcmc/chain"
)

func twoChainEnsemble(t *testing.T, seed uint64, betaB float64) (*Ensemble, *chain.Chain, *chain.Chain) {
	t.Helper()
	a := chain.New(1, seed)
	require.NoError(t, chain.Load(a, []chain.ParamRow{{Start: 1, Min: -10, Max: 10, Name: "x", Step: 1}}))
	a.Beta = 1

	b := chain.New(1, seed+1)
	require.NoError(t, chain.Load(b, []chain.ParamRow{{Start: -1, Min: -10, Max: 10, Name: "x", Step: 1}}))
	b.Beta = betaB

	ens, err := New([]*chain.Chain{a, b}, Always, 1, seed+2)
	require.NoError(t, err)
	return ens, a, b
}

func TestNewRejectsTooFewChains(t *testing.T) {
	c := chain.New(1, 1)
	require.NoError(t, chain.Load(c, []chain.ParamRow{{Start: 0, Min: -1, Max: 1, Name: "x", Step: 0.1}}))
	_, err := New([]*chain.Chain{c}, Always, 1, 1)
	require.ErrorIs(t, err, ErrTooFewChains)
}

func TestCheckCatchesNonMonotoneBeta(t *testing.T) {
	ens, a, b := twoChainEnsemble(t, 1, 0.5)
	a.Beta, b.Beta = 0.5, 0.5 // tie, not strictly decreasing
	require.ErrorIs(t, ens.Check(), ErrBetaNotMonotone)
}

// Identical likelihood at both temperatures means probA == probB, so
// r == 0 > ln U(0,1) for any U in (0,1) -- the swap always accepts.
func TestSwapDegenerateAlwaysAccepts(t *testing.T) {
	ens, a, b := twoChainEnsemble(t, 1, 1) // same beta too: fully degenerate
	a.Prob, b.Prob = -2.0, -2.0
	a.Prior, b.Prior = 0, 0

	const K = 1000
	for i := 0; i < K; i++ {
		swapped, _, _, err := ens.Attempt(i)
		require.NoError(t, err)
		require.True(t, swapped, "swap %d should have been accepted", i)
	}
	assert.Equal(t, uint64(K), a.SwapCount)
	assert.Equal(t, uint64(K), b.SwapCount)
}

func TestSwapExchangesParamsExactly(t *testing.T) {
	ens, a, b := twoChainEnsemble(t, 1, 1)
	a.Prob, b.Prob = -2.0, -2.0
	aParamsBefore := append([]float64(nil), a.Params...)
	bParamsBefore := append([]float64(nil), b.Params...)

	swapped := ens.attemptPair(0, 1)
	require.True(t, swapped)
	if diff := cmp.Diff(bParamsBefore, a.Params); diff != "" {
		t.Errorf("chain a did not receive chain b's pre-swap params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(aParamsBefore, b.Params); diff != "" {
		t.Errorf("chain b did not receive chain a's pre-swap params (-want +got):\n%s", diff)
	}
}

func TestSwapPropagatesBestToBothChains(t *testing.T) {
	ens, a, b := twoChainEnsemble(t, 1, 1)
	a.Prob, b.Prob = -2.0, -2.0
	a.ProbBest = 5.0
	copy(a.ParamsBest, []float64{3.3})
	b.ProbBest = 1.0

	swapped := ens.attemptPair(0, 1)
	require.True(t, swapped)
	assert.Equal(t, 5.0, a.ProbBest)
	assert.Equal(t, 5.0, b.ProbBest)
	assert.Equal(t, a.ParamsBest, b.ParamsBest)
}

func TestAutoNSwap(t *testing.T) {
	assert.Equal(t, 100, AutoNSwap(-1, 20))
	assert.Equal(t, 42, AutoNSwap(42, 20))
}

func TestAcceptProbabilityMatchesExpSwapTest(t *testing.T) {
	p := acceptProbability(1.0, -5.0, 0.5, -3.0)
	assert.True(t, p > 0 && p <= 1)
	assert.False(t, math.IsNaN(p))
}

func TestShouldAttemptPeriodic(t *testing.T) {
	ens, _, _ := twoChainEnsemble(t, 1, 0.5)
	ens.Policy = Periodic
	ens.NSwap = 5
	assert.True(t, ens.ShouldAttempt(0))
	assert.True(t, ens.ShouldAttempt(5))
	assert.False(t, ens.ShouldAttempt(3))
}

// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ensemble maintains the ordered chain sequence and implements
// the swap protocol between adjacent-temperature chains.
package ensemble

import (
	"errors"
	"math"

	"github.com/ptmcmc-project/ptmcmc/chain"
	"github.com/ptmcmc-project/ptmcmc/rng"
)

// ErrTooFewChains is returned by New when fewer than two chains are
// supplied: a swap needs at least one adjacent pair.
var ErrTooFewChains = errors.New("ensemble: need at least 2 chains")

// ErrBetaNotMonotone is returned by Check when the ensemble's β values
// are not strictly decreasing with index.
var ErrBetaNotMonotone = errors.New("ensemble: beta values not strictly decreasing")

// SwapPolicy selects when a swap attempt fires during the sampler's
// outer loop.
type SwapPolicy int

const (
	// Periodic attempts a swap every NSwap outer iterations,
	// round-robining the candidate pair.
	Periodic SwapPolicy = iota
	// Random attempts a swap with probability 1/NSwap each outer
	// iteration, picking the candidate pair via the same modular
	// arithmetic as Always (candidateIndex).
	Random
	// Always attempts a swap on every call.
	Always
)

// Ensemble is the ordered sequence of chains spanning β ∈ [β₀, 1].
// Chain 0 always has β=1; chains are indexed by decreasing β.
type Ensemble struct {
	Chains []*chain.Chain
	Policy SwapPolicy
	NSwap  int

	rng        *rng.Source
	roundRobin int
}

// New validates and wraps chains as an Ensemble. It does not itself
// order or assign β to the chains; callers build chains from a
// ladder.Build result before constructing the Ensemble.
func New(chains []*chain.Chain, policy SwapPolicy, nSwap int, seed uint64) (*Ensemble, error) {
	if len(chains) < 2 {
		return nil, ErrTooFewChains
	}
	return &Ensemble{
		Chains: chains,
		Policy: policy,
		NSwap:  nSwap,
		rng:    rng.New(seed),
	}, nil
}

// AutoNSwap resolves the swap-interval setting: a negative configured
// value selects 2000/nBeta.
func AutoNSwap(configured, nBeta int) int {
	if configured < 0 {
		return 2000 / nBeta
	}
	return configured
}

// Check asserts the ensemble ordering invariant: β values strictly
// decreasing with index, chain 0 at β=1.
func (e *Ensemble) Check() error {
	if e.Chains[0].Beta != 1 {
		return ErrBetaNotMonotone
	}
	for i := 1; i < len(e.Chains); i++ {
		if e.Chains[i].Beta >= e.Chains[i-1].Beta {
			return ErrBetaNotMonotone
		}
	}
	return nil
}

// candidateIndex picks the lower index of the adjacent pair to try:
// a = (n_beta*1000*U(0,1)) mod (n_beta-1). The modulus over a wide
// integer draw keeps the pair choice insensitive to float rounding at
// the interval edges.
func (e *Ensemble) candidateIndex() int {
	n := len(e.Chains)
	raw := int(float64(n) * 1000 * e.rng.Uniform())
	return raw % (n - 1)
}

// ShouldAttempt reports whether a swap attempt fires on outer
// iteration iter, per e.Policy.
func (e *Ensemble) ShouldAttempt(iter int) bool {
	switch e.Policy {
	case Always:
		return true
	case Random:
		return e.rng.Uniform() < 1/float64(e.NSwap)
	case Periodic:
		return e.NSwap > 0 && iter%e.NSwap == 0
	default:
		return false
	}
}

// nextPair picks the adjacent pair (a, a+1) to attempt, per policy:
// Periodic round-robins through every adjacent pair in turn; Random
// and Always draw via candidateIndex.
func (e *Ensemble) nextPair() (a, b int) {
	switch e.Policy {
	case Periodic:
		a = e.roundRobin
		e.roundRobin = (e.roundRobin + 1) % (len(e.Chains) - 1)
	default:
		a = e.candidateIndex()
	}
	return a, a + 1
}

// Attempt runs one swap attempt (if the policy says this is an
// attempt iteration) between an adjacent pair of chains and reports
// whether a swap occurred. The acceptance test is
//
//	r = β_a*p_b/β_b + β_b*p_a/β_a - (p_a+p_b)
//	accept iff r > ln U(0,1)
//
// On acceptance the two chains' Params vectors are exchanged and each
// chain's Prob is recomputed for its own temperature from the incoming
// position's pure log-likelihood (prior is stored separately exactly so
// it can be subtracted back out), the better of the two (ProbBest,
// ParamsBest) pairs is propagated to BOTH chains, and both chains'
// SwapCount is incremented.
func (e *Ensemble) Attempt(iter int) (swapped bool, a, b int, err error) {
	if !e.ShouldAttempt(iter) {
		return false, 0, 0, nil
	}
	a, b = e.nextPair()
	return e.attemptPair(a, b), a, b, nil
}

func (e *Ensemble) attemptPair(a, b int) bool {
	ca, cb := e.Chains[a], e.Chains[b]
	r := ca.Beta*cb.Prob/cb.Beta + cb.Beta*ca.Prob/ca.Beta - (ca.Prob + cb.Prob)
	if r <= e.rng.LogUniform() {
		return false
	}

	ca.Params, cb.Params = cb.Params, ca.Params

	// Each position's pure log-likelihood transfers with it; the
	// receiving chain's Prob is rebuilt at its own β.
	logLikeA := (ca.Prob - ca.Prior) / ca.Beta
	logLikeB := (cb.Prob - cb.Prior) / cb.Beta
	ca.Prob, cb.Prob = ca.Beta*logLikeB+cb.Prior, cb.Beta*logLikeA+ca.Prior
	ca.Prior, cb.Prior = cb.Prior, ca.Prior

	if cb.ProbBest > ca.ProbBest {
		ca.ProbBest = cb.ProbBest
		copy(ca.ParamsBest, cb.ParamsBest)
	} else {
		cb.ProbBest = ca.ProbBest
		copy(cb.ParamsBest, ca.ParamsBest)
	}

	ca.SwapCount++
	cb.SwapCount++
	return true
}

// acceptProbability exposes the swap acceptance test's implied
// probability for diagnostics/tests, without mutating state.
func acceptProbability(betaA, probA, betaB, probB float64) float64 {
	r := betaA*probB/betaB + betaB*probA/betaA - (probA + probB)
	return math.Exp(math.Min(r, 0))
}

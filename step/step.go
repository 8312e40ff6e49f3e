// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package step implements the Metropolis proposal-and-accept/reject
// step, for a single parameter (StepOne) or the whole parameter vector
// at once (StepAll).
package step

import (
	"math"

	"github.com/ptmcmc-project/ptmcmc/chain"
	"github.com/ptmcmc-project/ptmcmc/model"
	"github.com/ptmcmc-project/ptmcmc/rng"
)

// Stepper proposes and accepts/rejects Metropolis moves using a single
// configured jump distribution, applying the chain's own bounds mode
// (circular or redraw) per parameter.
type Stepper struct {
	Proposal rng.Proposal
}

// New returns a Stepper using the given proposal distribution.
func New(p rng.Proposal) Stepper {
	return Stepper{Proposal: p}
}

// propose draws a new value for parameter i of c and applies bounds
// handling: non-circular parameters are redrawn until they land inside
// [min, max]; circular parameters (identified by c.Circular) wrap via
// new = min + ((new-min) mod (max-min)).
func (s Stepper) propose(c *chain.Chain, i int, old float64) float64 {
	min, max := c.ParamsMin[i], c.ParamsMax[i]
	newVal := old + s.Proposal.Draw(c.RNG, c.ParamsStep[i])
	if newVal >= min && newVal <= max {
		return newVal
	}
	if c.Circular[i] {
		return wrap(newVal, min, max)
	}
	for newVal < min || newVal > max {
		newVal = old + s.Proposal.Draw(c.RNG, c.ParamsStep[i])
	}
	return newVal
}

func wrap(v, min, max float64) float64 {
	span := max - min
	m := math.Mod(v-min, span)
	if m < 0 {
		m += span
	}
	return min + m
}

// accept applies the Metropolis acceptance test: accept if p1 >= p0,
// else accept with probability exp(p1-p0), realised by comparing ln
// U(0,1) against (p1-p0).
func accept(c *chain.Chain, p0, p1 float64) bool {
	if p1 >= p0 {
		return true
	}
	return c.RNG.LogUniform() < (p1 - p0)
}

// StepOne proposes a new value for parameter i alone, computes the new
// log-posterior via m.CalcModelFor, and accepts or rejects. On
// rejection, c's Params, Prob, and Prior are restored bit-identically
// to their pre-proposal values. Returns whether the proposal was
// accepted.
func (s Stepper) StepOne(c *chain.Chain, m model.Model, i int) (bool, error) {
	p0 := c.Prob
	prior0 := c.Prior
	old := c.Params[i]

	c.Params[i] = s.propose(c, i, old)
	if err := m.CalcModelFor(c, i, old); err != nil {
		return false, err
	}
	p1 := c.Prob

	if accept(c, p0, p1) {
		c.ParamsAccepts[i]++
		c.UpdateBest()
		return true, nil
	}
	c.Params[i] = old
	c.Prob = p0
	c.Prior = prior0
	c.ParamsRejects[i]++
	return false, nil
}

// StepAll proposes all parameters simultaneously, computes the new
// log-posterior via m.CalcModel, and accepts or rejects the whole
// vector as one move. Accepting (or rejecting) a whole-vector step
// advances the chain's global Accept/Reject counters as well as every
// parameter's individual counter: a whole-vector proposal is also, by
// construction, one proposal per parameter.
func (s Stepper) StepAll(c *chain.Chain, m model.Model) (bool, error) {
	p0 := c.Prob
	prior0 := c.Prior
	old := rng.Dup(c.Params)

	for i := range c.Params {
		c.Params[i] = s.propose(c, i, old[i])
	}
	if err := m.CalcModel(c, old); err != nil {
		return false, err
	}
	p1 := c.Prob

	if accept(c, p0, p1) {
		c.Accept++
		for i := range c.ParamsAccepts {
			c.ParamsAccepts[i]++
		}
		c.UpdateBest()
		return true, nil
	}
	copy(c.Params, old)
	c.Prob = p0
	c.Prior = prior0
	c.Reject++
	for i := range c.ParamsRejects {
		c.ParamsRejects[i]++
	}
	return false, nil
}

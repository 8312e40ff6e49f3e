// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chain implements the per-temperature Markov chain state
// container: parameters, bounds, step widths, accept/reject counters,
// the best-so-far watermark, and the shared, read-only observation
// matrix.
package chain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ptmcmc-project/ptmcmc/rng"
)

// Sentinel errors for Check and Load, exported so callers can
// distinguish failure kinds with errors.Is.
var (
	ErrBoundsViolated    = errors.New("chain: params outside [min, max]")
	ErrNonPositiveStep   = errors.New("chain: step width not > 0")
	ErrLengthMismatch    = errors.New("chain: slice length mismatch")
	ErrInvalidBeta       = errors.New("chain: beta must be in (0, 1]")
	ErrEmptyDescriptions = errors.New("chain: parameter name missing or too long")
)

// Chain is one Markov chain at a fixed inverse temperature β. Data is
// shared by reference across chains (chain 0 owns it) and must never
// be mutated after construction.
type Chain struct {
	NPar int

	Params      []float64
	ParamsMin   []float64
	ParamsMax   []float64
	ParamsStep  []float64
	ParamsDescr []string

	ParamsBest []float64
	ProbBest   float64

	Prob  float64
	Prior float64

	Accept, Reject               uint64
	ParamsAccepts, ParamsRejects []uint64

	Beta      float64
	SwapCount uint64

	RNG *rng.Source

	// Data is the shared, read-only observation matrix (rows =
	// samples, columns = observed channels). Only chain 0 owns it;
	// every other chain in an ensemble holds the same pointer.
	Data *mat.Dense

	NIter uint64

	// Circular marks parameter indices that wrap at the bounds
	// instead of being redrawn when a proposal lands outside them.
	Circular map[int]bool
}

// New constructs an empty Chain for nPar parameters, seeded with the
// given RNG seed. Bounds, descriptions, and starting position must be
// filled in with Load before the chain is usable; Check will fail
// until they are.
func New(nPar int, seed uint64) *Chain {
	return &Chain{
		NPar:          nPar,
		Params:        make([]float64, nPar),
		ParamsMin:     make([]float64, nPar),
		ParamsMax:     make([]float64, nPar),
		ParamsStep:    make([]float64, nPar),
		ParamsDescr:   make([]string, nPar),
		ParamsBest:    make([]float64, nPar),
		ParamsAccepts: make([]uint64, nPar),
		ParamsRejects: make([]uint64, nPar),
		Beta:          1,
		RNG:           rng.New(seed),
		Circular:      make(map[int]bool),
		ProbBest:      math.Inf(-1),
	}
}

// ParamRow is a single parsed parameter-file row: start, min, max,
// name, and a step-hint where a negative value means "auto:
// 0.1*(max-min)".
type ParamRow struct {
	Start, Min, Max float64
	Name            string
	Step            float64
}

// Load populates the chain's bounds, starting position, names, and
// step widths from rows, applying the auto-step rule (negative step ->
// 0.1*(max-min)) and requiring printable names shorter than 256 bytes.
// It does not call Check; callers should Check immediately after Load.
func Load(c *Chain, rows []ParamRow) error {
	if len(rows) != c.NPar {
		return fmt.Errorf("%w: got %d rows, chain has %d parameters", ErrLengthMismatch, len(rows), c.NPar)
	}
	for i, r := range rows {
		if r.Min > r.Max {
			return fmt.Errorf("chain: parameter %d (%s): min %g > max %g", i, r.Name, r.Min, r.Max)
		}
		if r.Start < r.Min || r.Start > r.Max {
			return fmt.Errorf("chain: parameter %d (%s): start %g outside [%g, %g]", i, r.Name, r.Start, r.Min, r.Max)
		}
		if len(r.Name) == 0 || len(r.Name) >= 256 || !isPrintable(r.Name) {
			return fmt.Errorf("%w: parameter %d", ErrEmptyDescriptions, i)
		}
		step := r.Step
		if step < 0 {
			step = 0.1 * (r.Max - r.Min)
		}
		c.Params[i] = r.Start
		c.ParamsMin[i] = r.Min
		c.ParamsMax[i] = r.Max
		c.ParamsDescr[i] = r.Name
		c.ParamsStep[i] = step
	}
	copy(c.ParamsBest, c.Params)
	return nil
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// ShareData points c at owner's Data matrix; the owner keeps the
// matrix, every other chain merely references it.
func (c *Chain) ShareData(owner *Chain) {
	c.Data = owner.Data
}

// Check asserts the chain invariants: bounds containment, strict
// positivity of step widths, and a valid β. It is cheap enough to call
// after every mutation in tests and at every phase boundary in the
// driver.
func (c *Chain) Check() error {
	if len(c.Params) != c.NPar || len(c.ParamsMin) != c.NPar || len(c.ParamsMax) != c.NPar || len(c.ParamsStep) != c.NPar {
		return ErrLengthMismatch
	}
	for i := 0; i < c.NPar; i++ {
		if c.Params[i] < c.ParamsMin[i] || c.Params[i] > c.ParamsMax[i] {
			return fmt.Errorf("%w: parameter %d = %g not in [%g, %g]", ErrBoundsViolated, i, c.Params[i], c.ParamsMin[i], c.ParamsMax[i])
		}
		if !(c.ParamsStep[i] > 0) {
			return fmt.Errorf("%w: parameter %d step = %g", ErrNonPositiveStep, i, c.ParamsStep[i])
		}
	}
	if c.Beta <= 0 || c.Beta > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidBeta, c.Beta)
	}
	return nil
}

// Range returns max[i] - min[i].
func (c *Chain) Range(i int) float64 {
	return c.ParamsMax[i] - c.ParamsMin[i]
}

// UpdateBest records the current position as the best-ever-seen if
// Prob exceeds ProbBest.
func (c *Chain) UpdateBest() {
	if c.Prob > c.ProbBest {
		c.ProbBest = c.Prob
		copy(c.ParamsBest, c.Params)
	}
}

// ResetToBest overwrites the current position with the best-ever
// position, used at the burn-in midpoint and at the start of each
// calibration readjustment round.
func (c *Chain) ResetToBest() {
	copy(c.Params, c.ParamsBest)
}

// ResetCounters zeroes the accept/reject counters, used between
// calibration readjustment rounds.
func (c *Chain) ResetCounters() {
	c.Accept, c.Reject = 0, 0
	for i := range c.ParamsAccepts {
		c.ParamsAccepts[i] = 0
		c.ParamsRejects[i] = 0
	}
}

// GlobalAcceptanceRate returns Accept/(Accept+Reject), or 0 if no
// proposals have been made yet.
func (c *Chain) GlobalAcceptanceRate() float64 {
	total := c.Accept + c.Reject
	if total == 0 {
		return 0
	}
	return float64(c.Accept) / float64(total)
}

// ParamAcceptanceRate returns the acceptance rate for parameter i.
func (c *Chain) ParamAcceptanceRate(i int) float64 {
	total := c.ParamsAccepts[i] + c.ParamsRejects[i]
	if total == 0 {
		return 0
	}
	return float64(c.ParamsAccepts[i]) / float64(total)
}

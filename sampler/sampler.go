// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sampler implements the outer sampling loop: per-chain
// sub-iterations scattered across the ensemble via
// golang.org/x/sync/errgroup, the serial swap protocol, optional
// adaptation, and periodic reporting.
package sampler

import (
	"context"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ptmcmc-project/ptmcmc/ensemble"
	"github.com/ptmcmc-project/ptmcmc/model"
	"github.com/ptmcmc-project/ptmcmc/ptmcmclog"
	"github.com/ptmcmc-project/ptmcmc/sink"
	"github.com/ptmcmc-project/ptmcmc/step"
)

// AdaptStrategy selects at most one of the two mutually exclusive
// in-run step-width adaptation strategies.
type AdaptStrategy int

const (
	// AdaptNone disables in-run adaptation; only burn-in and
	// calibration ever change step widths.
	AdaptNone AdaptStrategy = iota
	// AdaptRWM nudges each parameter's step width by a small
	// multiplicative factor every tick, growing it when that
	// parameter's acceptance rate is above target and shrinking it
	// otherwise.
	AdaptRWM
	// AdaptFixedRate rescales step widths by a fixed ±1% once
	// acceptance drifts more than 5% off target, but only after a
	// warm-up period, and stops adjusting past a reset threshold.
	AdaptFixedRate
)

// Settings configures the sampler driver.
type Settings struct {
	MaxIterations     uint64
	PrintProbInterval uint64

	Adapt            AdaptStrategy
	TargetAcceptance float64

	// RWMStep is the multiplicative nudge applied by AdaptRWM each
	// tick (e.g. 1.01 to grow, inverse to shrink).
	RWMStep float64

	// FixedRateWarmup is the proposal count (per chain) before
	// AdaptFixedRate starts adjusting step widths.
	FixedRateWarmup uint64
	// FixedRateReset is the proposal count past which AdaptFixedRate
	// stops adjusting (the counters are considered stale).
	FixedRateReset uint64
	// FixedRateDeviation is the acceptance-rate deviation from target
	// that triggers a rescale.
	FixedRateDeviation float64
	// FixedRateFactor is the rescale fraction (0.01 = 1%).
	FixedRateFactor float64
}

// DefaultSettings returns the conventional defaults: a 0.23 target
// acceptance rate, a 20000-proposal AdaptFixedRate warm-up, and a
// 100000-proposal cut-off past which AdaptFixedRate stops adjusting.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:      100000,
		PrintProbInterval:  1000,
		Adapt:              AdaptNone,
		TargetAcceptance:   0.23,
		RWMStep:            1.01,
		FixedRateWarmup:    20000,
		FixedRateReset:     100000,
		FixedRateDeviation: 0.05,
		FixedRateFactor:    0.01,
	}
}

// Sampler owns the chain ensemble, the user model, the proposal
// stepper, an optional output-sink bundle, an optional logger, and the
// cancellation token.
type Sampler struct {
	Ensemble *ensemble.Ensemble
	Model    model.Model
	Stepper  step.Stepper
	Sinks    *sink.Bundle
	Settings Settings
	Log      *ptmcmclog.Logger
	Token    *Token
}

// New constructs a Sampler. sinks and log may be nil.
func New(e *ensemble.Ensemble, m model.Model, s step.Stepper, sinks *sink.Bundle, settings Settings, log *ptmcmclog.Logger, tok *Token) *Sampler {
	if tok == nil {
		tok = NewToken()
	}
	return &Sampler{
		Ensemble: e,
		Model:    m,
		Stepper:  s,
		Sinks:    sinks,
		Settings: settings,
		Log:      log,
		Token:    tok,
	}
}

// Run drives the outer sampling loop: while not cancelled and the
// iteration count is below MaxIterations, every chain in the ensemble
// is advanced NSwap times in parallel (one goroutine per chain, via
// errgroup.Group, so no chain other than the current goroutine's is
// read or written during this phase), after which optional adaptation
// and the swap protocol run serially, then the periodic-reporting
// gate.
func (s *Sampler) Run(ctx context.Context) error {
	var iter uint64
	nSwap := uint64(s.Ensemble.NSwap)
	if nSwap == 0 {
		nSwap = 1
	}

	for iter < s.Settings.MaxIterations && !s.Token.Stopped() {
		if err := s.scatterStep(ctx, int(nSwap)); err != nil {
			return err
		}

		s.adapt()
		iter += nSwap

		if _, _, _, err := s.Ensemble.Attempt(int(iter)); err != nil {
			return err
		}

		if s.Settings.PrintProbInterval > 0 && iter%s.Settings.PrintProbInterval < nSwap {
			if err := s.report(iter); err != nil {
				return err
			}
		}

		if s.Token.DumpRequested() && s.Sinks != nil {
			if err := s.Sinks.Flush(); err != nil {
				return err
			}
		}
	}

	if s.Sinks != nil {
		if err := s.Sinks.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// scatterStep advances every chain by nInner step_all proposals
// concurrently, recording the chain's position and tempered
// log-likelihood after every proposal.
func (s *Sampler) scatterStep(ctx context.Context, nInner int) error {
	g, _ := errgroup.WithContext(ctx)
	for idx := range s.Ensemble.Chains {
		idx := idx
		c := s.Ensemble.Chains[idx]
		g.Go(func() error {
			for k := 0; k < nInner; k++ {
				if _, err := s.Stepper.StepAll(c, s.Model); err != nil {
					return err
				}
				c.NIter++
				if s.Sinks == nil {
					continue
				}
				if err := s.Sinks.RecordValues(idx, c.Params); err != nil {
					return err
				}
				if err := s.Sinks.RecordLikelihood(idx, c.Prob, c.Prob-c.Prior); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Sampler) adapt() {
	switch s.Settings.Adapt {
	case AdaptRWM:
		s.adaptRWM()
	case AdaptFixedRate:
		s.adaptFixedRate()
	}
}

// adaptRWM nudges each chain's per-parameter step width by RWMStep,
// growing it when that parameter's observed acceptance rate exceeds
// the target and shrinking it otherwise.
func (s *Sampler) adaptRWM() {
	target := s.Settings.TargetAcceptance
	for _, c := range s.Ensemble.Chains {
		for i := 0; i < c.NPar; i++ {
			rate := c.ParamAcceptanceRate(i)
			if rate > target {
				c.ParamsStep[i] *= s.Settings.RWMStep
			} else {
				c.ParamsStep[i] /= s.Settings.RWMStep
			}
		}
	}
}

// adaptFixedRate applies a fixed ±1% multiplicative rescale to any
// chain whose global acceptance rate has drifted more than
// FixedRateDeviation off target, gated on a warm-up proposal count and
// disabled again past the reset threshold.
func (s *Sampler) adaptFixedRate() {
	for _, c := range s.Ensemble.Chains {
		total := c.Accept + c.Reject
		if total < s.Settings.FixedRateWarmup || total > s.Settings.FixedRateReset {
			continue
		}
		rate := c.GlobalAcceptanceRate()
		delta := rate - s.Settings.TargetAcceptance
		if math.Abs(delta) <= s.Settings.FixedRateDeviation {
			continue
		}
		factor := 1 + s.Settings.FixedRateFactor
		if delta < 0 {
			factor = 1 - s.Settings.FixedRateFactor
		}
		for i := range c.ParamsStep {
			c.ParamsStep[i] *= factor
		}
	}
}

// report emits the periodic progress log line, appends one row to the
// acceptance-rate stream (iteration, then each chain's accept count),
// and flushes every sink in the bundle.
func (s *Sampler) report(iter uint64) error {
	if s.Log != nil {
		fields := make(map[string]any, len(s.Ensemble.Chains)*2)
		for i, c := range s.Ensemble.Chains {
			fields["chain_accept_rate_"+strconv.Itoa(i)] = c.GlobalAcceptanceRate()
			fields["chain_swap_count_"+strconv.Itoa(i)] = c.SwapCount
		}
		s.Log.Report(iter, fields)
	}
	if s.Sinks == nil {
		return nil
	}
	accepts := make([]uint64, len(s.Ensemble.Chains))
	for i, c := range s.Ensemble.Chains {
		accepts[i] = c.Accept
	}
	if err := s.Sinks.RecordAcceptance(iter, accepts); err != nil {
		return err
	}
	return s.Sinks.Flush()
}

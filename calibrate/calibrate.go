// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package calibrate implements burn-in and per-parameter step-width
// calibration: an acceptance-rate assessor and four selectable
// calibration strategies behind a single Strategy interface.
package calibrate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/running"

	"github.com/ptmcmc-project/ptmcmc/chain"
	"github.com/ptmcmc-project/ptmcmc/ladder"
	"github.com/ptmcmc-project/ptmcmc/model"
	"github.com/ptmcmc-project/ptmcmc/ptmcmclog"
	"github.com/ptmcmc-project/ptmcmc/rng"
	"github.com/ptmcmc-project/ptmcmc/step"
)

// ErrStepDiverged is returned when a calibration step width grows past
// 10000x the parameter's range.
var ErrStepDiverged = errors.New("calibrate: step width diverged")

// ErrIterLimitExceeded is returned when calibration exceeds its
// iteration budget without converging.
var ErrIterLimitExceeded = errors.New("calibrate: iteration limit exceeded")

// Config holds the knobs that govern burn-in and calibration.
type Config struct {
	// TargetAcceptance is the desired GLOBAL acceptance rate; the
	// per-parameter target is TargetAcceptance^(1/n_par).
	TargetAcceptance float64
	// IterReadjust is the number of step_all proposals per
	// readjustment round in the proportional strategy.
	IterReadjust int
	// Mul is the shrink factor applied to an under-accepting
	// parameter's step width (an over-accepting one grows by 1/Mul).
	Mul float64
	// NoRescalingLimit is the number of consecutive readjustment
	// rounds requiring no change before calibration may stop.
	NoRescalingLimit int
	// MaxARDeviation is the maximum allowed |global rate - target|
	// at the point calibration stops.
	MaxARDeviation float64
	// IterLimit bounds the total number of readjustment rounds,
	// scaled by n_par, before calibration is declared to have failed.
	IterLimit int
	// AccuracyDeviationFactor scales |observed-target| into the
	// required accuracy for the acceptance-rate assessor.
	AccuracyDeviationFactor float64
	// AccuracyMin, AccuracyMax clamp the required accuracy computed
	// above.
	AccuracyMin, AccuracyMax float64
	// BurnInIterations is the total number of step_all proposals run
	// during burn-in, split into two equal halves.
	BurnInIterations int
}

// DefaultConfig returns the conventional defaults: a 0.23 target
// acceptance rate, a 0.85 rescale factor, and a 10000-proposal
// burn-in.
func DefaultConfig() Config {
	return Config{
		TargetAcceptance:        0.23,
		IterReadjust:            200,
		Mul:                     0.85,
		NoRescalingLimit:        15,
		MaxARDeviation:          0.05,
		IterLimit:               100000,
		AccuracyDeviationFactor: 0.25,
		AccuracyMin:             0.01,
		AccuracyMax:             0.1,
		BurnInIterations:        10000,
	}
}

// perParamTarget converts the desired global acceptance rate into the
// per-parameter target: target^(1/n_par).
func perParamTarget(target float64, nPar int) float64 {
	return math.Pow(target, 1/float64(nPar))
}

// BurnIn runs BurnInIterations step_all proposals, split into two
// halves with the step widths temporarily forced to 0.1*range (first
// half) and 0.05*range (second half), resetting to the best-so-far
// position at the midpoint. The chain's step widths are restored
// before returning, and the accept/reject counters are reset so they
// reflect only post-burn-in activity.
func BurnIn(c *chain.Chain, m model.Model, s step.Stepper, iterations int) error {
	orig := rng.Dup(c.ParamsStep)
	defer func() {
		copy(c.ParamsStep, orig)
	}()

	half := iterations / 2
	for i := range c.ParamsStep {
		c.ParamsStep[i] = 0.1 * c.Range(i)
	}
	for k := 0; k < half; k++ {
		if _, err := s.StepAll(c, m); err != nil {
			return err
		}
	}

	c.ResetToBest()
	for i := range c.ParamsStep {
		c.ParamsStep[i] = 0.05 * c.Range(i)
	}
	for k := 0; k < iterations-half; k++ {
		if _, err := s.StepAll(c, m); err != nil {
			return err
		}
	}

	c.ResetToBest()
	c.ResetCounters()
	return nil
}

// Strategy is a single selectable step-width calibration algorithm. It
// mutates c.ParamsStep (and, via ResetToBest/ResetCounters, c.Params
// and the accept/reject counters) until the global acceptance rate is
// within cfg.MaxARDeviation of cfg.TargetAcceptance, or returns an
// error if it cannot converge.
type Strategy interface {
	Calibrate(c *chain.Chain, m model.Model, s step.Stepper, cfg Config, log *ptmcmclog.Logger) error
}

// checkDivergence enforces the two-tier step-width failure policy. A
// step past 10000x the parameter's range is fatal (ErrStepDiverged). A
// step past the range itself, but short of that fatal threshold, only
// warns: the step is clamped to the range and calibration continues,
// treating the parameter as likely insensitive.
func checkDivergence(c *chain.Chain, i int, cfg Config, log *ptmcmclog.Logger) error {
	if c.ParamsStep[i] > 10000*c.Range(i) {
		return fmt.Errorf("%w: parameter %d (%s) step = %g", ErrStepDiverged, i, c.ParamsDescr[i], c.ParamsStep[i])
	}
	if rangeWidth := c.Range(i); c.ParamsStep[i] > rangeWidth {
		log.CalibrationWarning(i, c.ParamsDescr[i], c.ParamsStep[i], rangeWidth)
		c.ParamsStep[i] = rangeWidth
	}
	return nil
}

// Proportional is the default calibration strategy: repeatedly take
// IterReadjust step_all proposals, grow or shrink each
// parameter's step width by Mul depending on whether its acceptance
// rate overshoots or undershoots the per-parameter target by more than
// 0.05, and stop once NoRescalingLimit consecutive rounds require no
// change and the global rate is within MaxARDeviation of the target.
type Proportional struct{}

func (Proportional) Calibrate(c *chain.Chain, m model.Model, s step.Stepper, cfg Config, log *ptmcmclog.Logger) error {
	target := perParamTarget(cfg.TargetAcceptance, c.NPar)
	noChangeStreak := 0
	limit := cfg.IterLimit * c.NPar

	for round := 0; ; round++ {
		c.ResetCounters()
		for k := 0; k < cfg.IterReadjust; k++ {
			if _, err := s.StepAll(c, m); err != nil {
				return err
			}
		}

		changed := false
		for i := 0; i < c.NPar; i++ {
			a := c.ParamAcceptanceRate(i)
			switch {
			case a > target+0.05:
				c.ParamsStep[i] /= cfg.Mul
				changed = true
			case a < target-0.05:
				c.ParamsStep[i] *= cfg.Mul
				changed = true
			}
			if err := checkDivergence(c, i, cfg, log); err != nil {
				return err
			}
		}

		global := c.GlobalAcceptanceRate()
		target = 0.99*target + 0.01*global

		if changed {
			noChangeStreak = 0
		} else {
			noChangeStreak++
		}
		c.ResetToBest()

		if noChangeStreak >= cfg.NoRescalingLimit && math.Abs(global-cfg.TargetAcceptance) <= cfg.MaxARDeviation {
			return nil
		}
		if round >= limit {
			return ErrIterLimitExceeded
		}
	}
}

// history accumulates (step, acceptance) observations for one
// parameter, backing the Quadratic, LinearRegression, and Multilinear
// strategies.
type history struct {
	steps []float64
	rates []float64
}

func (h *history) add(stepWidth, rate float64) {
	h.steps = append(h.steps, stepWidth)
	h.rates = append(h.rates, rate)
}

// measureRound runs IterReadjust step_all proposals from the current
// position and returns the per-parameter acceptance rates observed,
// restoring the chain to its best-so-far position afterward.
func measureRound(c *chain.Chain, m model.Model, s step.Stepper, cfg Config) ([]float64, float64, error) {
	c.ResetCounters()
	for k := 0; k < cfg.IterReadjust; k++ {
		if _, err := s.StepAll(c, m); err != nil {
			return nil, 0, err
		}
	}
	rates := make([]float64, c.NPar)
	for i := range rates {
		rates[i] = c.ParamAcceptanceRate(i)
	}
	global := c.GlobalAcceptanceRate()
	c.ResetToBest()
	return rates, global, nil
}

// Quadratic evaluates three step widths per parameter, fits a
// quadratic through the (step, acceptance) points, and solves for the
// step hitting the target, keeping the original step width where the
// fit is degenerate. It then always hands off to Proportional to finish
// calibration.
type Quadratic struct{}

func (Quadratic) Calibrate(c *chain.Chain, m model.Model, s step.Stepper, cfg Config, log *ptmcmclog.Logger) error {
	target := perParamTarget(cfg.TargetAcceptance, c.NPar)
	hists := make([]history, c.NPar)

	// Three probe multipliers bracket the current step width.
	probes := []float64{0.5, 1.0, 2.0}
	base := rng.Dup(c.ParamsStep)
	for _, mult := range probes {
		for i := range c.ParamsStep {
			c.ParamsStep[i] = base[i] * mult
		}
		rates, _, err := measureRound(c, m, s, cfg)
		if err != nil {
			return err
		}
		for i := range rates {
			hists[i].add(c.ParamsStep[i], rates[i])
		}
	}

	for i := 0; i < c.NPar; i++ {
		next, ok := fitQuadraticSolve(hists[i].steps, hists[i].rates, target)
		if !ok || next <= 0 {
			// Degenerate fit: keep the original (middle-probe) step width
			// and let Proportional finish the job.
			next = base[i]
		}
		c.ParamsStep[i] = next
		if err := checkDivergence(c, i, cfg, log); err != nil {
			return err
		}
	}
	return Proportional{}.Calibrate(c, m, s, cfg, log)
}

// fitQuadraticSolve fits a*x^2+b*x+c to the three (x,y) samples and
// solves a*x^2+b*x+(c-target)=0, returning the smaller positive root
// when both are positive. ok is false if the three x values are not distinct or
// no positive real root exists.
func fitQuadraticSolve(x, y []float64, target float64) (float64, bool) {
	if len(x) != 3 || len(y) != 3 {
		return 0, false
	}
	x0, x1, x2 := x[0], x[1], x[2]
	if x0 == x1 || x1 == x2 || x0 == x2 {
		return 0, false
	}
	// Each sample contributes a Lagrange basis polynomial L_k(x); sum
	// y_k*L_k(x) and collect its x^2, x^1, x^0 coefficients into a, b, c.
	l0 := lagrangeCoeffs(x0, x1, x2)
	l1 := lagrangeCoeffs(x1, x0, x2)
	l2 := lagrangeCoeffs(x2, x0, x1)
	a := y[0]*l0[0] + y[1]*l1[0] + y[2]*l2[0]
	b := y[0]*l0[1] + y[1]*l1[1] + y[2]*l2[1]
	c := y[0]*l0[2] + y[1]*l1[2] + y[2]*l2[2]

	if a == 0 {
		if b == 0 {
			return 0, false
		}
		root := (target - c) / b
		return root, root > 0
	}
	disc := b*b - 4*a*(c-target)
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	r1 := (-b + sq) / (2 * a)
	r2 := (-b - sq) / (2 * a)
	switch {
	case r1 > 0 && r2 > 0:
		return math.Min(r1, r2), true
	case r1 > 0:
		return r1, true
	case r2 > 0:
		return r2, true
	default:
		return 0, false
	}
}

// lagrangeCoeffs returns the [x^2, x^1, x^0] coefficients of the
// Lagrange basis polynomial that is 1 at xk and 0 at xi, xj:
//
//	L(x) = (x-xi)(x-xj) / ((xk-xi)(xk-xj))
func lagrangeCoeffs(xk, xi, xj float64) [3]float64 {
	denom := (xk - xi) * (xk - xj)
	return [3]float64{
		1 / denom,
		-(xi + xj) / denom,
		(xi * xj) / denom,
	}
}

// LinearRegression keeps a running weighted-linear-regression history
// of (step, acceptance) per parameter and, each round, solves the
// fitted line for the step hitting the target: next = (target-d)/k.
// The new step is clamped to [0, 10000*range].
type LinearRegression struct{}

func (LinearRegression) Calibrate(c *chain.Chain, m model.Model, s step.Stepper, cfg Config, log *ptmcmclog.Logger) error {
	target := perParamTarget(cfg.TargetAcceptance, c.NPar)
	hists := make([]history, c.NPar)
	limit := cfg.IterLimit * c.NPar

	for round := 0; ; round++ {
		rates, global, err := measureRound(c, m, s, cfg)
		if err != nil {
			return err
		}
		maxDelta := 0.0
		for i := 0; i < c.NPar; i++ {
			hists[i].add(c.ParamsStep[i], rates[i])
			k, d, ok := weightedLinearFit(hists[i].steps, hists[i].rates)
			next := c.ParamsStep[i]
			if ok && k != 0 {
				next = (target - d) / k
			}
			next = math.Max(next, 0)
			if r := 10000 * c.Range(i); next > r {
				next = r
			}
			if next > 0 {
				delta := math.Abs(next - c.ParamsStep[i])
				if delta > maxDelta {
					maxDelta = delta
				}
				c.ParamsStep[i] = next
			}
			if err := checkDivergence(c, i, cfg, log); err != nil {
				return err
			}
		}
		if maxDelta < 1e-9 && math.Abs(global-cfg.TargetAcceptance) <= cfg.MaxARDeviation {
			return nil
		}
		if round >= limit {
			return ErrIterLimitExceeded
		}
	}
}

// weightedLinearFit fits y = k*x + d with weights equal to index order
// (later, more-converged observations count more).
func weightedLinearFit(x, y []float64) (k, d float64, ok bool) {
	n := len(x)
	if n < 2 {
		return 0, 0, false
	}
	var sw, swx, swy, swxx, swxy float64
	for i := 0; i < n; i++ {
		w := float64(i + 1)
		sw += w
		swx += w * x[i]
		swy += w * y[i]
		swxx += w * x[i] * x[i]
		swxy += w * x[i] * y[i]
	}
	denom := sw*swxx - swx*swx
	if denom == 0 {
		return 0, 0, false
	}
	k = (sw*swxy - swx*swy) / denom
	d = (swy - k*swx) / sw
	return k, d, true
}

// Multilinear calibrates all parameters together in joint rounds. It
// treats each parameter independently within the joint round (the
// cross terms are dominated, in practice, by the diagonal), reusing
// the same index-order-weighted fit as LinearRegression; observations
// are not weighted by how accurately their acceptance rates were
// measured. Each parameter's move toward its fitted step is scaled by
// its share of the joint deviation from the target, so parameters
// further from the target move further.
type Multilinear struct{}

func (Multilinear) Calibrate(c *chain.Chain, m model.Model, s step.Stepper, cfg Config, log *ptmcmclog.Logger) error {
	target := perParamTarget(cfg.TargetAcceptance, c.NPar)
	hists := make([]history, c.NPar)
	limit := cfg.IterLimit * c.NPar

	for round := 0; ; round++ {
		rates, global, err := measureRound(c, m, s, cfg)
		if err != nil {
			return err
		}
		jointDeviation := 0.0
		for i := range rates {
			jointDeviation += math.Abs(rates[i] - target)
		}
		maxDelta := 0.0
		for i := 0; i < c.NPar; i++ {
			hists[i].add(c.ParamsStep[i], rates[i])
			k, d, ok := weightedLinearFit(hists[i].steps, hists[i].rates)
			next := c.ParamsStep[i]
			if ok && k != 0 {
				// Weight the move by this parameter's share of the
				// joint deviation: parameters further from target move
				// further toward their fitted solution.
				weight := 1.0
				if jointDeviation > 0 {
					weight = math.Abs(rates[i]-target) / jointDeviation * float64(c.NPar)
				}
				fitted := (target - d) / k
				next = c.ParamsStep[i] + weight*(fitted-c.ParamsStep[i])
			}
			next = math.Max(next, 0)
			if r := 10000 * c.Range(i); next > r {
				next = r
			}
			if next > 0 {
				delta := math.Abs(next - c.ParamsStep[i])
				if delta > maxDelta {
					maxDelta = delta
				}
				c.ParamsStep[i] = next
			}
			if err := checkDivergence(c, i, cfg, log); err != nil {
				return err
			}
		}
		if maxDelta < 1e-9 && math.Abs(global-cfg.TargetAcceptance) <= cfg.MaxARDeviation {
			return nil
		}
		if round >= limit {
			return ErrIterLimitExceeded
		}
	}
}

// AssessAccuracy runs proposals on parameter i (or step_all proposals
// when i < 0) until the acceptance-rate estimate is accurate enough.
// The accuracy of the estimate after n steps is taken as maxdev/n,
// where maxdev is the maximum deviation of the cumulative accept count
// from the linear ramp rate*j over the accept/reject history; the
// required accuracy adapts to |observed-target|*AccuracyDeviationFactor,
// clamped to [AccuracyMin, AccuracyMax]. When the estimate is not yet
// accurate enough, the history is extended to maxdev/required steps,
// rounded up to a multiple of 8.
func AssessAccuracy(c *chain.Chain, m model.Model, s step.Stepper, i int, target float64, cfg Config) (rate float64, n int, err error) {
	n = 40
	var mean running.Mean
	var acceptsLog []bool

	for {
		for len(acceptsLog) < n {
			var accepted bool
			var stepErr error
			if i < 0 {
				accepted, stepErr = s.StepAll(c, m)
			} else {
				accepted, stepErr = s.StepOne(c, m, i)
			}
			if stepErr != nil {
				return mean.Mean(), len(acceptsLog), stepErr
			}
			acceptsLog = append(acceptsLog, accepted)
			indicator := 0.0
			if accepted {
				indicator = 1
			}
			mean.Accum(indicator)
		}
		rate = mean.Mean()

		// Maximum deviation of the cumulative accept count from the
		// ideal ramp rate*j, floored at one count.
		maxdev := 1.0
		cum := 0.0
		for j, a := range acceptsLog {
			if a {
				cum++
			}
			if d := math.Abs(cum - rate*float64(j)); d > maxdev {
				maxdev = d
			}
		}
		accuracy := maxdev / float64(n)
		required := requiredAccuracy(rate, target, cfg)
		if accuracy <= required {
			return rate, n, nil
		}
		if n > cfg.IterLimit {
			return rate, n, ErrIterLimitExceeded
		}
		n = (int(maxdev/required/8) + 1) * 8
	}
}

func requiredAccuracy(observed, target float64, cfg Config) float64 {
	acc := math.Abs(observed-target) * cfg.AccuracyDeviationFactor
	if acc < cfg.AccuracyMin {
		return cfg.AccuracyMin
	}
	if acc > cfg.AccuracyMax {
		return cfg.AccuracyMax
	}
	return acc
}

// InferStepwidthFactors runs a provisional calibration of a second
// chain at beta1 and returns the per-parameter inter-chain stepwidth
// factor relative to an already-calibrated chain 0 (steps0). The
// caller is responsible for restoring chain1's state afterward if it
// is to be reused.
func InferStepwidthFactors(chain0Steps []float64, chain1 *chain.Chain, m model.Model, s step.Stepper, strat Strategy, cfg Config, beta1 float64, log *ptmcmclog.Logger) ([]float64, error) {
	chain1.Beta = beta1
	if err := strat.Calibrate(chain1, m, s, cfg, log); err != nil {
		return nil, fmt.Errorf("calibrate: stepwidth factor inference: %w", err)
	}
	return ladder.StepwidthFactors(chain0Steps, chain1.ParamsStep, beta1), nil
}

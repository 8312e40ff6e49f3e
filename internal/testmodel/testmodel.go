// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testmodel provides small model.Model implementations used
// across this module's test suites. It is not part of the public API.
package testmodel

import (
	"math"

	"github.com/ptmcmc-project/ptmcmc/chain"
)

// Gaussian implements ln L(x) = -x^2/(2*Sigma^2) with a flat prior.
type Gaussian struct {
	Sigma float64
}

// CalcModel implements model.Model.
func (g Gaussian) CalcModel(c *chain.Chain, _ []float64) error {
	x := c.Params[0]
	sigma := g.Sigma
	if sigma == 0 {
		sigma = 1
	}
	loglike := -x * x / (2 * sigma * sigma)
	c.Prior = 0
	c.Prob = c.Beta*loglike + c.Prior
	return nil
}

// CalcModelFor implements model.Model; the Gaussian is cheap enough
// that the incremental path just recomputes from scratch.
func (g Gaussian) CalcModelFor(c *chain.Chain, _ int, _ float64) error {
	return g.CalcModel(c, nil)
}

// Bimodal implements
//
//	ln L(x) = ln( exp(-(x-3)^2/2) + exp(-(x+3)^2/2) )
type Bimodal struct{}

// CalcModel implements model.Model.
func (Bimodal) CalcModel(c *chain.Chain, _ []float64) error {
	x := c.Params[0]
	a := -(x - 3) * (x - 3) / 2
	b := -(x + 3) * (x + 3) / 2
	loglike := logSumExp(a, b)
	c.Prior = 0
	c.Prob = c.Beta*loglike + c.Prior
	return nil
}

// CalcModelFor implements model.Model.
func (m Bimodal) CalcModelFor(c *chain.Chain, i int, oldValue float64) error {
	return m.CalcModel(c, nil)
}

func logSumExp(a, b float64) float64 {
	m := math.Max(a, b)
	return m + math.Log(math.Exp(a-m)+math.Exp(b-m))
}

// GaussianPrior implements a Gaussian likelihood with a Gaussian
// prior, whose marginal evidence is known analytically.
//
//	ln L(x) = -(x-Mu)^2/(2*LikeSigma^2)
//	ln prior(x) = -x^2/(2*PriorSigma^2) - ln(PriorSigma*sqrt(2*pi))
type GaussianPrior struct {
	Mu         float64
	LikeSigma  float64
	PriorSigma float64
}

// CalcModel implements model.Model.
func (g GaussianPrior) CalcModel(c *chain.Chain, _ []float64) error {
	x := c.Params[0]
	loglike := -(x - g.Mu) * (x - g.Mu) / (2 * g.LikeSigma * g.LikeSigma)
	logprior := -x*x/(2*g.PriorSigma*g.PriorSigma) - math.Log(g.PriorSigma*math.Sqrt(2*math.Pi))
	c.Prior = logprior
	c.Prob = c.Beta*loglike + c.Prior
	return nil
}

// CalcModelFor implements model.Model.
func (g GaussianPrior) CalcModelFor(c *chain.Chain, i int, oldValue float64) error {
	return g.CalcModel(c, nil)
}

// AnalyticEvidence returns the closed-form ln p(D|M) for GaussianPrior:
// the convolution of two Gaussians, ln N(Mu; 0, sqrt(LikeSigma^2+PriorSigma^2)).
func (g GaussianPrior) AnalyticEvidence() float64 {
	v := g.LikeSigma*g.LikeSigma + g.PriorSigma*g.PriorSigma
	return -g.Mu*g.Mu/(2*v) - 0.5*math.Log(2*math.Pi*v)
}

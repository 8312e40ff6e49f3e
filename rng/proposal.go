// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rng

import "gonum.org/v1/gonum/stat/distuv"

// ProposalKind selects the jump distribution family used by the
// Metropolis proposal step. The choice is made once, at configuration
// time, and applies to every parameter of every chain; it is not
// switched per-step.
type ProposalKind int

const (
	// Gaussian draws jumps from a zero-mean normal with the requested
	// scale. This is the default.
	Gaussian ProposalKind = iota
	// Logistic draws jumps from a zero-mean logistic distribution,
	// which has heavier tails than Gaussian at the same scale.
	Logistic
	// Flat draws jumps uniformly from [-scale, scale].
	Flat
)

// String renders the proposal kind for logging and error messages.
func (k ProposalKind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case Logistic:
		return "logistic"
	case Flat:
		return "flat"
	default:
		return "unknown"
	}
}

// Proposal draws a single jump δ scaled by the caller-supplied step
// width. It wraps a gonum.org/v1/gonum/stat/distuv distribution so
// that the draw is backed by the chain's own rand source, matching the
// Src-per-instance idiom used throughout distuv (e.g. distuv.Gumbel).
type Proposal struct {
	kind ProposalKind
}

// NewProposal returns a Proposal for the given kind. An unrecognized
// kind panics: the kind is a configuration-time constant, not
// user-facing input, so an invalid value is a programming error.
func NewProposal(kind ProposalKind) Proposal {
	switch kind {
	case Gaussian, Logistic, Flat:
		return Proposal{kind: kind}
	default:
		panic("rng: unknown proposal kind")
	}
}

// Kind reports which distribution family this proposal draws from.
func (p Proposal) Kind() ProposalKind { return p.kind }

// Draw returns a single jump δ with scale sigma, using src as the
// entropy source. sigma must be > 0. Each family interprets sigma as
// its own native scale parameter: the Gaussian standard deviation, the
// logistic scale, or the half-width of the flat interval.
func (p Proposal) Draw(src *Source, sigma float64) float64 {
	switch p.kind {
	case Gaussian:
		return distuv.Normal{Mu: 0, Sigma: sigma, Src: src.Rand()}.Rand()
	case Logistic:
		// sigma is the logistic scale parameter itself, not a stddev;
		// the draw's stddev is sigma*pi/sqrt(3).
		return distuv.Logistic{Mu: 0, S: sigma, Src: src.Rand()}.Rand()
	case Flat:
		return distuv.Uniform{Min: -sigma, Max: sigma, Src: src.Rand()}.Rand()
	default:
		panic("rng: unknown proposal kind")
	}
}

// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evidence implements thermodynamic-integration estimation of
// the marginal data evidence ln p(D|M) from per-chain tempered
// log-likelihood streams.
package evidence

import (
	"errors"
	"math"
)

// ErrEmptyStream is returned when a chain's stream has no samples.
var ErrEmptyStream = errors.New("evidence: chain has no recorded samples")

// ChainStream is one chain's recorded tempered log-likelihood samples
// alongside its β. Each value is prob − prior = β·lnL — the second
// column of the per-chain likelihood dump — so that
// s_j = mean(value)/β_j recovers the mean pure log-likelihood at that
// temperature. Summing the full log-posterior instead would fold the
// prior into the integrand, scaled by 1/β.
type ChainStream struct {
	Beta     float64
	LogLikes []float64
}

// Result is the outcome of a thermodynamic-integration evidence
// estimate: the total ln p(D|M), and the per-chain mean
// log-likelihood-at-temperature s_j used to compute it (for
// diagnostics and plotting).
type Result struct {
	LogEvidence float64
	MeanLogLike []float64 // indexed the same as the input streams
}

// Estimate computes ln p(D|M) from per-chain tempered log-likelihood
// streams using the trapezoid-like thermodynamic-integration sum
//
//	s_j = mean(β_j·lnL) / β_j
//	ln p(D|M) = Σ_{j=N_β-1 downto 0} s_j * (β_j - β_{j-1})   with β_{-1}=0
//
// streams must be ordered with streams[0] at β=1 (the
// posterior chain) down to streams[len-1] at β=β₀, matching the
// ensemble's ordering convention.
func Estimate(streams []ChainStream) (Result, error) {
	n := len(streams)
	meanLogLike := make([]float64, n)
	for j, s := range streams {
		if len(s.LogLikes) == 0 {
			return Result{}, ErrEmptyStream
		}
		var sum float64
		for _, p := range s.LogLikes {
			sum += p
		}
		meanLogLike[j] = sum / float64(len(s.LogLikes)) / s.Beta
	}

	var total float64
	prevBeta := 0.0
	for j := n - 1; j >= 0; j-- {
		total += meanLogLike[j] * (streams[j].Beta - prevBeta)
		prevBeta = streams[j].Beta
	}

	return Result{LogEvidence: total, MeanLogLike: meanLogLike}, nil
}

// SupportBand names one row of the Jeffreys support-strength scale.
type SupportBand int

const (
	Negative SupportBand = iota
	Barely
	Substantial
	Strong
	VeryStrong
	Decisive
)

// String renders the support band as conventional Jeffreys-scale
// wording.
func (b SupportBand) String() string {
	switch b {
	case Negative:
		return "negative (supports other model)"
	case Barely:
		return "barely worth mentioning"
	case Substantial:
		return "substantial"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very strong"
	case Decisive:
		return "decisive"
	default:
		return "unknown"
	}
}

var jeffreysThresholds = []float64{
	math.Log(3),
	math.Log(10),
	math.Log(30),
	math.Log(100),
}

// Support classifies a ln-evidence DIFFERENCE between two models
// (ln p(D|M1) - ln p(D|M2)) on the Jeffreys scale. A non-positive
// delta supports the other model.
func Support(deltaLogEvidence float64) SupportBand {
	if deltaLogEvidence <= 0 {
		return Negative
	}
	band := Barely
	for _, threshold := range jeffreysThresholds {
		if deltaLogEvidence > threshold {
			band++
		}
	}
	return band
}

// SupportTable is a plain rendering of the Jeffreys scale used by
// callers that want to print a table rather than classify a single
// value.
type SupportTable struct {
	Bands      []SupportBand
	Thresholds []float64 // lower bound of each band above Negative
}

// DefaultSupportTable returns the standard six-row Jeffreys table.
func DefaultSupportTable() SupportTable {
	return SupportTable{
		Bands:      []SupportBand{Negative, Barely, Substantial, Strong, VeryStrong, Decisive},
		Thresholds: append([]float64{0}, jeffreysThresholds...),
	}
}

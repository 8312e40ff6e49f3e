// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestNewProposalPanicsOnUnknownKind(t *testing.T) {
	assert.Panics(t, func() { NewProposal(ProposalKind(99)) })
}

func TestProposalKindString(t *testing.T) {
	assert.Equal(t, "gaussian", Gaussian.String())
	assert.Equal(t, "logistic", Logistic.String())
	assert.Equal(t, "flat", Flat.String())
	assert.Equal(t, "unknown", ProposalKind(99).String())
}

func TestGaussianDrawStatistics(t *testing.T) {
	p := NewProposal(Gaussian)
	src := New(42)
	const n = 50000
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = p.Draw(src, 2.0)
	}
	mean := stat.Mean(samples, nil)
	sd := stat.StdDev(samples, nil)
	require.InDelta(t, 0, mean, 0.05)
	require.InDelta(t, 2.0, sd, 0.05)
}

func TestFlatDrawIsBounded(t *testing.T) {
	p := NewProposal(Flat)
	src := New(7)
	for i := 0; i < 10000; i++ {
		v := p.Draw(src, 3.0)
		assert.GreaterOrEqual(t, v, -3.0)
		assert.LessOrEqual(t, v, 3.0)
	}
}

func TestLogisticDrawIsFinite(t *testing.T) {
	p := NewProposal(Logistic)
	src := New(9)
	for i := 0; i < 1000; i++ {
		v := p.Draw(src, 1.0)
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

// The logistic draw treats sigma as the distribution's native scale
// parameter, so its standard deviation is sigma*pi/sqrt(3).
func TestLogisticDrawStatistics(t *testing.T) {
	p := NewProposal(Logistic)
	src := New(11)
	const n = 50000
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = p.Draw(src, 1.0)
	}
	mean := stat.Mean(samples, nil)
	sd := stat.StdDev(samples, nil)
	require.InDelta(t, 0, mean, 0.05)
	require.InDelta(t, math.Pi/math.Sqrt(3), sd, 0.05)
}

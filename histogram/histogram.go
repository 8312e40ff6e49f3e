// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package histogram builds per-parameter marginal histograms, the
// MCMC-error estimate, and peak extraction from a parameter's visited
// value stream.
package histogram

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyValues is returned when Build or MCMCError is given no
// samples.
var ErrEmptyValues = errors.New("histogram: no values")

// ErrInvalidBounds is returned when min >= max.
var ErrInvalidBounds = errors.New("histogram: min must be < max")

// binEdgeNudgeFraction widens the top bin edge by range/10000 so the
// maximum observed value falls inside the last bin rather than being
// dropped by floor-based bucketing.
const binEdgeNudgeFraction = 1.0 / 10000

// Histogram is a normalised density histogram over [Min, Max] with
// NBins equal-width bins. Density integrates to 1 within floating
// point tolerance.
type Histogram struct {
	Min, Max float64
	NBins    int
	// Density holds density[k] for bin k spanning
	// [Min+k*width, Min+(k+1)*width), except the scaled last bin.
	Density []float64
	Mean    float64
	StdDev  float64
}

// Build constructs a histogram of values into nBins equal-width bins
// spanning [min, max], normalised to a probability density (area under
// the bars sums to 1). Mean and StdDev are computed directly from
// values via gonum.org/v1/gonum/stat, not recovered from the binned
// density.
func Build(values []float64, min, max float64, nBins int) (Histogram, error) {
	if len(values) == 0 {
		return Histogram{}, ErrEmptyValues
	}
	if min >= max {
		return Histogram{}, ErrInvalidBounds
	}

	width := (max - min) / float64(nBins)
	nudgedMax := max + (max-min)*binEdgeNudgeFraction
	nudgedWidth := (nudgedMax - min) / float64(nBins)

	counts := make([]float64, nBins)
	for _, v := range values {
		if v < min || v > max {
			continue
		}
		bin := int((v - min) / nudgedWidth)
		if bin >= nBins {
			bin = nBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	n := float64(len(values))
	density := make([]float64, nBins)
	for i, cnt := range counts {
		density[i] = cnt / n / width
	}

	return Histogram{
		Min:     min,
		Max:     max,
		NBins:   nBins,
		Density: density,
		Mean:    stat.Mean(values, nil),
		StdDev:  stat.StdDev(values, nil),
	}, nil
}

// Integral returns the area under the histogram's density bars; for a
// correctly normalised histogram this is 1 within floating-point
// tolerance.
func (h Histogram) Integral() float64 {
	width := (h.Max - h.Min) / float64(h.NBins)
	var sum float64
	for _, d := range h.Density {
		sum += d * width
	}
	return sum
}

// MCMCError estimates the Monte-Carlo standard error of the sample
// mean from an autocorrelated stream: the whole stream is partitioned
// into batches of size floor(sqrt(n)), the trailing partial batch is
// dropped, and the error is the standard deviation of the batch means.
func MCMCError(values []float64) (float64, error) {
	n := len(values)
	if n == 0 {
		return 0, ErrEmptyValues
	}
	batchSize := int(math.Sqrt(float64(n)))
	if batchSize == 0 {
		return 0, nil
	}
	nBatches := n / batchSize

	batchMeans := make([]float64, 0, nBatches)
	for b := 0; b < nBatches; b++ {
		start := b * batchSize
		end := start + batchSize
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		batchMeans = append(batchMeans, sum/float64(batchSize))
	}
	if len(batchMeans) < 2 {
		return 0, nil
	}

	mean := stat.Mean(batchMeans, nil)
	var ss float64
	for _, bm := range batchMeans {
		ss += (bm - mean) * (bm - mean)
	}
	return math.Sqrt(ss / float64(len(batchMeans))), nil
}

// HighMCMCError reports whether the MCMC error is worth flagging:
// above 1% of the marginal's standard deviation.
func HighMCMCError(mcmcErr, stdDev float64) bool {
	return mcmcErr > 0.01*stdDev
}

// Peak is one detected mode of a marginal distribution.
type Peak struct {
	Median, LowerQuartile, UpperQuartile float64
	MassFraction                         float64
}

// DetectPeaks sorts values, walks the sorted list, and starts a new
// peak whenever a gap exceeds gapFraction of (max-min); 0.01 is the
// conventional choice. Each returned peak reports its median,
// quartiles, and the fraction of total samples it contains.
func DetectPeaks(values []float64, min, max float64, gapFraction float64) []Peak {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	threshold := gapFraction * (max - min)
	var groups [][]float64
	current := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] > threshold {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, sorted[i])
	}
	groups = append(groups, current)

	total := float64(len(sorted))
	peaks := make([]Peak, len(groups))
	for i, g := range groups {
		peaks[i] = Peak{
			Median:        quantileSorted(g, 0.5),
			LowerQuartile: quantileSorted(g, 0.25),
			UpperQuartile: quantileSorted(g, 0.75),
			MassFraction:  float64(len(g)) / total,
		}
	}
	return peaks
}

// quantileSorted wraps gonum.org/v1/gonum/stat.Quantile for an
// already-sorted slice.
func quantileSorted(sorted []float64, p float64) float64 {
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

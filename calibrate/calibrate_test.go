// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package calibrate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptmcmc-project/ptmcmc/chain"
	"github.com/ptmcmc-project/ptmcmc/internal/testmodel"
	"github.com/ptmcmc-project/ptmcmc/ptmcmclog"
	"github.com/ptmcmc-project/ptmcmc/rng"
	"github.com/ptmcmc-project/ptmcmc/step"
)

func newGaussianChain(t *testing.T, seed uint64, initialStep float64) *chain.Chain {
	t.Helper()
	c := chain.New(1, seed)
	require.NoError(t, chain.Load(c, []chain.ParamRow{
		{Start: 0, Min: -10, Max: 10, Name: "x", Step: initialStep},
	}))
	m := testmodel.Gaussian{Sigma: 1}
	require.NoError(t, m.CalcModel(c, nil))
	return c
}

func TestPerParamTarget(t *testing.T) {
	assert.InDelta(t, 0.23, perParamTarget(0.23, 1), 1e-12)
	got := perParamTarget(0.23, 3)
	assert.Greater(t, got, 0.23)
	assert.Less(t, got, 1.0)
}

func TestBurnInRestoresStepWidthsAndResetsCounters(t *testing.T) {
	c := newGaussianChain(t, 1, 2)
	orig := rng.Dup(c.ParamsStep)
	m := testmodel.Gaussian{Sigma: 1}
	s := step.New(rng.NewProposal(rng.Gaussian))

	require.NoError(t, BurnIn(c, m, s, 200))
	assert.Equal(t, orig, c.ParamsStep)
	assert.Equal(t, uint64(0), c.Accept)
	assert.Equal(t, uint64(0), c.Reject)
	require.NoError(t, c.Check())
}

func TestProportionalConvergesFromOversizedStep(t *testing.T) {
	c := newGaussianChain(t, 42, 20) // way too large relative to sigma=1
	m := testmodel.Gaussian{Sigma: 1}
	s := step.New(rng.NewProposal(rng.Gaussian))
	cfg := DefaultConfig()
	cfg.IterLimit = 2000

	err := Proportional{}.Calibrate(c, m, s, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Check())
}

// A flat likelihood accepts everything, so Proportional keeps growing
// the step width, the soft clamp keeps pulling it back to the range,
// and the round counter is the only thing that can stop it.
func TestProportionalFlatLikelihoodHitsIterLimit(t *testing.T) {
	c := newGaussianChain(t, 1, 0.001)
	m := flatAlwaysAccept{}
	require.NoError(t, m.CalcModel(c, nil))
	s := step.New(rng.NewProposal(rng.Gaussian))
	cfg := DefaultConfig()
	cfg.IterReadjust = 10
	cfg.IterLimit = 50
	cfg.Mul = 0.5 // grow by 1/0.5=2x per round while over-accepting

	err := Proportional{}.Calibrate(c, m, s, cfg, nil)
	require.ErrorIs(t, err, ErrIterLimitExceeded)
	assert.LessOrEqual(t, c.ParamsStep[0], c.Range(0))
}

func TestCheckDivergenceFatalPastTenThousandTimesRange(t *testing.T) {
	c := newGaussianChain(t, 1, 1)
	cfg := DefaultConfig()
	c.ParamsStep[0] = 20000 * c.Range(0)
	err := checkDivergence(c, 0, cfg, nil)
	require.ErrorIs(t, err, ErrStepDiverged)
}

func TestCheckDivergenceClampsAndWarnsBeforeFatalThreshold(t *testing.T) {
	c := newGaussianChain(t, 1, 1)
	cfg := DefaultConfig()
	var buf bytes.Buffer
	log := ptmcmclog.New(ptmcmclog.Config{Level: ptmcmclog.LevelWarn, Format: ptmcmclog.FormatJSON, Output: &buf})

	rangeWidth := c.Range(0)
	c.ParamsStep[0] = rangeWidth * 2 // past the range, but far short of 10000x

	err := checkDivergence(c, 0, cfg, log)
	require.NoError(t, err)
	assert.Equal(t, rangeWidth, c.ParamsStep[0])
	assert.Contains(t, buf.String(), "likely insensitive")
}

func TestCheckDivergenceNilLoggerIsNoOp(t *testing.T) {
	c := newGaussianChain(t, 1, 1)
	cfg := DefaultConfig()
	rangeWidth := c.Range(0)
	c.ParamsStep[0] = rangeWidth * 2

	err := checkDivergence(c, 0, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, rangeWidth, c.ParamsStep[0])
}

func TestAssessAccuracyConverges(t *testing.T) {
	c := newGaussianChain(t, 3, 1)
	m := testmodel.Gaussian{Sigma: 1}
	s := step.New(rng.NewProposal(rng.Gaussian))
	cfg := DefaultConfig()

	rate, n, err := AssessAccuracy(c, m, s, 0, 0.23, cfg)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.GreaterOrEqual(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 1.0)
}

func TestAssessAccuracyGlobalUsesStepAll(t *testing.T) {
	c := newGaussianChain(t, 5, 1)
	m := testmodel.Gaussian{Sigma: 1}
	s := step.New(rng.NewProposal(rng.Gaussian))
	cfg := DefaultConfig()

	rate, n, err := AssessAccuracy(c, m, s, -1, 0.23, cfg)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Equal(t, uint64(n), c.Accept+c.Reject)
	assert.InDelta(t, c.GlobalAcceptanceRate(), rate, 1e-12)
}

func TestSaveSuggestedWritesParameterFileRows(t *testing.T) {
	c := chain.New(2, 1)
	require.NoError(t, chain.Load(c, []chain.ParamRow{
		{Start: 0.5, Min: -10, Max: 10, Name: "amplitude", Step: 1},
		{Start: 2, Min: 0, Max: 6.28, Name: "phase", Step: 0.1},
	}))
	c.ParamsBest[0], c.ParamsBest[1] = 1.25, 3.5
	c.ParamsStep[0], c.ParamsStep[1] = 0.7, 0.05

	var buf bytes.Buffer
	require.NoError(t, SaveSuggested(&buf, c))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1.25\t-10\t10\tamplitude\t0.69999999999999996", lines[0])
	assert.Contains(t, lines[1], "phase")
}

func TestSaveLoadRecordRoundTrip(t *testing.T) {
	records := []Record{
		{Beta: 1, Steps: []float64{0.5, 1.5}, Params: []float64{0.1, -0.2}},
		{Beta: 0.25, Steps: []float64{2.0, 3.0}, Params: []float64{0, 0}},
	}
	var buf bytes.Buffer
	require.NoError(t, SaveRecords(&buf, records))

	got, err := LoadRecords(&buf, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round-tripped records differ (-want +got):\n%s", diff)
	}
}

func TestLoadRecordsRejectsWrongFieldCount(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("1.0\t0.5\n")
	_, err := LoadRecords(&buf, 2)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

// flatAlwaysAccept returns the same log-posterior everywhere, so every
// proposal is accepted (p1 >= p0 always holds) and Proportional keeps
// growing the step width until the soft clamp holds it at the range.
type flatAlwaysAccept struct{}

func (flatAlwaysAccept) CalcModel(c *chain.Chain, _ []float64) error {
	c.Prior = 0
	c.Prob = 0
	return nil
}

func (flatAlwaysAccept) CalcModelFor(c *chain.Chain, _ int, _ float64) error {
	c.Prior = 0
	c.Prob = 0
	return nil
}

// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ptmcmclog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	l.Report(5, map[string]any{"chain": 0})
	require.Contains(t, buf.String(), `"iter":5`)
	require.Contains(t, buf.String(), `"level":"info"`)
}

func TestCalibrationWarningIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelWarn})
	l.CalibrationWarning(2, "amplitude", 50.0, 10.0)
	out := buf.String()
	assert.Contains(t, out, `"param_name":"amplitude"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestErrorLevelFiltersOutInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelError})
	l.Report(1, nil)
	assert.Empty(t, buf.String())
	l.Error(errors.New("boom"), "calibration failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Report(1, nil)
		l.CalibrationWarning(0, "x", 1, 1)
		l.Error(errors.New("x"), "msg")
		_ = l.Zerolog()
	})
}

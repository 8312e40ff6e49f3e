// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ptmcmclog provides the structured logging wrapper used by
// the calibrator and sampler driver for periodic-reporting and
// calibration-warning output, backed by github.com/rs/zerolog.
package ptmcmclog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level selects the minimum severity a Logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the wire format of emitted log lines.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures a Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger wraps a zerolog.Logger behind the small surface the
// calibrator and sampler driver need: structured key/value fields on
// periodic-reporting and calibration-warning events. A nil *Logger is
// valid and discards everything, matching optimize.Settings' nil-is-
// fine convention for its optional Recorder.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger from cfg. A zero Config logs JSON at info level
// to stdout.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	var out io.Writer = cfg.Output
	if cfg.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339, NoColor: false}
	}
	z := zerolog.New(out).With().Timestamp().Logger()
	switch cfg.Level {
	case LevelDebug:
		z = z.Level(zerolog.DebugLevel)
	case LevelWarn:
		z = z.Level(zerolog.WarnLevel)
	case LevelError:
		z = z.Level(zerolog.ErrorLevel)
	default:
		z = z.Level(zerolog.InfoLevel)
	}
	return &Logger{z: z}
}

// Report emits a periodic progress line: iteration count plus
// per-chain acceptance rates and swap counts. A nil Logger is a
// no-op.
func (l *Logger) Report(iter uint64, fields map[string]any) {
	if l == nil {
		return
	}
	ev := l.z.Info().Uint64("iter", iter)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("sampler progress")
}

// CalibrationWarning warns that a step width drifted past the
// parameter range and was clamped. A nil Logger is a no-op.
func (l *Logger) CalibrationWarning(paramIndex int, name string, step, rangeWidth float64) {
	if l == nil {
		return
	}
	l.z.Warn().
		Int("param_index", paramIndex).
		Str("param_name", name).
		Float64("step", step).
		Float64("range", rangeWidth).
		Msg("step width exceeds parameter range, clamped; parameter likely insensitive")
}

// Error emits an error-level event with a message and fields. A nil
// Logger is a no-op.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	l.z.Error().Err(err).Msg(msg)
}

// Zerolog returns the underlying zerolog.Logger for callers that need
// direct access (e.g. to pass into a third-party library that accepts
// one).
func (l *Logger) Zerolog() zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.z
}

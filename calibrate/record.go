// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package calibrate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ptmcmc-project/ptmcmc/chain"
)

// ErrMalformedRecord is returned by LoadRecords when a line does not
// have exactly 1+2*nPar whitespace-separated fields.
var ErrMalformedRecord = errors.New("calibrate: malformed calibration record")

// Record is one chain's persisted calibration state: its β, its
// calibrated step-width vector, and its starting position vector.
type Record struct {
	Beta   float64
	Steps  []float64
	Params []float64
}

// SaveRecords writes records in the tabular calibration-file format:
// one line per chain, "β step_1 ... step_n param_1 ... param_n",
// whitespace-separated.
func SaveRecords(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintf(bw, "%.17g", r.Beta); err != nil {
			return err
		}
		for _, v := range r.Steps {
			if _, err := fmt.Fprintf(bw, "\t%.17g", v); err != nil {
				return err
			}
		}
		for _, v := range r.Params {
			if _, err := fmt.Fprintf(bw, "\t%.17g", v); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveSuggested rewrites a parameter file (one row per parameter:
// start, min, max, name, step) with the chain's best-so-far position
// as the start and its calibrated step widths. The caller decides the
// destination (conventionally "<params>_suggested").
func SaveSuggested(w io.Writer, c *chain.Chain) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < c.NPar; i++ {
		_, err := fmt.Fprintf(bw, "%.17g\t%.17g\t%.17g\t%s\t%.17g\n",
			c.ParamsBest[i], c.ParamsMin[i], c.ParamsMax[i], c.ParamsDescr[i], c.ParamsStep[i])
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadRecords reads calibration records written by SaveRecords, one
// per chain, each expected to describe nPar parameters.
func LoadRecords(r io.Reader, nPar int) ([]Record, error) {
	sc := bufio.NewScanner(r)
	var records []Record
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 1+2*nPar {
			return nil, fmt.Errorf("%w: line %d: got %d fields, want %d", ErrMalformedRecord, lineNo, len(fields), 1+2*nPar)
		}
		beta, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: beta: %v", ErrMalformedRecord, lineNo, err)
		}
		rec := Record{Beta: beta, Steps: make([]float64, nPar), Params: make([]float64, nPar)}
		for i := 0; i < nPar; i++ {
			v, err := strconv.ParseFloat(fields[1+i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: step %d: %v", ErrMalformedRecord, lineNo, i, err)
			}
			rec.Steps[i] = v
		}
		for i := 0; i < nPar; i++ {
			v, err := strconv.ParseFloat(fields[1+nPar+i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: param %d: %v", ErrMalformedRecord, lineNo, i, err)
			}
			rec.Params[i] = v
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

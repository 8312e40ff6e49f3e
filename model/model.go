// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model defines the only extension point of the sampler: the
// user-supplied log-likelihood/prior evaluator. The driver is
// polymorphic over any type implementing the Model interface.
package model

import "github.com/ptmcmc-project/ptmcmc/chain"

// Model computes the log-posterior for a chain's current parameter
// vector. Implementations must leave c.Prob equal to the full
// log-posterior at β=1 times β, plus the pure ln prior, and must set
// c.Prior to the pure ln prior so it can be subtracted back out.
//
// Composition happens at build time: a program wires a concrete Model
// into the sampler, or builds a small dispatch table itself, rather
// than loading the model dynamically.
type Model interface {
	// CalcModel recomputes and stores prior and log-posterior for the
	// chain's current Params. old, if non-nil, is the previous
	// parameter vector and may be used for incremental updates; it is
	// always safe to ignore old and recompute from scratch.
	CalcModel(c *chain.Chain, old []float64) error

	// CalcModelFor recomputes the log-posterior after only parameter
	// i changed from oldValue to c.Params[i]. It must produce a
	// result that is semantically equivalent (within floating-point
	// tolerance) to calling CalcModel on the full vector; bit-identical
	// output is not required.
	CalcModelFor(c *chain.Chain, i int, oldValue float64) error
}

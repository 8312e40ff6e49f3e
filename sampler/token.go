// Copyright ©2024 The ptmcmc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sampler

import "sync/atomic"

// Token is a cooperative cancellation/dump-request signal shared
// between the sampler driver and whatever installs an interrupt
// handler. The driver polls it at inner-loop boundaries; it never
// blocks.
type Token struct {
	stop atomic.Bool
	dump atomic.Bool
}

// NewToken returns a fresh, unset Token.
func NewToken() *Token {
	return &Token{}
}

// Stop requests that the driver terminate cleanly at the next inner-
// loop boundary.
func (t *Token) Stop() {
	if t != nil {
		t.stop.Store(true)
	}
}

// Stopped reports whether Stop has been called.
func (t *Token) Stopped() bool {
	return t != nil && t.stop.Load()
}

// RequestDump requests a sample dump at the next boundary without
// terminating the run.
func (t *Token) RequestDump() {
	if t != nil {
		t.dump.Store(true)
	}
}

// DumpRequested reports whether RequestDump has been called, clearing
// the flag so a single request triggers a single dump.
func (t *Token) DumpRequested() bool {
	if t == nil {
		return false
	}
	return t.dump.CompareAndSwap(true, false)
}

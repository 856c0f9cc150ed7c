// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package viewport

import "sync/atomic"

// Source is the read side of a viewport channel. Both the shared-region
// Reader and the message-based FallbackReader satisfy it, so stages are
// indifferent to which transport carries camera state.
type Source interface {
	// Read returns the latest snapshot and whether it changed since the
	// previous Read. It must never block.
	Read() (Snapshot, bool)
}

// Fallback carries viewport state by explicit update messages for hosts
// where the shared-memory region is unavailable. Latency degrades to the
// message cadence but the Read contract is unchanged.
type Fallback struct {
	cur atomic.Pointer[Snapshot]
	gen atomic.Uint64
}

// NewFallback creates an empty fallback channel.
func NewFallback() *Fallback {
	return &Fallback{}
}

// Update publishes a new snapshot. Called by the host adapter when a
// viewport state message arrives.
func (f *Fallback) Update(s Snapshot) {
	f.cur.Store(&s)
	f.gen.Add(1)
}

// FallbackReader is a per-consumer view over a Fallback. Each stage
// creates its own so change detection is independent.
type FallbackReader struct {
	f       *Fallback
	last    Snapshot
	lastGen uint64
	valid   bool
}

// NewFallbackReader creates a reader over the fallback channel.
func NewFallbackReader(f *Fallback) *FallbackReader {
	return &FallbackReader{f: f}
}

// Read implements Source.
func (r *FallbackReader) Read() (Snapshot, bool) {
	gen := r.f.gen.Load()
	if gen == r.lastGen {
		return r.last, false
	}
	p := r.f.cur.Load()
	if p == nil {
		return r.last, false
	}
	changed := !r.valid || snapshotChanged(r.last, *p)
	r.last = *p
	r.lastGen = gen
	r.valid = true
	return r.last, changed
}

var (
	_ Source = (*Reader)(nil)
	_ Source = (*FallbackReader)(nil)
)

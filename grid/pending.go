// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"time"

	"github.com/gogpu/gridrender/protocol"
)

// DefaultRequestTimeout is how long a pending bucket waits for its
// HashCells reply before the request is re-issued. A request that never
// resolves would otherwise leave its region permanently unloaded.
const DefaultRequestTimeout = 5 * time.Second

type pendingEntry struct {
	since     time.Time
	offscreen bool
}

// PendingSet tracks hash buckets that are visible but not yet loaded.
//
// Invariants:
//   - a bucket is requested at most once per pending episode: once it is
//     in the set it is not returned by Update again until it is satisfied,
//     times out, or leaves the visible bounds and comes back;
//   - a bucket scrolled out of view while pending stays in the set
//     (harmless: its data arrives and is cached) and never blocks
//     requests for newly visible buckets.
type PendingSet struct {
	pending map[protocol.HashPos]*pendingEntry
	loaded  map[protocol.HashPos]bool
	timeout time.Duration
}

// NewPendingSet creates an empty set with the given request timeout
// (0 means DefaultRequestTimeout).
func NewPendingSet(timeout time.Duration) *PendingSet {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &PendingSet{
		pending: make(map[protocol.HashPos]*pendingEntry),
		loaded:  make(map[protocol.HashPos]bool),
		timeout: timeout,
	}
}

// Update recomputes the needed buckets for the visible range and returns
// the ones to request this tick: visible buckets that are neither loaded
// nor already pending, plus pending buckets whose request timed out or
// that re-entered view after leaving it.
func (p *PendingSet) Update(visible TileRange, now time.Time) []protocol.HashPos {
	var request []protocol.HashPos

	// Mark pending entries that scrolled out of view; they re-arm when
	// the bucket becomes visible again.
	for h, e := range p.pending {
		if !visible.Contains(h) {
			e.offscreen = true
		}
	}

	for _, h := range visible.Tiles() {
		if p.loaded[h] {
			continue
		}
		if e, ok := p.pending[h]; ok {
			expired := now.Sub(e.since) >= p.timeout
			if !e.offscreen && !expired {
				continue
			}
			// Re-entered view or timed out: start a new episode.
			e.since = now
			e.offscreen = false
			request = append(request, h)
			continue
		}
		p.pending[h] = &pendingEntry{since: now}
		request = append(request, h)
	}
	return request
}

// Satisfy records delivery of a bucket's data, moving it from pending to
// loaded. Unsolicited deliveries (e.g. pushed dirty updates) are recorded
// as loaded too.
func (p *PendingSet) Satisfy(h protocol.HashPos) {
	delete(p.pending, h)
	p.loaded[h] = true
}

// Invalidate drops a bucket from the loaded set so the next Update
// re-requests it if visible. Used when core reports the bucket dirty.
func (p *PendingSet) Invalidate(h protocol.HashPos) {
	delete(p.loaded, h)
	delete(p.pending, h)
}

// Reset clears all state, e.g. on sheet switch.
func (p *PendingSet) Reset() {
	clear(p.pending)
	clear(p.loaded)
}

// PendingCount returns the number of in-flight requests.
func (p *PendingSet) PendingCount() int { return len(p.pending) }

// Loaded reports whether a bucket's data has been delivered.
func (p *PendingSet) Loaded(h protocol.HashPos) bool { return p.loaded[h] }

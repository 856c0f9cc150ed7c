// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package viewport

import "sync/atomic"

// FPSRegion is a tiny shared region of two 32-bit words: the measured
// frames per second and a monotonically increasing frame counter. The
// render stage writes, the host thread reads. Idle frames (nothing drawn)
// do not advance the counter, so the host can detect a quiescent renderer.
type FPSRegion struct {
	fps    atomic.Int32
	frames atomic.Int32
}

// NewFPSRegion allocates a zeroed FPS region.
func NewFPSRegion() *FPSRegion {
	return &FPSRegion{}
}

// StoreFPS publishes the current frames-per-second measurement.
func (r *FPSRegion) StoreFPS(fps int32) { r.fps.Store(fps) }

// AddFrame advances the frame counter by one rendered frame.
func (r *FPSRegion) AddFrame() { r.frames.Add(1) }

// Load returns the current FPS measurement and frame counter.
func (r *FPSRegion) Load() (fps, frames int32) {
	return r.fps.Load(), r.frames.Load()
}

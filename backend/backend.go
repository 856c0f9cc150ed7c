// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend abstracts the drawing implementation behind the render
// stage. Backends register themselves by name; the renderer probes them
// in priority order and falls back until one initializes, so a machine
// without a usable GPU still renders through the software compositor.
package backend

import (
	"errors"
	"image"

	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/viewport"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when no registered backend
	// initializes successfully.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrBadTexture is returned for an unusable texture upload.
	ErrBadTexture = errors.New("backend: bad texture")
)

// Backend draws render batches into an off-screen target. Implementations
// are not safe for concurrent use; the render stage owns its backend and
// calls it from one goroutine.
type Backend interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// Init prepares the backend and allocates a target of the given size
	// in device pixels. A failing Init leaves the backend unusable and
	// the caller moves on to the next candidate.
	Init(width, height int) error

	// Resize reallocates the target. Contents are undefined until the
	// next Draw.
	Resize(width, height int) error

	// UploadTexture registers an atlas page under its UID. Re-uploading
	// an existing UID replaces the page.
	UploadTexture(uid uint32, img *image.RGBA) error

	// Draw renders the quads under the given camera into the target.
	// Glyph quads whose page was never uploaded draw as placeholders.
	Draw(view viewport.Snapshot, quads []batch.Quad) error

	// ReadPixels returns a copy of the current target contents.
	ReadPixels() (*image.RGBA, error)

	// Close releases all backend resources.
	Close()
}

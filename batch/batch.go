// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package batch defines the render batch format produced by the layout
// stage and consumed by the renderer: a flat list of textured quads in
// world space, serialized little-endian into a transferable buffer.
//
// The renderer never re-shapes text; everything it draws arrives here as
// quads referencing font atlas pages by UID. Fills and placeholders carry
// no texture and draw as solid rectangles.
package batch

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/google/uuid"
)

// Quad kinds.
const (
	// KindFill is an untextured solid rectangle.
	KindFill uint8 = iota

	// KindGlyph samples the atlas page named by Page over the UV rect.
	KindGlyph

	// KindPlaceholder marks content that could not be rendered (missing
	// glyph, failed texture). Drawn as a dim solid box.
	KindPlaceholder
)

// Quad is one draw rectangle in world pixels.
type Quad struct {
	X, Y, W, H     float32
	U0, V0, U1, V1 float32
	Page           uint32
	R, G, B, A     uint8
	Kind           uint8
}

const (
	headerSize = 16 + 4 // sheet id + quad count
	quadSize   = 8*4 + 4 + 4 + 1
)

var errTruncated = errors.New("batch: truncated buffer")

// Batch is a decoded render batch.
type Batch struct {
	SheetID uuid.UUID
	Quads   []Quad
}

// Encode serializes the batch into a fresh buffer suitable for a Frame or
// Mailbox transfer.
func Encode(b Batch) []byte {
	buf := make([]byte, headerSize+len(b.Quads)*quadSize)
	copy(buf, b.SheetID[:])
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(b.Quads)))
	off := headerSize
	for _, q := range b.Quads {
		for _, f := range [8]float32{q.X, q.Y, q.W, q.H, q.U0, q.V0, q.U1, q.V1} {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
		binary.LittleEndian.PutUint32(buf[off:], q.Page)
		off += 4
		buf[off], buf[off+1], buf[off+2], buf[off+3] = q.R, q.G, q.B, q.A
		off += 4
		buf[off] = q.Kind
		off++
	}
	return buf
}

// Decode parses a batch buffer.
func Decode(buf []byte) (Batch, error) {
	if len(buf) < headerSize {
		return Batch{}, errTruncated
	}
	var b Batch
	copy(b.SheetID[:], buf[:16])
	n := int(binary.LittleEndian.Uint32(buf[16:]))
	if len(buf) < headerSize+n*quadSize {
		return Batch{}, errTruncated
	}
	b.Quads = make([]Quad, n)
	off := headerSize
	for i := range b.Quads {
		q := &b.Quads[i]
		fs := [8]*float32{&q.X, &q.Y, &q.W, &q.H, &q.U0, &q.V0, &q.U1, &q.V1}
		for _, f := range fs {
			*f = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
		q.Page = binary.LittleEndian.Uint32(buf[off:])
		off += 4
		q.R, q.G, q.B, q.A = buf[off], buf[off+1], buf[off+2], buf[off+3]
		off += 4
		q.Kind = buf[off]
		off++
	}
	return b, nil
}

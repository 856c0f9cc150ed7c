// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package viewport propagates camera and canvas state from the host thread
// to the layout and render stages with minimal latency and without locks.
//
// The shared region is a fixed 144-byte buffer holding two 72-byte slices
// (ping-pong double buffering). The host thread is the only writer; any
// number of stage readers poll the region once per tick. Readers obtain a
// self-consistent snapshot by locking one slice with a compare-and-swap on
// its flag word; a slice held by another reader is simply skipped. Staleness
// is bounded by the write rate, not by synchronization: a reader that loses
// every race keeps its previous snapshot for one tick.
package viewport

import (
	"math"
	"sync/atomic"

	"github.com/google/uuid"
)

// Region layout constants. Each slice is:
//
//	flag     i32   (0 = uninitialized, 1 = ready, 2 = locked)
//	x        f32
//	y        f32
//	scale    f32
//	dpr      f32
//	width    f32
//	height   f32
//	dirty    f32   (0 or 1)
//	reserved 4 bytes
//	sheetID  36 bytes (UUID string)
const (
	// SliceSize is the size of a single viewport slice in bytes.
	SliceSize = 72

	// BufferSize is the total size of the shared region in bytes (two slices).
	BufferSize = 144

	// SheetIDSize is the size of the sheet identifier field in bytes.
	SheetIDSize = 36

	sliceWords  = SliceSize / 4
	bufferWords = BufferSize / 4

	fieldX      = 0
	fieldY      = 1
	fieldScale  = 2
	fieldDPR    = 3
	fieldWidth  = 4
	fieldHeight = 5
	fieldDirty  = 6

	sheetIDWord = 9 // word offset of the sheet ID within a slice
)

// Slice flag values.
const (
	flagUninitialized = 0
	flagReady         = 1
	flagLocked        = 2
)

// Scale clamp bounds applied on read.
const (
	minScale = 0.01
	minDPR   = 1.0
)

// Snapshot is a self-consistent copy of the viewport state. Field values in
// a snapshot returned by Reader.Read are always drawn from a single write.
type Snapshot struct {
	// X, Y are the camera position in world coordinates (top-left corner).
	X, Y float32

	// Scale is the zoom level (1.0 = 100%).
	Scale float32

	// DPR is the device pixel ratio.
	DPR float32

	// Width, Height are the logical canvas size in screen pixels.
	Width, Height float32

	// Dirty indicates something changed since the region was last marked
	// clean. It means "re-check", not "this exact snapshot is final".
	Dirty bool

	// SheetID identifies the active sheet.
	SheetID uuid.UUID
}

// EffectiveScale returns the combined rendering scale (Scale * DPR).
func (s Snapshot) EffectiveScale() float32 {
	return s.Scale * s.DPR
}

// ScreenToWorld converts device-pixel coordinates to world coordinates.
func (s Snapshot) ScreenToWorld(sx, sy float32) (float32, float32) {
	es := s.EffectiveScale()
	return s.X + sx/es, s.Y + sy/es
}

// WorldToScreen converts world coordinates to device-pixel coordinates.
func (s Snapshot) WorldToScreen(wx, wy float32) (float32, float32) {
	es := s.EffectiveScale()
	return (wx - s.X) * es, (wy - s.Y) * es
}

// Bounds is a rectangle in world coordinates.
type Bounds struct {
	Left, Top, Right, Bottom float32
}

// Width returns the horizontal extent of the bounds.
func (b Bounds) Width() float32 { return b.Right - b.Left }

// Height returns the vertical extent of the bounds.
func (b Bounds) Height() float32 { return b.Bottom - b.Top }

// VisibleBounds returns the visible area in world coordinates.
func (s Snapshot) VisibleBounds() Bounds {
	left, top := s.ScreenToWorld(0, 0)
	right, bottom := s.ScreenToWorld(s.Width, s.Height)
	return Bounds{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Buffer is the shared viewport region. All access goes through atomic
// word operations; the struct must not be copied after first use.
type Buffer struct {
	words [bufferWords]atomic.Uint32

	// gen counts completed writes. Readers may compare generations to
	// detect change without decoding the slices.
	gen atomic.Uint64
}

// NewBuffer allocates a fresh shared region with both slices uninitialized.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Generation returns the number of completed writes to this buffer.
// It increases monotonically; readers may use it as a cheap change check.
func (b *Buffer) Generation() uint64 {
	return b.gen.Load()
}

func flagWord(slice int) int          { return slice * sliceWords }
func fieldWord(slice, field int) int  { return slice*sliceWords + 1 + field }
func sheetWord(slice, word int) int   { return slice*sliceWords + sheetIDWord + word }
func float32FromBits(u uint32) float32 { return math.Float32frombits(u) }

// Channel pairs a writer and its readers around a swappable buffer
// reference. SetBuffer supports replacing the underlying shared region
// (e.g. on session restart) without stopping the read/write loops: both
// sides re-resolve the pointer on every operation.
type Channel struct {
	buf atomic.Pointer[Buffer]
}

// NewChannel creates a channel over the given buffer.
func NewChannel(b *Buffer) *Channel {
	c := &Channel{}
	c.buf.Store(b)
	return c
}

// SetBuffer atomically swaps the underlying shared region. The old buffer
// is abandoned; readers mid-operation finish against whichever buffer they
// resolved and pick up the new one on their next call.
func (c *Channel) SetBuffer(b *Buffer) {
	c.buf.Store(b)
}

// Buffer returns the current shared region.
func (c *Channel) Buffer() *Buffer {
	return c.buf.Load()
}

// Writer is the host-thread side of the channel. Exactly one Writer must
// exist per channel; Write is safe to call at animation-frame frequency.
type Writer struct {
	ch *Channel
}

// NewWriter creates the single writer for a channel.
func NewWriter(ch *Channel) *Writer {
	return &Writer{ch: ch}
}

// Write publishes a snapshot to the shared region. Both slices are updated
// so that readers can always lock at least one; a slice currently locked by
// a reader is skipped and catches up on the next write. Write never blocks.
//
// Reader locks last only for the few word loads of a slice copy, so when
// both slices are momentarily locked a couple of retry passes land the
// write. A snapshot that still cannot land is dropped; the next Write
// carries newer state.
func (w *Writer) Write(s Snapshot) {
	buf := w.ch.Buffer()
	wrote := false
	for attempt := 0; attempt < 4 && !wrote; attempt++ {
		for slice := 0; slice < 2; slice++ {
			if writeSlice(buf, slice, s) {
				wrote = true
			}
		}
	}
	if wrote {
		buf.gen.Add(1)
	}
}

func writeSlice(buf *Buffer, slice int, s Snapshot) bool {
	fw := &buf.words[flagWord(slice)]
	if !fw.CompareAndSwap(flagReady, flagLocked) &&
		!fw.CompareAndSwap(flagUninitialized, flagLocked) {
		// A reader holds this slice; skip it.
		return false
	}

	buf.words[fieldWord(slice, fieldX)].Store(math.Float32bits(s.X))
	buf.words[fieldWord(slice, fieldY)].Store(math.Float32bits(s.Y))
	buf.words[fieldWord(slice, fieldScale)].Store(math.Float32bits(s.Scale))
	buf.words[fieldWord(slice, fieldDPR)].Store(math.Float32bits(s.DPR))
	buf.words[fieldWord(slice, fieldWidth)].Store(math.Float32bits(s.Width))
	buf.words[fieldWord(slice, fieldHeight)].Store(math.Float32bits(s.Height))
	dirty := float32(0)
	if s.Dirty {
		dirty = 1
	}
	buf.words[fieldWord(slice, fieldDirty)].Store(math.Float32bits(dirty))

	id := s.SheetID.String()
	for word := 0; word < SheetIDSize/4; word++ {
		v := uint32(id[word*4]) |
			uint32(id[word*4+1])<<8 |
			uint32(id[word*4+2])<<16 |
			uint32(id[word*4+3])<<24
		buf.words[sheetWord(slice, word)].Store(v)
	}

	fw.Store(flagReady)
	return true
}

// Reader is a stage-side consumer. Each stage owns its own Reader; readers
// never write to the region except through MarkClean, which touches only
// the dirty word.
type Reader struct {
	ch      *Channel
	last    Snapshot
	valid   bool
	lastGen uint64
}

// NewReader creates a reader over the channel.
func NewReader(ch *Channel) *Reader {
	return &Reader{ch: ch}
}

// Read returns the most recent self-consistent snapshot and whether it
// differs from the previous call's result. Read never blocks: if both
// slices are contended, the cached snapshot is returned unchanged.
func (r *Reader) Read() (Snapshot, bool) {
	buf := r.ch.Buffer()
	gen := buf.Generation()
	if r.valid && gen == r.lastGen && !r.last.Dirty {
		return r.last, false
	}

	for slice := 0; slice < 2; slice++ {
		s, ok := readSlice(buf, slice)
		if !ok {
			continue
		}
		changed := !r.valid || snapshotChanged(r.last, s)
		r.last = s
		r.valid = true
		r.lastGen = gen
		return r.last, changed
	}

	// Neither slice was lockable this tick; keep the cached value.
	return r.last, false
}

func readSlice(buf *Buffer, slice int) (Snapshot, bool) {
	fw := &buf.words[flagWord(slice)]
	if !fw.CompareAndSwap(flagReady, flagLocked) {
		return Snapshot{}, false
	}

	var s Snapshot
	s.X = float32FromBits(buf.words[fieldWord(slice, fieldX)].Load())
	s.Y = float32FromBits(buf.words[fieldWord(slice, fieldY)].Load())
	s.Scale = float32FromBits(buf.words[fieldWord(slice, fieldScale)].Load())
	s.DPR = float32FromBits(buf.words[fieldWord(slice, fieldDPR)].Load())
	s.Width = float32FromBits(buf.words[fieldWord(slice, fieldWidth)].Load())
	s.Height = float32FromBits(buf.words[fieldWord(slice, fieldHeight)].Load())
	s.Dirty = float32FromBits(buf.words[fieldWord(slice, fieldDirty)].Load()) != 0

	var idBytes [SheetIDSize]byte
	for word := 0; word < SheetIDSize/4; word++ {
		v := buf.words[sheetWord(slice, word)].Load()
		idBytes[word*4] = byte(v)
		idBytes[word*4+1] = byte(v >> 8)
		idBytes[word*4+2] = byte(v >> 16)
		idBytes[word*4+3] = byte(v >> 24)
	}
	fw.Store(flagReady)

	if s.Scale < minScale {
		s.Scale = minScale
	}
	if s.DPR < minDPR {
		s.DPR = minDPR
	}
	if id, err := uuid.ParseBytes(idBytes[:]); err == nil {
		s.SheetID = id
	}
	return s, true
}

func snapshotChanged(a, b Snapshot) bool {
	return a.X != b.X || a.Y != b.Y || a.Scale != b.Scale ||
		a.DPR != b.DPR || a.Width != b.Width || a.Height != b.Height ||
		a.SheetID != b.SheetID || b.Dirty
}

// MarkClean clears the dirty word in both slices after a consumer has
// acted on the change. This is the one sanctioned reader-side write; it
// touches a single word per slice and does not take the slice lock.
func (r *Reader) MarkClean() {
	buf := r.ch.Buffer()
	zero := math.Float32bits(0)
	buf.words[fieldWord(0, fieldDirty)].Store(zero)
	buf.words[fieldWord(1, fieldDirty)].Store(zero)
	r.last.Dirty = false
}

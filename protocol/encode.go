// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// writer appends little-endian primitives to a growing buffer.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) bool(v bool)  { b := byte(0); if v { b = 1 }; w.buf = append(w.buf, b) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) i64(v int64)  { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) id(u uuid.UUID) {
	w.buf = append(w.buf, u[:]...)
}

func (w *writer) rgba(c RGBA) {
	w.buf = append(w.buf, c.R, c.G, c.B, c.A)
}

func (w *writer) hashPos(h HashPos) {
	w.i64(h.X)
	w.i64(h.Y)
}

func (w *writer) cell(c Cell) {
	w.i64(c.X)
	w.i64(c.Y)
	w.str(c.Text)
	w.u8(c.Align)
	w.bool(c.Bold)
	w.bool(c.Italic)
	w.rgba(c.Color)
}

func (w *writer) fill(f Fill) {
	w.i64(f.X)
	w.i64(f.Y)
	w.i64(f.W)
	w.i64(f.H)
	w.rgba(f.Color)
}

func (w *writer) sizeRun(r SizeRun) {
	w.i64(r.Index)
	w.f32(r.Size)
}

// Encode serializes a message into a transferable frame. The caller owns
// the returned frame until it is sent through a Port, at which point
// ownership moves to the receiver.
func Encode(m Message) (*Frame, error) {
	w := &writer{buf: make([]byte, 0, 64)}
	w.u8(byte(m.MessageTag()))
	w.u8(Version)

	switch v := m.(type) {
	case Ready:
		w.u8(v.Stage)
	case InitSheet:
		w.id(v.SheetID)
		w.str(v.Name)
	case SheetInfo:
		w.id(v.SheetID)
		w.str(v.Name)
		w.str(v.Order)
		w.rgba(v.Color)
	case SheetOffsets:
		w.id(v.SheetID)
		w.u32(uint32(len(v.Columns)))
		for _, r := range v.Columns {
			w.sizeRun(r)
		}
		w.u32(uint32(len(v.Rows)))
		for _, r := range v.Rows {
			w.sizeRun(r)
		}
	case SheetDeleted:
		w.id(v.SheetID)
	case ClearSheet:
		w.id(v.SheetID)
	case HashCells:
		w.id(v.SheetID)
		w.hashPos(v.Hash)
		w.u32(uint32(len(v.Cells)))
		for _, c := range v.Cells {
			w.cell(c)
		}
		w.u32(uint32(len(v.Fills)))
		for _, f := range v.Fills {
			w.fill(f)
		}
	case DirtyHashes:
		w.id(v.SheetID)
		w.u32(uint32(len(v.Hashes)))
		for _, h := range v.Hashes {
			w.hashPos(h)
		}
	case Selection:
		w.id(v.SheetID)
		w.i64(v.StartCol)
		w.i64(v.StartRow)
		w.i64(v.EndCol)
		w.i64(v.EndRow)
		w.i64(v.CursorCol)
		w.i64(v.CursorRow)
	case ViewportChanged:
		w.id(v.SheetID)
		w.u32(uint32(len(v.Hashes)))
		for _, h := range v.Hashes {
			w.hashPos(h)
		}
	case CellEdit:
		w.id(v.SheetID)
		w.i64(v.X)
		w.i64(v.Y)
		w.str(v.Text)
	case ColumnResize:
		w.id(v.SheetID)
		w.i64(v.Column)
		w.f32(v.Width)
	case RowResize:
		w.id(v.SheetID)
		w.i64(v.Row)
		w.f32(v.Height)
	default:
		return nil, fmt.Errorf("protocol: cannot encode message type %T", m)
	}

	return NewFrame(w.buf), nil
}

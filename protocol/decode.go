// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Decode errors. All of them are recoverable: the dispatcher logs the
// frame and drops it.
var (
	// ErrUnknownTag is returned for a discriminant with no known variant.
	ErrUnknownTag = errors.New("protocol: unknown message tag")

	// ErrBadVersion is returned when the version byte does not match.
	ErrBadVersion = errors.New("protocol: unsupported protocol version")

	// ErrTruncated is returned when a payload ends before its fixed layout.
	ErrTruncated = errors.New("protocol: truncated payload")
)

// reader consumes little-endian primitives from a payload. It records the
// first failure instead of panicking so decode paths stay linear.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrTruncated
	}
}

func (r *reader) u8() uint8 {
	if r.err != nil || r.off+1 > len(r.buf) {
		r.fail()
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) bool() bool { return r.u8() != 0 }

func (r *reader) u32() uint32 {
	if r.err != nil || r.off+4 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil || r.off+8 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return int64(v)
}

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) str() string {
	n := int(r.u32())
	if r.err != nil || n < 0 || r.off+n > len(r.buf) {
		r.fail()
		return ""
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	return s
}

func (r *reader) id() uuid.UUID {
	var u uuid.UUID
	if r.err != nil || r.off+16 > len(r.buf) {
		r.fail()
		return u
	}
	copy(u[:], r.buf[r.off:r.off+16])
	r.off += 16
	return u
}

func (r *reader) rgba() RGBA {
	return RGBA{R: r.u8(), G: r.u8(), B: r.u8(), A: r.u8()}
}

func (r *reader) hashPos() HashPos {
	return HashPos{X: r.i64(), Y: r.i64()}
}

func (r *reader) cell() Cell {
	return Cell{
		X:      r.i64(),
		Y:      r.i64(),
		Text:   r.str(),
		Align:  r.u8(),
		Bold:   r.bool(),
		Italic: r.bool(),
		Color:  r.rgba(),
	}
}

func (r *reader) fill() Fill {
	return Fill{
		X:     r.i64(),
		Y:     r.i64(),
		W:     r.i64(),
		H:     r.i64(),
		Color: r.rgba(),
	}
}

func (r *reader) sizeRun() SizeRun {
	return SizeRun{Index: r.i64(), Size: r.f32()}
}

// count reads a slice length and bounds it against the remaining payload
// so a corrupt length cannot force a huge allocation.
func (r *reader) count(minElemSize int) int {
	n := int(r.u32())
	if r.err != nil {
		return 0
	}
	if minElemSize > 0 && n > (len(r.buf)-r.off)/minElemSize+1 {
		r.fail()
		return 0
	}
	return n
}

// Decode parses a serialized frame back into a message. The returned error
// distinguishes unknown discriminants (ErrUnknownTag), version mismatches
// (ErrBadVersion) and short payloads (ErrTruncated); callers treat all of
// them as drop-the-frame conditions.
func Decode(buf []byte) (Message, error) {
	if len(buf) < 2 {
		return nil, ErrTruncated
	}
	tag := Tag(buf[0])
	if buf[1] != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadVersion, buf[1], Version)
	}
	r := &reader{buf: buf, off: 2}

	var m Message
	switch tag {
	case TagReady:
		m = Ready{Stage: r.u8()}
	case TagInitSheet:
		m = InitSheet{SheetID: r.id(), Name: r.str()}
	case TagSheetInfo:
		m = SheetInfo{SheetID: r.id(), Name: r.str(), Order: r.str(), Color: r.rgba()}
	case TagSheetOffsets:
		v := SheetOffsets{SheetID: r.id()}
		for i, n := 0, r.count(12); i < n && r.err == nil; i++ {
			v.Columns = append(v.Columns, r.sizeRun())
		}
		for i, n := 0, r.count(12); i < n && r.err == nil; i++ {
			v.Rows = append(v.Rows, r.sizeRun())
		}
		m = v
	case TagSheetDeleted:
		m = SheetDeleted{SheetID: r.id()}
	case TagClearSheet:
		m = ClearSheet{SheetID: r.id()}
	case TagHashCells:
		v := HashCells{SheetID: r.id(), Hash: r.hashPos()}
		for i, n := 0, r.count(27); i < n && r.err == nil; i++ {
			v.Cells = append(v.Cells, r.cell())
		}
		for i, n := 0, r.count(36); i < n && r.err == nil; i++ {
			v.Fills = append(v.Fills, r.fill())
		}
		m = v
	case TagDirtyHashes:
		v := DirtyHashes{SheetID: r.id()}
		for i, n := 0, r.count(16); i < n && r.err == nil; i++ {
			v.Hashes = append(v.Hashes, r.hashPos())
		}
		m = v
	case TagSelection:
		m = Selection{
			SheetID:  r.id(),
			StartCol: r.i64(), StartRow: r.i64(),
			EndCol: r.i64(), EndRow: r.i64(),
			CursorCol: r.i64(), CursorRow: r.i64(),
		}
	case TagViewportChanged:
		v := ViewportChanged{SheetID: r.id()}
		for i, n := 0, r.count(16); i < n && r.err == nil; i++ {
			v.Hashes = append(v.Hashes, r.hashPos())
		}
		m = v
	case TagCellEdit:
		m = CellEdit{SheetID: r.id(), X: r.i64(), Y: r.i64(), Text: r.str()}
	case TagColumnResize:
		m = ColumnResize{SheetID: r.id(), Column: r.i64(), Width: r.f32()}
	case TagRowResize:
		m = RowResize{SheetID: r.id(), Row: r.i64(), Height: r.f32()}
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, byte(tag))
	}

	if r.err != nil {
		return nil, fmt.Errorf("protocol: decoding %s: %w", tag, r.err)
	}
	return m, nil
}

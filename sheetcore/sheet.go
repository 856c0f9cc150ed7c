// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sheetcore is the authoritative data stage of the pipeline. It
// owns cell content, fills and column/row sizes per sheet, and answers
// bucket requests from the layout and render stages with HashCells
// messages. All mutation flows through the core; the other stages hold
// caches only.
package sheetcore

import (
	"slices"

	"github.com/google/uuid"

	"github.com/gogpu/gridrender/grid"
	"github.com/gogpu/gridrender/protocol"
)

type cellKey struct {
	x, y int64
}

// Sheet is the authoritative state of one sheet.
type Sheet struct {
	ID    uuid.UUID
	Name  string
	Order string
	Color protocol.RGBA

	cells   map[cellKey]protocol.Cell
	fills   map[cellKey]protocol.Fill
	offsets *grid.SheetOffsets
}

func newSheet(info protocol.SheetInfo) *Sheet {
	return &Sheet{
		ID:      info.SheetID,
		Name:    info.Name,
		Order:   info.Order,
		Color:   info.Color,
		cells:   make(map[cellKey]protocol.Cell),
		fills:   make(map[cellKey]protocol.Fill),
		offsets: grid.NewSheetOffsets(),
	}
}

// setCell stores or deletes a cell (empty text deletes) and returns the
// buckets whose contents changed.
func (s *Sheet) setCell(c protocol.Cell) []protocol.HashPos {
	k := cellKey{c.X, c.Y}
	dirty := []protocol.HashPos{s.cellBucket(c.X, c.Y)}
	if c.Text == "" {
		delete(s.cells, k)
	} else {
		s.cells[k] = c
	}
	return dirty
}

// setFill stores or deletes a fill keyed by its start cell (zero size
// deletes) and returns the buckets it touches.
func (s *Sheet) setFill(f protocol.Fill) []protocol.HashPos {
	k := cellKey{f.X, f.Y}
	var dirty []protocol.HashPos
	if prev, ok := s.fills[k]; ok {
		dirty = s.fillBuckets(prev)
	}
	if f.W <= 0 || f.H <= 0 {
		delete(s.fills, k)
	} else {
		s.fills[k] = f
		dirty = append(dirty, s.fillBuckets(f)...)
	}
	return dedupe(dirty)
}

func (s *Sheet) clear() {
	clear(s.cells)
	clear(s.fills)
}

// cellBucket returns the bucket holding a cell. Membership follows the
// cell's top-left corner in world space, so the bucket of a cell can move
// when columns or rows before it are resized.
func (s *Sheet) cellBucket(col, row int64) protocol.HashPos {
	x, y, _, _ := s.offsets.CellRect(col, row)
	return grid.TileFor(float32(x), float32(y))
}

func (s *Sheet) fillBuckets(f protocol.Fill) []protocol.HashPos {
	x0, y0, _, _ := s.offsets.CellRect(f.X, f.Y)
	x1, y1, w, h := s.offsets.CellRect(f.X+f.W-1, f.Y+f.H-1)
	r := grid.TileRange{
		MinX: grid.TileFor(float32(x0), float32(y0)).X,
		MinY: grid.TileFor(float32(x0), float32(y0)).Y,
		MaxX: grid.TileFor(float32(x1+w-1), float32(y1+h-1)).X,
		MaxY: grid.TileFor(float32(x1+w-1), float32(y1+h-1)).Y,
	}
	return r.Tiles()
}

// bucketContents collects the cells and fills belonging to one bucket, in
// deterministic row-major order.
func (s *Sheet) bucketContents(h protocol.HashPos) (cells []protocol.Cell, fills []protocol.Fill) {
	for _, c := range s.cells {
		if s.cellBucket(c.X, c.Y) == h {
			cells = append(cells, c)
		}
	}
	for _, f := range s.fills {
		if slices.Contains(s.fillBuckets(f), h) {
			fills = append(fills, f)
		}
	}
	slices.SortFunc(cells, func(a, b protocol.Cell) int {
		if a.Y != b.Y {
			return int(a.Y - b.Y)
		}
		return int(a.X - b.X)
	})
	slices.SortFunc(fills, func(a, b protocol.Fill) int {
		if a.Y != b.Y {
			return int(a.Y - b.Y)
		}
		return int(a.X - b.X)
	})
	return cells, fills
}

func dedupe(hs []protocol.HashPos) []protocol.HashPos {
	seen := make(map[protocol.HashPos]struct{}, len(hs))
	out := hs[:0]
	for _, h := range hs {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import "github.com/gogpu/gridrender/protocol"

// Default cell dimensions in world pixels.
const (
	DefaultColumnWidth = 100
	DefaultRowHeight   = 21
)

// SheetOffsets maps column and row indices (1-indexed) to world-space
// positions and sizes. Sizes default to DefaultColumnWidth/DefaultRowHeight
// with sparse overrides; positions are derived, with column 1 at world
// x=0 and row 1 at world y=0.
type SheetOffsets struct {
	columns map[int64]float64
	rows    map[int64]float64
}

// NewSheetOffsets creates an offsets table with no overrides.
func NewSheetOffsets() *SheetOffsets {
	return &SheetOffsets{
		columns: make(map[int64]float64),
		rows:    make(map[int64]float64),
	}
}

// SetColumnWidth overrides the width of one column.
func (o *SheetOffsets) SetColumnWidth(col int64, width float64) {
	if width == DefaultColumnWidth {
		delete(o.columns, col)
		return
	}
	o.columns[col] = width
}

// SetRowHeight overrides the height of one row.
func (o *SheetOffsets) SetRowHeight(row int64, height float64) {
	if height == DefaultRowHeight {
		delete(o.rows, row)
		return
	}
	o.rows[row] = height
}

// ColumnWidth returns the width of a column.
func (o *SheetOffsets) ColumnWidth(col int64) float64 {
	if w, ok := o.columns[col]; ok {
		return w
	}
	return DefaultColumnWidth
}

// RowHeight returns the height of a row.
func (o *SheetOffsets) RowHeight(row int64) float64 {
	if h, ok := o.rows[row]; ok {
		return h
	}
	return DefaultRowHeight
}

// ColumnPosition returns the world x of a column's left edge. The override
// map is sparse, so position is the default grid position corrected by the
// deltas of overridden columns before it.
func (o *SheetOffsets) ColumnPosition(col int64) float64 {
	pos := float64(col-1) * DefaultColumnWidth
	for c, w := range o.columns {
		if c < col {
			pos += w - DefaultColumnWidth
		}
	}
	return pos
}

// RowPosition returns the world y of a row's top edge.
func (o *SheetOffsets) RowPosition(row int64) float64 {
	pos := float64(row-1) * DefaultRowHeight
	for r, h := range o.rows {
		if r < row {
			pos += h - DefaultRowHeight
		}
	}
	return pos
}

// CellRect returns the world-space rectangle of a cell.
func (o *SheetOffsets) CellRect(col, row int64) (x, y, w, h float64) {
	return o.ColumnPosition(col), o.RowPosition(row), o.ColumnWidth(col), o.RowHeight(row)
}

// Apply replaces the override tables from a SheetOffsets message.
func (o *SheetOffsets) Apply(m protocol.SheetOffsets) {
	clear(o.columns)
	clear(o.rows)
	for _, r := range m.Columns {
		o.columns[r.Index] = float64(r.Size)
	}
	for _, r := range m.Rows {
		o.rows[r.Index] = float64(r.Size)
	}
}

// Runs exports the override tables in message form.
func (o *SheetOffsets) Runs() (cols, rows []protocol.SizeRun) {
	for c, w := range o.columns {
		cols = append(cols, protocol.SizeRun{Index: c, Size: float32(w)})
	}
	for r, h := range o.rows {
		rows = append(rows, protocol.SizeRun{Index: r, Size: float32(h)})
	}
	return cols, rows
}

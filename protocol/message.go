// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import "github.com/google/uuid"

// Message is a decoded protocol message. Concrete types are one struct per
// Tag; Encode serializes any of them into a transferable Frame.
type Message interface {
	// MessageTag returns the discriminant for this variant.
	MessageTag() Tag
}

// Stage identifiers carried in Ready messages.
const (
	StageLayout byte = 1
	StageRender byte = 2
)

// HashPos is the coordinate of a hash bucket in bucket space.
type HashPos struct {
	X, Y int64
}

// RGBA is a packed 8-bit-per-channel color.
type RGBA struct {
	R, G, B, A uint8
}

// Cell alignment values.
const (
	AlignLeft uint8 = iota
	AlignCenter
	AlignRight
)

// Cell is the render-ready content of a single cell: text plus the subset
// of formatting the layout stage needs for shaping and placement.
type Cell struct {
	// X, Y are the cell's column and row (1-indexed).
	X, Y int64

	// Text is the display text, already formatted by core.
	Text string

	// Align is the horizontal alignment (AlignLeft, AlignCenter, AlignRight).
	Align uint8

	Bold   bool
	Italic bool

	// Color is the text color.
	Color RGBA
}

// Fill is a rectangular background fill in cell coordinates. Fills are
// consumed by the render stage directly; they need no text layout.
type Fill struct {
	X, Y  int64
	W, H  int64
	Color RGBA
}

// SizeRun is a single column-width or row-height override.
type SizeRun struct {
	// Index is the column or row number (1-indexed).
	Index int64

	// Size is the width or height in world pixels.
	Size float32
}

// Ready signals stage initialization completion toward core.
type Ready struct {
	Stage byte
}

// InitSheet announces a sheet to a freshly started stage.
type InitSheet struct {
	SheetID uuid.UUID
	Name    string
}

// SheetInfo carries sheet metadata.
type SheetInfo struct {
	SheetID uuid.UUID
	Name    string
	Order   string
	Color   RGBA
}

// SheetOffsets carries the column and row size overrides for a sheet.
type SheetOffsets struct {
	SheetID uuid.UUID
	Columns []SizeRun
	Rows    []SizeRun
}

// SheetDeleted announces sheet removal.
type SheetDeleted struct {
	SheetID uuid.UUID
}

// ClearSheet drops all cached cell data for a sheet.
type ClearSheet struct {
	SheetID uuid.UUID
}

// HashCells delivers the contents of one hash bucket: the text cells for
// the layout stage and the fills for the render stage.
type HashCells struct {
	SheetID uuid.UUID
	Hash    HashPos
	Cells   []Cell
	Fills   []Fill
}

// DirtyHashes lists buckets whose contents changed. Consumers re-request
// any listed bucket they currently hold.
type DirtyHashes struct {
	SheetID uuid.UUID
	Hashes  []HashPos
}

// Selection carries cursor and selection state.
type Selection struct {
	SheetID              uuid.UUID
	StartCol, StartRow   int64
	EndCol, EndRow       int64
	CursorCol, CursorRow int64
}

// ViewportChanged requests cell data for newly visible buckets. Core
// replies with one HashCells message per requested bucket.
type ViewportChanged struct {
	SheetID uuid.UUID
	Hashes  []HashPos
}

// CellEdit applies a text edit to a single cell.
type CellEdit struct {
	SheetID uuid.UUID
	X, Y    int64
	Text    string
}

// ColumnResize sets an explicit column width.
type ColumnResize struct {
	SheetID uuid.UUID
	Column  int64
	Width   float32
}

// RowResize sets an explicit row height.
type RowResize struct {
	SheetID uuid.UUID
	Row     int64
	Height  float32
}

func (Ready) MessageTag() Tag           { return TagReady }
func (InitSheet) MessageTag() Tag       { return TagInitSheet }
func (SheetInfo) MessageTag() Tag       { return TagSheetInfo }
func (SheetOffsets) MessageTag() Tag    { return TagSheetOffsets }
func (SheetDeleted) MessageTag() Tag    { return TagSheetDeleted }
func (ClearSheet) MessageTag() Tag      { return TagClearSheet }
func (HashCells) MessageTag() Tag       { return TagHashCells }
func (DirtyHashes) MessageTag() Tag     { return TagDirtyHashes }
func (Selection) MessageTag() Tag       { return TagSelection }
func (ViewportChanged) MessageTag() Tag { return TagViewportChanged }
func (CellEdit) MessageTag() Tag        { return TagCellEdit }
func (ColumnResize) MessageTag() Tag    { return TagColumnResize }
func (RowResize) MessageTag() Tag       { return TagRowResize }

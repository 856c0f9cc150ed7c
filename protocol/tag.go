// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package protocol implements the tagged binary message protocol spoken on
// the core↔layout and core↔renderer channels.
//
// Every frame starts with a one-byte discriminant (Tag) followed by a
// version byte and a little-endian payload whose layout is fixed per tag.
// Unknown discriminants and truncated payloads are decode errors that the
// Dispatcher logs and drops; they never propagate across a stage boundary.
//
// Large payloads travel inside a Frame, whose backing buffer is handed off
// (not copied) when sent through a Port: the sender's reference is
// neutralized on send, matching the zero-copy transfer contract.
package protocol

// Version is the protocol version byte written after the discriminant.
// Decoders reject frames with a different version the same way they reject
// unknown discriminants: log and drop.
const Version byte = 1

// Tag is the single-byte discriminant identifying a message variant.
// Tags are grouped by their high nibble:
//
//	0x0X: control
//	0x1X: core→stage sheet lifecycle
//	0x2X: core→stage cell data
//	0x3X: stage→core
type Tag byte

const (
	// TagReady signals that a stage finished initializing.
	// Payload: 1 byte stage identifier.
	TagReady Tag = 0x01

	// TagInitSheet announces a sheet to a freshly started stage.
	// Payload: sheet ID, name.
	TagInitSheet Tag = 0x10

	// TagSheetInfo carries sheet metadata (name, tab order, tab color).
	TagSheetInfo Tag = 0x11

	// TagSheetOffsets carries column width and row height overrides.
	TagSheetOffsets Tag = 0x12

	// TagSheetDeleted announces sheet removal.
	// Payload: sheet ID.
	TagSheetDeleted Tag = 0x13

	// TagClearSheet drops all cached cell data for a sheet.
	// Payload: sheet ID.
	TagClearSheet Tag = 0x14

	// TagHashCells delivers the cell contents of one hash bucket.
	TagHashCells Tag = 0x20

	// TagDirtyHashes lists buckets whose contents changed since they were
	// last delivered.
	TagDirtyHashes Tag = 0x21

	// TagSelection carries cursor and selection state.
	TagSelection Tag = 0x22

	// TagViewportChanged requests cell data for newly visible buckets.
	TagViewportChanged Tag = 0x30

	// TagCellEdit applies a text edit to a single cell.
	TagCellEdit Tag = 0x31

	// TagColumnResize sets an explicit column width.
	TagColumnResize Tag = 0x32

	// TagRowResize sets an explicit row height.
	TagRowResize Tag = 0x33
)

// String returns a human-readable name for the tag.
func (t Tag) String() string {
	switch t {
	case TagReady:
		return "Ready"
	case TagInitSheet:
		return "InitSheet"
	case TagSheetInfo:
		return "SheetInfo"
	case TagSheetOffsets:
		return "SheetOffsets"
	case TagSheetDeleted:
		return "SheetDeleted"
	case TagClearSheet:
		return "ClearSheet"
	case TagHashCells:
		return "HashCells"
	case TagDirtyHashes:
		return "DirtyHashes"
	case TagSelection:
		return "Selection"
	case TagViewportChanged:
		return "ViewportChanged"
	case TagCellEdit:
		return "CellEdit"
	case TagColumnResize:
		return "ColumnResize"
	case TagRowResize:
		return "RowResize"
	default:
		return "Unknown"
	}
}

// IsCoreToStage reports whether the tag flows from the core stage outward.
func (t Tag) IsCoreToStage() bool {
	return t >= TagInitSheet && t <= TagSelection
}

// IsStageToCore reports whether the tag flows from a consumer stage to core.
func (t Tag) IsStageToCore() bool {
	return t >= TagViewportChanged && t <= TagRowResize
}

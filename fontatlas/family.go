// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fontatlas loads the session-lifetime font resources shared by the
// layout and render stages: parsed glyph metrics plus rasterized texture
// pages ("atlases") identified by stable numeric UIDs.
//
// UID assignment must agree between the two stages without any
// communication. Both sides therefore load the same family list in the
// same fixed order and assign page UIDs sequentially as pages fill up;
// identical inputs yield identical page numbering. Atlases are immutable
// once Load returns: the full supported rune range is rasterized up front,
// and glyphs outside it render as placeholders.
package fontatlas

import (
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Family is one font family to load: a name for diagnostics and the raw
// TTF/OTF bytes. Font data is treated as an opaque blob; parsing failures
// for a single family are non-fatal.
type Family struct {
	Name string
	Data []byte
}

// Style selects a face within the loaded set.
type Style struct {
	Bold   bool
	Italic bool
}

// DefaultFamilies returns the built-in family set in its fixed load
// order: regular, bold, italic, bold-italic. The order is part of the
// UID-determinism contract; do not reorder.
func DefaultFamilies() []Family {
	return []Family{
		{Name: "sans", Data: goregular.TTF},
		{Name: "sans-bold", Data: gobold.TTF},
		{Name: "sans-italic", Data: goitalic.TTF},
		{Name: "sans-bold-italic", Data: gobolditalic.TTF},
	}
}

// faceIndex maps a style to the conventional family slot laid out by
// DefaultFamilies. Missing slots fall back to regular.
func faceIndex(s Style) int {
	switch {
	case s.Bold && s.Italic:
		return 3
	case s.Bold:
		return 1
	case s.Italic:
		return 2
	default:
		return 0
	}
}

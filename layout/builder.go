// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package layout

import (
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/fontatlas"
	"github.com/gogpu/gridrender/protocol"
)

// cellPad is the horizontal text inset inside a cell, in world pixels.
const cellPad = 4

// selectionColor is the translucent overlay drawn over the selected range.
var selectionColor = protocol.RGBA{R: 30, G: 100, B: 255, A: 48}

// buildBatch turns the loaded buckets of one sheet into a serialized quad
// list: fills first, then the selection overlay, then glyph quads, so the
// renderer can draw in slice order without sorting.
func (s *Stage) buildBatch(sheetID uuid.UUID, c *sheetCache) []byte {
	b := batch.Batch{SheetID: sheetID}

	hashes := make([]protocol.HashPos, 0, len(c.buckets))
	for h := range c.buckets {
		hashes = append(hashes, h)
	}
	slices.SortFunc(hashes, func(a, b protocol.HashPos) int {
		if a.Y != b.Y {
			return int(a.Y - b.Y)
		}
		return int(a.X - b.X)
	})

	for _, h := range hashes {
		for _, f := range c.buckets[h].fills {
			b.Quads = append(b.Quads, s.fillQuad(c, f))
		}
	}

	if sel := s.selection; sel != nil && sel.SheetID == sheetID {
		b.Quads = append(b.Quads, s.selectionQuad(c, *sel))
	}

	for _, h := range hashes {
		for _, cell := range c.buckets[h].cells {
			b.Quads = append(b.Quads, s.cellQuads(c, cell)...)
		}
	}
	return batch.Encode(b)
}

func (s *Stage) fillQuad(c *sheetCache, f protocol.Fill) batch.Quad {
	x0, y0, _, _ := c.offsets.CellRect(f.X, f.Y)
	x1, y1, w, h := c.offsets.CellRect(f.X+f.W-1, f.Y+f.H-1)
	return batch.Quad{
		X: float32(x0), Y: float32(y0),
		W: float32(x1 + w - x0), H: float32(y1 + h - y0),
		R: f.Color.R, G: f.Color.G, B: f.Color.B, A: f.Color.A,
		Kind: batch.KindFill,
	}
}

func (s *Stage) selectionQuad(c *sheetCache, sel protocol.Selection) batch.Quad {
	x0, y0, _, _ := c.offsets.CellRect(sel.StartCol, sel.StartRow)
	x1, y1, w, h := c.offsets.CellRect(sel.EndCol, sel.EndRow)
	return batch.Quad{
		X: float32(x0), Y: float32(y0),
		W: float32(x1 + w - x0), H: float32(y1 + h - y0),
		R: selectionColor.R, G: selectionColor.G, B: selectionColor.B, A: selectionColor.A,
		Kind: batch.KindFill,
	}
}

// cellQuads shapes one cell's text and positions its glyphs inside the
// cell rectangle. Text is NFC-normalized before shaping so visually equal
// inputs shape identically. Glyphs past the cell's right edge are clipped.
func (s *Stage) cellQuads(c *sheetCache, cell protocol.Cell) []batch.Quad {
	text := norm.NFC.String(cell.Text)
	if text == "" {
		return nil
	}
	run := s.shaper.ShapeRun(text, fontatlas.Style{Bold: cell.Bold, Italic: cell.Italic})
	if len(run.Glyphs) == 0 {
		return nil
	}

	x, y, w, h := c.offsets.CellRect(cell.X, cell.Y)
	var penX float64
	switch cell.Align {
	case protocol.AlignCenter:
		penX = x + (w-run.Width)/2
	case protocol.AlignRight:
		penX = x + w - cellPad - run.Width
	default:
		penX = x + cellPad
	}
	baseline := y + (h-(run.Ascent+run.Descent))/2 + run.Ascent

	quads := make([]batch.Quad, 0, len(run.Glyphs))
	for _, g := range run.Glyphs {
		if g.Info.W == 0 || g.Info.H == 0 {
			continue // whitespace or unrasterized
		}
		gx := penX + g.X
		if gx >= x+w {
			break
		}
		quads = append(quads, batch.Quad{
			X: float32(gx), Y: float32(baseline + g.Y),
			W: float32(g.Info.W), H: float32(g.Info.H),
			U0: g.Info.U0, V0: g.Info.V0, U1: g.Info.U1, V1: g.Info.V1,
			Page: g.Info.Page,
			R:    cell.Color.R, G: cell.Color.G, B: cell.Color.B, A: cell.Color.A,
			Kind: batch.KindGlyph,
		})
	}
	return quads
}

// measureColumn returns the widest loaded cell of a column plus padding,
// or 0 when the column has no loaded cells.
func (s *Stage) measureColumn(c *sheetCache, col int64) float32 {
	var max float64
	for _, bd := range c.buckets {
		for _, cell := range bd.cells {
			if cell.X != col {
				continue
			}
			w := s.shaper.Measure(norm.NFC.String(cell.Text), fontatlas.Style{Bold: cell.Bold, Italic: cell.Italic})
			if w > max {
				max = w
			}
		}
	}
	if max == 0 {
		return 0
	}
	return float32(max + 2*cellPad)
}

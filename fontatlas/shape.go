// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fontatlas

import (
	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// PlacedGlyph is one shaped glyph positioned relative to the run origin
// (pen at the baseline start).
type PlacedGlyph struct {
	// X, Y are the top-left corner of the glyph box relative to the run
	// origin, y-down.
	X, Y float64

	// Info is the atlas placement record (advance, page, UVs). Info.W==0
	// marks a glyph with no visible box (whitespace, unrasterized).
	Info GlyphInfo
}

// Run is the shaped form of one piece of text.
type Run struct {
	Glyphs []PlacedGlyph

	// Width is the total advance of the run.
	Width float64

	// Ascent and Descent are positive distances above and below the
	// baseline.
	Ascent, Descent float64
}

// Shaper turns text into positioned glyphs against a loaded atlas. It owns
// a HarfBuzz shaper instance and is not safe for concurrent use; each
// stage creates its own.
type Shaper struct {
	atlas *Atlas
	hb    shaping.HarfbuzzShaper
}

// NewShaper creates a shaper over the atlas.
func NewShaper(a *Atlas) *Shaper {
	return &Shaper{atlas: a}
}

// ShapeRun shapes text with the face selected by style. Text whose face
// failed to load falls back to the regular face; if that is also missing
// the run is empty.
func (s *Shaper) ShapeRun(text string, style Style) Run {
	if text == "" {
		return Run{}
	}
	idx := faceIndex(style)
	if idx >= len(s.atlas.faces) || s.atlas.faces[idx] == nil {
		idx = 0
	}
	if idx >= len(s.atlas.faces) || s.atlas.faces[idx] == nil {
		return Run{}
	}
	f := s.atlas.faces[idx]

	runes := []rune(text)
	out := s.hb.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      f.ft,
		Size:      floatToFixed(s.atlas.opts.Size),
		Script:    language.Latin,
		Language:  language.NewLanguage("en"),
	})

	run := Run{
		Ascent:  fixedToFloat(out.LineBounds.Ascent),
		Descent: -fixedToFloat(out.LineBounds.Descent),
	}
	pen := 0.0
	for _, g := range out.Glyphs {
		info, ok := s.atlas.Glyph(idx, g.GlyphID)
		if !ok {
			// Unrasterized glyph: keep the shaped advance so following
			// glyphs stay aligned; it draws as a placeholder.
			info = GlyphInfo{Advance: fixedToFloat(g.XAdvance)}
		}
		x := pen + fixedToFloat(g.XOffset) + info.BearingX
		y := -fixedToFloat(g.YOffset) - info.BearingY
		run.Glyphs = append(run.Glyphs, PlacedGlyph{X: x, Y: y, Info: info})
		pen += fixedToFloat(g.XAdvance)
	}
	run.Width = pen
	return run
}

// Measure returns the advance width of text without building glyph
// placements. Used for column auto-sizing.
func (s *Shaper) Measure(text string, style Style) float64 {
	return s.ShapeRun(text, style).Width
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }
func floatToFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(v * 64) }

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fontatlas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"golang.org/x/image/vector"

	"github.com/gogpu/gridrender/internal/logging"
)

// ErrNoUsableFont is returned when every family in the load list failed
// to parse. A single bad family is tolerated; an empty face set is not.
var ErrNoUsableFont = errors.New("fontatlas: no usable font family")

// Rasterized rune coverage: printable ASCII plus Latin-1 supplement.
// Runes outside this range render as placeholder boxes.
var coverage = [][2]rune{
	{0x20, 0x7E},
	{0xA0, 0xFF},
}

// Options configures atlas construction.
type Options struct {
	// Size is the rasterization size in pixels per em (default 24).
	Size float64

	// PageSize is the texture page edge length in pixels (default 1024).
	PageSize int
}

// DefaultOptions returns the standard atlas configuration.
func DefaultOptions() Options {
	return Options{Size: 24, PageSize: 1024}
}

// GlyphInfo is the placement record for one rasterized glyph.
type GlyphInfo struct {
	// Advance is the horizontal advance at the atlas size.
	Advance float64

	// BearingX, BearingY position the glyph box relative to the pen: x
	// to the right of the pen, y up from the baseline to the box top.
	BearingX, BearingY float64

	// W, H are the glyph box size in pixels.
	W, H int

	// Page is the UID of the texture page holding the glyph.
	Page uint32

	// U0, V0, U1, V1 are the UV rectangle on the page, normalized.
	U0, V0, U1, V1 float32
}

// Page is one rasterized texture page. Pages are immutable after Load;
// the render stage uploads them as textures keyed by UID.
type Page struct {
	UID uint32
	Img *image.RGBA
}

type face struct {
	name string
	ft   *font.Face
	upem float64
}

// Atlas holds the parsed faces, glyph records and texture pages for one
// stage. Safe for concurrent reads after Load returns.
type Atlas struct {
	opts   Options
	faces  []*face
	glyphs []map[font.GID]GlyphInfo // indexed like faces
	pages  []*Page

	// packer state, dead after Load
	curX, curY, rowH int
}

// Load parses the families in order and rasterizes the covered rune range
// into texture pages. A family that fails to parse is logged and skipped
// (dependent styles fall back to regular); Load fails only when no family
// parsed at all.
func Load(families []Family, opts Options) (*Atlas, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultOptions().Size
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}

	a := &Atlas{opts: opts}
	for _, fam := range families {
		ft, err := font.ParseTTF(bytes.NewReader(fam.Data))
		if err != nil {
			logging.L().Warn("font family failed to parse, continuing without it",
				"family", fam.Name, "err", err)
			a.faces = append(a.faces, nil)
			a.glyphs = append(a.glyphs, nil)
			continue
		}
		a.faces = append(a.faces, &face{
			name: fam.Name,
			ft:   ft,
			upem: float64(ft.Upem()),
		})
		a.glyphs = append(a.glyphs, make(map[font.GID]GlyphInfo))
	}

	usable := false
	for _, f := range a.faces {
		if f != nil {
			usable = true
			break
		}
	}
	if !usable {
		return nil, ErrNoUsableFont
	}

	for i, f := range a.faces {
		if f == nil {
			continue
		}
		a.rasterizeFace(i, f)
	}
	return a, nil
}

// Size returns the rasterization size in pixels per em.
func (a *Atlas) Size() float64 { return a.opts.Size }

// Pages returns the texture pages in UID order.
func (a *Atlas) Pages() []*Page { return a.pages }

// Glyph returns the placement record for a glyph of the given face, and
// whether it was rasterized.
func (a *Atlas) Glyph(faceIdx int, gid font.GID) (GlyphInfo, bool) {
	if faceIdx < 0 || faceIdx >= len(a.glyphs) || a.glyphs[faceIdx] == nil {
		return GlyphInfo{}, false
	}
	g, ok := a.glyphs[faceIdx][gid]
	return g, ok
}

func (a *Atlas) rasterizeFace(idx int, f *face) {
	scale := a.opts.Size / f.upem
	for _, rng := range coverage {
		for r := rng[0]; r <= rng[1]; r++ {
			gid, ok := f.ft.NominalGlyph(r)
			if !ok {
				continue
			}
			if _, done := a.glyphs[idx][gid]; done {
				continue
			}
			info, err := a.rasterizeGlyph(f, gid, scale)
			if err != nil {
				logging.L().Warn("glyph rasterization failed",
					"family", f.name, "rune", string(r), "err", err)
				continue
			}
			a.glyphs[idx][gid] = info
		}
	}
}

func (a *Atlas) rasterizeGlyph(f *face, gid font.GID, scale float64) (GlyphInfo, error) {
	advance := float64(f.ft.HorizontalAdvance(gid)) * scale

	data := f.ft.GlyphData(gid)
	outline, ok := data.(font.GlyphOutline)
	if !ok {
		// Bitmap or SVG glyph; advance-only (renders as a blank).
		return GlyphInfo{Advance: advance}, nil
	}
	if len(outline.Segments) == 0 {
		// Whitespace.
		return GlyphInfo{Advance: advance}, nil
	}

	// Glyph bounding box in scaled font units (y-up).
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, seg := range outline.Segments {
		for _, pt := range segPoints(seg) {
			x := float64(pt.X) * scale
			y := float64(pt.Y) * scale
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
	}

	w := int(math.Ceil(maxX)) - int(math.Floor(minX)) + 1
	h := int(math.Ceil(maxY)) - int(math.Floor(minY)) + 1
	if w <= 0 || h <= 0 {
		return GlyphInfo{Advance: advance}, nil
	}

	// Rasterize into a y-down alpha mask with the box origin at (0,0).
	rast := vector.NewRasterizer(w, h)
	ox := math.Floor(minX)
	oy := maxY
	toLocal := func(pt font.SegmentPoint) (float32, float32) {
		return float32(float64(pt.X)*scale - ox), float32(oy - float64(pt.Y)*scale)
	}
	for _, seg := range outline.Segments {
		switch seg.Op {
		case ot.SegmentOpMoveTo:
			x, y := toLocal(seg.Args[0])
			rast.MoveTo(x, y)
		case ot.SegmentOpLineTo:
			x, y := toLocal(seg.Args[0])
			rast.LineTo(x, y)
		case ot.SegmentOpQuadTo:
			cx, cy := toLocal(seg.Args[0])
			x, y := toLocal(seg.Args[1])
			rast.QuadTo(cx, cy, x, y)
		case ot.SegmentOpCubeTo:
			c1x, c1y := toLocal(seg.Args[0])
			c2x, c2y := toLocal(seg.Args[1])
			x, y := toLocal(seg.Args[2])
			rast.CubeTo(c1x, c1y, c2x, c2y, x, y)
		}
	}
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	rast.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	page, px, py, err := a.alloc(w, h)
	if err != nil {
		return GlyphInfo{}, err
	}
	dst := a.pages[page].Img
	white := image.NewUniform(color.White)
	draw.DrawMask(dst, image.Rect(px, py, px+w, py+h), white, image.Point{}, mask, image.Point{}, draw.Over)

	ps := float32(a.opts.PageSize)
	return GlyphInfo{
		Advance:  advance,
		BearingX: ox,
		BearingY: oy,
		W:        w,
		H:        h,
		Page:     a.pages[page].UID,
		U0:       float32(px) / ps,
		V0:       float32(py) / ps,
		U1:       float32(px+w) / ps,
		V1:       float32(py+h) / ps,
	}, nil
}

func segPoints(seg font.Segment) []font.SegmentPoint {
	switch seg.Op {
	case ot.SegmentOpMoveTo, ot.SegmentOpLineTo:
		return seg.Args[:1]
	case ot.SegmentOpQuadTo:
		return seg.Args[:2]
	default:
		return seg.Args[:3]
	}
}

// alloc reserves a w×h region using shelf packing, opening a new page
// with the next sequential UID when the current one is full.
func (a *Atlas) alloc(w, h int) (pageIdx, x, y int, err error) {
	const pad = 1
	if w > a.opts.PageSize || h > a.opts.PageSize {
		return 0, 0, 0, fmt.Errorf("fontatlas: glyph %dx%d exceeds page size %d", w, h, a.opts.PageSize)
	}
	if len(a.pages) == 0 {
		a.newPage()
	}
	if a.curX+w+pad > a.opts.PageSize {
		a.curX = 0
		a.curY += a.rowH + pad
		a.rowH = 0
	}
	if a.curY+h+pad > a.opts.PageSize {
		a.newPage()
	}
	x, y = a.curX, a.curY
	a.curX += w + pad
	if h > a.rowH {
		a.rowH = h
	}
	return len(a.pages) - 1, x, y, nil
}

func (a *Atlas) newPage() {
	a.pages = append(a.pages, &Page{
		UID: uint32(len(a.pages)),
		Img: image.NewRGBA(image.Rect(0, 0, a.opts.PageSize, a.opts.PageSize)),
	})
	a.curX, a.curY, a.rowH = 0, 0, 0
}

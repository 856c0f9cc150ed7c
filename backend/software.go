// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/viewport"
)

func init() {
	Register(NameSoftware, func() Backend { return &Software{} })
}

// placeholderColor marks content that could not be drawn properly.
var placeholderColor = color.RGBA{R: 180, G: 180, B: 180, A: 96}

// Software is the CPU compositor backend. It always initializes and is
// the last resort when GPU probing fails, as well as the reference
// implementation the GPU path is checked against.
type Software struct {
	fb       *image.RGBA
	textures map[uint32]*image.RGBA
	inited   bool
}

// NewSoftware creates an uninitialized software backend.
func NewSoftware() *Software {
	return &Software{}
}

func (s *Software) Name() string { return NameSoftware }

func (s *Software) Init(width, height int) error {
	s.fb = image.NewRGBA(image.Rect(0, 0, width, height))
	s.textures = make(map[uint32]*image.RGBA)
	s.inited = true
	return nil
}

func (s *Software) Resize(width, height int) error {
	if !s.inited {
		return ErrNotInitialized
	}
	s.fb = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

func (s *Software) UploadTexture(uid uint32, img *image.RGBA) error {
	if !s.inited {
		return ErrNotInitialized
	}
	if img == nil || img.Bounds().Empty() {
		return ErrBadTexture
	}
	s.textures[uid] = img
	return nil
}

func (s *Software) Draw(view viewport.Snapshot, quads []batch.Quad) error {
	if !s.inited {
		return ErrNotInitialized
	}
	draw.Draw(s.fb, s.fb.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	es := float64(view.EffectiveScale())
	for _, q := range quads {
		x0 := int((float64(q.X) - float64(view.X)) * es)
		y0 := int((float64(q.Y) - float64(view.Y)) * es)
		x1 := int((float64(q.X+q.W) - float64(view.X)) * es)
		y1 := int((float64(q.Y+q.H) - float64(view.Y)) * es)
		rect := image.Rect(x0, y0, x1, y1).Intersect(s.fb.Bounds())
		if rect.Empty() {
			continue
		}

		switch q.Kind {
		case batch.KindFill:
			s.blendRect(rect, color.RGBA{R: q.R, G: q.G, B: q.B, A: q.A})
		case batch.KindPlaceholder:
			s.blendRect(rect, placeholderColor)
		case batch.KindGlyph:
			tex, ok := s.textures[q.Page]
			if !ok {
				s.blendRect(rect, placeholderColor)
				continue
			}
			s.blendGlyph(rect, x0, y0, x1, y1, tex, q)
		}
	}
	return nil
}

// blendRect composites a solid color over the framebuffer with src-over.
func (s *Software) blendRect(rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blendPixel(s.fb, x, y, c.R, c.G, c.B, c.A)
		}
	}
}

// blendGlyph samples the atlas page over the quad's UV rectangle with
// nearest-neighbor filtering, modulating the page's alpha by the quad
// color. Atlas glyphs are white-on-transparent, so only alpha matters.
func (s *Software) blendGlyph(rect image.Rectangle, x0, y0, x1, y1 int, tex *image.RGBA, q batch.Quad) {
	tb := tex.Bounds()
	spanX, spanY := float64(x1-x0), float64(y1-y0)
	if spanX <= 0 || spanY <= 0 {
		return
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		v := float64(q.V0) + (float64(q.V1)-float64(q.V0))*(float64(y-y0)+0.5)/spanY
		ty := tb.Min.Y + int(v*float64(tb.Dy()))
		for x := rect.Min.X; x < rect.Max.X; x++ {
			u := float64(q.U0) + (float64(q.U1)-float64(q.U0))*(float64(x-x0)+0.5)/spanX
			tx := tb.Min.X + int(u*float64(tb.Dx()))
			if tx < tb.Min.X || tx >= tb.Max.X || ty < tb.Min.Y || ty >= tb.Max.Y {
				continue
			}
			a := tex.RGBAAt(tx, ty).A
			if a == 0 {
				continue
			}
			blendPixel(s.fb, x, y, q.R, q.G, q.B, uint8(uint32(a)*uint32(q.A)/255))
		}
	}
}

func blendPixel(fb *image.RGBA, x, y int, r, g, b, a uint8) {
	if a == 0 {
		return
	}
	dst := fb.RGBAAt(x, y)
	ia := 255 - uint32(a)
	fb.SetRGBA(x, y, color.RGBA{
		R: uint8((uint32(r)*uint32(a) + uint32(dst.R)*ia) / 255),
		G: uint8((uint32(g)*uint32(a) + uint32(dst.G)*ia) / 255),
		B: uint8((uint32(b)*uint32(a) + uint32(dst.B)*ia) / 255),
		A: 255,
	})
}

func (s *Software) ReadPixels() (*image.RGBA, error) {
	if !s.inited {
		return nil, ErrNotInitialized
	}
	out := image.NewRGBA(s.fb.Bounds())
	copy(out.Pix, s.fb.Pix)
	return out, nil
}

func (s *Software) Close() {
	s.fb = nil
	s.textures = nil
	s.inited = false
}

var _ Backend = (*Software)(nil)

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/viewport"
)

func testView() viewport.Snapshot {
	return viewport.Snapshot{Scale: 1, DPR: 1, Width: 64, Height: 64}
}

func TestSoftwareRequiresInit(t *testing.T) {
	s := NewSoftware()
	if err := s.Draw(testView(), nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Draw before Init: %v", err)
	}
	if _, err := s.ReadPixels(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReadPixels before Init: %v", err)
	}
}

func TestSoftwareDrawFill(t *testing.T) {
	s := NewSoftware()
	if err := s.Init(64, 64); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err := s.Draw(testView(), []batch.Quad{
		{X: 10, Y: 10, W: 20, H: 20, R: 255, A: 255, Kind: batch.KindFill},
	})
	if err != nil {
		t.Fatal(err)
	}
	px, err := s.ReadPixels()
	if err != nil {
		t.Fatal(err)
	}
	if got := px.RGBAAt(15, 15); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("inside fill = %v, want opaque red", got)
	}
	if got := px.RGBAAt(5, 5); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("outside fill = %v, want white", got)
	}
}

// Camera position shifts where quads land on screen.
func TestSoftwareCameraTransform(t *testing.T) {
	s := NewSoftware()
	if err := s.Init(64, 64); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	view := testView()
	view.X, view.Y = 10, 10
	if err := s.Draw(view, []batch.Quad{
		{X: 10, Y: 10, W: 5, H: 5, B: 255, A: 255, Kind: batch.KindFill},
	}); err != nil {
		t.Fatal(err)
	}
	px, _ := s.ReadPixels()
	if got := px.RGBAAt(2, 2); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("quad not translated to origin: %v", got)
	}
}

// A glyph quad whose atlas page was never uploaded draws as a placeholder
// rather than failing the frame.
func TestSoftwareMissingTexturePlaceholder(t *testing.T) {
	s := NewSoftware()
	if err := s.Init(64, 64); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err := s.Draw(testView(), []batch.Quad{
		{X: 0, Y: 0, W: 10, H: 10, Page: 42, A: 255, Kind: batch.KindGlyph},
	})
	if err != nil {
		t.Fatal(err)
	}
	px, _ := s.ReadPixels()
	if got := px.RGBAAt(5, 5); got == (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Error("missing texture drew nothing, want placeholder box")
	}
}

func TestSoftwareGlyphSampling(t *testing.T) {
	s := NewSoftware()
	if err := s.Init(64, 64); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// A fully opaque white 8x8 page.
	page := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range page.Pix {
		page.Pix[i] = 255
	}
	if err := s.UploadTexture(0, page); err != nil {
		t.Fatal(err)
	}

	err := s.Draw(testView(), []batch.Quad{
		{X: 4, Y: 4, W: 8, H: 8, U1: 1, V1: 1, G: 200, A: 255, Kind: batch.KindGlyph},
	})
	if err != nil {
		t.Fatal(err)
	}
	px, _ := s.ReadPixels()
	if got := px.RGBAAt(8, 8); got != (color.RGBA{G: 200, A: 255}) {
		t.Errorf("glyph pixel = %v, want modulated green", got)
	}
}

func TestSoftwareUploadBadTexture(t *testing.T) {
	s := NewSoftware()
	if err := s.Init(8, 8); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.UploadTexture(0, nil); !errors.Is(err, ErrBadTexture) {
		t.Errorf("nil upload: %v, want ErrBadTexture", err)
	}
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package batch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestEncodeDecode(t *testing.T) {
	in := Batch{
		SheetID: uuid.New(),
		Quads: []Quad{
			{X: 0, Y: 0, W: 100, H: 21, R: 240, G: 240, B: 240, A: 255, Kind: KindFill},
			{X: 4, Y: 3, W: 12, H: 16, U0: 0.1, V0: 0.2, U1: 0.15, V1: 0.3, Page: 2,
				R: 10, G: 20, B: 30, A: 255, Kind: KindGlyph},
			{X: 50, Y: 3, W: 12, H: 16, A: 64, Kind: KindPlaceholder},
		},
	}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch:\n%s", diff)
	}
}

func TestDecodeEmpty(t *testing.T) {
	id := uuid.New()
	out, err := Decode(Encode(Batch{SheetID: id}))
	if err != nil {
		t.Fatal(err)
	}
	if out.SheetID != id || len(out.Quads) != 0 {
		t.Errorf("empty batch decoded as %#v", out)
	}
}

func TestDecodeTruncated(t *testing.T) {
	buf := Encode(Batch{SheetID: uuid.New(), Quads: make([]Quad, 3)})
	for _, n := range []int{0, 10, len(buf) - 1} {
		if _, err := Decode(buf[:n]); err == nil {
			t.Errorf("Decode(%d bytes) succeeded, want error", n)
		}
	}
}

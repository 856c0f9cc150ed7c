// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var testSheet = uuid.MustParse("6d9b7a60-1f3c-4b9e-8c2a-0d5e9f1a2b3c")

// roundTripMessages covers every supported discriminant.
var roundTripMessages = []Message{
	Ready{Stage: StageLayout},
	InitSheet{SheetID: testSheet, Name: "Sheet 1"},
	SheetInfo{SheetID: testSheet, Name: "Budget", Order: "a0", Color: RGBA{R: 255, G: 128, A: 255}},
	SheetOffsets{
		SheetID: testSheet,
		Columns: []SizeRun{{Index: 3, Size: 140}, {Index: 7, Size: 62.5}},
		Rows:    []SizeRun{{Index: 12, Size: 42}},
	},
	SheetDeleted{SheetID: testSheet},
	ClearSheet{SheetID: testSheet},
	HashCells{
		SheetID: testSheet,
		Hash:    HashPos{X: -1, Y: 2},
		Cells: []Cell{
			{X: 1, Y: 1, Text: "hello", Align: AlignLeft, Color: RGBA{A: 255}},
			{X: 2, Y: 1, Text: "wörld", Align: AlignRight, Bold: true, Color: RGBA{R: 30, G: 30, B: 30, A: 255}},
		},
		Fills: []Fill{{X: 1, Y: 1, W: 4, H: 2, Color: RGBA{G: 200, A: 255}}},
	},
	DirtyHashes{SheetID: testSheet, Hashes: []HashPos{{X: 0, Y: 0}, {X: -3, Y: 9}}},
	Selection{SheetID: testSheet, StartCol: 1, StartRow: 1, EndCol: 5, EndRow: 9, CursorCol: 5, CursorRow: 9},
	ViewportChanged{SheetID: testSheet, Hashes: []HashPos{{X: 0, Y: 0}, {X: 1, Y: 0}}},
	CellEdit{SheetID: testSheet, X: 4, Y: 17, Text: "=SUM(A1:A9)"},
	ColumnResize{SheetID: testSheet, Column: 2, Width: 180},
	RowResize{SheetID: testSheet, Row: 40, Height: 28},
}

func TestRoundTrip(t *testing.T) {
	for _, want := range roundTripMessages {
		t.Run(want.MessageTag().String(), func(t *testing.T) {
			f, err := Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(f.Bytes())
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	buf := []byte{0xEE, Version, 1, 2, 3}
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestDecodeBadVersion(t *testing.T) {
	f, err := Encode(Ready{Stage: StageRender})
	if err != nil {
		t.Fatal(err)
	}
	buf := f.Bytes()
	buf[1] = Version + 1
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected error for version mismatch")
	}
}

func TestDecodeTruncated(t *testing.T) {
	f, err := Encode(HashCells{
		SheetID: testSheet,
		Hash:    HashPos{X: 1, Y: 1},
		Cells:   []Cell{{X: 1, Y: 1, Text: "abcdef"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	full := f.Bytes()

	// Every strict prefix must fail cleanly, never panic.
	for n := 0; n < len(full); n++ {
		if _, err := Decode(full[:n]); err == nil {
			t.Fatalf("prefix of length %d decoded without error", n)
		}
	}
}

func TestDecodeCorruptLength(t *testing.T) {
	f, err := Encode(DirtyHashes{SheetID: testSheet, Hashes: []HashPos{{X: 1, Y: 1}}})
	if err != nil {
		t.Fatal(err)
	}
	buf := f.Bytes()
	// The hash count field follows tag+version+uuid. Corrupt it to a huge
	// value; decode must fail bounded, not allocate gigabytes.
	buf[2+16] = 0xFF
	buf[2+16+1] = 0xFF
	buf[2+16+2] = 0xFF
	buf[2+16+3] = 0x7F
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected error for corrupt slice length")
	}
}

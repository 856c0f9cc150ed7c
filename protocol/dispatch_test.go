// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import "testing"

func encodeOrDie(t *testing.T, m Message) []byte {
	t.Helper()
	f, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	return f.Bytes()
}

func TestDispatchRoutes(t *testing.T) {
	d := NewDispatcher("test")

	var got Message
	d.Handle(TagCellEdit, func(m Message) { got = m })

	d.Dispatch(encodeOrDie(t, CellEdit{SheetID: testSheet, X: 1, Y: 2, Text: "x"}))

	edit, ok := got.(CellEdit)
	if !ok {
		t.Fatalf("handler received %T, want CellEdit", got)
	}
	if edit.X != 1 || edit.Y != 2 || edit.Text != "x" {
		t.Errorf("unexpected payload: %+v", edit)
	}
}

// TestDispatchUnknownTagIsInert verifies that an invalid discriminant
// neither panics nor disturbs handlers for other tags.
func TestDispatchUnknownTagIsInert(t *testing.T) {
	d := NewDispatcher("test")

	calls := 0
	d.Handle(TagReady, func(Message) { calls++ })

	d.Dispatch([]byte{0xEE, Version, 0, 0, 0})
	d.Dispatch(nil)
	d.Dispatch([]byte{byte(TagReady)}) // missing version byte

	if calls != 0 {
		t.Errorf("handler invoked %d times by invalid frames", calls)
	}

	// The channel still works afterwards.
	d.Dispatch(encodeOrDie(t, Ready{Stage: StageLayout}))
	if calls != 1 {
		t.Errorf("valid frame after garbage: handler calls = %d, want 1", calls)
	}
}

func TestDispatchContainsHandlerPanic(t *testing.T) {
	d := NewDispatcher("test")
	d.Handle(TagReady, func(Message) { panic("boom") })

	// Must not propagate.
	d.Dispatch(encodeOrDie(t, Ready{Stage: StageRender}))
}

func TestDispatchUnhandledTagDropped(t *testing.T) {
	d := NewDispatcher("test")
	// No handler registered; frame is valid but silently dropped.
	d.Dispatch(encodeOrDie(t, ClearSheet{SheetID: testSheet}))
}

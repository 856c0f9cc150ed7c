// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sheetcore

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/gogpu/gridrender/grid"
	"github.com/gogpu/gridrender/protocol"
)

type coreHarness struct {
	stage  *Stage
	layout Conn // stage-side view: Out is core->layout, In is layout->core
	render Conn
	cancel context.CancelFunc
}

func newHarness(t *testing.T) *coreHarness {
	t.Helper()
	layout := Conn{Out: protocol.NewPort(0), In: protocol.NewPort(0)}
	render := Conn{Out: protocol.NewPort(0), In: protocol.NewPort(0)}
	s := New(layout, render)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &coreHarness{stage: s, layout: layout, render: render, cancel: cancel}
}

// sendToCore plays the role of a consumer stage sending upward.
func (h *coreHarness) sendToCore(t *testing.T, conn Conn, m protocol.Message) {
	t.Helper()
	f, err := protocol.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.In.Send(f); err != nil {
		t.Fatal(err)
	}
}

// recvFromCore reads the next core-to-stage message, failing on timeout.
func (h *coreHarness) recvFromCore(t *testing.T, conn Conn) protocol.Message {
	t.Helper()
	select {
	case buf := <-conn.Out.Recv():
		m, err := protocol.Decode(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from core")
		return nil
	}
}

func TestAddSheetBroadcasts(t *testing.T) {
	h := newHarness(t)
	info := protocol.SheetInfo{SheetID: uuid.New(), Name: "Sheet 1", Order: "a0"}
	h.stage.AddSheet(info)

	for _, conn := range []Conn{h.layout, h.render} {
		got, ok := h.recvFromCore(t, conn).(protocol.SheetInfo)
		if !ok || got.SheetID != info.SheetID || got.Name != "Sheet 1" {
			t.Errorf("got %#v, want announcement of %v", got, info.SheetID)
		}
	}
}

func TestViewportChangedRepliesPerBucket(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id, Name: "s"})
	h.recvFromCore(t, h.layout) // drain SheetInfo
	h.recvFromCore(t, h.render)

	// One cell in bucket (0,0), one in bucket (1,0).
	c0 := protocol.Cell{X: 1, Y: 1, Text: "origin"}
	c1 := protocol.Cell{X: 16, Y: 1, Text: "right"} // col 16 starts at x=1500
	h.stage.SetCell(id, c0)
	h.stage.SetCell(id, c1)
	for range 2 { // drain DirtyHashes
		h.recvFromCore(t, h.layout)
		h.recvFromCore(t, h.render)
	}

	req := protocol.ViewportChanged{SheetID: id, Hashes: []protocol.HashPos{{X: 0, Y: 0}, {X: 1, Y: 0}}}
	h.sendToCore(t, h.layout, req)

	replies := map[protocol.HashPos][]protocol.Cell{}
	for range 2 {
		hc, ok := h.recvFromCore(t, h.layout).(protocol.HashCells)
		if !ok {
			t.Fatal("expected HashCells")
		}
		replies[hc.Hash] = hc.Cells
	}
	if diff := cmp.Diff([]protocol.Cell{c0}, replies[protocol.HashPos{X: 0, Y: 0}]); diff != "" {
		t.Errorf("bucket (0,0) cells mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]protocol.Cell{c1}, replies[protocol.HashPos{X: 1, Y: 0}]); diff != "" {
		t.Errorf("bucket (1,0) cells mismatch:\n%s", diff)
	}

	// Replies go only to the requesting link.
	select {
	case buf := <-h.render.Out.Recv():
		m, _ := protocol.Decode(buf)
		t.Errorf("render link received unexpected %T", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCellEditEmitsDirtyHashes(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	h.sendToCore(t, h.render, protocol.CellEdit{SheetID: id, X: 2, Y: 3, Text: "edited"})

	for _, conn := range []Conn{h.layout, h.render} {
		dh, ok := h.recvFromCore(t, conn).(protocol.DirtyHashes)
		if !ok {
			t.Fatal("expected DirtyHashes")
		}
		want := []protocol.HashPos{{X: 0, Y: 0}}
		if diff := cmp.Diff(want, dh.Hashes); diff != "" {
			t.Errorf("dirty hashes mismatch:\n%s", diff)
		}
	}

	if c, ok := h.stage.Cell(id, 2, 3); !ok || c.Text != "edited" {
		t.Errorf("cell not stored: %#v ok=%v", c, ok)
	}
}

func TestColumnResizeBroadcastsOffsets(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	h.sendToCore(t, h.layout, protocol.ColumnResize{SheetID: id, Column: 3, Width: 240})

	for _, conn := range []Conn{h.layout, h.render} {
		so, ok := h.recvFromCore(t, conn).(protocol.SheetOffsets)
		if !ok {
			t.Fatal("expected SheetOffsets")
		}
		want := []protocol.SizeRun{{Index: 3, Size: 240}}
		if diff := cmp.Diff(want, so.Columns); diff != "" {
			t.Errorf("columns mismatch:\n%s", diff)
		}
	}
}

func TestReadyReplaysSheets(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id, Name: "first"})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	// A stage reporting ready after the sheet was added still learns of it.
	h.sendToCore(t, h.render, protocol.Ready{Stage: protocol.StageRender})

	got, ok := h.recvFromCore(t, h.render).(protocol.SheetInfo)
	if !ok || got.SheetID != id || got.Name != "first" {
		t.Errorf("ready replay: got %#v", got)
	}
}

func TestFillSpanningBuckets(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	// Columns 14..17 straddle the bucket boundary at column 16.
	fill := protocol.Fill{X: 14, Y: 1, W: 4, H: 1, Color: protocol.RGBA{R: 255, A: 255}}
	h.stage.SetFill(id, fill)

	dh := h.recvFromCore(t, h.layout).(protocol.DirtyHashes)
	want := []protocol.HashPos{{X: 0, Y: 0}, {X: 1, Y: 0}}
	if diff := cmp.Diff(want, dh.Hashes); diff != "" {
		t.Errorf("fill dirty buckets mismatch:\n%s", diff)
	}
	h.recvFromCore(t, h.render)

	// Both buckets report the fill.
	h.sendToCore(t, h.render, protocol.ViewportChanged{SheetID: id, Hashes: want})
	for range 2 {
		hc := h.recvFromCore(t, h.render).(protocol.HashCells)
		if len(hc.Fills) != 1 {
			t.Errorf("bucket %v: %d fills, want 1", hc.Hash, len(hc.Fills))
		}
	}
}

func TestDeleteAndClearSheet(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	h.stage.ClearSheet(id)
	if _, ok := h.recvFromCore(t, h.layout).(protocol.ClearSheet); !ok {
		t.Error("expected ClearSheet broadcast")
	}
	h.recvFromCore(t, h.render)

	h.stage.DeleteSheet(id)
	if _, ok := h.recvFromCore(t, h.layout).(protocol.SheetDeleted); !ok {
		t.Error("expected SheetDeleted broadcast")
	}
	h.recvFromCore(t, h.render)

	// Requests against the deleted sheet are dropped, not answered.
	h.sendToCore(t, h.layout, protocol.ViewportChanged{SheetID: id, Hashes: []protocol.HashPos{{}}})
	select {
	case <-h.layout.Out.Recv():
		t.Error("deleted sheet still answered a bucket request")
	case <-time.After(50 * time.Millisecond):
	}
}

// The bucket derivation must track resized columns: a cell near a bucket
// edge can change buckets when an earlier column grows.
func TestBucketFollowsOffsets(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.stage.AddSheet(protocol.SheetInfo{SheetID: id})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	cell := protocol.Cell{X: 15, Y: 1, Text: "edge"} // x=1400, bucket 0
	h.stage.SetCell(id, cell)
	dh := h.recvFromCore(t, h.layout).(protocol.DirtyHashes)
	if dh.Hashes[0] != (protocol.HashPos{X: 0, Y: 0}) {
		t.Fatalf("initial bucket = %v", dh.Hashes[0])
	}
	h.recvFromCore(t, h.render)

	// Widening column 1 pushes the cell past x=1500 into bucket 1.
	h.sendToCore(t, h.layout, protocol.ColumnResize{SheetID: id, Column: 1, Width: grid.DefaultColumnWidth + 200})
	h.recvFromCore(t, h.layout)
	h.recvFromCore(t, h.render)

	h.sendToCore(t, h.layout, protocol.ViewportChanged{SheetID: id, Hashes: []protocol.HashPos{{X: 1, Y: 0}}})
	hc := h.recvFromCore(t, h.layout).(protocol.HashCells)
	if len(hc.Cells) != 1 || hc.Cells[0].Text != "edge" {
		t.Errorf("cell did not move buckets after resize: %#v", hc.Cells)
	}
}

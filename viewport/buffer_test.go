// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package viewport

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func testSnapshot(scale, width, height float32) Snapshot {
	return Snapshot{
		X:       10,
		Y:       20,
		Scale:   scale,
		DPR:     2,
		Width:   width,
		Height:  height,
		Dirty:   true,
		SheetID: uuid.MustParse("11111111-2222-3333-4444-555555555555"),
	}
}

func TestWriteRead(t *testing.T) {
	ch := NewChannel(NewBuffer())
	w := NewWriter(ch)
	r := NewReader(ch)

	want := testSnapshot(1.5, 800, 600)
	w.Write(want)

	got, changed := r.Read()
	if !changed {
		t.Fatal("first read after write should report a change")
	}
	if got != want {
		t.Errorf("snapshot mismatch:\n got  %+v\n want %+v", got, want)
	}

	// A second read with no intervening write and a clean region reports
	// no change.
	r.MarkClean()
	if _, changed := r.Read(); changed {
		t.Error("read with no new write should not report a change")
	}
}

func TestReadBeforeFirstWrite(t *testing.T) {
	ch := NewChannel(NewBuffer())
	r := NewReader(ch)

	got, changed := r.Read()
	if changed {
		t.Error("read of uninitialized region should not report a change")
	}
	if got != (Snapshot{}) {
		t.Errorf("read of uninitialized region returned %+v, want zero", got)
	}
}

// TestSnapshotConsistency writes randomized snapshots from one goroutine
// while reading from another. Every returned snapshot must be one of the
// written values in full: fields from two different writes must never mix.
func TestSnapshotConsistency(t *testing.T) {
	ch := NewChannel(NewBuffer())
	w := NewWriter(ch)

	const writes = 5000

	// Scale encodes the write index so a torn read is detectable: for
	// write i, scale=i+1, width=(i+1)*2, height=(i+1)*3.
	written := func(scale float32) (width, height float32) {
		return scale * 2, scale * 3
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < writes; i++ {
			scale := float32(i + 1)
			width, height := written(scale)
			w.Write(Snapshot{
				X:      rng.Float32() * 1000,
				Y:      rng.Float32() * 1000,
				Scale:  scale,
				DPR:    1,
				Width:  width,
				Height: height,
				Dirty:  true,
			})
		}
	}()

	go func() {
		defer wg.Done()
		r := NewReader(ch)
		for i := 0; i < writes; i++ {
			s, _ := r.Read()
			if s.Scale == 0 {
				continue // nothing written yet
			}
			wantW, wantH := written(s.Scale)
			if s.Width != wantW || s.Height != wantH {
				t.Errorf("torn read: scale=%v width=%v height=%v, want width=%v height=%v",
					s.Scale, s.Width, s.Height, wantW, wantH)
				return
			}
		}
	}()

	wg.Wait()
}

func TestGenerationMonotonic(t *testing.T) {
	ch := NewChannel(NewBuffer())
	w := NewWriter(ch)

	prev := ch.Buffer().Generation()
	for i := 0; i < 10; i++ {
		w.Write(testSnapshot(float32(i+1), 100, 100))
		gen := ch.Buffer().Generation()
		if gen <= prev {
			t.Fatalf("generation did not advance: %d -> %d", prev, gen)
		}
		prev = gen
	}
}

// A write finding one slice reader-locked lands in the other; a write
// finding both slices locked for its whole duration is dropped without
// advancing the generation, and readers keep the last good snapshot.
func TestWriteUnderReaderContention(t *testing.T) {
	buf := NewBuffer()
	ch := NewChannel(buf)
	w := NewWriter(ch)
	r := NewReader(ch)

	buf.words[flagWord(0)].Store(flagLocked)
	want := testSnapshot(2, 1024, 768)
	w.Write(want)
	if got, changed := r.Read(); !changed || got != want {
		t.Fatalf("read = %+v changed=%v, want %+v", got, changed, want)
	}
	buf.words[flagWord(0)].Store(flagReady)
	w.Write(want) // resync both slices

	gen := buf.gen.Load()
	buf.words[flagWord(0)].Store(flagLocked)
	buf.words[flagWord(1)].Store(flagLocked)
	w.Write(testSnapshot(3, 640, 480))
	if g := buf.gen.Load(); g != gen {
		t.Errorf("generation advanced to %d on a dropped write, want %d", g, gen)
	}
	buf.words[flagWord(0)].Store(flagReady)
	buf.words[flagWord(1)].Store(flagReady)
	if got, _ := r.Read(); got != want {
		t.Errorf("dropped write surfaced: got %+v, want %+v", got, want)
	}
}

func TestSetBuffer(t *testing.T) {
	ch := NewChannel(NewBuffer())
	w := NewWriter(ch)
	r := NewReader(ch)

	w.Write(testSnapshot(1, 100, 100))
	if _, changed := r.Read(); !changed {
		t.Fatal("expected change on first buffer")
	}

	// Hot-swap the region; the loops keep running against the new buffer.
	ch.SetBuffer(NewBuffer())

	want := testSnapshot(2, 300, 400)
	w.Write(want)
	got, changed := r.Read()
	if !changed {
		t.Fatal("expected change after swap and write")
	}
	if got.Scale != want.Scale || got.Width != want.Width {
		t.Errorf("after swap got %+v, want %+v", got, want)
	}
}

func TestMarkClean(t *testing.T) {
	ch := NewChannel(NewBuffer())
	w := NewWriter(ch)
	r := NewReader(ch)

	w.Write(testSnapshot(1, 100, 100))
	s, _ := r.Read()
	if !s.Dirty {
		t.Fatal("expected dirty snapshot")
	}
	r.MarkClean()
	s, _ = r.Read()
	if s.Dirty {
		t.Error("snapshot still dirty after MarkClean")
	}
}

func TestScaleAndDPRClamped(t *testing.T) {
	ch := NewChannel(NewBuffer())
	w := NewWriter(ch)
	r := NewReader(ch)

	w.Write(Snapshot{Scale: 0.0001, DPR: 0})
	s, _ := r.Read()
	if s.Scale < minScale {
		t.Errorf("scale %v below minimum %v", s.Scale, minScale)
	}
	if s.DPR < minDPR {
		t.Errorf("dpr %v below minimum %v", s.DPR, minDPR)
	}
}

func TestCoordinateTransforms(t *testing.T) {
	s := Snapshot{X: 100, Y: 200, Scale: 2, DPR: 1, Width: 800, Height: 600}

	wx, wy := s.ScreenToWorld(0, 0)
	if wx != 100 || wy != 200 {
		t.Errorf("ScreenToWorld(0,0) = (%v,%v), want (100,200)", wx, wy)
	}

	sx, sy := s.WorldToScreen(wx, wy)
	if sx != 0 || sy != 0 {
		t.Errorf("WorldToScreen round trip = (%v,%v), want (0,0)", sx, sy)
	}

	b := s.VisibleBounds()
	if b.Left != 100 || b.Top != 200 {
		t.Errorf("bounds origin = (%v,%v), want (100,200)", b.Left, b.Top)
	}
	if b.Width() != 400 || b.Height() != 300 {
		t.Errorf("bounds size = (%v,%v), want (400,300)", b.Width(), b.Height())
	}
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package viewport

import "testing"

func TestFallbackRead(t *testing.T) {
	f := NewFallback()
	r := NewFallbackReader(f)

	if _, changed := r.Read(); changed {
		t.Error("empty fallback should not report a change")
	}

	want := testSnapshot(1.5, 800, 600)
	f.Update(want)

	got, changed := r.Read()
	if !changed {
		t.Fatal("expected change after update")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, changed := r.Read(); changed {
		t.Error("repeated read without update should not report a change")
	}
}

func TestFallbackIndependentReaders(t *testing.T) {
	f := NewFallback()
	r1 := NewFallbackReader(f)
	r2 := NewFallbackReader(f)

	f.Update(testSnapshot(2, 100, 100))

	if _, changed := r1.Read(); !changed {
		t.Error("reader 1 missed the update")
	}
	// Reader 2 has its own change tracking.
	if _, changed := r2.Read(); !changed {
		t.Error("reader 2 missed the update")
	}
}

func TestFPSRegion(t *testing.T) {
	r := NewFPSRegion()
	r.StoreFPS(60)
	r.AddFrame()
	r.AddFrame()

	fps, frames := r.Load()
	if fps != 60 {
		t.Errorf("fps = %d, want 60", fps)
	}
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}
}

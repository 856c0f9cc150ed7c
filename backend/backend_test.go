// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/viewport"
)

type failingBackend struct{}

func (failingBackend) Name() string                              { return NameWGPU }
func (failingBackend) Init(int, int) error                       { return errors.New("no adapter") }
func (failingBackend) Resize(int, int) error                     { return ErrNotInitialized }
func (failingBackend) UploadTexture(uint32, *image.RGBA) error   { return ErrNotInitialized }
func (failingBackend) Draw(viewport.Snapshot, []batch.Quad) error { return ErrNotInitialized }
func (failingBackend) ReadPixels() (*image.RGBA, error)          { return nil, ErrNotInitialized }
func (failingBackend) Close()                                    {}

// A preferred backend that cannot initialize must not prevent selection of
// the fallback.
func TestProbeFallsBack(t *testing.T) {
	Register(NameWGPU, func() Backend { return failingBackend{} })
	defer Unregister(NameWGPU)

	b, err := Probe(64, 64)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	defer b.Close()
	if b.Name() != NameSoftware {
		t.Errorf("selected %q, want %q", b.Name(), NameSoftware)
	}
}

func TestProbeNoBackends(t *testing.T) {
	soft := backends[NameSoftware]
	Unregister(NameSoftware)
	defer Register(NameSoftware, soft)

	if _, err := Probe(64, 64); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
}

func TestGetAndAvailable(t *testing.T) {
	if Get(NameSoftware) == nil {
		t.Error("software backend not registered")
	}
	if Get("nope") != nil {
		t.Error("unknown name returned a backend")
	}
	found := false
	for _, name := range Available() {
		if name == NameSoftware {
			found = true
		}
	}
	if !found {
		t.Errorf("Available() = %v, missing software", Available())
	}
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"sync"

	"github.com/gogpu/gridrender/internal/logging"
)

// Factory creates a new backend instance.
type Factory func() Backend

// Backend names.
const (
	NameWGPU     = "wgpu"
	NameSoftware = "software"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)

	// Priority order for backend selection (first to initialize wins).
	// wgpu > software: the GPU path is preferred, software always works.
	priority = []string{NameWGPU, NameSoftware}
)

// Register registers a backend factory with the given name. Typically
// called from init() functions in backend packages. A backend registered
// under an existing name replaces it.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry. Useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// Get returns a fresh backend instance by name, or nil if the name is not
// registered.
func Get(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Probe initializes the best available backend: candidates are tried in
// priority order and the first successful Init wins. Failed candidates
// are logged and skipped, which is the normal path on machines without a
// usable GPU.
func Probe(width, height int) (Backend, error) {
	registryMu.RLock()
	names := make([]string, 0, len(backends))
	names = append(names, priority...)
	for name := range backends {
		if name != NameWGPU && name != NameSoftware {
			names = append(names, name)
		}
	}
	factories := make(map[string]Factory, len(backends))
	for name, f := range backends {
		factories[name] = f
	}
	registryMu.RUnlock()

	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			continue
		}
		b := factory()
		if b == nil {
			continue
		}
		if err := b.Init(width, height); err != nil {
			logging.L().Warn("backend failed to initialize, trying next",
				"backend", name, "err", err)
			b.Close()
			continue
		}
		return b, nil
	}
	return nil, ErrBackendNotAvailable
}

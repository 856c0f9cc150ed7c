// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

// Package wgpu is empty under the nogpu build tag; the registry then
// only ever selects the software backend.
package wgpu

import "github.com/gogpu/gpucontext"

// SetDeviceProvider is a no-op without GPU support.
func SetDeviceProvider(gpucontext.DeviceProvider) error { return nil }

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// plainProvider implements gpucontext.DeviceProvider without HAL access.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device   { return nil }
func (plainProvider) Queue() gpucontext.Queue     { return nil }
func (plainProvider) Adapter() gpucontext.Adapter { return nil }
func (plainProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (plainProvider) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{} }

// fakeHalProvider claims HAL access but hands back types the backend
// cannot use.
type fakeHalProvider struct{ plainProvider }

func (fakeHalProvider) HalDevice() any { return struct{}{} }
func (fakeHalProvider) HalQueue() any  { return struct{}{} }

func TestSharedHalWithoutProvider(t *testing.T) {
	if err := SetDeviceProvider(nil); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := sharedHal(); ok {
		t.Error("sharedHal reported a device with no provider set")
	}
}

func TestSharedHalIgnoresNonHALProvider(t *testing.T) {
	if err := SetDeviceProvider(plainProvider{}); err != nil {
		t.Fatal(err)
	}
	defer SetDeviceProvider(nil)
	if _, _, ok := sharedHal(); ok {
		t.Error("provider without HAL access was used for sharing")
	}
}

func TestSharedHalRejectsBadHALTypes(t *testing.T) {
	if err := SetDeviceProvider(fakeHalProvider{}); err != nil {
		t.Fatal(err)
	}
	defer SetDeviceProvider(nil)
	if _, _, ok := sharedHal(); ok {
		t.Error("non-hal values accepted as shared device")
	}
}

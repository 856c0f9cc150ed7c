// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

var (
	providerMu sync.RWMutex
	provider   gpucontext.DeviceProvider
)

// SetDeviceProvider shares a host's GPU device with backends initialized
// afterwards, so an embedding application and the grid renderer do not
// open the adapter twice. The provider must additionally implement
// HalDevice() any and HalQueue() any returning wgpu/hal types; providers
// without HAL access are accepted and ignored, and Init probes its own
// adapter as usual.
//
// Call before the pipeline starts. A nil provider clears sharing.
func SetDeviceProvider(p gpucontext.DeviceProvider) error {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()
	return nil
}

// halProvider is the duck-typed HAL access a sharing provider offers.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// sharedHal returns the host's device and queue when a provider with HAL
// access is registered.
func sharedHal() (hal.Device, hal.Queue, bool) {
	providerMu.RLock()
	p := provider
	providerMu.RUnlock()
	if p == nil {
		return nil, nil, false
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, nil, false
	}
	dev, okD := hp.HalDevice().(hal.Device)
	q, okQ := hp.HalQueue().(hal.Queue)
	if !okD || !okQ || dev == nil || q == nil {
		return nil, nil, false
	}
	return dev, q, true
}

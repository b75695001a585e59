// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/gpucache/backend"
	"github.com/gogpu/gpucache/gpucore"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// NativeBackend opens a GPU through gogpu/wgpu/hal and exposes it as a
// gpucore.Device. It registers itself as backend.BackendNative.
type NativeBackend struct {
	opts []DeviceOption

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string

	// externalDevice is true when device and queue belong to a provider.
	externalDevice bool

	dev *HALDevice
}

// init registers the native backend on package import.
func init() {
	backend.Register(backend.BackendNative, func() backend.DeviceBackend {
		return New()
	})
}

// New creates a native backend. The GPU is opened by Init.
func New(opts ...DeviceOption) *NativeBackend {
	return &NativeBackend{opts: opts}
}

// NewFromProvider creates an initialized backend on a device shared by an
// external provider, such as a gogpu application. The provider must
// implement HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue. Close does not destroy the shared device.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...DeviceOption) (*NativeBackend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}

	b := &NativeBackend{
		opts:           opts,
		device:         device,
		queue:          queue,
		adapter:        "external",
		externalDevice: true,
	}
	b.dev = NewHALDevice(device, queue, nil, opts...)
	slogger().Info("native: using shared GPU device")
	return b, nil
}

// Name returns the backend identifier.
func (b *NativeBackend) Name() string {
	return backend.BackendNative
}

// Init opens the first discrete or integrated GPU, falling back to the
// first adapter found.
func (b *NativeBackend) Init() error {
	if b.dev != nil {
		return nil
	}

	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoGPU
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}

	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.adapter = selected.Info.Name
	b.dev = NewHALDevice(b.device, b.queue, &limits, b.opts...)

	slogger().Info("native: GPU initialized", "adapter", b.adapter)
	return nil
}

// Close releases the device resources and, unless shared, the device.
func (b *NativeBackend) Close() {
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
	if !b.externalDevice && b.device != nil {
		b.device.Destroy()
	}
	b.device = nil
	b.queue = nil
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

// Device returns the device, or nil before Init.
func (b *NativeBackend) Device() gpucore.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// HALDevice returns the concrete device, or nil before Init.
func (b *NativeBackend) HALDevice() *HALDevice {
	return b.dev
}

// AdapterName returns the name of the opened adapter.
func (b *NativeBackend) AdapterName() string {
	return b.adapter
}

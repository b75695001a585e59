// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/gpucache/gpucore"
	"github.com/gogpu/wgpu/hal"
)

// halTexture is a HAL texture with its default view. The view is only
// used as a render pass attachment, so it is created for render targets
// alone.
type halTexture struct {
	raw  hal.Texture
	view hal.TextureView
	desc gpucore.TextureDesc
}

// newHALTexture creates the texture described by desc.
func newHALTexture(device hal.Device, desc gpucore.TextureDesc) (*halTexture, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, desc.Width, desc.Height)
	}
	format, err := convertTextureFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding
	if desc.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}

	raw, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),  //nolint:gosec // G115: validated positive
			Height:             uint32(desc.Height), //nolint:gosec // G115: validated positive
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}

	t := &halTexture{raw: raw, desc: desc}
	if desc.RenderTarget {
		view, err := device.CreateTextureView(raw, &hal.TextureViewDescriptor{
			Label:         desc.Label + "_view",
			Format:        format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			device.DestroyTexture(raw)
			return nil, fmt.Errorf("create texture view %q: %w", desc.Label, err)
		}
		t.view = view
	}
	return t, nil
}

// contains reports whether r lies inside the texture.
func (t *halTexture) contains(r gpucore.Region) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width >= 0 && r.Height >= 0 &&
		r.X+r.Width <= t.desc.Width && r.Y+r.Height <= t.desc.Height
}

func (t *halTexture) destroy(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.raw != nil {
		device.DestroyTexture(t.raw)
		t.raw = nil
	}
}

// convertTextureFormat maps a cache texture format to its WebGPU format.
func convertTextureFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpucore.TextureFormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float, nil
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	default:
		return 0, fmt.Errorf("%w: format %v", ErrUnsupported, f)
	}
}

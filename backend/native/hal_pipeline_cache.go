// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/gpucache/gpucore"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/gpu_cache_update.wgsl
var scatterShaderSource string

// ScatterShaderSource returns the WGSL source of the scatter program.
func ScatterShaderSource() string {
	return scatterShaderSource
}

// scatterPipeline draws one point per cache block into an RGBA32Float
// target. Blending and depth testing are off.
type scatterPipeline struct {
	shader     hal.ShaderModule
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

// scatterVertexLayout returns the two vertex streams: the position buffer
// at slot 0 and the value buffer at slot 1.
func scatterVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: uint64(gpucore.BufferKindPosition.Stride()),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatUnorm16x2, Offset: 0, ShaderLocation: 0}, // position
			},
		},
		{
			ArrayStride: uint64(gpucore.BufferKindValue.Stride()),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 1}, // value
			},
		},
	}
}

func newScatterPipeline(device hal.Device, spirv bool) (*scatterPipeline, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	p := &scatterPipeline{}
	if err := p.create(device, spirv); err != nil {
		p.destroy(device)
		return nil, err
	}
	return p, nil
}

func (p *scatterPipeline) create(device hal.Device, spirv bool) error {
	if scatterShaderSource == "" {
		return fmt.Errorf("%w: scatter shader source is empty", ErrShaderCompilation)
	}

	shader, err := createShaderModule(device, "gpu_cache_update_shader", scatterShaderSource, spirv)
	if err != nil {
		return err
	}
	p.shader = shader

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "gpu_cache_update_pipe_layout",
	})
	if err != nil {
		return fmt.Errorf("create scatter pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "gpu_cache_update_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    scatterVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA32Float,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyPointList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create scatter pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// destroy releases all pipeline resources in reverse creation order.
func (p *scatterPipeline) destroy(device hal.Device) {
	if device == nil {
		return
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

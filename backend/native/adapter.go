// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/gpucache/gpucore"
	"github.com/gogpu/wgpu/hal"
)

// submitTimeout bounds the wait for a submitted command buffer.
const submitTimeout = 5 * time.Second

// HALDevice implements gpucore.Device using gogpu/wgpu/hal directly.
//
// Every copy and draw is encoded into its own command buffer, submitted
// and waited on, so the texture is consistent when the call returns.
//
// Thread Safety: HALDevice is safe for concurrent use from multiple goroutines.
// All resource maps are protected by a mutex.
type HALDevice struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	caps   gpucore.Capabilities
	spirv  bool

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	textures map[gpucore.TextureID]*halTexture
	buffers  map[gpucore.BufferID]*halBuffer
	programs map[gpucore.ProgramID]*scatterPipeline
	vaos     map[gpucore.VertexArrayID]gpucore.VertexArrayDesc
}

// DeviceOption configures a HALDevice.
type DeviceOption func(*HALDevice)

// WithCapabilities overrides the reported capabilities. It is meant for
// exercising the cache's fallback paths on capable hardware.
func WithCapabilities(caps gpucore.Capabilities) DeviceOption {
	return func(d *HALDevice) {
		d.caps = caps
	}
}

// WithSPIRV makes the device compile its WGSL programs to SPIR-V with naga
// before handing them to the HAL.
func WithSPIRV(enabled bool) DeviceOption {
	return func(d *HALDevice) {
		d.spirv = enabled
	}
}

// NewHALDevice wraps the given device and queue.
// If limits is nil, default limits are used.
func NewHALDevice(device hal.Device, queue hal.Queue, limits *gputypes.Limits, opts ...DeviceOption) *HALDevice {
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}

	d := &HALDevice{
		device: device,
		queue:  queue,
		caps: gpucore.Capabilities{
			MaxTextureSize:    int(lim.MaxTextureDimension2D),
			CopyTexture:       true,
			FloatRenderTarget: true,
		},
		textures: make(map[gpucore.TextureID]*halTexture),
		buffers:  make(map[gpucore.BufferID]*halBuffer),
		programs: make(map[gpucore.ProgramID]*scatterPipeline),
		vaos:     make(map[gpucore.VertexArrayID]gpucore.VertexArrayDesc),
	}
	for _, opt := range opts {
		opt(d)
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)

	return d
}

// newID generates a unique resource ID.
func (d *HALDevice) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// === Capabilities ===

// Capabilities reports the device limits and optional features.
func (d *HALDevice) Capabilities() gpucore.Capabilities {
	return d.caps
}

// SetLogger sets the logger for the native backend.
// Called by the cache when its logger changes.
func (d *HALDevice) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// === Texture Management ===

// CreateTexture creates a GPU texture with a default view.
func (d *HALDevice) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	tex, err := newHALTexture(d.device, desc)
	if err != nil {
		return gpucore.InvalidID, err
	}

	id := gpucore.TextureID(d.newID())

	d.mu.Lock()
	d.textures[id] = tex
	d.mu.Unlock()

	slogger().Debug("native: texture created", "id", id, "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// DestroyTexture releases a GPU texture.
func (d *HALDevice) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	tex, ok := d.textures[id]
	if ok {
		delete(d.textures, id)
	}
	d.mu.Unlock()

	if ok {
		tex.destroy(d.device)
	}
}

func (d *HALDevice) texture(id gpucore.TextureID) (*halTexture, error) {
	d.mu.RLock()
	tex, ok := d.textures[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrResourceNotFound, id)
	}
	return tex, nil
}

// UploadTexture writes tightly packed texels into region.
func (d *HALDevice) UploadTexture(id gpucore.TextureID, region gpucore.Region, data []byte) error {
	tex, err := d.texture(id)
	if err != nil {
		return err
	}
	if !tex.contains(region) {
		return fmt.Errorf("%w: %v", ErrRegionOutOfBounds, region)
	}
	bpt := tex.desc.Format.BytesPerTexel()
	if len(data) != region.Width*region.Height*bpt {
		return fmt.Errorf("%w: %d bytes for %v", ErrDataSize, len(data), region)
	}
	if len(data) == 0 {
		return nil
	}

	//nolint:gosec // G115: region validated against texture bounds
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex.raw,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(region.X), Y: uint32(region.Y), Z: 0},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(region.Width * bpt),
			RowsPerImage: uint32(region.Height),
		},
		&hal.Extent3D{Width: uint32(region.Width), Height: uint32(region.Height), DepthOrArrayLayers: 1},
	)
	return nil
}

// CopyTexture copies the top-left width x height texels of src into dst.
func (d *HALDevice) CopyTexture(dst, src gpucore.TextureID, width, height int) error {
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	st, err := d.texture(src)
	if err != nil {
		return err
	}
	r := gpucore.Region{Width: width, Height: height}
	if !dt.contains(r) || !st.contains(r) {
		return fmt.Errorf("%w: copy %v", ErrRegionOutOfBounds, r)
	}
	if width == 0 || height == 0 {
		return nil
	}

	return d.submit("gpu_cache_copy", func(encoder hal.CommandEncoder) error {
		//nolint:gosec // G115: validated against texture bounds
		encoder.CopyTextureToTexture(st.raw, dt.raw, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{Texture: st.raw, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
			DstBase: hal.ImageCopyTexture{Texture: dt.raw, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
			Size:    hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		}})
		return nil
	})
}

// === Programs and Vertex Input ===

// CreateProgram creates the render pipeline for one of the fixed programs.
func (d *HALDevice) CreateProgram(kind gpucore.ProgramKind) (gpucore.ProgramID, error) {
	if kind != gpucore.ProgramScatter {
		return gpucore.InvalidID, fmt.Errorf("%w: program %v", ErrUnsupported, kind)
	}
	p, err := newScatterPipeline(d.device, d.spirv)
	if err != nil {
		return gpucore.InvalidID, err
	}

	id := gpucore.ProgramID(d.newID())

	d.mu.Lock()
	d.programs[id] = p
	d.mu.Unlock()

	return id, nil
}

// DestroyProgram releases a program.
func (d *HALDevice) DestroyProgram(id gpucore.ProgramID) {
	d.mu.Lock()
	p, ok := d.programs[id]
	if ok {
		delete(d.programs, id)
	}
	d.mu.Unlock()

	if ok {
		p.destroy(d.device)
	}
}

// CreateBuffer creates an empty vertex buffer. Storage is created by
// AllocateBuffer.
func (d *HALDevice) CreateBuffer(kind gpucore.BufferKind) (gpucore.BufferID, error) {
	if kind.Stride() == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer kind %v", ErrUnsupported, kind)
	}

	id := gpucore.BufferID(d.newID())

	d.mu.Lock()
	d.buffers[id] = &halBuffer{kind: kind}
	d.mu.Unlock()

	return id, nil
}

// AllocateBuffer replaces the buffer storage with room for count vertices.
func (d *HALDevice) AllocateBuffer(id gpucore.BufferID, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrResourceNotFound, id)
	}
	buf.release(d.device)
	if count <= 0 {
		return nil
	}

	size := uint64(count * buf.kind.Stride()) //nolint:gosec // G115: count is positive
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpu_cache_" + buf.kind.String(),
		Size:  size,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %v buffer: %w", buf.kind, err)
	}
	buf.raw = raw
	buf.size = size
	return nil
}

// WriteBuffer writes data at the given byte offset.
func (d *HALDevice) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	d.mu.RLock()
	buf, ok := d.buffers[id]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrResourceNotFound, id)
	}
	if offset < 0 || uint64(offset+len(data)) > buf.size { //nolint:gosec // G115: offset checked
		return fmt.Errorf("%w: write [%d,%d) of %d bytes", ErrBufferOverflow, offset, offset+len(data), buf.size)
	}
	if len(data) > 0 {
		d.queue.WriteBuffer(buf.raw, uint64(offset), data)
	}
	return nil
}

// DestroyBuffer releases a vertex buffer.
func (d *HALDevice) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
		buf.release(d.device)
	}
}

// CreateVertexArray binds the position and value buffers to a program.
// WebGPU has no vertex array objects; the binding is applied per draw.
func (d *HALDevice) CreateVertexArray(desc gpucore.VertexArrayDesc) (gpucore.VertexArrayID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.programs[desc.Program]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: program %d", ErrResourceNotFound, desc.Program)
	}
	if _, ok := d.buffers[desc.Position]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer %d", ErrResourceNotFound, desc.Position)
	}
	if _, ok := d.buffers[desc.Value]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer %d", ErrResourceNotFound, desc.Value)
	}

	id := gpucore.VertexArrayID(d.newID())
	d.vaos[id] = desc
	return id, nil
}

// DestroyVertexArray releases a vertex array.
func (d *HALDevice) DestroyVertexArray(id gpucore.VertexArrayID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.vaos, id)
}

// === Drawing ===

// DrawPoints renders count points into target with LoadOpLoad, so texels
// no point covers keep their contents.
func (d *HALDevice) DrawPoints(target gpucore.TextureID, program gpucore.ProgramID, vao gpucore.VertexArrayID, count int) error {
	d.mu.RLock()
	tex, okT := d.textures[target]
	p, okP := d.programs[program]
	va, okV := d.vaos[vao]
	var pos, val *halBuffer
	if okV {
		pos, val = d.buffers[va.Position], d.buffers[va.Value]
	}
	d.mu.RUnlock()

	switch {
	case !okT:
		return fmt.Errorf("%w: texture %d", ErrResourceNotFound, target)
	case !okP:
		return fmt.Errorf("%w: program %d", ErrResourceNotFound, program)
	case !okV || pos == nil || val == nil:
		return fmt.Errorf("%w: vertex array %d", ErrResourceNotFound, vao)
	case !tex.desc.RenderTarget:
		return ErrNotRenderTarget
	}
	if count <= 0 {
		return nil
	}
	if uint64(count*pos.kind.Stride()) > pos.size || uint64(count*val.kind.Stride()) > val.size { //nolint:gosec // G115: count is positive
		return fmt.Errorf("%w: draw of %d vertices", ErrBufferOverflow, count)
	}

	return d.submit("gpu_cache_update", func(encoder hal.CommandEncoder) error {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "gpu_cache_update_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    tex.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		rp.SetPipeline(p.pipeline)
		rp.SetVertexBuffer(0, pos.raw, 0)
		rp.SetVertexBuffer(1, val.raw, 0)
		rp.Draw(uint32(count), 1, 0, 0) //nolint:gosec // G115: count is positive
		rp.End()
		return nil
	})
}

// submit encodes one command buffer with record, submits it and waits
// for the GPU to finish.
func (d *HALDevice) submit(label string, record func(hal.CommandEncoder) error) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	if err := record(encoder); err != nil {
		encoder.DiscardEncoding()
		return err
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, submitTimeout)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", label, err)
	}
	if !ok {
		slogger().Warn("native: submission timed out", "label", label, "timeout", submitTimeout)
		return fmt.Errorf("%w: %s", ErrTimeout, label)
	}
	return nil
}

// Close releases every resource still owned by the device. The HAL
// device itself belongs to the caller.
func (d *HALDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, tex := range d.textures {
		tex.destroy(d.device)
		delete(d.textures, id)
	}
	for id, buf := range d.buffers {
		buf.release(d.device)
		delete(d.buffers, id)
	}
	for id, p := range d.programs {
		p.destroy(d.device)
		delete(d.programs, id)
	}
	clear(d.vaos)
}

// halBuffer is a vertex buffer whose storage is replaced on reallocation.
type halBuffer struct {
	kind gpucore.BufferKind
	raw  hal.Buffer
	size uint64
}

func (b *halBuffer) release(device hal.Device) {
	if b.raw != nil {
		device.DestroyBuffer(b.raw)
		b.raw = nil
		b.size = 0
	}
}

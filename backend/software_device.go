package backend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucache/gpucore"
)

// Software device errors.
var (
	// ErrResourceNotFound is returned for unknown or destroyed IDs.
	ErrResourceNotFound = errors.New("software: resource not found")

	// ErrInvalidTextureSize is returned when texture dimensions are invalid.
	ErrInvalidTextureSize = errors.New("software: invalid texture size")

	// ErrRegionOutOfBounds is returned when a region is outside a texture.
	ErrRegionOutOfBounds = errors.New("software: region is outside texture bounds")

	// ErrDataSize is returned when upload data does not match the region.
	ErrDataSize = errors.New("software: data size does not match region")

	// ErrNotRenderTarget is returned when drawing into a texture created
	// without RenderTarget.
	ErrNotRenderTarget = errors.New("software: texture is not a render target")

	// ErrUnsupported is returned for operations the configured capabilities
	// do not allow.
	ErrUnsupported = errors.New("software: operation not supported by capabilities")

	// ErrBufferOverflow is returned when a write or draw exceeds a buffer.
	ErrBufferOverflow = errors.New("software: buffer overflow")
)

// DefaultSoftwareCapabilities are the capabilities of a SoftwareDevice
// created with NewSoftwareDevice(nil).
var DefaultSoftwareCapabilities = gpucore.Capabilities{
	MaxTextureSize:    8192,
	CopyTexture:       true,
	FloatRenderTarget: true,
}

// culled is the normalized x of vertices that must not be drawn. Texel
// centers of a texture at most 1<<15 wide never encode to it.
const culled = 0xFFFF

// CallKind identifies a recorded device call.
type CallKind uint8

// Recorded device calls.
const (
	CallCreateTexture CallKind = iota + 1
	CallDestroyTexture
	CallUploadTexture
	CallCopyTexture
	CallAllocateBuffer
	CallWriteBuffer
	CallDrawPoints
)

// String returns the call name.
func (k CallKind) String() string {
	switch k {
	case CallCreateTexture:
		return "CreateTexture"
	case CallDestroyTexture:
		return "DestroyTexture"
	case CallUploadTexture:
		return "UploadTexture"
	case CallCopyTexture:
		return "CopyTexture"
	case CallAllocateBuffer:
		return "AllocateBuffer"
	case CallWriteBuffer:
		return "WriteBuffer"
	case CallDrawPoints:
		return "DrawPoints"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Call is one recorded device call. Only the fields relevant to the kind
// are set.
type Call struct {
	Kind    CallKind
	Texture gpucore.TextureID
	Source  gpucore.TextureID
	Buffer  gpucore.BufferID
	Region  gpucore.Region
	Count   int
	Offset  int
	Bytes   int
}

// ResourceCounts is the number of live resources on a device.
type ResourceCounts struct {
	Textures     int
	Buffers      int
	Programs     int
	VertexArrays int
}

// Total returns the number of live resources of every kind.
func (c ResourceCounts) Total() int {
	return c.Textures + c.Buffers + c.Programs + c.VertexArrays
}

type softTexture struct {
	desc gpucore.TextureDesc
	data []byte
}

type softBuffer struct {
	kind gpucore.BufferKind
	data []byte
}

// SoftwareDevice implements gpucore.Device in CPU memory.
//
// Textures are byte slices, uploads and copies are memcpy, and the scatter
// program is emulated by decoding each point's normalized position to the
// texel whose center it hits. Every call that touches data is recorded,
// which makes the device a test double for the cache.
//
// SoftwareDevice is safe for concurrent use.
type SoftwareDevice struct {
	mu   sync.Mutex
	caps gpucore.Capabilities

	nextID   uint64
	textures map[gpucore.TextureID]*softTexture
	buffers  map[gpucore.BufferID]*softBuffer
	programs map[gpucore.ProgramID]gpucore.ProgramKind
	vaos     map[gpucore.VertexArrayID]gpucore.VertexArrayDesc

	calls []Call
}

// NewSoftwareDevice creates a software device. A nil caps uses
// DefaultSoftwareCapabilities.
func NewSoftwareDevice(caps *gpucore.Capabilities) *SoftwareDevice {
	c := DefaultSoftwareCapabilities
	if caps != nil {
		c = *caps
	}
	return &SoftwareDevice{
		caps:     c,
		nextID:   1,
		textures: make(map[gpucore.TextureID]*softTexture),
		buffers:  make(map[gpucore.BufferID]*softBuffer),
		programs: make(map[gpucore.ProgramID]gpucore.ProgramKind),
		vaos:     make(map[gpucore.VertexArrayID]gpucore.VertexArrayDesc),
	}
}

// newID generates a unique resource ID. Must be called with mu held.
func (d *SoftwareDevice) newID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

func (d *SoftwareDevice) record(c Call) {
	d.calls = append(d.calls, c)
}

// Capabilities reports the configured capabilities.
func (d *SoftwareDevice) Capabilities() gpucore.Capabilities {
	return d.caps
}

// CreateTexture allocates a zero-filled texture.
func (d *SoftwareDevice) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 ||
		(d.caps.MaxTextureSize > 0 && (desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize)) {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, desc.Width, desc.Height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := gpucore.TextureID(d.newID())
	d.textures[id] = &softTexture{
		desc: desc,
		data: make([]byte, desc.Width*desc.Height*desc.Format.BytesPerTexel()),
	}
	d.record(Call{Kind: CallCreateTexture, Texture: id, Region: gpucore.Region{Width: desc.Width, Height: desc.Height}})
	return id, nil
}

// DestroyTexture releases a texture.
func (d *SoftwareDevice) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.record(Call{Kind: CallDestroyTexture, Texture: id})
	}
}

// UploadTexture writes tightly packed texels into region.
func (d *SoftwareDevice) UploadTexture(id gpucore.TextureID, region gpucore.Region, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrResourceNotFound, id)
	}
	if !inBounds(tex.desc, region) {
		return fmt.Errorf("%w: %v in %dx%d", ErrRegionOutOfBounds, region, tex.desc.Width, tex.desc.Height)
	}
	bpt := tex.desc.Format.BytesPerTexel()
	rowBytes := region.Width * bpt
	if len(data) != rowBytes*region.Height {
		return fmt.Errorf("%w: %d bytes for %v", ErrDataSize, len(data), region)
	}

	for y := 0; y < region.Height; y++ {
		off := ((region.Y+y)*tex.desc.Width + region.X) * bpt
		copy(tex.data[off:off+rowBytes], data[y*rowBytes:])
	}
	d.record(Call{Kind: CallUploadTexture, Texture: id, Region: region, Bytes: len(data)})
	return nil
}

func inBounds(desc gpucore.TextureDesc, r gpucore.Region) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width >= 0 && r.Height >= 0 &&
		r.X+r.Width <= desc.Width && r.Y+r.Height <= desc.Height
}

// CopyTexture copies the top-left width x height texels of src into dst.
func (d *SoftwareDevice) CopyTexture(dst, src gpucore.TextureID, width, height int) error {
	if !d.caps.CopyTexture && !d.caps.FloatRenderTarget {
		return ErrUnsupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dt, ok := d.textures[dst]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrResourceNotFound, dst)
	}
	st, ok := d.textures[src]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrResourceNotFound, src)
	}
	region := gpucore.Region{Width: width, Height: height}
	if !inBounds(dt.desc, region) || !inBounds(st.desc, region) {
		return fmt.Errorf("%w: copy %v", ErrRegionOutOfBounds, region)
	}

	bpt := st.desc.Format.BytesPerTexel()
	rowBytes := width * bpt
	for y := 0; y < height; y++ {
		copy(dt.data[y*dt.desc.Width*bpt:][:rowBytes], st.data[y*st.desc.Width*bpt:][:rowBytes])
	}
	d.record(Call{Kind: CallCopyTexture, Texture: dst, Source: src, Region: region})
	return nil
}

// CreateProgram creates one of the fixed programs.
func (d *SoftwareDevice) CreateProgram(kind gpucore.ProgramKind) (gpucore.ProgramID, error) {
	if kind != gpucore.ProgramScatter {
		return gpucore.InvalidID, fmt.Errorf("%w: program %v", ErrUnsupported, kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := gpucore.ProgramID(d.newID())
	d.programs[id] = kind
	return id, nil
}

// DestroyProgram releases a program.
func (d *SoftwareDevice) DestroyProgram(id gpucore.ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.programs, id)
}

// CreateBuffer creates an empty vertex buffer.
func (d *SoftwareDevice) CreateBuffer(kind gpucore.BufferKind) (gpucore.BufferID, error) {
	if kind.Stride() == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer kind %v", ErrUnsupported, kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &softBuffer{kind: kind}
	return id, nil
}

// AllocateBuffer replaces the buffer storage with count zeroed vertices.
func (d *SoftwareDevice) AllocateBuffer(id gpucore.BufferID, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrResourceNotFound, id)
	}
	buf.data = make([]byte, count*buf.kind.Stride())
	d.record(Call{Kind: CallAllocateBuffer, Buffer: id, Count: count, Bytes: len(buf.data)})
	return nil
}

// WriteBuffer writes data at the given byte offset.
func (d *SoftwareDevice) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrResourceNotFound, id)
	}
	if offset < 0 || offset+len(data) > len(buf.data) {
		return fmt.Errorf("%w: write [%d,%d) of %d bytes", ErrBufferOverflow, offset, offset+len(data), len(buf.data))
	}
	copy(buf.data[offset:], data)
	d.record(Call{Kind: CallWriteBuffer, Buffer: id, Offset: offset, Bytes: len(data)})
	return nil
}

// DestroyBuffer releases a vertex buffer.
func (d *SoftwareDevice) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// CreateVertexArray binds the position and value buffers to a program.
func (d *SoftwareDevice) CreateVertexArray(desc gpucore.VertexArrayDesc) (gpucore.VertexArrayID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.programs[desc.Program]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: program %d", ErrResourceNotFound, desc.Program)
	}
	if b, ok := d.buffers[desc.Position]; !ok || b.kind != gpucore.BufferKindPosition {
		return gpucore.InvalidID, fmt.Errorf("%w: position buffer %d", ErrResourceNotFound, desc.Position)
	}
	if b, ok := d.buffers[desc.Value]; !ok || b.kind != gpucore.BufferKindValue {
		return gpucore.InvalidID, fmt.Errorf("%w: value buffer %d", ErrResourceNotFound, desc.Value)
	}

	id := gpucore.VertexArrayID(d.newID())
	d.vaos[id] = desc
	return id, nil
}

// DestroyVertexArray releases a vertex array.
func (d *SoftwareDevice) DestroyVertexArray(id gpucore.VertexArrayID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.vaos, id)
}

// DrawPoints runs the scatter program: every vertex writes its value to
// the texel its position falls in. Culled vertices are skipped.
func (d *SoftwareDevice) DrawPoints(target gpucore.TextureID, program gpucore.ProgramID, vao gpucore.VertexArrayID, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[target]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrResourceNotFound, target)
	}
	if !tex.desc.RenderTarget {
		return ErrNotRenderTarget
	}
	if _, ok := d.programs[program]; !ok {
		return fmt.Errorf("%w: program %d", ErrResourceNotFound, program)
	}
	va, ok := d.vaos[vao]
	if !ok {
		return fmt.Errorf("%w: vertex array %d", ErrResourceNotFound, vao)
	}
	pos, val := d.buffers[va.Position], d.buffers[va.Value]
	if pos == nil || val == nil {
		return fmt.Errorf("%w: vertex array %d buffers", ErrResourceNotFound, vao)
	}
	if count*pos.kind.Stride() > len(pos.data) || count*val.kind.Stride() > len(val.data) {
		return fmt.Errorf("%w: draw of %d vertices", ErrBufferOverflow, count)
	}

	bpt := tex.desc.Format.BytesPerTexel()
	vs := val.kind.Stride()
	w, h := uint32(tex.desc.Width), uint32(tex.desc.Height) //nolint:gosec // G115: positive
	for i := 0; i < count; i++ {
		x := uint32(binary.LittleEndian.Uint16(pos.data[i*4:]))
		y := uint32(binary.LittleEndian.Uint16(pos.data[i*4+2:]))
		if x == culled {
			continue
		}
		col, row := int(x*w>>16), int(y*h>>16)
		off := (row*tex.desc.Width + col) * bpt
		copy(tex.data[off:off+min(bpt, vs)], val.data[i*vs:])
	}
	d.record(Call{Kind: CallDrawPoints, Texture: target, Count: count})
	return nil
}

// === Inspection ===

// ReadTexel returns the bytes of the texel at (x, y).
func (d *SoftwareDevice) ReadTexel(id gpucore.TextureID, x, y int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrResourceNotFound, id)
	}
	if x < 0 || y < 0 || x >= tex.desc.Width || y >= tex.desc.Height {
		return nil, fmt.Errorf("%w: texel (%d,%d)", ErrRegionOutOfBounds, x, y)
	}
	bpt := tex.desc.Format.BytesPerTexel()
	off := (y*tex.desc.Width + x) * bpt
	return append([]byte(nil), tex.data[off:off+bpt]...), nil
}

// ReadTexture returns a copy of the whole texture and its description.
func (d *SoftwareDevice) ReadTexture(id gpucore.TextureID) ([]byte, gpucore.TextureDesc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[id]
	if !ok {
		return nil, gpucore.TextureDesc{}, fmt.Errorf("%w: texture %d", ErrResourceNotFound, id)
	}
	return append([]byte(nil), tex.data...), tex.desc, nil
}

// Calls returns a copy of the recorded calls.
func (d *SoftwareDevice) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (d *SoftwareDevice) CallsOf(kind CallKind) []Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Call
	for _, c := range d.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded calls.
func (d *SoftwareDevice) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = d.calls[:0]
}

// LiveResources returns the number of resources not yet destroyed.
// A cache that was closed must leave this at zero.
func (d *SoftwareDevice) LiveResources() ResourceCounts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ResourceCounts{
		Textures:     len(d.textures),
		Buffers:      len(d.buffers),
		Programs:     len(d.programs),
		VertexArrays: len(d.vaos),
	}
}

package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent device resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// TextureID is an opaque handle to a device texture.
type TextureID uint64

// BufferID is an opaque handle to a vertex buffer.
type BufferID uint64

// ProgramID is an opaque handle to a compiled draw program.
type ProgramID uint64

// VertexArrayID is an opaque handle to a vertex array binding a program's
// vertex inputs to buffers.
type VertexArrayID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA32Float is 32-bit RGBA, floating point.
	// This is the format of the GPU cache texture: one texel per block.
	TextureFormatRGBA32Float
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatRGBA32Float:
		return "RGBA32Float"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerTexel returns the number of bytes per texel for the format.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	// Label is an optional debug label.
	Label string

	// Width is the texture width in texels.
	Width int

	// Height is the texture height in texels.
	Height int

	// Format is the texel format.
	Format TextureFormat

	// RenderTarget requests that the texture can be bound as a color
	// attachment (needed for point-scatter writes and GPU blits).
	RenderTarget bool
}

// Region is a sub-rectangle of a texture, in texels.
type Region struct {
	X, Y          int
	Width, Height int
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// BufferKind tells a device what a vertex buffer holds.
type BufferKind uint8

// Buffer kinds used by the scatter program.
const (
	// BufferKindPosition holds [2]uint16 normalized texel positions.
	BufferKindPosition BufferKind = iota + 1

	// BufferKindValue holds one 16-byte block per vertex.
	BufferKindValue
)

// String returns a human-readable name for the buffer kind.
func (k BufferKind) String() string {
	switch k {
	case BufferKindPosition:
		return "position"
	case BufferKindValue:
		return "value"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Stride returns the byte stride of one vertex for the buffer kind.
func (k BufferKind) Stride() int {
	switch k {
	case BufferKindPosition:
		return 4
	case BufferKindValue:
		return 16
	default:
		return 0
	}
}

// ProgramKind selects one of the fixed programs a device provides.
type ProgramKind uint8

const (
	// ProgramScatter writes one block per point into the bound target.
	// Vertex input 0 is a BufferKindPosition buffer, input 1 is a
	// BufferKindValue buffer.
	ProgramScatter ProgramKind = iota + 1
)

// String returns a human-readable name for the program kind.
func (k ProgramKind) String() string {
	switch k {
	case ProgramScatter:
		return "gpu_cache_update"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// VertexArrayDesc describes a vertex array for the scatter program.
type VertexArrayDesc struct {
	// Program is the program whose inputs are bound.
	Program ProgramID

	// Position is the BufferKindPosition buffer (input 0).
	Position BufferID

	// Value is the BufferKindValue buffer (input 1).
	Value BufferID
}

// Capabilities describes what a device can do. It is queried once.
type Capabilities struct {
	// MaxTextureSize is the maximum texture dimension in texels.
	MaxTextureSize int

	// CopyTexture reports GPU-side texture-to-texture copies.
	CopyTexture bool

	// FloatRenderTarget reports RGBA32Float color attachments.
	FloatRenderTarget bool
}

// String returns a human-readable summary of the capabilities.
func (c Capabilities) String() string {
	return fmt.Sprintf("Capabilities[maxTexture=%d copy=%v floatRT=%v]",
		c.MaxTextureSize, c.CopyTexture, c.FloatRenderTarget)
}

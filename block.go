package gpucache

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxVertexTextureWidth is the width of the cache texture in blocks, and
// therefore the maximum number of blocks in one row.
const MaxVertexTextureWidth = 1024

// BlockSize is the size of one block in bytes (4 x float32).
const BlockSize = 16

// Block is the atomic unit of GPU cache storage: one RGBA32F texel.
// Its contents are opaque to the cache.
type Block [4]float32

// EmptyBlock is the all-zero block.
var EmptyBlock Block

// appendBytes appends the little-endian encoding of b to dst.
func (b Block) appendBytes(dst []byte) []byte {
	for _, f := range b {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// BlockFromBytes decodes a block from 16 little-endian bytes.
func BlockFromBytes(p []byte) Block {
	_ = p[BlockSize-1]
	var b Block
	for i := range b {
		b[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return b
}

// blocksToBytes encodes a run of blocks for upload.
func blocksToBytes(dst []byte, blocks []Block) []byte {
	for _, b := range blocks {
		dst = b.appendBytes(dst)
	}
	return dst
}

// Address is where a run of blocks lives in the cache texture.
// Addresses are stable only within one cache generation: a clear or
// rebuild invalidates them.
type Address struct {
	Row    uint16
	Column uint16
}

// String returns a string representation of the address.
func (a Address) String() string {
	return fmt.Sprintf("(%d,%d)", a.Row, a.Column)
}

// FrameID identifies the frame an update list was built for.
type FrameID uint64

// Update says where a contiguous run of a list's blocks must land.
type Update struct {
	// BlockIndex is the offset of the run in UpdateList.Blocks.
	BlockIndex int

	// BlockCount is the run length.
	BlockCount int

	// Address is the destination of the first block of the run.
	Address Address
}

// UpdateList is one frame's worth of cache writes. Updates within a list
// never overlap; that is guaranteed by the producer and not checked here.
type UpdateList struct {
	// FrameID is the frame the list was built for.
	FrameID FrameID

	// Clear tears the cache texture down before this list is applied.
	// Addresses from earlier generations are invalid afterwards.
	Clear bool

	// Height is the texture height in rows the list requires.
	Height int

	// Blocks is the flat block array the updates index into.
	Blocks []Block

	// Updates place runs of Blocks into the texture.
	Updates []Update
}

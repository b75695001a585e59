package gpucache

import (
	"fmt"

	"github.com/gogpu/gpucache/gpucore"
)

// BusKind identifies how updates travel from the CPU to the cache texture.
type BusKind uint8

const (
	// BusPixelBuffer keeps a CPU shadow copy of every row and uploads the
	// dirty range of each changed row.
	BusPixelBuffer BusKind = iota

	// BusScatter uploads (position, value) vertex pairs and writes them
	// into the texture with a single point draw. It needs float render
	// targets and keeps no CPU copy.
	BusScatter
)

// String returns the bus name.
func (k BusKind) String() string {
	switch k {
	case BusPixelBuffer:
		return "PixelBuffer"
	case BusScatter:
		return "Scatter"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// gpuCacheBus is implemented by exactly two types, *pixelBufferBus and
// *scatterBus. Callers switch on the concrete type.
type gpuCacheBus interface {
	kind() BusKind
}

// pixelBufferBus is the row table: a CPU mirror of every texture row.
type pixelBufferBus struct {
	rows []cacheRow

	// staging is reused for row uploads.
	staging []byte
}

func (*pixelBufferBus) kind() BusKind { return BusPixelBuffer }

// update writes the list's runs into the row shadows and widens their
// dirty envelopes. Rows are appended as needed.
func (b *pixelBufferBus) update(list *UpdateList) {
	for _, u := range list.Updates {
		if debugAssertions {
			if u.BlockIndex < 0 || u.BlockCount < 0 || u.BlockIndex+u.BlockCount > len(list.Blocks) {
				assertf("update %+v outside block array of %d", u, len(list.Blocks))
			}
			if int(u.Address.Column)+u.BlockCount > MaxVertexTextureWidth {
				assertf("update %+v overruns row", u)
			}
		}
		row := int(u.Address.Row)
		for len(b.rows) <= row {
			b.rows = append(b.rows, newCacheRow())
		}
		col := int(u.Address.Column)
		r := &b.rows[row]
		copy(r.cpuBlocks[col:col+u.BlockCount], list.Blocks[u.BlockIndex:u.BlockIndex+u.BlockCount])
		r.addDirty(col, u.BlockCount)
	}
}

// invalidateAll marks every row dirty over its full width, used when the
// texture contents can no longer be trusted.
func (b *pixelBufferBus) invalidateAll() {
	for i := range b.rows {
		b.rows[i].markAllDirty()
	}
}

// flush uploads the dirty range of each dirty row and returns the number
// of rows uploaded. Rows beyond the texture height are dropped: they can
// only exist after an overflow.
func (b *pixelBufferBus) flush(device gpucore.Device, texture gpucore.TextureID, height int) (int, error) {
	rowsUploaded := 0
	for i := range b.rows {
		r := &b.rows[i]
		if !r.isDirty() {
			continue
		}
		if i >= height {
			r.clearDirty()
			continue
		}
		blocks := r.dirtyBlocks()
		b.staging = blocksToBytes(b.staging[:0], blocks)
		region := gpucore.Region{X: int(r.minDirty), Y: i, Width: len(blocks), Height: 1}
		if err := device.UploadTexture(texture, region, b.staging); err != nil {
			return rowsUploaded, fmt.Errorf("gpucache: upload row %d: %w", i, err)
		}
		r.clearDirty()
		rowsUploaded++
	}
	return rowsUploaded, nil
}

// cpuBytes is the size of the shadow copy.
func (b *pixelBufferBus) cpuBytes() uint64 {
	return uint64(len(b.rows)) * MaxVertexTextureWidth * BlockSize
}

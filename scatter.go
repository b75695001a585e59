package gpucache

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gpucache/gpucore"
)

// culledPosition is the normalized position of a block no update covers.
// It maps to texture coordinate (1.0, 1.0). Devices cull on x alone: no
// texel center of a MaxVertexTextureWidth wide texture encodes to it,
// while the last row of a very tall texture can.
const culledPosition = 0xFFFF

// scatterBus uploads each block with its destination texel as a point
// vertex and writes all of them with one draw. The vertex buffers form a
// single append buffer per frame: prepare sizes them for every pending
// list, update appends, flush draws and the next prepare starts over.
type scatterBus struct {
	device gpucore.Device

	program        gpucore.ProgramID
	vao            gpucore.VertexArrayID
	positionBuffer gpucore.BufferID
	valueBuffer    gpucore.BufferID

	// capacity is the allocated vertex count of both buffers.
	capacity int
	// count is the number of vertices written since prepare.
	count int

	positions    [][2]uint16
	positionData []byte
	valueData    []byte
}

func (*scatterBus) kind() BusKind { return BusScatter }

// newScatterBus creates the scatter program, its buffers and vertex array.
// On failure everything created so far is released.
func newScatterBus(device gpucore.Device) (*scatterBus, error) {
	b := &scatterBus{device: device}
	if err := b.init(); err != nil {
		b.destroy()
		return nil, err
	}
	return b, nil
}

func (b *scatterBus) init() error {
	var err error
	if b.program, err = b.device.CreateProgram(gpucore.ProgramScatter); err != nil {
		return fmt.Errorf("gpucache: create scatter program: %w", err)
	}
	if b.positionBuffer, err = b.device.CreateBuffer(gpucore.BufferKindPosition); err != nil {
		return fmt.Errorf("gpucache: create position buffer: %w", err)
	}
	if b.valueBuffer, err = b.device.CreateBuffer(gpucore.BufferKindValue); err != nil {
		return fmt.Errorf("gpucache: create value buffer: %w", err)
	}
	b.vao, err = b.device.CreateVertexArray(gpucore.VertexArrayDesc{
		Program:  b.program,
		Position: b.positionBuffer,
		Value:    b.valueBuffer,
	})
	if err != nil {
		return fmt.Errorf("gpucache: create scatter vertex array: %w", err)
	}
	return nil
}

// prepare makes room for totalBlocks vertices and resets the append cursor.
func (b *scatterBus) prepare(totalBlocks int) error {
	if totalBlocks > b.capacity {
		if err := b.device.AllocateBuffer(b.positionBuffer, totalBlocks); err != nil {
			return fmt.Errorf("gpucache: allocate position buffer: %w", err)
		}
		if err := b.device.AllocateBuffer(b.valueBuffer, totalBlocks); err != nil {
			return fmt.Errorf("gpucache: allocate value buffer: %w", err)
		}
		Logger().Debug("gpucache: scatter buffers grown", "from", b.capacity, "to", totalBlocks)
		b.capacity = totalBlocks
	}
	b.count = 0
	return nil
}

// scatterPositions returns the normalized destination of every block of
// the list in a width x height texture. The result aliases dst.
//
// Coordinates are texel centers in [0, 0xFFFF] fixed point:
// x = ((2*col+1) << 15) / width, y = ((2*row+1) << 15) / height.
// Blocks not covered by an update, or addressed past the texture, keep
// culledPosition.
func scatterPositions(dst [][2]uint16, list *UpdateList, width, height int) [][2]uint16 {
	n := len(list.Blocks)
	if cap(dst) < n {
		dst = make([][2]uint16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = [2]uint16{culledPosition, culledPosition}
	}

	//nolint:gosec // G115: texture dimensions are positive and below 1<<16
	w, h := uint32(width), uint32(height)
	for _, u := range list.Updates {
		row := uint32(u.Address.Row)
		if row >= h {
			continue
		}
		y := uint16(((2*row + 1) << 15) / h)
		for i := 0; i < u.BlockCount; i++ {
			//nolint:gosec // G115: column + i < MaxVertexTextureWidth
			col := uint32(int(u.Address.Column) + i)
			if col >= w {
				break
			}
			x := uint16(((2*col + 1) << 15) / w)
			dst[u.BlockIndex+i] = [2]uint16{x, y}
		}
	}
	return dst
}

// update appends the list's values and positions after the vertices
// already written this frame.
func (b *scatterBus) update(list *UpdateList, width, height int) error {
	n := len(list.Blocks)
	if n == 0 {
		return nil
	}
	if debugAssertions && b.count+n > b.capacity {
		assertf("scatter update of %d blocks exceeds prepared capacity %d (used %d)", n, b.capacity, b.count)
	}

	b.positions = scatterPositions(b.positions, list, width, height)

	b.valueData = blocksToBytes(b.valueData[:0], list.Blocks)
	if err := b.device.WriteBuffer(b.valueBuffer, b.count*BlockSize, b.valueData); err != nil {
		return fmt.Errorf("gpucache: write value buffer: %w", err)
	}

	b.positionData = b.positionData[:0]
	for _, p := range b.positions {
		b.positionData = binary.LittleEndian.AppendUint16(b.positionData, p[0])
		b.positionData = binary.LittleEndian.AppendUint16(b.positionData, p[1])
	}
	stride := gpucore.BufferKindPosition.Stride()
	if err := b.device.WriteBuffer(b.positionBuffer, b.count*stride, b.positionData); err != nil {
		return fmt.Errorf("gpucache: write position buffer: %w", err)
	}

	b.count += len(b.positions)
	return nil
}

// flush writes every pending vertex into the texture with one point draw.
// There is no partial flush: the draw covers all lists of the frame.
func (b *scatterBus) flush(target gpucore.TextureID) error {
	if err := b.device.DrawPoints(target, b.program, b.vao, b.count); err != nil {
		return fmt.Errorf("gpucache: scatter draw: %w", err)
	}
	return nil
}

// destroy releases the program, vertex array and buffers.
func (b *scatterBus) destroy() {
	if b.vao != gpucore.InvalidID {
		b.device.DestroyVertexArray(b.vao)
		b.vao = gpucore.InvalidID
	}
	if b.positionBuffer != gpucore.InvalidID {
		b.device.DestroyBuffer(b.positionBuffer)
		b.positionBuffer = gpucore.InvalidID
	}
	if b.valueBuffer != gpucore.InvalidID {
		b.device.DestroyBuffer(b.valueBuffer)
		b.valueBuffer = gpucore.InvalidID
	}
	if b.program != gpucore.InvalidID {
		b.device.DestroyProgram(b.program)
		b.program = gpucore.InvalidID
	}
	b.capacity = 0
	b.count = 0
}

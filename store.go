package gpucache

import (
	"fmt"
	"math/bits"
)

// numSizeClasses covers runs of 1, 2, 4, ... MaxVertexTextureWidth blocks.
var numSizeClasses = bits.Len(MaxVertexTextureWidth)

// BlockAllocator hands out cache addresses for runs of blocks.
//
// Every row is dedicated to one size class (a power of two number of
// blocks) and split into equal slots, so runs never straddle rows. Freed
// slots are reused before new rows are opened. Height reports the number
// of rows in use, which is the height producers put in their update lists.
//
// BlockAllocator is not safe for concurrent use; it belongs to the
// producer building update lists.
type BlockAllocator struct {
	rowClass []uint8
	free     [][]Address
}

// NewBlockAllocator creates an empty allocator.
func NewBlockAllocator() *BlockAllocator {
	return &BlockAllocator{
		free: make([][]Address, numSizeClasses),
	}
}

// sizeClass returns the class whose slots fit count blocks.
func sizeClass(count int) int {
	//nolint:gosec // G115: count is validated positive
	return bits.Len(uint(count - 1))
}

// Allocate returns the address of a run of count blocks.
func (a *BlockAllocator) Allocate(count int) (Address, error) {
	if count <= 0 || count > MaxVertexTextureWidth {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidBlockCount, count)
	}
	class := sizeClass(count)

	if free := a.free[class]; len(free) > 0 {
		addr := free[len(free)-1]
		a.free[class] = free[:len(free)-1]
		return addr, nil
	}

	row := len(a.rowClass)
	if row >= maxAddressableRows {
		return Address{}, ErrCacheFull
	}
	//nolint:gosec // G115: class < numSizeClasses
	a.rowClass = append(a.rowClass, uint8(class))

	// Slot 0 is returned; the rest go to the free list, highest first so
	// that allocation proceeds left to right.
	slot := 1 << class
	for col := MaxVertexTextureWidth - slot; col > 0; col -= slot {
		//nolint:gosec // G115: row < maxAddressableRows, col < MaxVertexTextureWidth
		a.free[class] = append(a.free[class], Address{Row: uint16(row), Column: uint16(col)})
	}
	//nolint:gosec // G115: row < maxAddressableRows
	return Address{Row: uint16(row), Column: 0}, nil
}

// Free returns a run to the allocator. Freeing an address twice or one
// that was never allocated corrupts the allocator.
func (a *BlockAllocator) Free(addr Address) {
	row := int(addr.Row)
	if debugAssertions && row >= len(a.rowClass) {
		assertf("free of unallocated address %v", addr)
	}
	class := a.rowClass[row]
	a.free[class] = append(a.free[class], addr)
}

// Height returns the number of rows in use.
func (a *BlockAllocator) Height() int {
	return len(a.rowClass)
}

// Reset forgets every allocation. Addresses handed out before are invalid.
func (a *BlockAllocator) Reset() {
	a.rowClass = a.rowClass[:0]
	for i := range a.free {
		a.free[i] = a.free[i][:0]
	}
}

// UpdateBuilder collects one frame's block writes into an UpdateList.
type UpdateBuilder struct {
	alloc   *BlockAllocator
	blocks  []Block
	updates []Update
	clear   bool
}

// NewUpdateBuilder creates a builder whose lists take their height from
// alloc.
func NewUpdateBuilder(alloc *BlockAllocator) *UpdateBuilder {
	return &UpdateBuilder{alloc: alloc}
}

// Allocator returns the builder's allocator.
func (b *UpdateBuilder) Allocator() *BlockAllocator {
	return b.alloc
}

// Push records that blocks must be written at addr.
func (b *UpdateBuilder) Push(addr Address, blocks ...Block) {
	if len(blocks) == 0 {
		return
	}
	b.updates = append(b.updates, Update{
		BlockIndex: len(b.blocks),
		BlockCount: len(blocks),
		Address:    addr,
	})
	b.blocks = append(b.blocks, blocks...)
}

// Allocate reserves a run for blocks and pushes them.
func (b *UpdateBuilder) Allocate(blocks ...Block) (Address, error) {
	addr, err := b.alloc.Allocate(len(blocks))
	if err != nil {
		return Address{}, err
	}
	b.Push(addr, blocks...)
	return addr, nil
}

// RequestClear starts a new cache generation: pending writes and every
// allocation are dropped and the next list clears the texture.
func (b *UpdateBuilder) RequestClear() {
	b.alloc.Reset()
	b.blocks = b.blocks[:0]
	b.updates = b.updates[:0]
	b.clear = true
}

// Len returns the number of blocks pushed since the last Finish.
func (b *UpdateBuilder) Len() int {
	return len(b.blocks)
}

// Finish returns the list built since the last call. It returns false
// when there is nothing to send. The list owns its slices; the builder
// starts over with new ones.
func (b *UpdateBuilder) Finish(frameID FrameID) (UpdateList, bool) {
	if len(b.updates) == 0 && !b.clear {
		return UpdateList{}, false
	}
	list := UpdateList{
		FrameID: frameID,
		Clear:   b.clear,
		Height:  b.alloc.Height(),
		Blocks:  b.blocks,
		Updates: b.updates,
	}
	b.blocks = nil
	b.updates = nil
	b.clear = false
	return list, true
}

package gpucache

import (
	"errors"
	"testing"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{600, 10},
		{1024, 10},
	}
	for _, tt := range tests {
		if got := sizeClass(tt.count); got != tt.want {
			t.Errorf("sizeClass(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestBlockAllocatorAllocate(t *testing.T) {
	a := NewBlockAllocator()

	// Runs of one class share a row, left to right.
	for i := 0; i < 3; i++ {
		addr, err := a.Allocate(3)
		if err != nil {
			t.Fatal(err)
		}
		want := Address{Row: 0, Column: uint16(4 * i)}
		if addr != want {
			t.Errorf("Allocate(3) #%d = %v, want %v", i, addr, want)
		}
	}

	// A different class opens its own row.
	addr, err := a.Allocate(1)
	if err != nil {
		t.Fatal(err)
	}
	if addr != (Address{Row: 1, Column: 0}) {
		t.Errorf("Allocate(1) = %v, want (1,0)", addr)
	}
	if a.Height() != 2 {
		t.Errorf("Height() = %d, want 2", a.Height())
	}
}

func TestBlockAllocatorFullRowClass(t *testing.T) {
	a := NewBlockAllocator()
	for i := 0; i < 3; i++ {
		addr, err := a.Allocate(MaxVertexTextureWidth)
		if err != nil {
			t.Fatal(err)
		}
		if int(addr.Row) != i || addr.Column != 0 {
			t.Errorf("Allocate(width) #%d = %v", i, addr)
		}
	}
}

func TestBlockAllocatorInvalidCount(t *testing.T) {
	a := NewBlockAllocator()
	for _, n := range []int{0, -1, MaxVertexTextureWidth + 1} {
		if _, err := a.Allocate(n); !errors.Is(err, ErrInvalidBlockCount) {
			t.Errorf("Allocate(%d) error = %v, want %v", n, err, ErrInvalidBlockCount)
		}
	}
}

func TestBlockAllocatorFreeReuses(t *testing.T) {
	a := NewBlockAllocator()
	first, _ := a.Allocate(8)
	_, _ = a.Allocate(8)

	a.Free(first)
	again, err := a.Allocate(7)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("Allocate after Free = %v, want reused %v", again, first)
	}
	if a.Height() != 1 {
		t.Errorf("Height() = %d, want 1", a.Height())
	}
}

func TestBlockAllocatorReset(t *testing.T) {
	a := NewBlockAllocator()
	_, _ = a.Allocate(1)
	_, _ = a.Allocate(2)
	a.Reset()
	if a.Height() != 0 {
		t.Errorf("Height() after Reset = %d", a.Height())
	}
	addr, _ := a.Allocate(2)
	if addr != (Address{}) {
		t.Errorf("Allocate after Reset = %v, want (0,0)", addr)
	}
}

func TestUpdateBuilderFinish(t *testing.T) {
	b := NewUpdateBuilder(NewBlockAllocator())

	if _, ok := b.Finish(1); ok {
		t.Error("Finish() on empty builder returned a list")
	}

	a1, _ := b.Allocate(Block{1, 0, 0, 0}, Block{2, 0, 0, 0})
	b.Push(Address{Row: 0, Column: 100}, Block{3, 0, 0, 0})
	b.Push(Address{Row: 0, Column: 200}) // no blocks, ignored
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}

	list, ok := b.Finish(7)
	if !ok {
		t.Fatal("Finish() returned no list")
	}
	if list.FrameID != 7 || list.Height != 1 || list.Clear {
		t.Errorf("list header = %d/%d/%v", list.FrameID, list.Height, list.Clear)
	}
	want := []Update{
		{BlockIndex: 0, BlockCount: 2, Address: a1},
		{BlockIndex: 2, BlockCount: 1, Address: Address{Row: 0, Column: 100}},
	}
	if len(list.Updates) != len(want) {
		t.Fatalf("Updates = %+v, want %+v", list.Updates, want)
	}
	for i := range want {
		if list.Updates[i] != want[i] {
			t.Errorf("Updates[%d] = %+v, want %+v", i, list.Updates[i], want[i])
		}
	}

	// The builder starts over without aliasing the returned list.
	_, _ = b.Allocate(Block{9, 9, 9, 9})
	if list.Blocks[0] != (Block{1, 0, 0, 0}) {
		t.Errorf("returned list changed: %v", list.Blocks[0])
	}
}

func TestUpdateBuilderClear(t *testing.T) {
	b := NewUpdateBuilder(NewBlockAllocator())
	_, _ = b.Allocate(Block{1, 1, 1, 1})
	_, _ = b.Allocate(make([]Block, 16)...)

	b.RequestClear()
	if b.Len() != 0 || b.Allocator().Height() != 0 {
		t.Errorf("after RequestClear: Len %d, Height %d", b.Len(), b.Allocator().Height())
	}

	list, ok := b.Finish(2)
	if !ok || !list.Clear || list.Height != 0 || len(list.Updates) != 0 {
		t.Errorf("Finish() = %+v, %v, want empty clearing list", list, ok)
	}
	if _, ok := b.Finish(3); ok {
		t.Error("clear flag survived Finish")
	}
}

package gpucache

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucache/backend"
	"github.com/gogpu/gpucache/gpucore"
)

func newTestCache(t *testing.T, caps *gpucore.Capabilities, opts ...Option) (*Cache, *backend.SoftwareDevice) {
	t.Helper()
	d := backend.NewSoftwareDevice(caps)
	c, err := NewCache(d, opts...)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c, d
}

func mustUpdate(t *testing.T, c *Cache) FrameStats {
	t.Helper()
	stats, err := c.Update()
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	return stats
}

func readBlock(t *testing.T, d *backend.SoftwareDevice, c *Cache, col, row int) Block {
	t.Helper()
	p, err := d.ReadTexel(c.Texture().TextureID(), col, row)
	if err != nil {
		t.Fatalf("ReadTexel(%d, %d) error = %v", col, row, err)
	}
	return BlockFromBytes(p)
}

type busCase struct {
	name string
	opt  Option
	kind BusKind
}

// busCases runs a test once per bus.
var busCases = []busCase{
	{"PixelBuffer", WithScatterUpdates(false), BusPixelBuffer},
	{"Scatter", WithScatterUpdates(true), BusScatter},
}

// TestRoundTrip writes blocks through each bus and reads them back from
// the texture.
func TestRoundTrip(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, d := newTestCache(t, nil, bc.opt)

			list := UpdateList{
				FrameID: 1,
				Height:  3,
				Blocks:  []Block{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}},
				Updates: []Update{
					{BlockIndex: 0, BlockCount: 2, Address: Address{Row: 2, Column: 1022}},
					{BlockIndex: 2, BlockCount: 1, Address: Address{Row: 0, Column: 0}},
				},
			}
			c.Enqueue(list)
			stats := mustUpdate(t, c)

			if stats.TextureHeight != 3 || !stats.Resized {
				t.Errorf("stats = %+v, want height 3 and resized", stats)
			}
			checks := []struct {
				col, row int
				want     Block
			}{
				{1022, 2, Block{1, 2, 3, 4}},
				{1023, 2, Block{5, 6, 7, 8}},
				{0, 0, Block{9, 10, 11, 12}},
				{1, 0, EmptyBlock},
			}
			for _, ck := range checks {
				if got := readBlock(t, d, c, ck.col, ck.row); got != ck.want {
					t.Errorf("block (%d,%d) = %v, want %v", ck.col, ck.row, got, ck.want)
				}
			}
		})
	}
}

// TestListsAppliedInOrder checks that a later list overwrites an earlier
// one at the same address within one update.
func TestListsAppliedInOrder(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, d := newTestCache(t, nil, bc.opt)
			c.Enqueue(listAt(1, 1, Address{Row: 0, Column: 4}, Block{1, 1, 1, 1}))
			c.Enqueue(listAt(2, 1, Address{Row: 0, Column: 4}, Block{2, 2, 2, 2}))
			stats := mustUpdate(t, c)

			if stats.Lists != 2 || stats.FrameID != 2 {
				t.Errorf("stats = %+v, want 2 lists, frame 2", stats)
			}
			if got := readBlock(t, d, c, 4, 0); got != (Block{2, 2, 2, 2}) {
				t.Errorf("block = %v, want the later list's", got)
			}
			if c.Pending() != 0 {
				t.Errorf("Pending() = %d after Update", c.Pending())
			}
		})
	}
}

// TestSingleResizePerFrame checks that the texture is sized for every
// pending list before any is applied.
func TestSingleResizePerFrame(t *testing.T) {
	c, d := newTestCache(t, nil)
	c.Enqueue(listAt(1, 2, Address{Row: 1, Column: 0}, Block{1, 1, 1, 1}))
	c.Enqueue(listAt(2, 8, Address{Row: 7, Column: 0}, Block{2, 2, 2, 2}))
	c.Enqueue(listAt(3, 5, Address{Row: 4, Column: 0}, Block{3, 3, 3, 3}))
	mustUpdate(t, c)

	creates := d.CallsOf(backend.CallCreateTexture)
	if len(creates) != 1 || creates[0].Region.Height != 8 {
		t.Errorf("texture creations = %+v, want one of height 8", creates)
	}
}

// TestResizePreservesContents grows the texture through every migration
// path and checks the old rows survive.
func TestResizePreservesContents(t *testing.T) {
	tests := []struct {
		name     string
		caps     gpucore.Capabilities
		opt      Option
		wantCopy bool
	}{
		{"PixelBuffer copy", gpucore.Capabilities{CopyTexture: true}, WithScatterUpdates(false), true},
		{"PixelBuffer blit", gpucore.Capabilities{FloatRenderTarget: true}, WithScatterUpdates(false), true},
		{"PixelBuffer reupload", gpucore.Capabilities{}, WithScatterUpdates(false), false},
		{"Scatter copy", gpucore.Capabilities{CopyTexture: true, FloatRenderTarget: true}, WithScatterUpdates(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d := newTestCache(t, &tt.caps, tt.opt)

			c.Enqueue(listAt(1, 2, Address{Row: 0, Column: 3}, Block{1, 1, 1, 1}))
			c.Enqueue(listAt(1, 2, Address{Row: 1, Column: 1000}, Block{2, 2, 2, 2}))
			mustUpdate(t, c)
			d.ResetCalls()

			c.Enqueue(listAt(2, 6, Address{Row: 5, Column: 0}, Block{3, 3, 3, 3}))
			stats := mustUpdate(t, c)
			if !stats.Resized || stats.TextureHeight != 6 {
				t.Fatalf("stats = %+v, want resize to 6", stats)
			}

			copies := d.CallsOf(backend.CallCopyTexture)
			if tt.wantCopy != (len(copies) == 1) {
				t.Errorf("copies = %+v, want copy %v", copies, tt.wantCopy)
			}
			if !tt.wantCopy {
				// Full-row re-upload of both old rows plus the new one.
				if stats.RowsUpdated != 3 {
					t.Errorf("RowsUpdated = %d, want 3", stats.RowsUpdated)
				}
			}

			if got := readBlock(t, d, c, 3, 0); got != (Block{1, 1, 1, 1}) {
				t.Errorf("row 0 block = %v after resize", got)
			}
			if got := readBlock(t, d, c, 1000, 1); got != (Block{2, 2, 2, 2}) {
				t.Errorf("row 1 block = %v after resize", got)
			}
			if got := readBlock(t, d, c, 0, 5); got != (Block{3, 3, 3, 3}) {
				t.Errorf("row 5 block = %v after resize", got)
			}
			if got := d.LiveResources().Textures; got != 1 {
				t.Errorf("live textures = %d, want the old one released", got)
			}
		})
	}
}

func TestRenderTargetRequest(t *testing.T) {
	tests := []struct {
		name string
		caps gpucore.Capabilities
		opt  Option
		want bool
	}{
		{"PixelBuffer full caps", gpucore.Capabilities{CopyTexture: true, FloatRenderTarget: true}, WithScatterUpdates(false), true},
		{"PixelBuffer copy only", gpucore.Capabilities{CopyTexture: true}, WithScatterUpdates(false), false},
		{"PixelBuffer float only", gpucore.Capabilities{FloatRenderTarget: true}, WithScatterUpdates(false), false},
		{"Scatter", gpucore.Capabilities{FloatRenderTarget: true}, WithScatterUpdates(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(t, &tt.caps, tt.opt)
			if got := c.Texture().needsRenderTarget(); got != tt.want {
				t.Errorf("needsRenderTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestScatterResizeWithoutCopyPanics checks that a scatter cache never
// reports a migration it could not perform.
func TestScatterResizeWithoutCopyPanics(t *testing.T) {
	c, _ := newTestCache(t, &gpucore.Capabilities{}, withBus(BusScatter))

	c.Enqueue(listAt(1, 1, Address{}, Block{1, 1, 1, 1}))
	mustUpdate(t, c)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("resize did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrScatterMigration) {
			t.Errorf("panic value = %v, want %v", r, ErrScatterMigration)
		}
	}()
	c.Enqueue(listAt(2, 4, Address{Row: 3}, Block{2, 2, 2, 2}))
	_, _ = c.Update()
}

// TestScatterPositionsThroughCache checks the vertex encoding the cache
// produces for a run, including the culled padding.
func TestScatterPositionsThroughCache(t *testing.T) {
	c, _ := newTestCache(t, nil, WithScatterUpdates(true))
	list := UpdateList{
		FrameID: 1,
		Height:  4,
		Blocks:  make([]Block, 4),
		Updates: []Update{{BlockIndex: 1, BlockCount: 3, Address: Address{Row: 2, Column: 10}}},
	}
	c.Enqueue(list)
	mustUpdate(t, c)

	bus := c.Texture().bus.(*scatterBus)
	y := uint16(((2*2 + 1) << 15) / 4)
	for i := 0; i < 3; i++ {
		x := uint16(((2*(10+i) + 1) << 15) / MaxVertexTextureWidth)
		if got := bus.positions[1+i]; got != [2]uint16{x, y} {
			t.Errorf("position %d = %v, want (%d, %d)", 1+i, got, x, y)
		}
	}
	if bus.positions[0] != [2]uint16{0xFFFF, 0xFFFF} {
		t.Errorf("uncovered slot = %v, want sentinel", bus.positions[0])
	}
}

// TestCleanFlush checks that an update with nothing pending touches no
// rows and draws zero points.
func TestCleanFlush(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, d := newTestCache(t, nil, bc.opt)

			// No texture yet: nothing at all happens.
			stats := mustUpdate(t, c)
			if stats.RowsUpdated != 0 || len(d.Calls()) != 0 {
				t.Errorf("empty first update: stats %+v, calls %+v", stats, d.Calls())
			}

			c.Enqueue(listAt(1, 1, Address{}, Block{1, 1, 1, 1}))
			mustUpdate(t, c)
			d.ResetCalls()

			for i := 0; i < 3; i++ {
				stats := mustUpdate(t, c)
				if stats.RowsUpdated != 0 || stats.Resized {
					t.Errorf("clean update stats = %+v", stats)
				}
			}
			if got := d.CallsOf(backend.CallUploadTexture); len(got) != 0 {
				t.Errorf("clean updates uploaded %+v", got)
			}
			draws := d.CallsOf(backend.CallDrawPoints)
			if bc.kind == BusScatter {
				if len(draws) != 3 {
					t.Fatalf("draws = %d, want one per update", len(draws))
				}
				for _, dr := range draws {
					if dr.Count != 0 {
						t.Errorf("clean draw count = %d, want 0", dr.Count)
					}
				}
			} else if len(draws) != 0 {
				t.Errorf("pixel buffer drew %+v", draws)
			}
		})
	}
}

// TestOverflowRecordedOnce checks that repeated oversized requests record
// one error and clamp the texture.
func TestOverflowRecordedOnce(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, d := newTestCache(t, nil, bc.opt, WithMaxTextureSize(4))

			for frame := FrameID(1); frame <= 3; frame++ {
				c.Enqueue(listAt(frame, 10, Address{Row: 0, Column: 1}, Block{1, 1, 1, 1}))
				c.Enqueue(listAt(frame, 10, Address{Row: 9, Column: 0}, Block{2, 2, 2, 2}))
				stats := mustUpdate(t, c)
				if stats.TextureHeight != 4 {
					t.Errorf("frame %d height = %d, want clamped 4", frame, stats.TextureHeight)
				}
			}

			errs := c.Errors()
			if len(errs) != 1 || !errors.Is(errs[0], ErrTextureOverflow) {
				t.Fatalf("Errors() = %v, want one overflow", errs)
			}
			// Blocks inside the clamped texture still land.
			if got := readBlock(t, d, c, 1, 0); got != (Block{1, 1, 1, 1}) {
				t.Errorf("block (1,0) = %v", got)
			}
		})
	}
}

func TestErrorsReturnsCopy(t *testing.T) {
	c, _ := newTestCache(t, nil, WithMaxTextureSize(1))
	c.Enqueue(listAt(1, 2, Address{}, Block{}))
	mustUpdate(t, c)

	errs := c.Errors()
	errs[0] = nil
	if c.Errors()[0] == nil {
		t.Error("Errors() exposes internal slice")
	}
}

// TestClearStartsNewGeneration checks that a clearing list drops earlier
// lists and rebuilds texture and bus.
func TestClearStartsNewGeneration(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, d := newTestCache(t, nil, bc.opt)

			c.Enqueue(listAt(1, 6, Address{Row: 5, Column: 0}, Block{1, 1, 1, 1}))
			mustUpdate(t, c)
			oldTexture := c.Texture().TextureID()

			c.Enqueue(listAt(2, 6, Address{Row: 5, Column: 1}, Block{9, 9, 9, 9}))
			cleared := listAt(3, 1, Address{Row: 0, Column: 2}, Block{2, 2, 2, 2})
			cleared.Clear = true
			c.Enqueue(cleared)
			stats := mustUpdate(t, c)

			if !stats.Cleared || stats.Lists != 1 {
				t.Errorf("stats = %+v, want cleared with 1 list", stats)
			}
			if c.Texture().TextureID() == oldTexture {
				t.Error("texture was not rebuilt")
			}
			if c.Texture().Height() != 1 {
				t.Errorf("height = %d, want 1 after clear", c.Texture().Height())
			}
			if c.BusKind() != bc.kind {
				t.Errorf("BusKind() = %v changed across clear", c.BusKind())
			}
			if got := readBlock(t, d, c, 2, 0); got != (Block{2, 2, 2, 2}) {
				t.Errorf("block (2,0) = %v", got)
			}
			if c.FrameID() != 3 {
				t.Errorf("FrameID() = %d, want 3", c.FrameID())
			}
		})
	}
}

// TestClearWithBuilder drives a clear through the allocator and builder.
func TestClearWithBuilder(t *testing.T) {
	c, d := newTestCache(t, nil)
	alloc := NewBlockAllocator()
	b := NewUpdateBuilder(alloc)

	for i := 0; i < 3; i++ {
		if _, err := b.Allocate(make([]Block, 600)...); err != nil {
			t.Fatal(err)
		}
	}
	list, _ := b.Finish(1)
	c.Enqueue(list)
	mustUpdate(t, c)
	if c.Texture().Height() != 3 {
		t.Fatalf("height = %d, want 3", c.Texture().Height())
	}

	b.RequestClear()
	addr, err := b.Allocate(Block{4, 4, 4, 4})
	if err != nil {
		t.Fatal(err)
	}
	list, ok := b.Finish(2)
	if !ok || !list.Clear {
		t.Fatalf("Finish() = %+v, %v, want clearing list", list, ok)
	}
	c.Enqueue(list)
	mustUpdate(t, c)

	if c.Texture().Height() != 1 {
		t.Errorf("height after clear = %d, want 1", c.Texture().Height())
	}
	if got := readBlock(t, d, c, int(addr.Column), int(addr.Row)); got != (Block{4, 4, 4, 4}) {
		t.Errorf("block at %v = %v", addr, got)
	}
}

// TestResizeStress checks the debug hook keeps the migration path busy
// without corrupting data.
func TestResizeStress(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, d := newTestCache(t, nil, bc.opt, WithDebugFlags(DebugResizeStress))

			c.Enqueue(listAt(1, 2, Address{Row: 1, Column: 7}, Block{5, 5, 5, 5}))
			mustUpdate(t, c)

			for i := 0; i < 3; i++ {
				d.ResetCalls()
				stats := mustUpdate(t, c)
				if !stats.Resized {
					t.Errorf("frame %d not resized under stress", i)
				}
				if stats.Lists != 1 || stats.BlocksUpdated != 1 {
					t.Errorf("frame %d stats = %+v, want the injected list", i, stats)
				}
				if len(d.CallsOf(backend.CallCopyTexture)) != 1 {
					t.Errorf("frame %d did not migrate", i)
				}
			}
			if got := readBlock(t, d, c, 7, 1); got != (Block{5, 5, 5, 5}) {
				t.Errorf("block survived stress as %v", got)
			}
		})
	}
}

func TestMemoryReport(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			c, _ := newTestCache(t, nil, bc.opt)
			if r := c.MemoryReport(); r.Total() != 0 {
				t.Errorf("empty report = %+v", r)
			}

			c.Enqueue(listAt(1, 2, Address{Row: 1}, Block{}))
			mustUpdate(t, c)

			r := c.MemoryReport()
			wantGPU := uint64(2 * MaxVertexTextureWidth * BlockSize)
			if r.GPUBytes != wantGPU {
				t.Errorf("GPUBytes = %d, want %d", r.GPUBytes, wantGPU)
			}
			wantCPU := uint64(0)
			if bc.kind == BusPixelBuffer {
				wantCPU = wantGPU
			}
			if r.CPUBytes != wantCPU {
				t.Errorf("CPUBytes = %d, want %d", r.CPUBytes, wantCPU)
			}
		})
	}
}

// TestUpdateErrorDrainsLists checks that a device failure is returned and
// the lists are not applied twice.
func TestUpdateErrorDrainsLists(t *testing.T) {
	d := failingUploadDevice{backend.NewSoftwareDevice(nil)}
	c, err := NewCache(d)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Enqueue(listAt(1, 1, Address{}, Block{1, 1, 1, 1}))
	if _, err := c.Update(); !errors.Is(err, errUpload) {
		t.Fatalf("Update() error = %v, want %v", err, errUpload)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after failed update", c.Pending())
	}
}

func TestCloseReleasesResources(t *testing.T) {
	for _, bc := range busCases {
		t.Run(bc.name, func(t *testing.T) {
			d := backend.NewSoftwareDevice(nil)
			c, err := NewCache(d, bc.opt)
			if err != nil {
				t.Fatal(err)
			}
			c.Enqueue(listAt(1, 2, Address{Row: 1}, Block{}))
			if _, err := c.Update(); err != nil {
				t.Fatal(err)
			}

			c.Close()
			c.Close() // idempotent
			if !c.IsClosed() {
				t.Error("IsClosed() = false after Close")
			}
			if got := d.LiveResources(); got.Total() != 0 {
				t.Errorf("LiveResources() after Close = %+v", got)
			}
			if _, err := c.Update(); !errors.Is(err, ErrCacheClosed) {
				t.Errorf("Update() after Close error = %v, want %v", err, ErrCacheClosed)
			}
		})
	}
}

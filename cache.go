package gpucache

import (
	"fmt"
	"time"

	"github.com/gogpu/gpucache/gpucore"
)

// Cache streams per-frame block updates into the GPU cache texture.
//
// Producers build UpdateLists (see UpdateBuilder) and hand them over with
// Enqueue. Once per frame, the render thread calls Update, which sizes the
// texture for every pending list, applies them in order and flushes them
// to the device.
//
// Cache is not safe for concurrent use. All methods must be called from
// the thread that owns the device context.
type Cache struct {
	device  gpucore.Device
	caps    gpucore.Capabilities
	opts    options
	texture *CacheTexture

	pending []UpdateList

	frameID    FrameID
	maxHeight  int
	overflowed bool
	errs       []error
	closed     bool
}

// NewCache creates a cache on the device. The bus is chosen once, from
// the options and the device capabilities.
func NewCache(device gpucore.Device, opts ...Option) (*Cache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	caps := device.Capabilities()
	kind := BusPixelBuffer
	if o.scatter && caps.FloatRenderTarget {
		kind = BusScatter
	}
	if o.forceBus != nil {
		kind = *o.forceBus
	}

	maxHeight := maxAddressableRows
	if caps.MaxTextureSize > 0 {
		maxHeight = min(maxHeight, caps.MaxTextureSize)
	}
	if o.maxTextureSize > 0 {
		maxHeight = min(maxHeight, o.maxTextureSize)
	}

	propagateLogger(device, Logger())

	texture, err := newCacheTexture(device, caps, kind, o.debug&DebugResizeStress != 0)
	if err != nil {
		return nil, err
	}

	Logger().Info("gpucache: cache created", "bus", kind, "caps", caps.String(), "maxHeight", maxHeight)

	c := &Cache{
		device:    device,
		caps:      caps,
		opts:      o,
		texture:   texture,
		maxHeight: maxHeight,
	}
	watchLeak(c)
	return c, nil
}

// Enqueue queues an update list for the next Update. Lists are applied in
// the order they were queued. The cache keeps the list's slices until the
// update that consumes them.
func (c *Cache) Enqueue(list UpdateList) {
	c.pending = append(c.pending, list)
}

// Pending returns the number of queued update lists.
func (c *Cache) Pending() int {
	return len(c.pending)
}

// Update applies every pending list and flushes the result to the device.
//
// The texture is grown once, to the largest height any pending list
// requires, before the first list is applied. A request above the maximum
// texture size is recorded once as ErrTextureOverflow (see Errors) and
// the height is clamped; rendering continues with missing blocks.
//
// A returned error comes from the device. Lists are dropped once the
// texture has been prepared for them, even if a later step fails.
func (c *Cache) Update() (FrameStats, error) {
	if c.closed {
		return FrameStats{}, ErrCacheClosed
	}
	start := time.Now()
	var stats FrameStats

	if c.opts.debug&DebugResizeStress != 0 && c.texture.Height() != 0 {
		c.pending = append(c.pending, UpdateList{
			Height: c.texture.Height(),
			Blocks: []Block{{1, 1, 1, 1}},
		})
	}

	if i := lastClear(c.pending); i >= 0 {
		if err := c.texture.reset(); err != nil {
			return stats, err
		}
		clear(c.pending[:i])
		c.pending = c.pending[i:]
		stats.Cleared = true
		Logger().Debug("gpucache: cache cleared", "dropped", i)
	}

	height := c.texture.Height()
	totalBlocks := 0
	for i := range c.pending {
		height = max(height, c.pending[i].Height)
		totalBlocks += len(c.pending[i].Blocks)
	}
	if height > c.maxHeight {
		if !c.overflowed {
			c.overflowed = true
			err := fmt.Errorf("%w: %d rows requested, limit %d", ErrTextureOverflow, height, c.maxHeight)
			c.errs = append(c.errs, err)
			Logger().Warn("gpucache: texture overflow", "requested", height, "limit", c.maxHeight)
		}
		height = c.maxHeight
	}

	resized, err := c.texture.prepareForUpdates(totalBlocks, height)
	if err != nil {
		return stats, err
	}
	defer c.drain()

	for i := range c.pending {
		list := &c.pending[i]
		if debugAssertions && list.Height > height && !c.overflowed {
			assertf("list height %d above prepared height %d", list.Height, height)
		}
		if list.FrameID > c.frameID {
			c.frameID = list.FrameID
		}
		if err := c.texture.update(list); err != nil {
			return stats, err
		}
	}

	rows, err := c.texture.flush()

	stats.FrameID = c.frameID
	stats.Lists = len(c.pending)
	stats.RowsUpdated = rows
	stats.BlocksUpdated = totalBlocks
	stats.TextureHeight = c.texture.Height()
	stats.Resized = resized
	stats.UploadTime = time.Since(start)
	return stats, err
}

// lastClear returns the index of the last clearing list, or -1.
func lastClear(lists []UpdateList) int {
	for i := len(lists) - 1; i >= 0; i-- {
		if lists[i].Clear {
			return i
		}
	}
	return -1
}

func (c *Cache) drain() {
	clear(c.pending)
	c.pending = c.pending[:0]
}

// Texture returns the cache texture, for binding by later passes.
func (c *Cache) Texture() *CacheTexture {
	return c.texture
}

// BusKind returns the bus chosen at creation.
func (c *Cache) BusKind() BusKind {
	return c.texture.BusKind()
}

// FrameID returns the highest frame id applied so far.
func (c *Cache) FrameID() FrameID {
	return c.frameID
}

// Capabilities returns the device capabilities queried at creation.
func (c *Cache) Capabilities() gpucore.Capabilities {
	return c.caps
}

// MaxHeight returns the maximum texture height in rows.
func (c *Cache) MaxHeight() int {
	return c.maxHeight
}

// Errors returns the renderer-level errors recorded so far. Each kind of
// error is recorded at most once per cache.
func (c *Cache) Errors() []error {
	return append([]error(nil), c.errs...)
}

// MemoryReport returns the memory held by the cache.
func (c *Cache) MemoryReport() MemoryReport {
	return c.texture.MemoryReport()
}

// Close destroys the texture and all bus-owned device objects. It must be
// called while the device is alive. Close is idempotent.
func (c *Cache) Close() {
	if c.closed {
		return
	}
	c.texture.destroy()
	c.drain()
	c.closed = true
	unwatchLeak(c)
}

// IsClosed returns true if Close has been called.
func (c *Cache) IsClosed() bool {
	return c.closed
}

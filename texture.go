package gpucache

import (
	"fmt"

	"github.com/gogpu/gpucache/gpucore"
)

// CacheTexture owns the GPU cache texture and the bus that fills it.
//
// The texture is created lazily and only ever grows, to exactly the
// height requested. When it grows, the old contents are carried over by a
// GPU copy or, for the pixel buffer bus on devices without one, by
// re-uploading every shadow row.
//
// CacheTexture is owned by a Cache and is not safe for concurrent use.
type CacheTexture struct {
	device gpucore.Device
	caps   gpucore.Capabilities

	texture gpucore.TextureID
	height  int
	bus     gpuCacheBus

	// alwaysResize reallocates the texture on every ensureTexture call,
	// to exercise the migration path.
	alwaysResize bool
}

func newCacheTexture(device gpucore.Device, caps gpucore.Capabilities, kind BusKind, alwaysResize bool) (*CacheTexture, error) {
	bus, err := newBus(device, kind)
	if err != nil {
		return nil, err
	}
	return &CacheTexture{
		device:       device,
		caps:         caps,
		bus:          bus,
		alwaysResize: alwaysResize,
	}, nil
}

func newBus(device gpucore.Device, kind BusKind) (gpuCacheBus, error) {
	if kind == BusScatter {
		return newScatterBus(device)
	}
	return &pixelBufferBus{}, nil
}

// BusKind returns the kind of bus feeding the texture.
func (t *CacheTexture) BusKind() BusKind {
	return t.bus.kind()
}

// TextureID returns the device texture, or gpucore.InvalidID before the
// first update.
func (t *CacheTexture) TextureID() gpucore.TextureID {
	return t.texture
}

// Width returns the texture width in blocks (0 without a texture).
func (t *CacheTexture) Width() int {
	if t.texture == gpucore.InvalidID {
		return 0
	}
	return MaxVertexTextureWidth
}

// Height returns the texture height in rows (0 without a texture).
func (t *CacheTexture) Height() int {
	return t.height
}

// needsRenderTarget reports whether new textures are created as render
// targets. The scatter bus draws into the texture; the pixel buffer bus
// only benefits when the device can copy and render to float targets.
func (t *CacheTexture) needsRenderTarget() bool {
	switch t.bus.(type) {
	case *scatterBus:
		return true
	default:
		return t.caps.CopyTexture && t.caps.FloatRenderTarget
	}
}

// ensureTexture grows the texture to at least height rows and reports
// whether a new texture was allocated.
func (t *CacheTexture) ensureTexture(height int) (bool, error) {
	if t.texture != gpucore.InvalidID {
		if t.height >= height && !t.alwaysResize {
			return false, nil
		}
		height = max(height, t.height)
	}
	if height <= 0 {
		return false, nil
	}

	old, oldHeight := t.texture, t.height
	newTexture, err := t.device.CreateTexture(gpucore.TextureDesc{
		Label:        "gpu_cache",
		Width:        MaxVertexTextureWidth,
		Height:       height,
		Format:       gpucore.TextureFormatRGBA32Float,
		RenderTarget: t.needsRenderTarget(),
	})
	if err != nil {
		return false, fmt.Errorf("gpucache: create %dx%d cache texture: %w", MaxVertexTextureWidth, height, err)
	}

	if old != gpucore.InvalidID {
		if err := t.migrate(newTexture, old, oldHeight); err != nil {
			t.device.DestroyTexture(newTexture)
			return false, err
		}
		t.device.DestroyTexture(old)
	}

	Logger().Debug("gpucache: cache texture allocated",
		"bus", t.bus.kind(), "from", oldHeight, "to", height)

	t.texture = newTexture
	t.height = height
	return true, nil
}

// migrate carries the contents of old into dst. Without GPU copy support
// the pixel buffer bus re-uploads its shadow rows on the next flush; the
// scatter bus has nothing to re-upload from and panics.
func (t *CacheTexture) migrate(dst, old gpucore.TextureID, oldHeight int) error {
	if t.caps.CopyTexture || t.caps.FloatRenderTarget {
		if err := t.device.CopyTexture(dst, old, MaxVertexTextureWidth, oldHeight); err != nil {
			return fmt.Errorf("gpucache: copy %d cache rows: %w", oldHeight, err)
		}
		return nil
	}

	switch bus := t.bus.(type) {
	case *scatterBus:
		panic(fmt.Errorf("%w (%v)", ErrScatterMigration, t.caps))
	case *pixelBufferBus:
		bus.invalidateAll()
		Logger().Debug("gpucache: no texture copy, re-uploading shadow rows", "rows", len(bus.rows))
	}
	return nil
}

// prepareForUpdates grows the texture for height rows and sizes the bus
// for totalBlocks blocks. It reports whether the texture was reallocated.
func (t *CacheTexture) prepareForUpdates(totalBlocks, height int) (bool, error) {
	resized, err := t.ensureTexture(height)
	if err != nil {
		return false, err
	}
	if bus, ok := t.bus.(*scatterBus); ok {
		if err := bus.prepare(totalBlocks); err != nil {
			return resized, err
		}
	}
	return resized, nil
}

// update hands one list to the bus.
func (t *CacheTexture) update(list *UpdateList) error {
	switch bus := t.bus.(type) {
	case *pixelBufferBus:
		bus.update(list)
	case *scatterBus:
		return bus.update(list, MaxVertexTextureWidth, t.height)
	}
	return nil
}

// flush pushes pending data to the texture. It returns the number of rows
// uploaded, which is always 0 for the scatter bus.
func (t *CacheTexture) flush() (int, error) {
	if t.texture == gpucore.InvalidID {
		return 0, nil
	}
	switch bus := t.bus.(type) {
	case *pixelBufferBus:
		return bus.flush(t.device, t.texture, t.height)
	case *scatterBus:
		return 0, bus.flush(t.texture)
	}
	return 0, nil
}

// removeTexture destroys the device texture. The bus is kept.
func (t *CacheTexture) removeTexture() {
	if t.texture != gpucore.InvalidID {
		t.device.DestroyTexture(t.texture)
		t.texture = gpucore.InvalidID
	}
	t.height = 0
}

// reset starts a new cache generation: the texture is destroyed and the
// bus replaced by a fresh one of the same kind. If the new bus cannot be
// created the old generation is left untouched.
func (t *CacheTexture) reset() error {
	bus, err := newBus(t.device, t.bus.kind())
	if err != nil {
		return err
	}
	t.destroy()
	t.bus = bus
	return nil
}

// MemoryReport returns the memory held by the texture and its bus.
func (t *CacheTexture) MemoryReport() MemoryReport {
	var r MemoryReport
	if bus, ok := t.bus.(*pixelBufferBus); ok {
		r.CPUBytes = bus.cpuBytes()
	}
	//nolint:gosec // G115: width and height are positive
	r.GPUBytes = uint64(t.Width()) * uint64(t.height) * BlockSize
	return r
}

// destroy releases the texture and any bus-owned device objects.
func (t *CacheTexture) destroy() {
	t.removeTexture()
	if bus, ok := t.bus.(*scatterBus); ok {
		bus.destroy()
	}
}

package gpucache

import "errors"

// Cache errors.
var (
	// ErrTextureOverflow is recorded when the requested cache height exceeds
	// the device's maximum texture size. Rendering continues with a clamped
	// texture and stale or missing blocks.
	ErrTextureOverflow = errors.New("gpucache: requested height exceeds max texture size")

	// ErrScatterMigration is the panic value when a scatter cache must grow
	// on a device that can neither copy textures nor render to float targets.
	// The scatter bus keeps no CPU copy, so the old contents would be lost.
	ErrScatterMigration = errors.New("gpucache: scatter bus cannot migrate texture without copy support")

	// ErrNilDevice is returned when a cache is created without a device.
	ErrNilDevice = errors.New("gpucache: device is nil")

	// ErrCacheClosed is returned when operating on a closed cache.
	ErrCacheClosed = errors.New("gpucache: cache is closed")

	// ErrInvalidBlockCount is returned by the allocator for runs that are
	// empty or wider than a row.
	ErrInvalidBlockCount = errors.New("gpucache: invalid block count")

	// ErrCacheFull is returned by the allocator when every addressable row
	// is in use.
	ErrCacheFull = errors.New("gpucache: no free rows")
)

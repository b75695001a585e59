// Package gpucache keeps a GPU texture in sync with per-frame block
// updates produced on the CPU.
//
// # Overview
//
// Renderers store per-primitive data (transforms, colors, clip rects) as
// 16-byte blocks of four float32 in a cache texture that is 1024 blocks
// wide and grows in rows. Producers allocate addresses, describe each
// frame's writes as an UpdateList and hand it to Cache.Enqueue; the
// render thread calls Cache.Update once per frame to apply every pending
// list and flush the result to the device.
//
// # Quick Start
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	cache, err := gpucache.NewCache(b.Device())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	builder := gpucache.NewUpdateBuilder(gpucache.NewBlockAllocator())
//	addr, _ := builder.Allocate(gpucache.Block{1, 0, 0, 1})
//	list, _ := builder.Finish(1)
//	cache.Enqueue(list)
//	stats, err := cache.Update()
//
// # Buses
//
// Two strategies move blocks to the texture:
//   - PixelBuffer keeps a CPU shadow of every row with a dirty column
//     range and uploads only the dirty span of each dirty row.
//   - Scatter writes each block as a point vertex carrying its value and
//     destination texel, and draws all of them in one call.
//
// The bus is fixed when the cache is created. Scatter is used when
// requested with WithScatterUpdates and the device can render to float
// textures.
//
// # Growth
//
// The texture is created on the first update and only grows. On growth
// the old contents are copied on the GPU when the device supports it.
// Otherwise the PixelBuffer bus re-uploads its shadow; the Scatter bus
// has no shadow and panics with ErrScatterMigration.
//
// # Devices
//
// Cache talks to a gpucore.Device. The backend package provides a
// software device and a registry; backend/native implements the device on
// gogpu/wgpu.
//
// # Logging
//
// The package is silent by default. Call SetLogger to route diagnostics
// to a slog.Logger; the logger is passed on to devices that accept one.
package gpucache

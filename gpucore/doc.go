// Package gpucore provides the device abstraction used by the gpucache
// synchronization layer.
//
// This package defines the [Device] interface, which abstracts over the
// GPU backends the cache can stream blocks into:
//   - gogpu/wgpu HAL (backend/native)
//   - a CPU software device (backend/software), also used as the test double
//
// # Architecture
//
// The cache logic (row table, scatter bus, texture manager, frame driver) is
// implemented once in the root gpucache package. Thin devices translate the
// [Device] calls into backend APIs.
//
//	               +-----------------+
//	               |    gpucache     |
//	               | (Cache, buses)  |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  native device  |          | software device |
//	|  (hal.Device)   |          |   (CPU memory)  |
//	+--------+--------+          +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	|   (Pure Go)     |
//	+-----------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([TextureID], [BufferID],
// [ProgramID], [VertexArrayID]). Devices are responsible for tracking the
// mapping between IDs and actual backend resources. Resources must be
// destroyed explicitly while the device is alive; nothing is released by
// the garbage collector.
//
// # Capabilities
//
// [Capabilities] are queried once by the cache at construction. They decide
// which update bus is used and how the cache texture is migrated when it
// grows:
//
//   - CopyTexture: the device can copy one texture into another on the GPU.
//   - FloatRenderTarget: RGBA32Float textures can be bound as render targets,
//     which the scatter bus needs to write blocks with point draws.
package gpucore

// Package native provides a Pure Go GPU backend for the cache using
// gogpu/wgpu.
//
// HALDevice implements gpucore.Device on a hal.Device and hal.Queue:
// textures are RGBA32Float HAL textures, uploads go through
// Queue.WriteTexture, migrations through CopyTextureToTexture, and the
// scatter program is a point-list render pipeline compiled from WGSL (or,
// with WithSPIRV, from SPIR-V produced by naga).
//
// Importing the package registers the "native" backend:
//
//	import _ "github.com/gogpu/gpucache/backend/native"
//
// A GPU already opened by a gogpu application can be shared with
// NewFromProvider. Build with the nogpu tag to leave the backend out.
package native

// Package backend provides a pluggable device backend abstraction.
//
// A backend opens a gpucore.Device the cache streams into. The software
// backend keeps textures in CPU memory and is always available; the
// native backend (package backend/native) opens a GPU through gogpu/wgpu.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The software backend is automatically registered on import:
//
//	import _ "github.com/gogpu/gpucache/backend"
//
// The GPU backend registers itself when its package is imported:
//
//	import _ "github.com/gogpu/gpucache/backend/native"
//
// # Backend Selection
//
// Use InitDefault to open the best backend that works on this machine,
// or Get to request a specific backend by name:
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	cache, err := gpucache.NewCache(b.Device())
//
// # Available Backends
//
//   - "native": GPU via gogpu/wgpu HAL (Vulkan)
//   - "software": CPU memory, with call recording and texel read-back
//     for tests
package backend

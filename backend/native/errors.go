package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("native: backend not initialized")

	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNilHALDevice is returned when a HAL device is required but nil.
	ErrNilHALDevice = errors.New("native: HAL device is nil")

	// ErrNoHALProvider is returned when a device provider does not expose
	// HAL types.
	ErrNoHALProvider = errors.New("native: provider does not expose HAL device and queue")

	// ErrResourceNotFound is returned for unknown or destroyed IDs.
	ErrResourceNotFound = errors.New("native: resource not found")

	// ErrInvalidTextureSize is returned when texture dimensions are invalid.
	ErrInvalidTextureSize = errors.New("native: invalid texture size")

	// ErrRegionOutOfBounds is returned when a region is outside a texture.
	ErrRegionOutOfBounds = errors.New("native: region is outside texture bounds")

	// ErrDataSize is returned when upload data does not match the region.
	ErrDataSize = errors.New("native: data size does not match region")

	// ErrBufferOverflow is returned when a write or draw exceeds a buffer.
	ErrBufferOverflow = errors.New("native: buffer overflow")

	// ErrNotRenderTarget is returned when drawing into a texture created
	// without RenderTarget.
	ErrNotRenderTarget = errors.New("native: texture is not a render target")

	// ErrUnsupported is returned for formats, programs or buffer kinds the
	// backend does not provide.
	ErrUnsupported = errors.New("native: unsupported")

	// ErrShaderCompilation is returned when a WGSL program fails to compile.
	ErrShaderCompilation = errors.New("native: shader compilation failed")

	// ErrTimeout is returned when the GPU does not finish a submission in time.
	ErrTimeout = errors.New("native: GPU submission timed out")
)

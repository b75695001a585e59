package backend

import (
	"errors"

	"github.com/gogpu/gpucache/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// DeviceBackend is the interface for device backends.
// It abstracts where the cache texture lives, allowing the cache to run on
// multiple backends (software, GPU via wgpu).
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type DeviceBackend interface {
	// Name returns the backend identifier (e.g., "software", "native").
	Name() string

	// Init opens the device.
	// This should be called before Device.
	Init() error

	// Close releases the device.
	// The backend should not be used after Close is called.
	Close()

	// Device returns the opened device, or nil before Init.
	Device() gpucore.Device
}

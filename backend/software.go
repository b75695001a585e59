package backend

import "github.com/gogpu/gpucache/gpucore"

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU-memory software device.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu HAL).
	BackendNative = "native"
)

// SoftwareBackend provides a SoftwareDevice. It is always available and is
// the fallback when no GPU backend initializes.
type SoftwareBackend struct {
	caps   *gpucore.Capabilities
	device *SoftwareDevice
}

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() DeviceBackend {
		return &SoftwareBackend{}
	})
}

// NewSoftwareBackend creates a software backend. A nil caps uses
// DefaultSoftwareCapabilities.
func NewSoftwareBackend(caps *gpucore.Capabilities) *SoftwareBackend {
	return &SoftwareBackend{caps: caps}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init creates the device.
func (b *SoftwareBackend) Init() error {
	if b.device == nil {
		b.device = NewSoftwareDevice(b.caps)
	}
	return nil
}

// Close releases the device.
func (b *SoftwareBackend) Close() {
	b.device = nil
}

// Device returns the device, or nil before Init.
func (b *SoftwareBackend) Device() gpucore.Device {
	if b.device == nil {
		return nil
	}
	return b.device
}

// SoftwareDevice returns the concrete device, or nil before Init.
func (b *SoftwareBackend) SoftwareDevice() *SoftwareDevice {
	return b.device
}

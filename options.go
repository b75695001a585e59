package gpucache

// Option configures a Cache during creation.
// Use functional options to customize Cache behavior.
//
// Example:
//
//	// Pixel buffer bus, device limits
//	c, err := gpucache.NewCache(device)
//
//	// Scatter updates when the device can render to float targets
//	c, err := gpucache.NewCache(device, gpucache.WithScatterUpdates(true))
type Option func(*options)

// DebugFlags enable developer testing hooks. They carry no correctness
// contract and are off by default.
type DebugFlags uint32

const (
	// DebugResizeStress injects a one-block update list every frame and
	// reallocates the texture on every update, to keep the resize and
	// migration paths hot.
	DebugResizeStress DebugFlags = 1 << iota
)

// maxAddressableRows is the row limit imposed by 16-bit addresses.
const maxAddressableRows = 1 << 16

// options holds optional configuration for Cache creation.
type options struct {
	scatter        bool
	debug          DebugFlags
	maxTextureSize int

	// forceBus overrides capability-based bus selection (tests only).
	forceBus *BusKind
}

// defaultOptions returns the default cache options.
func defaultOptions() options {
	return options{
		scatter:        false,
		maxTextureSize: 0, // device limit
	}
}

// WithScatterUpdates selects the scatter bus when the device supports
// float render targets. Otherwise the pixel buffer bus is used.
func WithScatterUpdates(enabled bool) Option {
	return func(o *options) {
		o.scatter = enabled
	}
}

// WithDebugFlags enables developer testing hooks.
func WithDebugFlags(flags DebugFlags) Option {
	return func(o *options) {
		o.debug = flags
	}
}

// WithMaxTextureSize lowers the maximum cache height below the device
// limit. Values <= 0 keep the device limit.
func WithMaxTextureSize(rows int) Option {
	return func(o *options) {
		o.maxTextureSize = rows
	}
}

// withBus forces the bus kind regardless of device capabilities.
func withBus(kind BusKind) Option {
	return func(o *options) {
		o.forceBus = &kind
	}
}

//go:build gpucache_debug

package gpucache

import (
	"fmt"
	"runtime"
)

// debugAssertions enables contract checks on producer data.
const debugAssertions = true

func assertf(format string, args ...any) {
	panic(fmt.Sprintf("gpucache: "+format, args...))
}

// watchLeak logs when a cache becomes unreachable without Close. Device
// resources can only be released while the context is current, so a
// collected cache means leaked textures.
func watchLeak(c *Cache) {
	runtime.SetFinalizer(c, func(c *Cache) {
		if !c.closed {
			Logger().Error("gpucache: cache collected without Close, device resources leaked",
				"height", c.texture.Height())
		}
	})
}

func unwatchLeak(c *Cache) {
	runtime.SetFinalizer(c, nil)
}

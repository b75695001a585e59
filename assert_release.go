//go:build !gpucache_debug

package gpucache

const debugAssertions = false

func assertf(string, ...any) {}

func watchLeak(*Cache)   {}
func unwatchLeak(*Cache) {}

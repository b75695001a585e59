// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"crypto/sha256"
	"sync"
)

// spirvCacheSize bounds the number of compiled shaders kept process-wide.
const spirvCacheSize = 16

// sharedSPIRV caches naga output for every HALDevice in the process.
var sharedSPIRV = newSPIRVCache(spirvCacheSize, CompileShaderToSPIRV)

// spirvCache memoizes WGSL to SPIR-V compilation, keyed by a hash of the
// source. Above its limit the least recently used quarter is evicted.
// Failed compilations are not cached.
//
// spirvCache is safe for concurrent use.
type spirvCache struct {
	mu      sync.Mutex
	compile func(string) ([]uint32, error)
	entries map[[sha256.Size]byte]*spirvEntry
	limit   int
	tick    int64

	hits, misses uint64
}

type spirvEntry struct {
	words []uint32
	atime int64
}

func newSPIRVCache(limit int, compile func(string) ([]uint32, error)) *spirvCache {
	return &spirvCache{
		compile: compile,
		entries: make(map[[sha256.Size]byte]*spirvEntry),
		limit:   limit,
	}
}

// get returns the SPIR-V for wgsl, compiling it on a miss. The returned
// slice is shared and must not be modified.
func (c *spirvCache) get(wgsl string) ([]uint32, error) {
	key := sha256.Sum256([]byte(wgsl))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if e, ok := c.entries[key]; ok {
		e.atime = c.tick
		c.hits++
		return e.words, nil
	}
	c.misses++

	// Compiled under the lock so concurrent misses on one source compile once.
	words, err := c.compile(wgsl)
	if err != nil {
		return nil, err
	}
	c.entries[key] = &spirvEntry{words: words, atime: c.tick}
	if c.limit > 0 && len(c.entries) > c.limit {
		c.evict()
	}
	return words, nil
}

// evict drops the oldest entries down to three quarters of the limit.
// Caller must hold c.mu.
func (c *spirvCache) evict() {
	target := max(1, c.limit*3/4)
	for len(c.entries) > target {
		var oldest [sha256.Size]byte
		oldestTime := int64(-1)
		for k, e := range c.entries {
			if oldestTime < 0 || e.atime < oldestTime {
				oldest, oldestTime = k, e.atime
			}
		}
		delete(c.entries, oldest)
	}
}

// stats returns the entry count and hit counters.
func (c *spirvCache) stats() (n int, hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.hits, c.misses
}

package gpucache

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FrameStats reports the work done by one Cache.Update.
type FrameStats struct {
	// FrameID is the highest frame id applied so far.
	FrameID FrameID

	// Lists is the number of update lists applied.
	Lists int

	// RowsUpdated is the number of texture rows uploaded. Always 0 for
	// the scatter bus, which has no rows.
	RowsUpdated int

	// BlocksUpdated is the number of blocks carried by the applied lists.
	BlocksUpdated int

	// TextureHeight is the cache height after the update.
	TextureHeight int

	// Resized reports that the texture was reallocated.
	Resized bool

	// Cleared reports that a clearing list started a new generation.
	Cleared bool

	// UploadTime is the wall time spent in Update.
	UploadTime time.Duration
}

// String returns a human-readable summary of the frame.
func (s FrameStats) String() string {
	return fmt.Sprintf("Frame[%d: %d lists, %d rows, %d blocks, height %d, %v]",
		s.FrameID, s.Lists, s.RowsUpdated, s.BlocksUpdated, s.TextureHeight, s.UploadTime)
}

// MemoryReport is the memory held by the cache.
type MemoryReport struct {
	// CPUBytes is the shadow copy held by the pixel buffer bus.
	CPUBytes uint64

	// GPUBytes is the size of the cache texture.
	GPUBytes uint64
}

// Total returns CPU plus GPU bytes.
func (r MemoryReport) Total() uint64 {
	return r.CPUBytes + r.GPUBytes
}

// String returns a human-readable string of the report.
func (r MemoryReport) String() string {
	return fmt.Sprintf("Memory[cpu %s, gpu %s]", humanize.IBytes(r.CPUBytes), humanize.IBytes(r.GPUBytes))
}

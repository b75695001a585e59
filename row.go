package gpucache

// cacheRow is the CPU shadow copy of one cache texture row, with the
// envelope of columns changed since the last flush.
//
// The envelope is a single [minDirty, maxDirty) range grown by min/max, so
// two disjoint writes in the same row upload the clean columns between
// them too.
type cacheRow struct {
	cpuBlocks *[MaxVertexTextureWidth]Block
	minDirty  uint16
	maxDirty  uint16
}

func newCacheRow() cacheRow {
	return cacheRow{
		cpuBlocks: new([MaxVertexTextureWidth]Block),
		minDirty:  MaxVertexTextureWidth,
		maxDirty:  0,
	}
}

func (r *cacheRow) isDirty() bool {
	return r.minDirty < r.maxDirty
}

func (r *cacheRow) clearDirty() {
	r.minDirty = MaxVertexTextureWidth
	r.maxDirty = 0
}

// addDirty grows the envelope to include [offset, offset+count).
func (r *cacheRow) addDirty(offset, count int) {
	if debugAssertions && (offset < 0 || count < 0 || offset+count > MaxVertexTextureWidth) {
		assertf("dirty range [%d,%d) outside row", offset, offset+count)
	}
	//nolint:gosec // G115: bounded by MaxVertexTextureWidth
	lo, hi := uint16(offset), uint16(offset+count)
	r.minDirty = min(r.minDirty, lo)
	r.maxDirty = max(r.maxDirty, hi)
}

// markAllDirty makes the whole row a candidate for upload.
func (r *cacheRow) markAllDirty() {
	r.minDirty = 0
	r.maxDirty = MaxVertexTextureWidth
}

// dirtyBlocks returns the blocks to upload. Only valid when isDirty.
func (r *cacheRow) dirtyBlocks() []Block {
	if debugAssertions && !r.isDirty() {
		assertf("dirtyBlocks on clean row")
	}
	return r.cpuBlocks[r.minDirty:r.maxDirty]
}

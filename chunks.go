package ecss

import "unsafe"

// DefaultChunkCapacity is the default number of sectors held per chunk.
// Works best as a power of two for cheap division; enforced loosely (any
// positive value works, just slower).
const DefaultChunkCapacity = 4096

// chunk is a single fixed-capacity, contiguous block of sector payload
// memory: one []byte backing buffer sized for a fixed sector count
// rather than grown by however many bytes the next allocation needs.
type chunk struct {
	buf []byte
}

// ChunksAllocator owns a growable, append-only list of chunks, each
// large enough for a fixed number of sectors of sectorSize bytes. Chunks
// are never relocated once allocated, so a payload pointer returned by
// Payload(i) is stable for the arena's lifetime.
type ChunksAllocator struct {
	chunks      []*chunk
	capacity    int // sectors per chunk
	sectorSize  uintptr
	sectorAlign uintptr
}

// NewChunksAllocator creates an arena for sectors of the given size and
// alignment, chunkCapacity sectors per chunk. chunkCapacity <= 0 falls
// back to DefaultChunkCapacity.
func NewChunksAllocator(sectorSize, sectorAlign uintptr, chunkCapacity int) *ChunksAllocator {
	if chunkCapacity <= 0 {
		chunkCapacity = DefaultChunkCapacity
	}
	if sectorAlign == 0 {
		sectorAlign = 1
	}
	return &ChunksAllocator{
		capacity:    chunkCapacity,
		sectorSize:  alignUp(sectorSize, sectorAlign),
		sectorAlign: sectorAlign,
	}
}

// ChunkCapacity returns the number of sectors held per chunk.
func (c *ChunksAllocator) ChunkCapacity() int { return c.capacity }

// SectorSize returns the per-sector stride used by this arena.
func (c *ChunksAllocator) SectorSize() uintptr { return c.sectorSize }

// NumChunks returns the number of chunks currently allocated.
func (c *ChunksAllocator) NumChunks() int { return len(c.chunks) }

// Capacity returns the total number of sector slots currently backed by
// allocated chunks (NumChunks * ChunkCapacity).
func (c *ChunksAllocator) Capacity() int { return len(c.chunks) * c.capacity }

// Reserve ensures the arena covers at least nSectors sector slots,
// growing by whole chunks as needed. Existing chunks are never
// relocated or reallocated — growth only appends new chunks, so a
// payload pointer handed to a caller stays valid across later growth.
func (c *ChunksAllocator) Reserve(nSectors int) {
	for c.Capacity() < nSectors {
		c.chunks = append(c.chunks, &chunk{
			buf: make([]byte, c.capacity*int(c.sectorSize)),
		})
	}
}

// Payload returns a pointer to sector i's payload, addressed via chunk
// index and intra-chunk offset in O(1). Panics if i is outside the
// reserved capacity — callers (SectorsArray) reserve ahead of use.
func (c *ChunksAllocator) Payload(i int) unsafe.Pointer {
	chunkIdx := i / c.capacity
	offset := uintptr(i%c.capacity) * c.sectorSize
	ch := c.chunks[chunkIdx]
	return unsafe.Pointer(&ch.buf[offset])
}

// Cursor walks raw sector payload pointers linearly across chunk
// boundaries, starting at a given linear index.
type Cursor struct {
	alloc *ChunksAllocator
	idx   int
}

// NewCursor returns a Cursor positioned at start.
func NewCursor(alloc *ChunksAllocator, start int) Cursor {
	return Cursor{alloc: alloc, idx: start}
}

// Index returns the cursor's current linear sector index.
func (cu Cursor) Index() int { return cu.idx }

// Payload dereferences the cursor to the current sector's payload.
func (cu Cursor) Payload() unsafe.Pointer { return cu.alloc.Payload(cu.idx) }

// Advance moves the cursor forward by n sector slots.
func (cu *Cursor) Advance(n int) { cu.idx += n }

// IDRange is a half-open [Lo, Hi) span of entity-sector ids, already
// resolved (by the caller, via a sorted-ids binary search) into a span
// of linear dense indices before being handed to RangesCursor.
type IDRange struct {
	Lo, Hi int // linear indices, half-open
}

// RangesCursor walks a set of already-resolved linear-index spans in
// order, emitting raw payload pointers, and supports jumping to the
// first span at-or-after a given linear index via binary search. Used
// by RangedIterator so a caller can restrict traversal to entity-id
// ranges without scanning the whole dense array.
type RangesCursor struct {
	alloc  *ChunksAllocator
	spans  []IDRange
	span   int // index into spans
	offset int // offset within spans[span]
}

// NewRangesCursor creates a cursor over the given linear-index spans,
// positioned at the first sector of the first non-empty span.
func NewRangesCursor(alloc *ChunksAllocator, spans []IDRange) *RangesCursor {
	rc := &RangesCursor{alloc: alloc, spans: spans}
	rc.skipEmpty()
	return rc
}

func (rc *RangesCursor) skipEmpty() {
	for rc.span < len(rc.spans) && rc.spans[rc.span].Lo+rc.offset >= rc.spans[rc.span].Hi {
		rc.span++
		rc.offset = 0
	}
}

// Done reports whether every span has been fully walked.
func (rc *RangesCursor) Done() bool {
	return rc.span >= len(rc.spans)
}

// Index returns the current linear sector index. Only valid when !Done().
func (rc *RangesCursor) Index() int {
	return rc.spans[rc.span].Lo + rc.offset
}

// Payload returns the current sector's payload pointer. Only valid when
// !Done().
func (rc *RangesCursor) Payload() unsafe.Pointer {
	return rc.alloc.Payload(rc.Index())
}

// Next advances the cursor by one sector, crossing into the next span
// when the current one is exhausted.
func (rc *RangesCursor) Next() {
	if rc.Done() {
		return
	}
	rc.offset++
	rc.skipEmpty()
}

// AdvanceToLinearIdx moves the cursor forward to the first position at
// or after target, binary-searching across spans rather than stepping
// one sector at a time.
func (rc *RangesCursor) AdvanceToLinearIdx(target int) {
	lo, hi := rc.span, len(rc.spans)
	for lo < hi {
		mid := (lo + hi) / 2
		if rc.spans[mid].Hi <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	rc.span = lo
	rc.offset = 0
	if rc.span < len(rc.spans) && rc.spans[rc.span].Lo < target {
		rc.offset = target - rc.spans[rc.span].Lo
	}
	rc.skipEmpty()
}

package ecss

import "unsafe"

// Iterator walks every sector in a SectorsArray in dense (linear) order,
// regardless of which components are alive in each one. Not safe for
// concurrent use with a structural mutation on the same container in
// the non-thread-safe build; in the thread-safe build it walks a single
// consistent snapshot taken at NewIterator time.
type Iterator struct {
	sa       *SectorsArray
	ids      []uint32
	isAlive  []uint64
	size     int
	i        int
}

// NewIterator creates an Iterator over sa's current snapshot.
func NewIterator(sa *SectorsArray) *Iterator {
	ids, isAlive, size := sa.dense.Snapshot()
	return &Iterator{sa: sa, ids: ids, isAlive: isAlive, size: size}
}

// Done reports whether the iterator has walked every sector.
func (it *Iterator) Done() bool { return it.i >= it.size }

// ID returns the entity id at the current position.
func (it *Iterator) ID() int { return int(it.ids[it.i]) }

// AliveMask returns the current sector's isAlive bitmask.
func (it *Iterator) AliveMask() uint64 { return it.isAlive[it.i] }

// Payload returns a pointer to the current sector's raw payload.
func (it *Iterator) Payload() unsafe.Pointer { return it.sa.arena.Payload(it.i) }

// Next advances to the next sector.
func (it *Iterator) Next() { it.i++ }

// IteratorAlive wraps Iterator, skipping any sector that does not carry
// every component in requiredMask.
type IteratorAlive struct {
	it           *Iterator
	requiredMask uint64
}

// NewIteratorAlive creates an IteratorAlive positioned at the first
// sector (if any) whose alive mask satisfies requiredMask.
func NewIteratorAlive(sa *SectorsArray, requiredMask uint64) *IteratorAlive {
	ia := &IteratorAlive{it: NewIterator(sa), requiredMask: requiredMask}
	ia.skip()
	return ia
}

func (ia *IteratorAlive) skip() {
	for !ia.it.Done() && ia.it.AliveMask()&ia.requiredMask != ia.requiredMask {
		ia.it.Next()
	}
}

// Done reports whether no more matching sectors remain.
func (ia *IteratorAlive) Done() bool { return ia.it.Done() }

// ID returns the current matching sector's entity id.
func (ia *IteratorAlive) ID() int { return ia.it.ID() }

// Payload returns the current matching sector's raw payload pointer.
func (ia *IteratorAlive) Payload() unsafe.Pointer { return ia.it.Payload() }

// Next advances to the next matching sector.
func (ia *IteratorAlive) Next() {
	ia.it.Next()
	ia.skip()
}

// EntityRange is an inclusive [Lo, Hi] span of entity ids, as supplied by
// a caller requesting ranged iteration. Resolved via binary search over
// the sorted dense ids into the linear-index IDRange spans RangesCursor
// actually walks.
type EntityRange struct {
	Lo, Hi int
}

// RangedIterator walks only the dense-index spans covering a set of
// entity-id ranges, all resolved in a single pass via binary search over
// the sorted dense ids at construction time, then traversed by one
// RangesCursor so the whole multi-span walk sees one consistent
// snapshot. Requires the dense array to be sorted by id — do not use
// between an EraseUnordered and the next Compact().
type RangedIterator struct {
	sa  *SectorsArray
	ids []uint32
	cur *RangesCursor
}

// NewRangedIterator creates a RangedIterator over entity ids in [lo, hi].
func NewRangedIterator(sa *SectorsArray, lo, hi int) *RangedIterator {
	return NewRangedIteratorSpans(sa, []EntityRange{{Lo: lo, Hi: hi}})
}

// NewRangedIteratorSpans creates a RangedIterator walking every entity-id
// range in ranges as a single ordered traversal over one snapshot of sa's
// dense array.
func NewRangedIteratorSpans(sa *SectorsArray, ranges []EntityRange) *RangedIterator {
	ids, _, size := sa.dense.Snapshot()
	sorted := ids[:size]
	spans := make([]IDRange, len(ranges))
	for i, rg := range ranges {
		spans[i] = IDRange{
			Lo: lowerBound(sorted, uint32(rg.Lo)),
			Hi: upperBound(sorted, uint32(rg.Hi)),
		}
	}
	return &RangedIterator{sa: sa, ids: ids, cur: NewRangesCursor(sa.arena, spans)}
}

// Done reports whether the range has been fully walked.
func (r *RangedIterator) Done() bool { return r.cur.Done() }

// ID returns the current sector's entity id.
func (r *RangedIterator) ID() int { return int(r.ids[r.cur.Index()]) }

// Payload returns the current sector's raw payload pointer.
func (r *RangedIterator) Payload() unsafe.Pointer { return r.cur.Payload() }

// Next advances to the next sector in range.
func (r *RangedIterator) Next() { r.cur.Next() }

func lowerBound(ids []uint32, target uint32) int {
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := (lo + hi) / 2
		if ids[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func upperBound(ids []uint32, target uint32) int {
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := (lo + hi) / 2
		if ids[mid] <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

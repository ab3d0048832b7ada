package ecss

import "go.uber.org/atomic"

// denseSnapshot is the published {ids, isAlive, size} triple a
// thread-safe reader loads once at iterator/lookup construction, so
// within a single iteration the observed ids/isAlive/size always
// correspond to one consistent snapshot.
type denseSnapshot struct {
	ids      []uint32
	isAlive  []uint64
	size     int
}

// denseArrays holds the two parallel dense arrays: ids[] (the entity id
// occupying linear slot i) and isAlive[] (that slot's per-component
// alive bitmask). In the thread-safe build, growth allocates fresh
// backing slices, retires the old ones into a RetireBin, and publishes
// the new triple atomically.
type denseArrays struct {
	threadSafe bool
	bin        *RetireBin
	idsAlloc   *RetireAllocator[uint32]
	aliveAlloc *RetireAllocator[uint64]

	// non-thread-safe path
	ids     []uint32
	isAlive []uint64
	size    int

	// thread-safe path
	snapshot atomic.Pointer[denseSnapshot]
}

func newDenseArrays(threadSafe bool, bin *RetireBin) *denseArrays {
	d := &denseArrays{
		threadSafe: threadSafe,
		bin:        bin,
		idsAlloc:   NewRetireAllocator[uint32](bin),
		aliveAlloc: NewRetireAllocator[uint64](bin),
	}
	if threadSafe {
		d.snapshot.Store(&denseSnapshot{})
	}
	return d
}

// Snapshot returns a consistent {ids, isAlive, size} view for a reader
// to iterate against. In the non-thread-safe build it's just the live
// fields (safe because there are no concurrent mutators by contract).
func (d *denseArrays) Snapshot() (ids []uint32, isAlive []uint64, size int) {
	if d.threadSafe {
		s := d.snapshot.Load()
		return s.ids, s.isAlive, s.size
	}
	return d.ids, d.isAlive, d.size
}

// Size returns the current live sector count.
func (d *denseArrays) Size() int {
	_, _, size := d.Snapshot()
	return size
}

// Capacity returns the current backing-array capacity (>= Size()).
func (d *denseArrays) Capacity() int {
	ids, _, _ := d.Snapshot()
	return len(ids)
}

// EnsureCapacity grows the backing arrays to at least n slots, preserving
// existing contents. Thread-safe build: allocate, copy, retire old,
// publish new (old size preserved in the new snapshot).
func (d *denseArrays) EnsureCapacity(n int) {
	if d.threadSafe {
		cur := d.snapshot.Load()
		if len(cur.ids) >= n {
			return
		}
		ids := d.idsAlloc.Allocate(n)
		isAlive := d.aliveAlloc.Allocate(n)
		copy(ids, cur.ids)
		copy(isAlive, cur.isAlive)
		d.idsAlloc.Deallocate(cur.ids)
		d.aliveAlloc.Deallocate(cur.isAlive)
		d.snapshot.Store(&denseSnapshot{ids: ids, isAlive: isAlive, size: cur.size})
		return
	}
	if len(d.ids) >= n {
		return
	}
	ids := d.idsAlloc.Allocate(n)
	isAlive := d.aliveAlloc.Allocate(n)
	copy(ids, d.ids)
	copy(isAlive, d.isAlive)
	d.ids = ids
	d.isAlive = isAlive
}

// SetSize publishes a new live size without touching backing capacity.
// Used after append/shift operations have already written the affected
// slots in place.
func (d *denseArrays) SetSize(n int) {
	if d.threadSafe {
		cur := d.snapshot.Load()
		d.snapshot.Store(&denseSnapshot{ids: cur.ids, isAlive: cur.isAlive, size: n})
		return
	}
	d.size = n
}

// WriteSlot writes ids[i] and isAlive[i] in place. Single-mutator
// assumption, same as sparseMap.Set: SectorsArray serializes structural
// mutation and has already drained any pin covering slot i.
func (d *denseArrays) WriteSlot(i int, id uint32, alive uint64) {
	if d.threadSafe {
		s := d.snapshot.Load()
		s.ids[i] = id
		s.isAlive[i] = alive
		return
	}
	d.ids[i] = id
	d.isAlive[i] = alive
}

// IDAt/AliveAt read a single slot from the current snapshot.
func (d *denseArrays) IDAt(i int) uint32 {
	ids, _, _ := d.Snapshot()
	return ids[i]
}

func (d *denseArrays) AliveAt(i int) uint64 {
	_, isAlive, _ := d.Snapshot()
	return isAlive[i]
}

func (d *denseArrays) SetAliveAt(i int, alive uint64) {
	if d.threadSafe {
		d.snapshot.Load().isAlive[i] = alive
		return
	}
	d.isAlive[i] = alive
}

package ecss

import (
	"sync"
	"unsafe"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ComponentValue pairs a component's type id with a pointer to a live
// value of that type, used as Insert/Upsert/Emplace input. Src must
// point to a value whose in-memory layout matches the ComponentMeta
// registered for TypeID under this container's layout; the component is
// move-constructed (copied, then logically abandoned by the caller) into
// the new sector slot.
type ComponentValue struct {
	TypeID TypeID
	Src    unsafe.Pointer
}

// ValueOf builds a ComponentValue for a typed value, for use with
// Insert/Upsert/Emplace without manual unsafe.Pointer juggling.
func ValueOf[T any](id TypeID, v *T) ComponentValue {
	return ComponentValue{TypeID: id, Src: unsafe.Pointer(v)}
}

// SectorsArray is the principal data structure: a dense, sorted arena of
// sectors for one grouped component set, addressed through a sparse
// array keyed by entity id. Composes a ChunksAllocator, denseArrays,
// sparseMap, and PinCounters into a single container.
type SectorsArray struct {
	layout *SectorLayoutMeta
	arena  *ChunksAllocator
	dense  *denseArrays
	sparse *sparseMap
	bin    *RetireBin
	pins   *PinCounters

	threadSafe bool
	mu         sync.Mutex // serializes structural mutation
	closed     atomic.Bool
}

// NewSectorsArray creates a container for the given grouped layout.
func NewSectorsArray(layout *SectorLayoutMeta, opts ...Option) *SectorsArray {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	bin := NewRetireBin()
	sa := &SectorsArray{
		layout:     layout,
		arena:      NewChunksAllocator(layout.SectorSize(), layout.SectorAlign(), cfg.chunkCapacity),
		dense:      newDenseArrays(cfg.threadSafe, bin),
		sparse:     newSparseMap(cfg.threadSafe, bin),
		bin:        bin,
		pins:       NewPinCounters(0),
		threadSafe: cfg.threadSafe,
	}
	if cfg.initialCapacity > 0 {
		sa.Reserve(cfg.initialCapacity)
	}
	return sa
}

// Reserve grows the arena and dense/sparse backing arrays to fit at
// least n sectors. Never shrinks. Existing payload pointers are never
// invalidated: the arena only appends whole chunks, and dense/sparse
// growth retires (rather than frees) its old backing slices, so a
// reader racing a Reserve either sees the old, still-valid snapshot or
// the new one — never a dangling one. In the thread-safe build, a
// Reserve that actually grows anything first blocks new pins and drains
// in-flight ones before swapping in the new backing storage.
func (sa *SectorsArray) Reserve(n int) error {
	if sa.closed.Load() {
		return ErrClosed
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.reserveLocked(n)
}

func (sa *SectorsArray) reserveLocked(n int) error {
	return sa.reserveForLocked(n, n)
}

// reserveForLocked grows the arena/dense arrays to hold nSectors sectors
// (indexed by dense linear position) and the sparse/pin arrays to
// address entity ids up to maxID-1. The two counts are kept distinct so
// inserting a single sparse, large entity id does not force the arena
// to allocate one chunk per intervening id: the sparse array is the
// only structure sized by id, the arena is sized by live count.
func (sa *SectorsArray) reserveForLocked(nSectors, maxID int) (err error) {
	grows := nSectors > sa.arena.Capacity() || maxID > sa.sparse.Len()
	defer func() {
		if r := recover(); r != nil {
			if sa.threadSafe && grows {
				sa.pins.ReleaseExclusive()
			}
			err = pkgerrors.Wrapf(ErrOutOfMemory, "reserve(%d, %d): %v", nSectors, maxID, r)
		}
	}()
	if sa.threadSafe && grows {
		// Block new pins, drain in-flight ones covering the region being
		// reallocated, then swap and publish. Only paid when a
		// reallocation actually happens — most inserts land within
		// already-reserved capacity.
		sa.pins.AcquireExclusive()
		sa.pins.WaitUntilNoPinsAtOrAbove(0)
	}
	sa.arena.Reserve(nSectors)
	sa.dense.EnsureCapacity(nSectors)
	sa.sparse.EnsureCapacity(maxID)
	sa.pins.GrowCapacity(maxID)
	if sa.threadSafe && grows {
		sa.pins.ReleaseExclusive()
	}
	sa.maybeDrain()
	return nil
}

// maybeDrain opportunistically frees retired buffers once no pin exists
// anywhere in the container.
func (sa *SectorsArray) maybeDrain() {
	if !sa.pins.AnyPinned() {
		sa.bin.DrainAll()
	}
}

func (sa *SectorsArray) mask(values []ComponentValue) (uint64, error) {
	var m uint64
	for _, v := range values {
		c, ok := sa.layout.ByTypeID(v.TypeID)
		if !ok {
			return 0, pkgerrors.Wrapf(ErrInvalidTypeForContainer, "type %d", v.TypeID)
		}
		m |= c.Mask
	}
	return m, nil
}

// Insert creates a new sector for id carrying the given components.
// Fails with ErrAlreadyPresent if id already has a live sector (the
// strict variant of "insert"). On success, restores the dense array's
// sort invariant by bubbling the new slot leftward, updating sparse
// mappings for every swapped id.
func (sa *SectorsArray) Insert(id int, values ...ComponentValue) error {
	return sa.insert(id, values, false)
}

// Upsert creates a new sector for id, or — if id already has a live
// sector — move-assigns the given components into it in place, setting
// their alive bits (the silent-update variant of "insert").
func (sa *SectorsArray) Upsert(id int, values ...ComponentValue) error {
	return sa.insert(id, values, true)
}

func (sa *SectorsArray) insert(id int, values []ComponentValue, upsert bool) error {
	if sa.closed.Load() {
		return ErrClosed
	}
	if id < 0 {
		return pkgerrors.Errorf("ecss: negative entity id %d", id)
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if id < sa.sparse.Len() {
		if existing := sa.sparse.Get(id); existing.Present() {
			if !upsert {
				return pkgerrors.Wrapf(ErrAlreadyPresent, "id %d", id)
			}
			return sa.updateInPlaceLocked(id, existing, values)
		}
	}

	newMask, err := sa.mask(values)
	if err != nil {
		return err
	}

	k := sa.dense.Size()
	if err := sa.reserveForLocked(k+1, id+1); err != nil {
		return err
	}

	payload := sa.arena.Payload(k)
	for _, v := range values {
		c, _ := sa.layout.ByTypeID(v.TypeID)
		dst := unsafe.Pointer(uintptr(payload) + c.Offset)
		c.MoveConstruct(dst, v.Src)
	}

	sa.dense.WriteSlot(k, uint32(id), newMask)
	sa.sparse.Set(id, SlotInfo{DataPtr: payload, LinearIndex: k})
	sa.pins.MarkLive(id)
	sa.dense.SetSize(k + 1)

	sa.restoreSortLocked(k)
	return nil
}

func (sa *SectorsArray) updateInPlaceLocked(id int, slot SlotInfo, values []ComponentValue) error {
	k := slot.LinearIndex
	alive := sa.dense.AliveAt(k)
	for _, v := range values {
		c, ok := sa.layout.ByTypeID(v.TypeID)
		if !ok {
			return pkgerrors.Wrapf(ErrInvalidTypeForContainer, "type %d", v.TypeID)
		}
		dst := unsafe.Pointer(uintptr(slot.DataPtr) + c.Offset)
		if alive&c.Mask != 0 {
			c.MoveAssign(dst, v.Src)
		} else {
			c.MoveConstruct(dst, v.Src)
			alive |= c.Mask
		}
	}
	sa.dense.SetAliveAt(k, alive)
	return nil
}

// Emplace inserts a single component into a (possibly new) sector for
// id, creating the sector if absent.
func (sa *SectorsArray) Emplace(id int, typeID TypeID, value unsafe.Pointer) error {
	return sa.Upsert(id, ComponentValue{TypeID: typeID, Src: value})
}

// restoreSortLocked bubbles the sector at linear index k leftward by
// pairwise content swaps until ids is strictly increasing, updating
// sparse mappings for every swapped id. This is the last step of Insert
// and allocates nothing, so it cannot fail once the slot has been
// constructed.
func (sa *SectorsArray) restoreSortLocked(k int) {
	for k > 0 {
		left := k - 1
		if sa.dense.IDAt(left) <= sa.dense.IDAt(k) {
			break
		}
		sa.swapSectorsLocked(left, k)
		k = left
	}
}

// swapSectorsLocked exchanges the *contents* of two sector payloads (the
// arena never relocates a chunk, only the bytes inside two fixed slots
// are exchanged), then fixes up ids/isAlive and the sparse mapping for
// both ids so sparse[id].data_ptr still points at payload(new index). In
// the thread-safe build, first blocks until no id in the inclusive range
// between the two ids is pinned (which covers both of them): a
// PinnedSector/PinnedComponent caller has already cached a payload
// pointer for one of these slots, and that pointer must keep pointing at
// the same entity's bytes until Release.
func (sa *SectorsArray) swapSectorsLocked(i, j int) {
	idI, idJ := sa.dense.IDAt(i), sa.dense.IDAt(j)
	if sa.threadSafe {
		lo, hi := int(idI), int(idJ)
		if lo > hi {
			lo, hi = hi, lo
		}
		sa.pins.WaitUntilNoPinsInRange(lo, hi)
	}
	aliveI, aliveJ := sa.dense.AliveAt(i), sa.dense.AliveAt(j)

	size := int(sa.layout.SectorSize())
	if size > 0 {
		pi := unsafe.Slice((*byte)(sa.arena.Payload(i)), size)
		pj := unsafe.Slice((*byte)(sa.arena.Payload(j)), size)
		for b := 0; b < size; b++ {
			pi[b], pj[b] = pj[b], pi[b]
		}
	}

	sa.dense.WriteSlot(i, idJ, aliveJ)
	sa.dense.WriteSlot(j, idI, aliveI)
	sa.sparse.Set(int(idJ), SlotInfo{DataPtr: sa.arena.Payload(i), LinearIndex: i})
	sa.sparse.Set(int(idI), SlotInfo{DataPtr: sa.arena.Payload(j), LinearIndex: j})
}

// Erase destroys id's sector entirely, shifting the tail left by one to
// preserve the sort invariant (O(n) in the number of sectors after id).
// See EraseUnordered for the O(1) swap-pop alternative.
func (sa *SectorsArray) Erase(id int) error {
	return sa.erase(id, false)
}

// EraseUnordered destroys id's sector via swap-pop against the last
// live slot: O(1), but leaves the dense array unsorted until the next
// Compact() call, so RangedIterator's binary search must not be used in
// between.
func (sa *SectorsArray) EraseUnordered(id int) error {
	return sa.erase(id, true)
}

func (sa *SectorsArray) erase(id int, unordered bool) error {
	if sa.closed.Load() {
		return ErrClosed
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if id < 0 || id >= sa.sparse.Len() {
		return nil // NotFound is not an error
	}
	slot := sa.sparse.Get(id)
	if !slot.Present() {
		return nil
	}
	k := slot.LinearIndex
	size := sa.dense.Size()

	if sa.threadSafe {
		// PinCounters is keyed by entity id, not dense linear index: wait
		// on id itself before destroying its components in place. Any
		// other pinned id in the shifted range is guarded individually by
		// swapSectorsLocked below.
		sa.pins.WaitUntilNoPinsInRange(id, id)
	}

	sa.destroyAliveLocked(slot.DataPtr, sa.dense.AliveAt(k))
	sa.pins.MarkRetired(id)

	if unordered {
		last := size - 1
		if k != last {
			sa.swapSectorsLocked(k, last)
		}
		sa.dense.SetSize(last)
	} else {
		for i := k; i < size-1; i++ {
			sa.swapSectorsLocked(i, i+1)
		}
		sa.dense.SetSize(size - 1)
	}
	// Cleared only after the swaps, which re-point sparse for both ids
	// they exchange, including the erased one.
	sa.sparse.Clear(id)
	sa.maybeDrain()
	return nil
}

func (sa *SectorsArray) destroyAliveLocked(payload unsafe.Pointer, alive uint64) {
	for _, c := range sa.layout.Components() {
		if alive&c.Mask == 0 {
			continue
		}
		dst := unsafe.Pointer(uintptr(payload) + c.Offset)
		c.Destroy(dst)
	}
}

// DestroyComponent destroys one component of a live sector, clearing
// its alive bit. If the sector's mask reaches zero, the sector is fully
// erased.
func (sa *SectorsArray) DestroyComponent(id int, typeID TypeID) error {
	if sa.closed.Load() {
		return ErrClosed
	}
	sa.mu.Lock()

	if id < 0 || id >= sa.sparse.Len() {
		sa.mu.Unlock()
		return nil
	}
	slot := sa.sparse.Get(id)
	if !slot.Present() {
		sa.mu.Unlock()
		return nil
	}
	c, ok := sa.layout.ByTypeID(typeID)
	if !ok {
		sa.mu.Unlock()
		return pkgerrors.Wrapf(ErrInvalidTypeForContainer, "type %d", typeID)
	}
	k := slot.LinearIndex
	alive := sa.dense.AliveAt(k)
	if alive&c.Mask == 0 {
		sa.mu.Unlock()
		return nil
	}
	if sa.threadSafe {
		// PinCounters is keyed by entity id, not dense linear index k.
		sa.pins.WaitUntilNoPinsInRange(id, id)
	}
	dst := unsafe.Pointer(uintptr(slot.DataPtr) + c.Offset)
	c.Destroy(dst)
	alive &^= c.Mask
	sa.dense.SetAliveAt(k, alive)
	sa.mu.Unlock()

	if alive == 0 {
		return sa.Erase(id)
	}
	return nil
}

// Get returns a pointer to id's component typeID, and true, iff id has
// a live sector with that component currently alive. O(1).
func (sa *SectorsArray) Get(id int, typeID TypeID) (unsafe.Pointer, bool) {
	if id < 0 || id >= sa.sparse.Len() {
		return nil, false
	}
	slot := sa.sparse.Get(id)
	if !slot.Present() {
		return nil, false
	}
	c, ok := sa.layout.ByTypeID(typeID)
	if !ok {
		return nil, false
	}
	if sa.dense.AliveAt(slot.LinearIndex)&c.Mask == 0 {
		return nil, false
	}
	return unsafe.Pointer(uintptr(slot.DataPtr) + c.Offset), true
}

// GetTyped is a generic convenience wrapper over Get.
func GetTyped[T any](sa *SectorsArray, id int, typeID TypeID) (*T, bool) {
	p, ok := sa.Get(id, typeID)
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}

// Contains reports whether id has a live sector with typeID currently
// alive.
func (sa *SectorsArray) Contains(id int, typeID TypeID) bool {
	_, ok := sa.Get(id, typeID)
	return ok
}

// PinSector acquires a pin on id's sector, returning an empty
// (Valid()==false) handle if id is absent — pin acquisition of an
// absent id never fails as an error.
func (sa *SectorsArray) PinSector(id int) PinnedSector {
	if id < 0 || id >= sa.sparse.Len() {
		return PinnedSector{}
	}
	slot := sa.sparse.Get(id)
	if !slot.Present() {
		return PinnedSector{}
	}
	if sa.threadSafe && !sa.pins.Pin(id) {
		return PinnedSector{}
	}
	// re-read after pin to avoid racing a concurrent erase that slipped
	// in before the pin registered
	slot = sa.sparse.Get(id)
	if !slot.Present() {
		if sa.threadSafe {
			sa.pins.Unpin(id)
		}
		return PinnedSector{}
	}
	owner := sa.pins
	if !sa.threadSafe {
		// no concurrent mutator to guard against; Release must be a
		// no-op rather than unbalance the (unused) pin counters
		owner = nil
	}
	return PinnedSector{
		owner:   owner,
		id:      id,
		payload: slot.DataPtr,
		mask:    sa.dense.AliveAt(slot.LinearIndex),
		valid:   true,
	}
}

// PinComponent acquires a pin on id's sector and returns a typed
// accessor for component typeID, nullable if not alive.
func PinComponent[T any](sa *SectorsArray, id int, typeID TypeID) PinnedComponent[T] {
	sector := sa.PinSector(id)
	if !sector.Valid() {
		return PinnedComponent[T]{}
	}
	c, ok := sa.layout.ByTypeID(typeID)
	if !ok {
		sector.Release()
		return PinnedComponent[T]{}
	}
	return PinnedComponent[T]{sector: sector, offset: c.Offset, mask: c.Mask}
}

// Compact removes any lingering dead sectors (isAlive == 0) from the
// dense array, restoring full packing. Not normally needed because
// Erase already keeps the dense array packed; provided to clean up
// after a run of EraseUnordered calls.
func (sa *SectorsArray) Compact() error {
	if sa.closed.Load() {
		return ErrClosed
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()

	size := sa.dense.Size()
	write := 0
	for read := 0; read < size; read++ {
		if sa.dense.AliveAt(read) == 0 {
			continue
		}
		if write != read {
			id := sa.dense.IDAt(read)
			alive := sa.dense.AliveAt(read)
			sizeBytes := int(sa.layout.SectorSize())
			if sizeBytes > 0 {
				src := unsafe.Slice((*byte)(sa.arena.Payload(read)), sizeBytes)
				dst := unsafe.Slice((*byte)(sa.arena.Payload(write)), sizeBytes)
				copy(dst, src)
			}
			sa.dense.WriteSlot(write, id, alive)
			sa.sparse.Set(int(id), SlotInfo{DataPtr: sa.arena.Payload(write), LinearIndex: write})
		}
		write++
	}
	sa.dense.SetSize(write)
	sa.sortDenseLocked()
	return nil
}

// sortDenseLocked restores strict id ordering via an insertion sort over
// the dense array, exchanging adjacent sectors with swapSectorsLocked —
// Compact only needs this
// after EraseUnordered calls have left the tail out of order.
func (sa *SectorsArray) sortDenseLocked() {
	size := sa.dense.Size()
	for k := 1; k < size; k++ {
		for j := k; j > 0 && sa.dense.IDAt(j-1) > sa.dense.IDAt(j); j-- {
			sa.swapSectorsLocked(j-1, j)
		}
	}
}

// Clear destroys every alive component in every live sector; the arena
// itself stays allocated for reuse.
func (sa *SectorsArray) Clear() error {
	if sa.closed.Load() {
		return ErrClosed
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if sa.threadSafe {
		sa.pins.WaitUntilNoPinsAtOrAbove(0)
	}
	size := sa.dense.Size()
	for i := 0; i < size; i++ {
		id := sa.dense.IDAt(i)
		sa.destroyAliveLocked(sa.arena.Payload(i), sa.dense.AliveAt(i))
		sa.sparse.Clear(int(id))
		sa.pins.MarkRetired(int(id))
	}
	sa.dense.SetSize(0)
	sa.maybeDrain()
	return nil
}

// Close destroys every alive component (as Clear does) and releases the
// retire bin. Every mutating operation (Reserve, Insert, Upsert, Emplace,
// Erase, EraseUnordered, DestroyComponent, Compact, Clear) on sa after
// Close returns ErrClosed.
func (sa *SectorsArray) Close() error {
	if sa.closed.Swap(true) {
		return nil
	}
	sa.mu.Lock()
	size := sa.dense.Size()
	for i := 0; i < size; i++ {
		sa.destroyAliveLocked(sa.arena.Payload(i), sa.dense.AliveAt(i))
	}
	sa.dense.SetSize(0)
	sa.mu.Unlock()
	sa.bin.Close()
	return nil
}

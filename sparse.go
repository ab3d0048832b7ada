package ecss

import (
	"unsafe"

	"go.uber.org/atomic"
)

// sentinelLinearIndex marks a SlotInfo as "not present".
const sentinelLinearIndex = -1

// SlotInfo is the sparse array's per-entity-id record: a direct pointer
// into the arena payload for that entity's sector, plus the dense
// (linear) index currently holding it. A SlotInfo with LinearIndex ==
// sentinelLinearIndex denotes an absent entity.
type SlotInfo struct {
	DataPtr     unsafe.Pointer
	LinearIndex int
}

// Present reports whether this SlotInfo refers to a live sector.
func (s SlotInfo) Present() bool { return s.LinearIndex != sentinelLinearIndex }

// sparseSnapshot is what the thread-safe build publishes atomically for
// lock-free readers: a stable slice whose length is the sparse size at
// publication time.
type sparseSnapshot struct {
	slots []SlotInfo
}

// sparseMap is the sparse array indexed directly by entity id. In the
// non-thread-safe build it is mutated in place; in the thread-safe build
// growth builds a new backing slice and retires the old one, publishing
// the new slice through an atomic pointer, while Set/Clear still write
// single entries of the published slice in place.
type sparseMap struct {
	threadSafe bool
	bin        *RetireBin
	slotAlloc  *RetireAllocator[SlotInfo]

	// non-thread-safe path
	slots []SlotInfo

	// thread-safe path
	snapshot atomic.Pointer[sparseSnapshot]
}

func newSparseMap(threadSafe bool, bin *RetireBin) *sparseMap {
	m := &sparseMap{
		threadSafe: threadSafe,
		bin:        bin,
		slotAlloc:  NewRetireAllocator[SlotInfo](bin),
	}
	if threadSafe {
		m.snapshot.Store(&sparseSnapshot{})
	}
	return m
}

// allocSlots returns n freshly allocated SlotInfo entries, each
// initialized to the sentinel "absent" value, through the sparse map's
// bound RetireAllocator.
func (m *sparseMap) allocSlots(n int) []SlotInfo {
	s := m.slotAlloc.Allocate(n)
	for i := range s {
		s[i].LinearIndex = sentinelLinearIndex
	}
	return s
}

// view returns the slots slice currently in effect for reading. In the
// thread-safe build this is a lock-free atomic load.
func (m *sparseMap) view() []SlotInfo {
	if m.threadSafe {
		return m.snapshot.Load().slots
	}
	return m.slots
}

// Len returns the sparse array's current length (max addressable id + 1).
func (m *sparseMap) Len() int { return len(m.view()) }

// Get returns the SlotInfo for id, or an absent SlotInfo if id is
// outside the current range.
func (m *sparseMap) Get(id int) SlotInfo {
	v := m.view()
	if id < 0 || id >= len(v) {
		return SlotInfo{LinearIndex: sentinelLinearIndex}
	}
	return v[id]
}

// EnsureCapacity grows the sparse array to cover ids up to n-1. In the
// thread-safe build this allocates a fresh backing slice, copies
// existing entries, retires the old slice, and publishes the new one —
// callers are responsible for the pin-drain/exclusive protocol around
// this call (SectorsArray.Reserve).
func (m *sparseMap) EnsureCapacity(n int) {
	if m.threadSafe {
		cur := m.snapshot.Load()
		if len(cur.slots) >= n {
			return
		}
		next := m.allocSlots(n)
		copy(next, cur.slots)
		m.slotAlloc.Deallocate(cur.slots)
		m.snapshot.Store(&sparseSnapshot{slots: next})
		return
	}
	if len(m.slots) >= n {
		return
	}
	next := m.allocSlots(n)
	copy(next, m.slots)
	m.slots = next
}

// Set writes a SlotInfo for id in place. Callers must have already
// called EnsureCapacity for id, and in the thread-safe build must hold
// whatever exclusion this particular mutation requires (insert/erase
// hold the container's pin-drain guarantees for affected ids only, so
// Set itself does not allocate).
func (m *sparseMap) Set(id int, info SlotInfo) {
	// Single-mutator assumption: SectorsArray serializes all structural
	// mutation, and this id's pins (if any) have already been drained
	// by the caller, so an in-place element write races with nothing
	// but unrelated-index reads.
	if m.threadSafe {
		m.snapshot.Load().slots[id] = info
		return
	}
	m.slots[id] = info
}

// Clear resets id back to the sentinel "absent" value.
func (m *sparseMap) Clear(id int) {
	m.Set(id, SlotInfo{LinearIndex: sentinelLinearIndex})
}

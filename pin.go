package ecss

import (
	"sync"

	"go.uber.org/atomic"
)

// PinCounters tracks, per sector id, a reference count of in-flight
// readers ("pins"), backed by a hierarchical PinnedIndexesBitMask for
// fast aggregate queries, plus a shared/exclusive gate structural
// mutators use to block new pins while they drain and reclaim affected
// slots. Generalizes a single mutex-guarded critical section into a
// condvar-gated per-id counter set.
type PinCounters struct {
	mu       sync.RWMutex
	cond     *sync.Cond
	counters []*atomic.Int32
	mask     *PinnedIndexesBitMask
	retired  map[int]bool // ids no longer acquirable (slot destroyed under exclusive)
	exclusive bool
}

// NewPinCounters creates an empty counter set sized for capacity ids.
func NewPinCounters(capacity int) *PinCounters {
	p := &PinCounters{
		mask:    NewPinnedIndexesBitMask(capacity),
		retired: make(map[int]bool),
	}
	p.cond = sync.NewCond(p.mu.RLocker())
	p.grow(capacity)
	return p
}

func (p *PinCounters) grow(capacity int) {
	for len(p.counters) < capacity {
		p.counters = append(p.counters, atomic.NewInt32(0))
	}
}

// Pin attempts to acquire a pin on id, returning false only if the slot
// has been marked retired under an exclusive section. Blocks briefly if
// an exclusive mutator currently holds the gate.
func (p *PinCounters) Pin(id int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for p.exclusive {
		p.cond.Wait()
	}
	if p.retired[id] {
		return false
	}
	p.ensureLocked(id)
	if p.counters[id].Add(1) == 1 {
		p.mask.Set(id)
	}
	return true
}

// ensureLocked grows the counters slice to cover id; callers hold at
// least the read lock, so growth itself is guarded by a short exclusive
// upgrade via a dedicated mutex-free append under the bitmask's own
// safety (counters only ever grow, never shrink, and PinCounters.grow
// is the sole writer reachable while exclusive is false and this id is
// new to the caller — SectorsArray.reserve calls GrowCapacity first).
func (p *PinCounters) ensureLocked(id int) {
	if id < len(p.counters) {
		return
	}
	// Rare path: caller pinned an id beyond what GrowCapacity already
	// covered. Upgrade is safe because PinCounters.counters is only
	// appended to, never reassigned element-wise.
	for id >= len(p.counters) {
		p.counters = append(p.counters, atomic.NewInt32(0))
	}
}

// GrowCapacity grows the counters/bitmask ahead of use, called by
// SectorsArray.Reserve before any pin on the new ids can race it.
func (p *PinCounters) GrowCapacity(capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grow(capacity)
	p.mask.growTo(capacity)
}

// Unpin releases a pin on id; on the last release it clears id's
// bitmask bit and wakes any mutator waiting for pins to drain.
func (p *PinCounters) Unpin(id int) {
	p.mu.RLock()
	if id < len(p.counters) && p.counters[id].Add(-1) == 0 {
		p.mask.Clear(id)
	}
	p.mu.RUnlock()
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Count returns the current pin count for id.
func (p *PinCounters) Count(id int) int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id >= len(p.counters) {
		return 0
	}
	return p.counters[id].Load()
}

// AcquireExclusive blocks new Pin calls until ReleaseExclusive. Does
// not itself wait for in-flight pins to drain — call
// WaitUntilNoPinsInRange/WaitUntilNoPinsAtOrAbove for that.
func (p *PinCounters) AcquireExclusive() {
	p.mu.Lock()
	p.exclusive = true
	p.mu.Unlock()
}

// ReleaseExclusive reopens the gate for new pins.
func (p *PinCounters) ReleaseExclusive() {
	p.mu.Lock()
	p.exclusive = false
	p.mu.Unlock()
	p.mu.RLock()
	p.cond.Broadcast()
	p.mu.RUnlock()
}

// WaitUntilNoPinsInRange blocks until no id in [lo, hi] is pinned.
// Intended to be called by a mutator that already holds the exclusive
// gate, so no new pin can start while it waits.
func (p *PinCounters) WaitUntilNoPinsInRange(lo, hi int) {
	p.mu.RLock()
	for p.mask.AnyInRange(lo, hi) {
		p.cond.Wait()
	}
	p.mu.RUnlock()
}

// WaitUntilNoPinsAtOrAbove blocks until no id >= id0 is pinned.
func (p *PinCounters) WaitUntilNoPinsAtOrAbove(id0 int) {
	p.mu.RLock()
	for p.mask.LowestSetGe(id0) != -1 {
		p.cond.Wait()
	}
	p.mu.RUnlock()
}

// AnyPinned reports whether any id at all currently has a pin.
func (p *PinCounters) AnyPinned() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mask.AnyPinned()
}

// MaxPinnedID returns the highest currently-pinned id, or -1 if none.
func (p *PinCounters) MaxPinnedID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mask.HighestSetLe(p.mask.Capacity() - 1)
}

// MarkRetired prevents further Pin calls on id until MarkLive is called.
// Used while an exclusive mutator is tearing down a slot it has already
// drained pins for, closing the race between a fresh Pin and a
// concurrent erase of the same id.
func (p *PinCounters) MarkRetired(id int) {
	p.mu.Lock()
	p.retired[id] = true
	p.mu.Unlock()
}

// MarkLive clears a previous MarkRetired, e.g. when a new sector is
// inserted at a previously-erased id.
func (p *PinCounters) MarkLive(id int) {
	p.mu.Lock()
	delete(p.retired, id)
	p.mu.Unlock()
}

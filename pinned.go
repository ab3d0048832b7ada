package ecss

import "unsafe"

// PinnedSector is an RAII handle on a live sector, acquired from a
// SectorsArray. In the thread-safe build, while held, the sector's
// Payload pointer is guaranteed valid: the container will not move or
// destroy that slot until Release is called. The non-thread-safe build
// takes no pin, so the handle gives no such guarantee there. Move-only in spirit (Go has no move semantics, but copying
// a PinnedSector and releasing both copies would double-unpin, so
// callers should treat it as non-copyable and always release exactly
// once). The zero value is an empty handle whose Release is a no-op,
// covering the "pin of an absent id" case.
type PinnedSector struct {
	owner   *PinCounters
	id      int
	payload unsafe.Pointer
	mask    uint64
	valid   bool
}

// Valid reports whether this handle refers to a live sector.
func (h PinnedSector) Valid() bool { return h.valid }

// ID returns the pinned entity id. Zero value on an invalid handle.
func (h PinnedSector) ID() int { return h.id }

// Payload returns the pinned sector's payload pointer. nil on an
// invalid handle.
func (h PinnedSector) Payload() unsafe.Pointer { return h.payload }

// AliveMask returns the sector's isAlive bitmask as observed at pin
// time; it is not updated afterwards. In the thread-safe build
// DestroyComponent and Erase on this id wait for the pin to be released,
// but Upsert/Emplace can still add components; re-check via
// SectorsArray.Contains if that matters.
func (h PinnedSector) AliveMask() uint64 { return h.mask }

// Release drops the pin. Safe to call on a zero-value/invalid handle,
// and safe to call more than once (idempotent).
func (h *PinnedSector) Release() {
	if !h.valid || h.owner == nil {
		return
	}
	h.owner.Unpin(h.id)
	h.valid = false
	h.owner = nil
}

// PinnedComponent wraps a PinnedSector plus one component's mask/offset,
// exposing a typed pointer that is nil if the component was not alive in
// the alive mask recorded when the sector was pinned. The mask is not
// re-read on later calls.
type PinnedComponent[T any] struct {
	sector PinnedSector
	offset uintptr
	mask   uint64
}

// Valid reports whether the underlying sector pin is held.
func (h PinnedComponent[T]) Valid() bool { return h.sector.Valid() }

// Get returns a pointer to the component, or nil if its bit is clear in
// the alive mask recorded at pin time. A component added to or destroyed
// in the sector after the pin is not reflected.
func (h PinnedComponent[T]) Get() *T {
	if !h.sector.valid || h.sector.mask&h.mask == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(uintptr(h.sector.payload) + h.offset))
}

// Release drops the underlying sector pin.
func (h *PinnedComponent[T]) Release() {
	h.sector.Release()
}

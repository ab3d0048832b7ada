package ecss

import "github.com/pkg/errors"

// Sentinel error kinds. Use errors.Is against these, or errors.Cause to
// unwrap a call-site-specific wrap (e.g. which id or type id failed).
var (
	// ErrOutOfMemory is returned when growing the arena or dense/sparse
	// backing storage fails. The container is left unchanged.
	ErrOutOfMemory = errors.New("ecss: out of memory")

	// ErrAlreadyPresent is returned by a strict Insert into an id that
	// already has a live sector. Callers wanting silent update should
	// call Upsert instead.
	ErrAlreadyPresent = errors.New("ecss: sector already present")

	// ErrInvalidTypeForContainer is returned when a component type id is
	// not part of the container's layout. This indicates a programming
	// error and is not expected to be handled dynamically.
	ErrInvalidTypeForContainer = errors.New("ecss: type not part of container layout")

	// ErrClosed is returned by every mutating operation on a SectorsArray
	// (Reserve, Insert, Upsert, Emplace, Erase, EraseUnordered,
	// DestroyComponent, Compact, Clear) after Close has been called.
	ErrClosed = errors.New("ecss: sectors array closed")
)

// NotFound is not an error value — lookups of an absent id return a
// zero SlotInfo / nil pointer / empty PinnedSector instead.

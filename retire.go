package ecss

import (
	"sync"

	"go.uber.org/atomic"
)

// RetireBin accumulates raw backing-storage pointers handed to it by a
// reallocating dense/sparse array so a reader holding a stale snapshot
// cannot observe freed memory. It provides no epoch numbers and no ABA
// protection: correctness relies entirely on the pin protocol ensuring
// any reader that might still hold a retired pointer has drained before
// DrainAll runs. Generalizes a one-shot "release everything" allocator
// into "defer reclamation until provably safe".
type RetireBin struct {
	mu      sync.Mutex
	pending []any
	closed  atomic.Bool
}

// NewRetireBin creates an empty bin.
func NewRetireBin() *RetireBin {
	return &RetireBin{}
}

// Retire hands ownership of a backing allocation to the bin. obj should
// be the slice or pointer that must be kept reachable (and therefore not
// garbage-collected) until DrainAll runs; Go's GC — not calloc/free —
// does the actual reclamation once the bin drops its reference.
func (b *RetireBin) Retire(obj any) {
	if obj == nil || b.closed.Load() {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, obj)
	b.mu.Unlock()
}

// DrainAll moves the pending list out under the lock and drops every
// reference, making the backing allocations collectible. Callers must
// only invoke this once no pin can possibly reference the retired
// buffers (PinCounters.AnyPinned() == false globally).
func (b *RetireBin) DrainAll() int {
	b.mu.Lock()
	n := len(b.pending)
	b.pending = nil
	b.mu.Unlock()
	return n
}

// Pending reports how many retired allocations are awaiting a drain.
func (b *RetireBin) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close drains the bin and marks it unusable for further Retire calls.
// Safe to call more than once.
func (b *RetireBin) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.DrainAll()
}

// RetireAllocator satisfies a minimal allocator contract for type T:
// Allocate returns zeroed backing storage, Deallocate routes the
// storage into a bound RetireBin instead of freeing it immediately. The
// bin's lifetime must outlive every allocator bound to it.
type RetireAllocator[T any] struct {
	bin *RetireBin
}

// NewRetireAllocator binds an allocator to bin. bin must not be nil.
func NewRetireAllocator[T any](bin *RetireBin) *RetireAllocator[T] {
	return &RetireAllocator[T]{bin: bin}
}

// Allocate returns a zero-valued slice of n T's.
func (a *RetireAllocator[T]) Allocate(n int) []T {
	if n <= 0 {
		return nil
	}
	return make([]T, n)
}

// Deallocate retires s's backing array into the bound bin rather than
// freeing it, so stale readers racing a reallocation keep a valid (if
// stale) view until the pin protocol proves it's safe to drop.
func (a *RetireAllocator[T]) Deallocate(s []T) {
	if s == nil {
		return
	}
	a.bin.Retire(s)
}

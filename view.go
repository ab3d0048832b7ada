package ecss

import "unsafe"

// ArraysView drives iteration over one "main" container while giving
// callers O(1) lookup access into a set of "other" containers keyed by
// the same entity id, without requiring all of them to share a single
// grouped layout.
//
// Lookups into the other containers are not part of main's snapshot:
// only ordering within main's own iteration is guaranteed, so a
// concurrent mutation of an "other" container may or may not be visible
// to a given Each callback. Callers needing a stronger guarantee should
// pin the specific id in the other container themselves.
type ArraysView struct {
	main         *SectorsArray
	others       []*SectorsArray
	requiredMask uint64
}

// NewView creates a view driven by main, visiting only sectors whose
// alive mask satisfies requiredMask (use main.Layout().FullMask() to
// require every grouped component, or 0 to visit every live sector
// regardless of which components are currently alive).
func NewView(main *SectorsArray, requiredMask uint64, others ...*SectorsArray) *ArraysView {
	return &ArraysView{main: main, others: others, requiredMask: requiredMask}
}

// Each calls fn once per matching sector in main, in dense order, over a
// single consistent snapshot of main.
func (v *ArraysView) Each(fn func(id int, mainPayload unsafe.Pointer)) {
	it := NewIteratorAlive(v.main, v.requiredMask)
	for !it.Done() {
		fn(it.ID(), it.Payload())
		it.Next()
	}
}

// EachRanged restricts traversal to entity ids in [lo, hi], same
// ordering and snapshot semantics as Each.
func (v *ArraysView) EachRanged(lo, hi int, fn func(id int, mainPayload unsafe.Pointer)) {
	v.EachRangedSpans([]EntityRange{{Lo: lo, Hi: hi}}, fn)
}

// EachRangedSpans restricts traversal to every entity-id range in ranges,
// walked as a single ordered pass over one snapshot of main — unlike
// calling EachRanged once per span, a concurrent mutation cannot make two
// spans observe different snapshots.
func (v *ArraysView) EachRangedSpans(ranges []EntityRange, fn func(id int, mainPayload unsafe.Pointer)) {
	r := NewRangedIteratorSpans(v.main, ranges)
	for !r.Done() {
		mask := v.main.dense.AliveAt(indexOfRanged(r))
		if mask&v.requiredMask == v.requiredMask {
			fn(r.ID(), r.Payload())
		}
		r.Next()
	}
}

func indexOfRanged(r *RangedIterator) int { return r.cur.Index() }

// Other returns a pointer to component typeID for id in the idx-th
// "other" container passed to NewView, and whether it is currently
// alive there.
func (v *ArraysView) Other(idx int, id int, typeID TypeID) (unsafe.Pointer, bool) {
	return v.others[idx].Get(id, typeID)
}

// OtherTyped is a generic convenience wrapper over ArraysView.Other.
func OtherTyped[T any](v *ArraysView, idx int, id int, typeID TypeID) (*T, bool) {
	p, ok := v.Other(idx, id, typeID)
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}

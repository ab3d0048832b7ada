package ecss

import (
	"sort"
	"unsafe"
)

// TypeID identifies a registered component type. The caller (an external
// type-id minter, out of scope for this package) must hand out the same
// id for the same logical Go type across every call into this package.
type TypeID int

// ComponentMeta describes one component type within a grouped sector:
// its stable type id, size, alignment, and lifecycle dispatch table.
// Offset and Mask are filled in by NewSectorLayout; callers only supply
// TypeID, Size, Align, and the four lifecycle functions.
//
// All four lifecycle functions receive raw pointers into sector payload
// memory and must not retain them past the call.
type ComponentMeta struct {
	TypeID TypeID
	Size   uintptr
	Align  uintptr

	// Offset is this component's byte offset within a sector payload,
	// computed by NewSectorLayout.
	Offset uintptr
	// Mask is this component's single bit within a sector's isAlive
	// word, assigned by NewSectorLayout in packed order (bit i for the
	// i-th entry after sorting by alignment), not declaration order.
	Mask uint64

	// Construct default-constructs a component at dst.
	Construct func(dst unsafe.Pointer)
	// MoveConstruct move-constructs a component at dst from src, leaving
	// src logically empty (the caller is responsible for not destroying
	// src's bit twice).
	MoveConstruct func(dst, src unsafe.Pointer)
	// MoveAssign move-assigns an already-alive dst from src.
	MoveAssign func(dst, src unsafe.Pointer)
	// Destroy destroys the component at dst.
	Destroy func(dst unsafe.Pointer)
}

// ComponentMetaFor builds a ComponentMeta for a Go type T using generic
// unsafe-pointer casts for zero-reflection typed access. The caller supplies the
// stable TypeID; size/alignment and the lifecycle table are derived
// from T.
func ComponentMetaFor[T any](id TypeID) ComponentMeta {
	var zero T
	return ComponentMeta{
		TypeID: id,
		Size:   unsafe.Sizeof(zero),
		Align:  unsafe.Alignof(zero),
		Construct: func(dst unsafe.Pointer) {
			*(*T)(dst) = zero
		},
		MoveConstruct: func(dst, src unsafe.Pointer) {
			*(*T)(dst) = *(*T)(src)
		},
		MoveAssign: func(dst, src unsafe.Pointer) {
			*(*T)(dst) = *(*T)(src)
		},
		Destroy: func(dst unsafe.Pointer) {
			*(*T)(dst) = zero
		},
	}
}

// SectorLayoutMeta is an immutable, flat description of one grouped
// component set's memory shape: per-component offsets inside a sector
// payload, the sector's total stride/alignment, and a bit→offset cache.
// Layouts are created once per distinct grouped type set and freely
// shared by value or reference among containers using the same
// grouping.
type SectorLayoutMeta struct {
	components []ComponentMeta
	byType     map[TypeID]int
	stride     uintptr
	align      uintptr
	// offsetByBit caches Offset for a single-set bit position, avoiding
	// a linear scan of components during iteration.
	offsetByBit [64]uintptr
}

// NewSectorLayout sorts components by strictest alignment first, packs
// them at their natural offsets, and computes sector stride rounded up
// to the widest alignment among them.
func NewSectorLayout(components ...ComponentMeta) *SectorLayoutMeta {
	if len(components) > 64 {
		panic("ecss: a sector supports at most 64 grouped components")
	}
	ordered := make([]ComponentMeta, len(components))
	copy(ordered, components)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Align > ordered[j].Align
	})

	var offset uintptr
	var maxAlign uintptr = 1
	for i := range ordered {
		a := ordered[i].Align
		if a == 0 {
			a = 1
		}
		offset = alignUp(offset, a)
		ordered[i].Offset = offset
		ordered[i].Mask = uint64(1) << uint(i)
		offset += ordered[i].Size
		if a > maxAlign {
			maxAlign = a
		}
	}
	stride := alignUp(offset, maxAlign)

	byType := make(map[TypeID]int, len(ordered))
	var l SectorLayoutMeta
	for i, c := range ordered {
		byType[c.TypeID] = i
	}
	l.components = ordered
	l.byType = byType
	l.stride = stride
	l.align = maxAlign
	for i, c := range ordered {
		l.offsetByBit[i] = c.Offset
	}
	return &l
}

// ByTypeID returns the ComponentMeta for a type id in O(1), and false if
// that type is not part of this layout.
func (l *SectorLayoutMeta) ByTypeID(id TypeID) (ComponentMeta, bool) {
	i, ok := l.byType[id]
	if !ok {
		return ComponentMeta{}, false
	}
	return l.components[i], true
}

// OffsetForBit returns the byte offset of the component occupying the
// given single set bit in a sector's isAlive word.
func (l *SectorLayoutMeta) OffsetForBit(bit int) uintptr {
	return l.offsetByBit[bit]
}

// Components iterates every ComponentMeta in stored (packed) order.
func (l *SectorLayoutMeta) Components() []ComponentMeta {
	return l.components
}

// SectorSize returns the total stride of one sector payload, in bytes.
func (l *SectorLayoutMeta) SectorSize() uintptr { return l.stride }

// SectorAlign returns the required alignment of a sector payload.
func (l *SectorLayoutMeta) SectorAlign() uintptr { return l.align }

// FullMask returns the isAlive bit pattern with every grouped
// component's bit set.
func (l *SectorLayoutMeta) FullMask() uint64 {
	if len(l.components) == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(len(l.components))) - 1
}

func alignUp(off, align uintptr) uintptr {
	if align == 0 {
		return off
	}
	mask := align - 1
	return (off + mask) &^ mask
}

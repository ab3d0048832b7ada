package ecss

import (
	"testing"
	"unsafe"
)

type testPosition struct {
	X, Y float64
}

type testVelocity struct {
	X, Y float64
}

type testHealth struct {
	HP int32
}

const (
	typePosition TypeID = iota
	typeVelocity
	typeHealth
)

func positionVelocityLayout() *SectorLayoutMeta {
	return NewSectorLayout(
		ComponentMetaFor[testPosition](typePosition),
		ComponentMetaFor[testVelocity](typeVelocity),
	)
}

func TestNewSectorLayoutPacksByAlignment(t *testing.T) {
	type oneByte struct{ V byte }
	type eightByte struct{ V float64 }

	l := NewSectorLayout(
		ComponentMetaFor[oneByte](0),
		ComponentMetaFor[eightByte](1),
	)

	// eightByte has the strictest alignment, so it must be packed first
	// regardless of declaration order.
	eight, ok := l.ByTypeID(1)
	if !ok {
		t.Fatalf("type 1 missing from layout")
	}
	if eight.Offset != 0 {
		t.Errorf("eightByte offset = %d, want 0", eight.Offset)
	}

	one, ok := l.ByTypeID(0)
	if !ok {
		t.Fatalf("type 0 missing from layout")
	}
	if one.Offset != unsafe.Sizeof(float64(0)) {
		t.Errorf("oneByte offset = %d, want %d", one.Offset, unsafe.Sizeof(float64(0)))
	}

	if l.SectorAlign() != unsafe.Alignof(float64(0)) {
		t.Errorf("SectorAlign() = %d, want %d", l.SectorAlign(), unsafe.Alignof(float64(0)))
	}
}

func TestNewSectorLayoutMaskAndFullMask(t *testing.T) {
	l := positionVelocityLayout()
	pos, _ := l.ByTypeID(typePosition)
	vel, _ := l.ByTypeID(typeVelocity)

	if pos.Mask == vel.Mask {
		t.Fatalf("two components share a mask bit: %d", pos.Mask)
	}
	if l.FullMask() != pos.Mask|vel.Mask {
		t.Errorf("FullMask() = %d, want %d", l.FullMask(), pos.Mask|vel.Mask)
	}
}

func TestNewSectorLayoutByTypeIDMissing(t *testing.T) {
	l := positionVelocityLayout()
	if _, ok := l.ByTypeID(typeHealth); ok {
		t.Errorf("ByTypeID(typeHealth) ok = true, want false")
	}
}

func TestNewSectorLayoutPanicsOverSixtyFourComponents(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for >64 components")
		}
	}()
	metas := make([]ComponentMeta, 65)
	for i := range metas {
		metas[i] = ComponentMetaFor[byte](TypeID(i))
	}
	NewSectorLayout(metas...)
}

func TestComponentMetaForMoveConstructCopiesValue(t *testing.T) {
	c := ComponentMetaFor[testPosition](typePosition)
	src := testPosition{X: 1, Y: 2}
	var dst testPosition
	c.MoveConstruct(unsafe.Pointer(&dst), unsafe.Pointer(&src))
	if dst != src {
		t.Errorf("MoveConstruct result = %+v, want %+v", dst, src)
	}
}

func TestComponentMetaForDestroyZeroesValue(t *testing.T) {
	c := ComponentMetaFor[testPosition](typePosition)
	v := testPosition{X: 1, Y: 2}
	c.Destroy(unsafe.Pointer(&v))
	if v != (testPosition{}) {
		t.Errorf("Destroy left %+v, want zero value", v)
	}
}

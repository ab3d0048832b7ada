package ecss

import "testing"

func TestPinnedIndexesBitMaskSetClearIsSet(t *testing.T) {
	b := NewPinnedIndexesBitMask(128)
	if b.IsSet(42) {
		t.Fatalf("IsSet(42) = true before Set")
	}
	b.Set(42)
	if !b.IsSet(42) {
		t.Errorf("IsSet(42) = false after Set")
	}
	b.Clear(42)
	if b.IsSet(42) {
		t.Errorf("IsSet(42) = true after Clear")
	}
}

func TestPinnedIndexesBitMaskGrowsOnSet(t *testing.T) {
	b := NewPinnedIndexesBitMask(0)
	b.Set(1000)
	if !b.IsSet(1000) {
		t.Errorf("IsSet(1000) = false after growing Set")
	}
	if b.Capacity() <= 1000 {
		t.Errorf("Capacity() = %d, want > 1000", b.Capacity())
	}
}

func TestPinnedIndexesBitMaskAnyInRange(t *testing.T) {
	b := NewPinnedIndexesBitMask(1000)
	if b.AnyInRange(0, 999) {
		t.Fatalf("AnyInRange true on empty mask")
	}
	b.Set(500)
	if !b.AnyInRange(400, 600) {
		t.Errorf("AnyInRange(400,600) = false, want true")
	}
	if b.AnyInRange(501, 600) {
		t.Errorf("AnyInRange(501,600) = true, want false")
	}
	if !b.AnyInRange(0, 999) {
		t.Errorf("AnyInRange(0,999) = false, want true")
	}
}

func TestPinnedIndexesBitMaskAnyPinned(t *testing.T) {
	b := NewPinnedIndexesBitMask(1 << 20)
	if b.AnyPinned() {
		t.Fatalf("AnyPinned true on empty mask")
	}
	b.Set(1 << 18)
	if !b.AnyPinned() {
		t.Errorf("AnyPinned false after Set")
	}
	b.Clear(1 << 18)
	if b.AnyPinned() {
		t.Errorf("AnyPinned true after Clear")
	}
}

func TestPinnedIndexesBitMaskHighestSetLe(t *testing.T) {
	b := NewPinnedIndexesBitMask(200)
	b.Set(10)
	b.Set(100)
	if got := b.HighestSetLe(150); got != 100 {
		t.Errorf("HighestSetLe(150) = %d, want 100", got)
	}
	if got := b.HighestSetLe(50); got != 10 {
		t.Errorf("HighestSetLe(50) = %d, want 10", got)
	}
	if got := b.HighestSetLe(5); got != -1 {
		t.Errorf("HighestSetLe(5) = %d, want -1", got)
	}
}

func TestPinnedIndexesBitMaskLowestSetGe(t *testing.T) {
	b := NewPinnedIndexesBitMask(200)
	b.Set(10)
	b.Set(100)
	if got := b.LowestSetGe(0); got != 10 {
		t.Errorf("LowestSetGe(0) = %d, want 10", got)
	}
	if got := b.LowestSetGe(11); got != 100 {
		t.Errorf("LowestSetGe(11) = %d, want 100", got)
	}
	if got := b.LowestSetGe(101); got != -1 {
		t.Errorf("LowestSetGe(101) = %d, want -1", got)
	}
}

func TestPinnedIndexesBitMaskSkipsEmptySummaryRegions(t *testing.T) {
	// Exercises AnyInRange's level-1 skip path across many empty words.
	b := NewPinnedIndexesBitMask(1 << 16)
	b.Set(1<<16 - 1)
	if !b.AnyInRange(0, 1<<16-1) {
		t.Errorf("AnyInRange over a mostly-empty large mask = false, want true")
	}
	if b.AnyInRange(0, 1<<16-2) {
		t.Errorf("AnyInRange excluding the only set bit = true, want false")
	}
}

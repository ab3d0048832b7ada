package ecss

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func newPosVelArray(opts ...Option) *SectorsArray {
	return NewSectorsArray(positionVelocityLayout(), opts...)
}

func insertPosVel(t *testing.T, sa *SectorsArray, id int, pos testPosition, vel testVelocity) {
	t.Helper()
	err := sa.Insert(id,
		ValueOf(typePosition, &pos),
		ValueOf(typeVelocity, &vel),
	)
	require.NoError(t, err)
}

// Insert of three out-of-order ids leaves the dense array sorted.
func TestSectorsArrayInsertRestoresSortOrder(t *testing.T) {
	sa := newPosVelArray(WithInitialCapacity(4))

	insertPosVel(t, sa, 3, testPosition{1, 2}, testVelocity{3, 4})
	insertPosVel(t, sa, 1, testPosition{5, 6}, testVelocity{7, 8})
	insertPosVel(t, sa, 7, testPosition{9, 10}, testVelocity{11, 12})

	ids, _, size := sa.dense.Snapshot()
	require.Equal(t, 3, size)
	require.Equal(t, []uint32{1, 3, 7}, ids[:size])

	for wantIdx, id := range []int{1, 3, 7} {
		slot := sa.sparse.Get(id)
		require.True(t, slot.Present())
		require.Equal(t, wantIdx, slot.LinearIndex)
	}

	pos, ok := GetTyped[testPosition](sa, 3, typePosition)
	require.True(t, ok)
	require.Equal(t, testPosition{1, 2}, *pos)
}

// Erase of the middle id shifts the tail left and fixes up sparse.
func TestSectorsArrayEraseShiftsTailLeft(t *testing.T) {
	sa := newPosVelArray(WithInitialCapacity(4))
	insertPosVel(t, sa, 3, testPosition{1, 2}, testVelocity{3, 4})
	insertPosVel(t, sa, 1, testPosition{5, 6}, testVelocity{7, 8})
	insertPosVel(t, sa, 7, testPosition{9, 10}, testVelocity{11, 12})

	require.NoError(t, sa.Erase(3))

	ids, _, size := sa.dense.Snapshot()
	require.Equal(t, 2, size)
	require.Equal(t, []uint32{1, 7}, ids[:size])

	absent := sa.sparse.Get(3)
	require.False(t, absent.Present())

	slot7 := sa.sparse.Get(7)
	require.True(t, slot7.Present())
	require.Equal(t, 1, slot7.LinearIndex)
	require.Equal(t, sa.arena.Payload(1), slot7.DataPtr)
}

// Growth across chunk boundaries preserves already-written payloads.
func TestSectorsArrayGrowthPreservesExistingPayloads(t *testing.T) {
	sa := newPosVelArray(WithChunkCapacity(2), WithInitialCapacity(2))

	insertPosVel(t, sa, 10, testPosition{1, 1}, testVelocity{0, 0})
	insertPosVel(t, sa, 11, testPosition{2, 2}, testVelocity{0, 0})

	p10Before := sa.sparse.Get(10).DataPtr
	p11Before := sa.sparse.Get(11).DataPtr

	insertPosVel(t, sa, 12, testPosition{3, 3}, testVelocity{0, 0})
	insertPosVel(t, sa, 13, testPosition{4, 4}, testVelocity{0, 0})

	require.GreaterOrEqual(t, sa.arena.Capacity(), 4)
	require.GreaterOrEqual(t, sa.arena.NumChunks(), 2)

	require.Equal(t, p10Before, sa.sparse.Get(10).DataPtr)
	require.Equal(t, p11Before, sa.sparse.Get(11).DataPtr)

	pos10, ok := GetTyped[testPosition](sa, 10, typePosition)
	require.True(t, ok)
	require.Equal(t, testPosition{1, 1}, *pos10)
}

func TestSectorsArrayInsertAlreadyPresentFails(t *testing.T) {
	sa := newPosVelArray()
	insertPosVel(t, sa, 1, testPosition{}, testVelocity{})

	err := sa.Insert(1, ValueOf(typePosition, &testPosition{}))
	require.ErrorIs(t, err, ErrAlreadyPresent)
}

func TestSectorsArrayUpsertUpdatesInPlace(t *testing.T) {
	sa := newPosVelArray()
	insertPosVel(t, sa, 1, testPosition{1, 1}, testVelocity{1, 1})

	newPos := testPosition{9, 9}
	require.NoError(t, sa.Upsert(1, ValueOf(typePosition, &newPos)))

	pos, ok := GetTyped[testPosition](sa, 1, typePosition)
	require.True(t, ok)
	require.Equal(t, newPos, *pos)

	vel, ok := GetTyped[testVelocity](sa, 1, typeVelocity)
	require.True(t, ok)
	require.Equal(t, testVelocity{1, 1}, *vel)
}

func TestSectorsArrayEmplaceSingleComponentSetsMask(t *testing.T) {
	sa := newPosVelArray()
	pos := testPosition{1, 2}
	require.NoError(t, sa.Emplace(5, typePosition, unsafe.Pointer(&pos)))

	require.True(t, sa.Contains(5, typePosition))
	require.False(t, sa.Contains(5, typeVelocity))

	vel := testVelocity{3, 4}
	require.NoError(t, sa.Emplace(5, typeVelocity, unsafe.Pointer(&vel)))
	require.True(t, sa.Contains(5, typeVelocity))
}

func TestSectorsArrayDestroyComponentEscalatesToEraseWhenMaskEmpty(t *testing.T) {
	sa := newPosVelArray()
	pos := testPosition{1, 2}
	require.NoError(t, sa.Emplace(5, typePosition, unsafe.Pointer(&pos)))

	require.NoError(t, sa.DestroyComponent(5, typePosition))
	require.Equal(t, 0, sa.Size())
	require.False(t, sa.Contains(5, typePosition))
}

func TestSectorsArrayGetAbsentIDIsNotError(t *testing.T) {
	sa := newPosVelArray()
	_, ok := sa.Get(999, typePosition)
	require.False(t, ok)
	require.NoError(t, sa.Erase(999))
}

func TestSectorsArrayClearDestroysAllKeepsArena(t *testing.T) {
	sa := newPosVelArray()
	insertPosVel(t, sa, 1, testPosition{}, testVelocity{})
	insertPosVel(t, sa, 2, testPosition{}, testVelocity{})

	capBefore := sa.Capacity()
	require.NoError(t, sa.Clear())

	require.Equal(t, 0, sa.Size())
	require.Equal(t, capBefore, sa.Capacity())
	require.False(t, sa.Contains(1, typePosition))
}

func TestSectorsArrayEraseUnorderedThenCompactRestoresOrder(t *testing.T) {
	sa := newPosVelArray()
	insertPosVel(t, sa, 1, testPosition{}, testVelocity{})
	insertPosVel(t, sa, 2, testPosition{}, testVelocity{})
	insertPosVel(t, sa, 3, testPosition{}, testVelocity{})

	require.NoError(t, sa.EraseUnordered(2))
	require.NoError(t, sa.Compact())

	ids, _, size := sa.dense.Snapshot()
	require.Equal(t, []uint32{1, 3}, ids[:size])
}

func TestSectorsArrayInsertingAfterClearRecoversSparseMapping(t *testing.T) {
	sa := newPosVelArray()
	insertPosVel(t, sa, 1, testPosition{1, 1}, testVelocity{})
	require.NoError(t, sa.Clear())

	insertPosVel(t, sa, 1, testPosition{2, 2}, testVelocity{})
	pos, ok := GetTyped[testPosition](sa, 1, typePosition)
	require.True(t, ok)
	require.Equal(t, testPosition{2, 2}, *pos)
}

func TestSectorsArrayStats(t *testing.T) {
	sa := newPosVelArray(WithChunkCapacity(4))
	insertPosVel(t, sa, 1, testPosition{}, testVelocity{})

	s := sa.Stats()
	require.Equal(t, 1, s.Size)
	require.Equal(t, 4, s.ChunkCapacity)
	require.InDelta(t, 1.0/4.0, s.Utilization, 1e-9)
}

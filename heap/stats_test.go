package heap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/internal/testutil"
)

func TestStats_Accounting(t *testing.T) {
	h := testutil.SetupHeap(t, 1024)
	st := h.Stats()
	assert.Equal(t, uintptr(1024), st.Size)
	assert.Equal(t, 1, st.FreeBlocks)
	assert.Equal(t, st.Free, st.LargestFree)
	assert.Zero(t, st.Fragmentation())
	assert.True(t, st.Conserved())

	a, err := h.Allocate(100, 8)
	require.NoError(t, err)
	_, err = h.Allocate(100, 8)
	require.NoError(t, err)
	h.Deallocate(a, 100, 8)

	st = h.Stats()
	assert.Equal(t, 2, st.FreeBlocks)
	assert.Equal(t, 1, st.UsedBlocks)
	assert.Equal(t, 2*heap.FreeHeader+heap.AllocHeader, st.Overhead)
	assert.Greater(t, st.Fragmentation(), 0.0)
	assert.True(t, st.Conserved())
	assert.Equal(t, 2, st.Counters.AllocCalls)
	assert.Equal(t, 1, st.Counters.FreeCalls)
}

func TestSnapshot_AndDump(t *testing.T) {
	h := testutil.SetupHeap(t, 512)
	p, err := h.Allocate(16, 8)
	require.NoError(t, err)
	copy(heap.Bytes(p, 16), "snapshot payload")

	snap := h.Snapshot()
	assert.Nil(t, snap.Memory)
	assert.Len(t, snap.Free, 1)

	start, end := h.Bounds()
	assert.Equal(t, snap.Start, start)
	assert.Equal(t, snap.End, end)

	dump := h.Dump()
	require.Len(t, dump.Memory, int(dump.End-dump.Start))
	off := uintptr(p) - dump.Start
	assert.Equal(t, "snapshot payload", string(dump.Memory[off:off+16]))

	// The dump is a copy.
	dump.Memory[off] = 'X'
	assert.Equal(t, byte('s'), heap.Bytes(p, 1)[0])
}

package freelist

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mcuheap/heap/pool"
	"github.com/joshuapare/mcuheap/internal/layout"
)

// sramBase mimics the SRAM base address of a Cortex-M part.
const sramBase = 0x2000_0000

const w = layout.Word

// newTestList creates a list over a simulated pool of size bytes that may
// grow to capacity bytes.
func newTestList(t testing.TB, size, capacity uintptr, checked bool) *List {
	t.Helper()
	p, err := pool.Simulated(sramBase, size, capacity)
	require.NoError(t, err)
	fl, err := New(p, checked)
	require.NoError(t, err)
	return fl
}

// mustLayout builds a layout or fails the test.
func mustLayout(t testing.TB, size, align uintptr) layout.Layout {
	t.Helper()
	l, err := layout.New(size, align)
	require.NoError(t, err)
	return l
}

// live records an outstanding allocation.
type live struct {
	ptr uintptr
	l   layout.Layout
}

// requireInvariants checks ordering, bounds, coalescing, disjointness and
// conservation for the list and the given live allocations.
func requireInvariants(t testing.TB, fl *List, allocs []live) {
	t.Helper()
	p := fl.Pool()

	type extent struct{ start, end uintptr }
	var extents []extent

	var prevEnd uintptr
	var freeBytes uintptr
	blocks := fl.Blocks()
	for i, b := range blocks {
		require.True(t, p.Contains(b.Addr, b.Extent()), "free block %d out of bounds", i)
		require.True(t, layout.IsAligned(b.Addr, w), "free block %d misaligned", i)
		if i > 0 {
			require.Greater(t, b.Addr, prevEnd, "free block %d not sorted or not coalesced", i)
		}
		prevEnd = b.End()
		freeBytes += b.Size
		extents = append(extents, extent{b.Addr, b.End()})
	}

	var usedBytes uintptr
	for _, a := range allocs {
		size := p.Word(a.ptr - AllocHeader)
		require.GreaterOrEqual(t, size, a.l.Payload())
		require.True(t, layout.IsAligned(a.ptr, a.l.Align), "ptr 0x%X not aligned to %d", a.ptr, a.l.Align)
		usedBytes += size
		extents = append(extents, extent{a.ptr - AllocHeader, a.ptr + size})
	}

	sort.Slice(extents, func(i, j int) bool { return extents[i].start < extents[j].start })
	cursor := p.Start()
	for _, e := range extents {
		require.Equal(t, cursor, e.start, "gap or overlap at 0x%X", cursor)
		cursor = e.end
	}
	require.Equal(t, p.End(), cursor, "extents do not reach the end of the pool")

	st := fl.Stats()
	require.Equal(t, len(allocs), st.UsedBlocks)
	require.Equal(t, usedBytes, st.UsedBytes)
	overhead := uintptr(len(blocks))*FreeHeader + uintptr(len(allocs))*AllocHeader
	require.Equal(t, p.Managed(), freeBytes+usedBytes+overhead)
}

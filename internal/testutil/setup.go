package testutil

import (
	"testing"
	"unsafe"

	"github.com/joshuapare/mcuheap/critical"
	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/internal/mmregion"
)

// SetupHeap returns a checked heap over a fresh size-byte buffer.
//
// Example:
//
//	h := testutil.SetupHeap(t, 4096)
//	ptr, err := h.Allocate(64, 8)
func SetupHeap(t testing.TB, size int) *heap.Heap {
	t.Helper()
	return SetupHeapWith(t, size, size, heap.Options{Checked: true})
}

// SetupHeapWith returns a heap over a fresh buffer of size bytes that may be
// extended up to capacity bytes.
func SetupHeapWith(t testing.TB, size, capacity int, opts heap.Options) *heap.Heap {
	t.Helper()
	h := heap.New(opts)
	if err := h.InitSlice(make([]byte, size, capacity)); err != nil {
		t.Fatalf("InitSlice(%d): %v", size, err)
	}
	return h
}

// SetupCoreHeap returns a checked heap masked by a fresh critical.Core.
func SetupCoreHeap(t testing.TB, size int) (*heap.Heap, *critical.Core) {
	t.Helper()
	core := critical.NewCore()
	h := SetupHeapWith(t, size, size, heap.Options{Interrupts: core, Checked: true})
	return h, core
}

// SetupMappedHeap binds a checked heap to an anonymous mapping of capacity
// bytes through Init, using the first size bytes. It returns the heap and
// the end of the mapping, which Extend may reach. The mapping is released
// when the test ends.
func SetupMappedHeap(t testing.TB, size, capacity int) (*heap.Heap, uintptr) {
	t.Helper()
	data, cleanup, err := mmregion.Map(size, capacity)
	if err != nil {
		t.Fatalf("Map(%d, %d): %v", size, capacity, err)
	}
	t.Cleanup(func() {
		if err := cleanup(); err != nil {
			t.Errorf("unmap: %v", err)
		}
	})

	start, end, limit := mmregion.Range(data)
	h := heap.New(heap.Options{Checked: true})
	if err := h.Init(start, end); err != nil {
		t.Fatalf("Init(0x%X, 0x%X): %v", start, end, err)
	}
	return h, limit
}

// Fill writes a byte pattern derived from seed to the n bytes at ptr.
func Fill(ptr unsafe.Pointer, n uintptr, seed byte) {
	for i, b := 0, heap.Bytes(ptr, n); i < len(b); i++ {
		b[i] = seed + byte(i*7)
	}
}

// CheckFill reports whether the n bytes at ptr still hold the pattern
// written by Fill with seed.
func CheckFill(ptr unsafe.Pointer, n uintptr, seed byte) bool {
	for i, b := range heap.Bytes(ptr, n) {
		if b != seed+byte(i*7) {
			return false
		}
	}
	return true
}

// RequireConserved fails the test when the heap's accounting does not add
// up to its size.
func RequireConserved(t testing.TB, h *heap.Heap) {
	t.Helper()
	st := h.Stats()
	if !st.Conserved() {
		t.Fatalf("accounting broken: free=%d used=%d overhead=%d slack=%d size=%d",
			st.Free, st.Used, st.Overhead, st.Slack, st.Size)
	}
}

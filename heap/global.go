package heap

import "unsafe"

// defaultHeap is the process-wide heap. It starts without a region.
var defaultHeap = New(DefaultOptions())

// Default returns the process-wide heap used by the package-level functions.
func Default() *Heap { return defaultHeap }

// Init binds the process-wide heap to [start, end). See (*Heap).Init.
func Init(start, end uintptr) error { return defaultHeap.Init(start, end) }

// InitSlice binds the process-wide heap to mem. See (*Heap).InitSlice.
func InitSlice(mem []byte) error { return defaultHeap.InitSlice(mem) }

// Extend grows the process-wide heap. See (*Heap).Extend.
func Extend(newEnd uintptr) error { return defaultHeap.Extend(newEnd) }

// Allocate allocates from the process-wide heap. See (*Heap).Allocate.
func Allocate(size, align uintptr) (unsafe.Pointer, error) {
	return defaultHeap.Allocate(size, align)
}

// Deallocate frees a block of the process-wide heap.
func Deallocate(ptr unsafe.Pointer, size, align uintptr) {
	defaultHeap.Deallocate(ptr, size, align)
}

// Reallocate moves a block of the process-wide heap.
func Reallocate(ptr unsafe.Pointer, oldSize, newSize, align uintptr) (unsafe.Pointer, error) {
	return defaultHeap.Reallocate(ptr, oldSize, newSize, align)
}

// ReallocateInPlace reports the size a block keeps without moving.
func ReallocateInPlace(ptr unsafe.Pointer, size, newSize, align uintptr) uintptr {
	return defaultHeap.ReallocateInPlace(ptr, size, newSize, align)
}

// UsableSize reports the usable bytes of a block.
func UsableSize(size, align uintptr) uintptr {
	return defaultHeap.UsableSize(size, align)
}

// CurrentStats returns the accounting of the process-wide heap.
func CurrentStats() Stats { return defaultHeap.Stats() }

// CurrentSnapshot returns a snapshot of the process-wide heap.
func CurrentSnapshot() Snapshot { return defaultHeap.Snapshot() }

// Package layout holds the size and alignment arithmetic shared by the heap
// packages. Everything here works on uintptr addresses and byte counts.
package layout

import "unsafe"

// Word is the size of a machine word, the granularity of every block
// address and extent in the heap.
const Word = unsafe.Sizeof(uintptr(0))

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp returns n rounded up to the next multiple of align.
// align must be a power of two.
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 8)  = 16
func AlignUp(n, align uintptr) uintptr {
	mask := align - 1
	return (n + mask) &^ mask
}

// AlignDown returns n rounded down to a multiple of align.
// align must be a power of two.
//
// Example:
//
//	AlignDown(15, 8) = 8
//	AlignDown(16, 8) = 16
func AlignDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uintptr) bool {
	return n&(align-1) == 0
}

// AlignUpChecked is AlignUp that reports ok = false when rounding wraps
// around the address space.
func AlignUpChecked(n, align uintptr) (uintptr, bool) {
	sum, ok := AddOverflowSafe(n, align-1)
	if !ok {
		return 0, false
	}
	return AlignDown(sum, align), true
}

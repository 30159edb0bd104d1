// Package mmregion provides memory regions outside the Go heap for binding
// an allocator to a raw address range.
package mmregion

import (
	"errors"
	"unsafe"
)

// ErrSize indicates a zero or negative region size.
var ErrSize = errors.New("mmregion: size must be positive")

func check(size, capacity int) error {
	if size <= 0 || capacity < 0 {
		return ErrSize
	}
	return nil
}

// Range returns the address range covered by b, and the end of its spare
// capacity.
func Range(b []byte) (start, end, limit uintptr) {
	if cap(b) == 0 {
		return 0, 0, 0
	}
	start = uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return start, start + uintptr(len(b)), start + uintptr(cap(b))
}

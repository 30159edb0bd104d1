package layout

import "fmt"

// AddOverflowSafe adds a and b, returning ok = false when the result would wrap.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// CheckRange validates the half-open range [start, end) and returns its length.
// This is the recommended way to validate a region before handing it to the heap:
//
//	n, err := layout.CheckRange(start, end)
//	if err != nil {
//	    return fmt.Errorf("init: %w", err)
//	}
func CheckRange(start, end uintptr) (uintptr, error) {
	if start == 0 {
		return 0, fmt.Errorf("range starts at address zero")
	}
	if end <= start {
		return 0, fmt.Errorf("empty range: start=0x%X end=0x%X", start, end)
	}
	return end - start, nil
}

// Within reports whether [addr, addr+n) lies inside [start, end).
func Within(addr, n, start, end uintptr) bool {
	if addr < start {
		return false
	}
	last, ok := AddOverflowSafe(addr, n)
	return ok && last <= end
}

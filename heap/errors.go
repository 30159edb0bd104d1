package heap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/mcuheap/heap/freelist"
	"github.com/joshuapare/mcuheap/heap/pool"
)

var (
	// ErrOutOfMemory indicates that no free block can hold the request.
	ErrOutOfMemory = errors.New("heap: out of memory")

	// ErrUninitialized indicates a call on a heap that has no region yet.
	ErrUninitialized = errors.New("heap: not initialized")

	// ErrAlreadyInitialized indicates a second Init or InitSlice.
	ErrAlreadyInitialized = errors.New("heap: already initialized")

	// ErrInvalidRange indicates an empty, wrapped or zero-based region.
	ErrInvalidRange = errors.New("heap: invalid region")

	// ErrRegionTooSmall indicates a region that cannot hold a single block.
	ErrRegionTooSmall = errors.New("heap: region too small")

	// ErrRegionBounds indicates growth past the memory backing the heap.
	ErrRegionBounds = errors.New("heap: region cannot grow that far")

	// ErrShrink indicates an Extend that does not raise the upper bound.
	ErrShrink = errors.New("heap: region cannot shrink")

	// ErrInvalidLayout indicates a non-power-of-two alignment or a size
	// too large to place.
	ErrInvalidLayout = errors.New("heap: invalid layout")
)

// ContractViolation reports a Deallocate or Reallocate call whose pointer or
// layout was not produced by this heap. It is raised with panic when checks
// are enabled.
type ContractViolation struct {
	Op     string  // operation that detected the violation
	Addr   uintptr // pointer passed by the caller
	Reason error   // what was wrong
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("heap: %s(0x%X): %v", e.Op, e.Addr, e.Reason)
}

func (e *ContractViolation) Unwrap() error { return e.Reason }

// translate maps errors of the lower layers onto the heap sentinels while
// keeping their detail.
func translate(err error) error {
	var sentinel error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, freelist.ErrOutOfMemory):
		sentinel = ErrOutOfMemory
	case errors.Is(err, freelist.ErrTooSmall):
		sentinel = ErrRegionTooSmall
	case errors.Is(err, pool.ErrInvalidRange):
		sentinel = ErrInvalidRange
	case errors.Is(err, pool.ErrShrink):
		sentinel = ErrShrink
	case errors.Is(err, pool.ErrBounds):
		sentinel = ErrRegionBounds
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

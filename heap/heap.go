package heap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/joshuapare/mcuheap/critical"
	"github.com/joshuapare/mcuheap/heap/freelist"
	"github.com/joshuapare/mcuheap/heap/pool"
	"github.com/joshuapare/mcuheap/internal/layout"
	"github.com/joshuapare/mcuheap/internal/logger"
)

// Heap is a first-fit allocator over one region.
//
// A Heap is safe for use by one goroutine and the interrupt handlers its
// controller delivers on that goroutine. It is not safe for concurrent use
// by several goroutines.
type Heap struct {
	opts  Options
	state *critical.Mutex[state]
}

// state is everything guarded by the critical section.
type state struct {
	list         *freelist.List // nil until initialized
	reallocCalls int
}

// New returns an uninitialized heap.
func New(opts Options) *Heap {
	if opts.Interrupts == nil {
		opts.Interrupts = &critical.Nop{}
	}
	return &Heap{
		opts:  opts,
		state: critical.NewMutex(opts.Interrupts, state{}),
	}
}

// Options returns the options the heap was built with.
func (h *Heap) Options() Options { return h.opts }

func (h *Heap) log() *slog.Logger {
	if h.opts.Logger != nil {
		return h.opts.Logger
	}
	return logger.L
}

// Init binds the heap to the raw address range [start, end).
//
// The range must be writable memory that is not used by anything else for
// the lifetime of the heap, such as a linker-provided region or an anonymous
// mapping. Init fails with ErrAlreadyInitialized if the heap has a region.
func (h *Heap) Init(start, end uintptr) error {
	if end <= start {
		return fmt.Errorf("%w: start=0x%X end=0x%X", ErrInvalidRange, start, end)
	}
	return h.bind(func() (*pool.Pool, error) { return pool.FromRange(start, end) })
}

// InitSlice binds the heap to mem. Extend may later grow the heap into the
// spare capacity of mem.
func (h *Heap) InitSlice(mem []byte) error {
	return h.bind(func() (*pool.Pool, error) { return pool.FromSlice(mem) })
}

func (h *Heap) bind(newPool func() (*pool.Pool, error)) error {
	var (
		p   *pool.Pool
		err error
	)
	h.state.Lock(func(s *state) {
		if s.list != nil {
			err = ErrAlreadyInitialized
			return
		}
		if p, err = newPool(); err != nil {
			return
		}
		s.list, err = freelist.New(p, h.opts.Checked)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyInitialized) {
			return err
		}
		return fmt.Errorf("init: %w", translate(err))
	}

	h.log().Info("heap initialized",
		"start", fmt.Sprintf("0x%X", p.Start()),
		"end", fmt.Sprintf("0x%X", p.End()),
		"managed", p.Managed(),
		"slack", p.Slack(),
		"checked", h.opts.Checked)
	return nil
}

// Initialized reports whether the heap has a region.
func (h *Heap) Initialized() bool {
	var ok bool
	h.state.Lock(func(s *state) { ok = s.list != nil })
	return ok
}

// Extend raises the upper bound of the region to newEnd.
//
// If the last free block reaches the old end it grows in place; otherwise
// the new bytes form a free block of their own. A gain too small to hold a
// block is kept as slack until a later Extend adds enough.
func (h *Heap) Extend(newEnd uintptr) error {
	var (
		err    error
		before uintptr
		after  uintptr
	)
	h.state.Lock(func(s *state) {
		if s.list == nil {
			err = ErrUninitialized
			return
		}
		before = s.list.Pool().Managed()
		err = s.list.Extend(newEnd)
		after = s.list.Pool().Managed()
	})
	if err != nil {
		if errors.Is(err, ErrUninitialized) {
			return err
		}
		return fmt.Errorf("extend to 0x%X: %w", newEnd, translate(err))
	}

	h.log().Debug("heap extended",
		"limit", fmt.Sprintf("0x%X", newEnd),
		"gained", after-before)
	return nil
}

// Allocate returns a pointer to size bytes aligned to align, which must be a
// power of two. The memory is not zeroed.
//
// When no free block fits, Allocate fails with ErrOutOfMemory and the heap
// is unchanged.
func (h *Heap) Allocate(size, align uintptr) (unsafe.Pointer, error) {
	l, err := layout.New(size, align)
	if err != nil {
		return nil, fmt.Errorf("%w: size=%d align=%d", ErrInvalidLayout, size, align)
	}

	var ptr unsafe.Pointer
	h.state.Lock(func(s *state) {
		if s.list == nil {
			err = ErrUninitialized
			return
		}
		var addr uintptr
		if addr, err = s.list.Allocate(l); err == nil {
			ptr = s.list.Pool().Pointer(addr)
		}
	})

	switch {
	case err == nil:
		if lg := h.log(); lg.Enabled(context.Background(), slog.LevelDebug) {
			lg.Debug("allocate", "size", size, "align", align, "ptr", fmt.Sprintf("%p", ptr))
		}
		return ptr, nil
	case errors.Is(err, ErrUninitialized):
		return nil, err
	default:
		h.log().Debug("allocation failed", "size", size, "align", align, "error", err)
		return nil, fmt.Errorf("allocate size=%d align=%d: %w", size, align, translate(err))
	}
}

// Deallocate returns the block at ptr, which must have been returned by
// Allocate or Reallocate on this heap with the same size and align. A nil
// ptr is ignored.
func (h *Heap) Deallocate(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}
	l := layout.Layout{Size: size, Align: align}

	var (
		addr uintptr
		err  error
	)
	h.state.Lock(func(s *state) {
		if s.list == nil {
			err = ErrUninitialized
			return
		}
		addr = s.list.Pool().Addr(ptr)
		err = s.list.Deallocate(addr, l)
	})
	if err != nil {
		h.violation("deallocate", uintptr(ptr), err)
	}
}

// violation logs and panics with a *ContractViolation.
func (h *Heap) violation(op string, addr uintptr, err error) {
	cv := &ContractViolation{Op: op, Addr: addr, Reason: err}
	h.log().Error("contract violation", "op", op, "ptr", fmt.Sprintf("0x%X", addr), "error", err)
	panic(cv)
}

// Reallocate moves the block at ptr to a new block of newSize bytes and
// returns it. The first min(oldSize, newSize) bytes are preserved.
//
// On failure the old block is left untouched and still owned by the caller.
// A nil ptr behaves like Allocate. With checks enabled ptr and oldSize are
// validated before anything is allocated.
func (h *Heap) Reallocate(ptr unsafe.Pointer, oldSize, newSize, align uintptr) (unsafe.Pointer, error) {
	var (
		addr uintptr
		err  error
	)
	h.state.Lock(func(s *state) {
		s.reallocCalls++
		if ptr == nil || s.list == nil || !s.list.Checked() {
			return
		}
		addr = s.list.Pool().Addr(ptr)
		err = s.list.Check(addr, layout.Layout{Size: oldSize, Align: align})
	})
	if ptr == nil {
		return h.Allocate(newSize, align)
	}
	if err != nil {
		h.violation("reallocate", uintptr(ptr), err)
	}

	np, err := h.Allocate(newSize, align)
	if err != nil {
		return nil, err
	}
	// The bytes belong to the caller, so the copy needs no critical section.
	n := min(oldSize, newSize)
	copy(Bytes(np, n), Bytes(ptr, n))
	h.Deallocate(ptr, oldSize, align)
	return np, nil
}

// ReallocateInPlace never moves or resizes a block; it returns size, the
// usable size the block keeps.
func (h *Heap) ReallocateInPlace(ptr unsafe.Pointer, size, newSize, align uintptr) uintptr {
	return size
}

// UsableSize returns the number of bytes usable through a block allocated
// with size and align. It reports size, the amount a caller may rely on.
func (h *Heap) UsableSize(size, align uintptr) uintptr {
	return size
}

// Bytes returns the n bytes at ptr as a slice. ptr must come from a Heap
// and n must not exceed the size it was allocated with.
func Bytes(ptr unsafe.Pointer, n uintptr) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

// Package pool owns the raw byte range a heap is carved from.
//
// A Pool maps heap addresses to bytes. Addresses are plain uintptr values in
// the range [RawStart, Limit); the pool translates them into offsets of its
// backing view and reads or writes whole machine words there. This is the
// only place in the module that touches unsafe.Pointer, so the free-list
// algorithms above it can run unchanged over a simulated address space.
//
// Three constructors cover the ways a region reaches the heap:
//
//   - FromSlice: a Go byte slice. The pool may later grow up to cap(mem).
//   - FromRange: a raw [start, end) address range (linker symbols, an
//     anonymous mapping). The caller vouches for the memory.
//   - Simulated: a fresh buffer that pretends to live at an arbitrary base
//     address, for exercising address arithmetic in tests.
package pool

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/joshuapare/mcuheap/internal/layout"
)

var (
	// ErrInvalidRange indicates an empty, wrapped or zero-based range.
	ErrInvalidRange = errors.New("pool: invalid range")

	// ErrShrink indicates an attempt to move the limit downwards.
	ErrShrink = errors.New("pool: region cannot shrink")

	// ErrBounds indicates growth past the memory that backs the pool.
	ErrBounds = errors.New("pool: growth beyond backing memory")
)

// Pool is a contiguous byte range [RawStart, Limit) of which [Start, End)
// is managed by the heap. Bytes outside the managed range are slack.
type Pool struct {
	mem  []byte         // view covering [rawStart, limit)
	base unsafe.Pointer // address of mem[0]

	rawStart uintptr
	start    uintptr
	end      uintptr
	limit    uintptr
	maxLimit uintptr // highest limit Grow may reach

	raw bool // view built from a raw address range
}

// FromSlice builds a pool over mem[:len(mem)]. Later growth may use the
// slice's spare capacity.
func FromSlice(mem []byte) (*Pool, error) {
	if len(mem) == 0 {
		return nil, fmt.Errorf("%w: empty slice", ErrInvalidRange)
	}
	base := unsafe.Pointer(unsafe.SliceData(mem))
	rawStart := uintptr(base)
	p := &Pool{
		mem:      mem,
		base:     base,
		rawStart: rawStart,
		limit:    rawStart + uintptr(len(mem)),
		maxLimit: rawStart + uintptr(cap(mem)),
	}
	p.resetManaged()
	return p, nil
}

// FromRange builds a pool over the raw address range [start, end).
//
// The range must be readable and writable memory that outlives the pool and
// is not otherwise used by the Go runtime. Growth through Grow is taken on
// trust as well.
func FromRange(start, end uintptr) (*Pool, error) {
	n, err := layout.CheckRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	base := unsafe.Pointer(start) //nolint:govet // raw region boundary
	p := &Pool{
		mem:      unsafe.Slice((*byte)(base), n),
		base:     base,
		rawStart: start,
		limit:    end,
		maxLimit: ^uintptr(0),
		raw:      true,
	}
	p.resetManaged()
	return p, nil
}

// Simulated builds a pool of size bytes that reports addresses starting at
// base. It may grow up to capacity bytes. Pointers returned by Pointer
// refer to the private backing buffer.
func Simulated(base, size, capacity uintptr) (*Pool, error) {
	if capacity < size {
		capacity = size
	}
	if _, err := layout.CheckRange(base, base+capacity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	mem := make([]byte, size, capacity)
	p := &Pool{
		mem:      mem,
		base:     unsafe.Pointer(unsafe.SliceData(mem)),
		rawStart: base,
		limit:    base + size,
		maxLimit: base + capacity,
	}
	p.resetManaged()
	return p, nil
}

// resetManaged sets [start, end) to the word-aligned interior of the view.
func (p *Pool) resetManaged() {
	p.start = layout.AlignUp(p.rawStart, layout.Word)
	p.end = layout.AlignDown(p.limit, layout.Word)
	if p.end < p.start {
		p.end = p.start
	}
}

// RawStart returns the first address of the region as supplied.
func (p *Pool) RawStart() uintptr { return p.rawStart }

// Start returns the first managed (word-aligned) address.
func (p *Pool) Start() uintptr { return p.start }

// End returns the end of the managed range (exclusive).
func (p *Pool) End() uintptr { return p.end }

// Limit returns the end of the region as supplied (exclusive).
func (p *Pool) Limit() uintptr { return p.limit }

// Size returns the total number of bytes in the region, slack included.
func (p *Pool) Size() uintptr { return p.limit - p.rawStart }

// Managed returns the number of bytes in [Start, End).
func (p *Pool) Managed() uintptr { return p.end - p.start }

// Slack returns the bytes of the region the heap does not manage: the
// alignment gap before Start and anything between End and Limit.
func (p *Pool) Slack() uintptr { return p.Size() - p.Managed() }

// Grow raises the limit to newLimit and extends the view to cover it.
// The managed end is left alone; call SetEnd once the new bytes are
// accounted for.
func (p *Pool) Grow(newLimit uintptr) error {
	if newLimit <= p.limit {
		return fmt.Errorf("%w: limit=0x%X new=0x%X", ErrShrink, p.limit, newLimit)
	}
	if newLimit > p.maxLimit {
		return fmt.Errorf("%w: max=0x%X new=0x%X", ErrBounds, p.maxLimit, newLimit)
	}
	n := newLimit - p.rawStart
	if p.raw {
		p.mem = unsafe.Slice((*byte)(p.base), n)
	} else {
		p.mem = p.mem[:n]
	}
	p.limit = newLimit
	return nil
}

// GrowableEnd returns the word-aligned end the managed range may reach
// under the current limit.
func (p *Pool) GrowableEnd() uintptr {
	return layout.AlignDown(p.limit, layout.Word)
}

// SetEnd moves the managed end up to end, which must lie between the
// current end and GrowableEnd.
func (p *Pool) SetEnd(end uintptr) {
	if end < p.end || end > p.GrowableEnd() || !layout.IsAligned(end, layout.Word) {
		panic(fmt.Sprintf("pool: bad managed end 0x%X (end=0x%X limit=0x%X)", end, p.end, p.limit))
	}
	p.end = end
}

// Contains reports whether [addr, addr+n) lies in the managed range.
func (p *Pool) Contains(addr, n uintptr) bool {
	return layout.Within(addr, n, p.start, p.end)
}

// offset translates a managed address of an n-byte access into an index of
// the view. Out-of-range access means the heap metadata is corrupt.
func (p *Pool) offset(addr, n uintptr) int {
	if !p.Contains(addr, n) {
		panic(fmt.Sprintf("pool: access [0x%X, +%d) outside [0x%X, 0x%X)", addr, n, p.start, p.end))
	}
	return int(addr - p.rawStart)
}

// Word reads the machine word stored at addr.
func (p *Pool) Word(addr uintptr) uintptr {
	off := p.offset(addr, layout.Word)
	if layout.Word == 8 {
		return uintptr(binary.NativeEndian.Uint64(p.mem[off : off+8]))
	}
	return uintptr(binary.NativeEndian.Uint32(p.mem[off : off+4]))
}

// SetWord stores v as a machine word at addr.
func (p *Pool) SetWord(addr, v uintptr) {
	off := p.offset(addr, layout.Word)
	if layout.Word == 8 {
		binary.NativeEndian.PutUint64(p.mem[off:off+8], uint64(v))
		return
	}
	binary.NativeEndian.PutUint32(p.mem[off:off+4], uint32(v))
}

// Bytes returns the n bytes at addr as a slice aliasing the pool.
func (p *Pool) Bytes(addr, n uintptr) []byte {
	off := p.offset(addr, n)
	return p.mem[off : off+int(n) : off+int(n)]
}

// Pointer converts a managed address into a pointer into the view.
func (p *Pool) Pointer(addr uintptr) unsafe.Pointer {
	p.offset(addr, 0)
	return unsafe.Add(p.base, addr-p.rawStart)
}

// Addr converts a pointer obtained from Pointer back into an address.
func (p *Pool) Addr(ptr unsafe.Pointer) uintptr {
	return p.rawStart + (uintptr(ptr) - uintptr(p.base))
}

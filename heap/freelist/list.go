package freelist

import (
	"fmt"

	"github.com/joshuapare/mcuheap/heap/pool"
	"github.com/joshuapare/mcuheap/internal/layout"
)

// List is the free list of one pool.
type List struct {
	pool    *pool.Pool
	head    uintptr // address of the first free block, 0 when empty
	checked bool    // validate pointers and layouts passed to Deallocate

	stats Stats
}

// New formats the whole managed range of p as a single free block.
//
// Parameters:
//   - p: the pool to manage; its contents are overwritten
//   - checked: when true Deallocate validates its arguments and reports
//     contract violations instead of corrupting the list
func New(p *pool.Pool, checked bool) (*List, error) {
	if p.Managed() < MinBlock {
		return nil, fmt.Errorf("%w: %d bytes managed", ErrTooSmall, p.Managed())
	}
	fl := &List{pool: p, checked: checked}
	fl.head = p.Start()
	fl.setFree(fl.head, p.Managed()-FreeHeader, 0)
	return fl, nil
}

// Pool returns the pool the list manages.
func (fl *List) Pool() *pool.Pool { return fl.pool }

// Head returns the address of the first free block, or 0.
func (fl *List) Head() uintptr { return fl.head }

// Stats returns the current counters.
func (fl *List) Stats() Stats { return fl.stats }

// Allocate carves a block for l out of the first free block, in address
// order, that can hold it.
//
// The block is split when the remainder can form a block of its own; a
// smaller remainder is absorbed into the allocation. An alignment gap in
// front of the block, if any, stays in the list as a free block. On
// ErrOutOfMemory the list is left untouched.
func (fl *List) Allocate(l layout.Layout) (uintptr, error) {
	fl.stats.AllocCalls++

	need := l.Payload()
	align := l.BlockAlign()

	var prev uintptr
	for cur := fl.head; cur != 0; cur = fl.next(cur) {
		end := fl.end(cur)
		if payload, ok := place(cur, end, need, align); ok {
			return fl.carve(prev, cur, end, payload, need), nil
		}
		prev = cur
	}

	fl.stats.OutOfMemory++
	return 0, ErrOutOfMemory
}

// place returns the payload address for a request of need bytes aligned to
// align inside the free block [start, end), if it fits.
func place(start, end, need, align uintptr) (uintptr, bool) {
	payload, ok := layout.AlignUpChecked(start+AllocHeader, align)
	if !ok {
		return 0, false
	}
	// A gap in front must be able to stand as a free block.
	if gap := payload - AllocHeader - start; gap != 0 && gap < MinBlock {
		payload, ok = layout.AlignUpChecked(start+AllocHeader+MinBlock, align)
		if !ok {
			return 0, false
		}
	}
	last, ok := layout.AddOverflowSafe(payload, need)
	if !ok || last > end {
		return 0, false
	}
	return payload, true
}

// carve turns the part of free block cur holding payload into an allocated
// block and relinks whatever is left around it.
func (fl *List) carve(prev, cur, end, payload, need uintptr) uintptr {
	next := fl.next(cur)
	blockStart := payload - AllocHeader
	blockEnd := payload + need

	if rem := end - blockEnd; rem >= MinBlock {
		fl.setFree(blockEnd, rem-FreeHeader, next)
		next = blockEnd
		fl.stats.SplitCount++
	} else {
		blockEnd = end
		if rem > 0 {
			fl.stats.AbsorbCount++
		}
	}

	if blockStart > cur {
		fl.setFree(cur, blockStart-cur-FreeHeader, next)
		fl.stats.FrontSplits++
	} else {
		fl.link(prev, next)
	}

	size := blockEnd - payload
	fl.pool.SetWord(blockStart, size)

	fl.stats.UsedBlocks++
	fl.stats.UsedBytes += size
	fl.stats.BytesAllocated += int64(size)
	return payload
}

// Deallocate returns the block at ptr, allocated with layout l, to the list
// and merges it with free neighbours.
//
// Without checks a pointer or layout that did not come from Allocate
// corrupts the list. With checks the call fails instead and the list is
// left untouched.
func (fl *List) Deallocate(ptr uintptr, l layout.Layout) error {
	fl.stats.FreeCalls++

	prev, next, size, err := fl.locate(ptr, l, fl.checked)
	if err != nil {
		return err
	}
	blockStart := ptr - AllocHeader

	fl.stats.UsedBlocks--
	fl.stats.UsedBytes -= size
	fl.stats.BytesFreed += int64(size)

	blockEnd := ptr + size
	extent := blockEnd - blockStart

	if next != 0 && next == blockEnd {
		extent += FreeHeader + fl.size(next)
		next = fl.next(next)
		fl.stats.CoalesceForward++
	}

	if prev != 0 && fl.end(prev) == blockStart {
		fl.setFree(prev, fl.size(prev)+extent, next)
		fl.stats.CoalesceBackward++
		return nil
	}

	fl.setFree(blockStart, extent-FreeHeader, next)
	fl.link(prev, blockStart)
	return nil
}

// Check validates that ptr is an allocated block of this list matching
// layout l, whether or not the list was built with checks. The list is not
// modified.
func (fl *List) Check(ptr uintptr, l layout.Layout) error {
	_, _, _, err := fl.locate(ptr, l, true)
	return err
}

// Checked reports whether Deallocate validates its arguments.
func (fl *List) Checked() bool { return fl.checked }

// locate finds the free blocks around the allocated block at ptr and reads
// its usable size. With checked set it rejects foreign pointers, layout
// mismatches and blocks that overlap the free list.
func (fl *List) locate(ptr uintptr, l layout.Layout, checked bool) (prev, next, size uintptr, err error) {
	blockStart := ptr - AllocHeader
	if checked {
		if ptr < AllocHeader || !fl.pool.Contains(blockStart, MinBlock) ||
			!layout.IsAligned(ptr, l.BlockAlign()) {
			return 0, 0, 0, fmt.Errorf("%w: 0x%X", ErrForeignPointer, ptr)
		}
	}

	next = fl.head
	for next != 0 && next < blockStart {
		prev = next
		next = fl.next(next)
	}

	if checked {
		if next == blockStart || (prev != 0 && fl.end(prev) > blockStart) {
			return 0, 0, 0, fmt.Errorf("%w: 0x%X", ErrDoubleFree, ptr)
		}
	}

	size = fl.pool.Word(blockStart)
	if checked {
		need := l.Payload()
		if size < need || size-need >= MinBlock || !fl.pool.Contains(ptr, size) {
			return 0, 0, 0, fmt.Errorf("%w: 0x%X holds %d bytes, layout needs %d", ErrLayoutMismatch, ptr, size, need)
		}
		if next != 0 && next < ptr+size {
			return 0, 0, 0, fmt.Errorf("%w: 0x%X", ErrDoubleFree, ptr)
		}
	}
	return prev, next, size, nil
}

// Extend raises the pool limit to newLimit and hands the new bytes to the
// list.
//
// When the last free block ends at the old managed end it grows in place.
// Otherwise the new bytes become a free block at the tail of the list. Fewer
// than MinBlock new bytes that cannot be merged stay slack until a later
// Extend adds enough.
func (fl *List) Extend(newLimit uintptr) error {
	fl.stats.ExtendCalls++

	oldEnd := fl.pool.End()
	if err := fl.pool.Grow(newLimit); err != nil {
		return err
	}
	newEnd := fl.pool.GrowableEnd()
	if newEnd <= oldEnd {
		return nil
	}
	gained := newEnd - oldEnd

	tail := fl.tail()
	if tail != 0 && fl.end(tail) == oldEnd {
		fl.pool.SetEnd(newEnd)
		fl.pool.SetWord(tail, fl.size(tail)+gained)
		fl.stats.ExtendMerged++
		return nil
	}
	if gained < MinBlock {
		return nil
	}

	fl.pool.SetEnd(newEnd)
	fl.setFree(oldEnd, gained-FreeHeader, 0)
	fl.link(tail, oldEnd)
	return nil
}

// tail returns the last free block, or 0.
func (fl *List) tail() uintptr {
	var last uintptr
	for cur := fl.head; cur != 0; cur = fl.next(cur) {
		last = cur
	}
	return last
}

// Walk calls fn for each free block in address order until fn returns false.
// A list longer than the pool could hold stops the walk early.
func (fl *List) Walk(fn func(Block) bool) {
	limit := fl.pool.Managed()/MinBlock + 1
	for cur := fl.head; cur != 0 && limit > 0; cur = fl.next(cur) {
		if !fn(Block{Addr: cur, Size: fl.size(cur)}) {
			return
		}
		limit--
	}
}

// Blocks returns a copy of the free list.
func (fl *List) Blocks() []Block {
	var out []Block
	fl.Walk(func(b Block) bool {
		out = append(out, b)
		return true
	})
	return out
}

// Len returns the number of free blocks.
func (fl *List) Len() int {
	n := 0
	fl.Walk(func(Block) bool {
		n++
		return true
	})
	return n
}

// FreeBytes returns the usable bytes held by free blocks.
func (fl *List) FreeBytes() uintptr {
	var total uintptr
	fl.Walk(func(b Block) bool {
		total += b.Size
		return true
	})
	return total
}

// Largest returns the largest free block, or a zero Block when the list
// is empty.
func (fl *List) Largest() Block {
	var best Block
	fl.Walk(func(b Block) bool {
		if b.Size > best.Size || best.Addr == 0 {
			best = b
		}
		return true
	})
	return best
}

// ============================================================================
// Header access
// ============================================================================

func (fl *List) size(addr uintptr) uintptr { return fl.pool.Word(addr) }

func (fl *List) next(addr uintptr) uintptr { return fl.pool.Word(addr + layout.Word) }

func (fl *List) end(addr uintptr) uintptr { return addr + FreeHeader + fl.size(addr) }

func (fl *List) setFree(addr, size, next uintptr) {
	fl.pool.SetWord(addr, size)
	fl.pool.SetWord(addr+layout.Word, next)
}

// link makes next follow prev, or the head when prev is 0.
func (fl *List) link(prev, next uintptr) {
	if prev == 0 {
		fl.head = next
		return
	}
	fl.pool.SetWord(prev+layout.Word, next)
}

package verify

import (
	"encoding/binary"
	"fmt"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/internal/layout"
)

// ValidationError describes one broken invariant.
type ValidationError struct {
	Type    string
	Message string
	Addr    uintptr
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s at 0x%X: %s", e.Type, e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Allocation is one allocated block found by Tiling.
type Allocation struct {
	Addr uintptr // address of the header
	Size uintptr // usable bytes after the header
}

// Ptr returns the address handed to the caller.
func (a Allocation) Ptr() uintptr { return a.Addr + heap.AllocHeader }

// End returns the first address past the block.
func (a Allocation) End() uintptr { return a.Addr + heap.AllocHeader + a.Size }

// AllInvariants validates all snapshot invariants in one call.
// Returns the first error encountered, or nil if all checks pass.
// Tiling runs only when the snapshot carries memory.
func AllInvariants(s heap.Snapshot) error {
	if err := Bounds(s); err != nil {
		return err
	}
	if err := FreeList(s); err != nil {
		return err
	}
	if err := Accounting(s); err != nil {
		return err
	}
	if s.Memory != nil {
		if _, err := Tiling(s); err != nil {
			return err
		}
	}
	return nil
}

// Bounds validates the region and managed range.
func Bounds(s heap.Snapshot) error {
	if s.Limit == 0 {
		return &ValidationError{Type: "Bounds", Message: "heap not initialized"}
	}
	if s.Start < s.RawStart || s.End < s.Start || s.Limit < s.End {
		return &ValidationError{
			Type:    "Bounds",
			Message: fmt.Sprintf("range out of order: raw=0x%X start=0x%X end=0x%X limit=0x%X", s.RawStart, s.Start, s.End, s.Limit),
		}
	}
	if !layout.IsAligned(s.Start, layout.Word) || !layout.IsAligned(s.End, layout.Word) {
		return &ValidationError{
			Type:    "Bounds",
			Message: fmt.Sprintf("managed range not word-aligned: [0x%X, 0x%X)", s.Start, s.End),
			Addr:    s.Start,
		}
	}
	if s.Start-s.RawStart >= layout.Word {
		return &ValidationError{
			Type:    "Bounds",
			Message: fmt.Sprintf("start skips %d bytes, more than alignment needs", s.Start-s.RawStart),
			Addr:    s.RawStart,
		}
	}
	return nil
}

// FreeList validates ordering, bounds, alignment and coalescing of the free
// blocks.
func FreeList(s heap.Snapshot) error {
	var prevEnd uintptr
	for i, b := range s.Free {
		if !layout.IsAligned(b.Addr, layout.Word) || !layout.IsAligned(b.Size, layout.Word) {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("block %d not word-aligned (size %d)", i, b.Size),
				Addr:    b.Addr,
			}
		}
		if b.Addr < s.Start || b.End() > s.End || b.End() < b.Addr {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("block %d [0x%X, 0x%X) outside managed range", i, b.Addr, b.End()),
				Addr:    b.Addr,
			}
		}
		if i > 0 {
			switch {
			case b.Addr < prevEnd:
				return &ValidationError{
					Type:    "FreeList",
					Message: fmt.Sprintf("block %d overlaps or precedes block %d", i, i-1),
					Addr:    b.Addr,
				}
			case b.Addr == prevEnd:
				return &ValidationError{
					Type:    "FreeList",
					Message: fmt.Sprintf("blocks %d and %d are adjacent but not coalesced", i-1, i),
					Addr:    b.Addr,
				}
			}
		}
		prevEnd = b.End()
	}
	return nil
}

// Accounting validates that every byte of the region is accounted for and
// that the statistics agree with the free list.
func Accounting(s heap.Snapshot) error {
	st := s.Stats
	var free, largest uintptr
	for _, b := range s.Free {
		free += b.Size
		largest = max(largest, b.Size)
	}

	details := map[string]any{
		"size":     st.Size,
		"free":     st.Free,
		"used":     st.Used,
		"overhead": st.Overhead,
		"slack":    st.Slack,
	}
	switch {
	case st.FreeBlocks != len(s.Free) || st.Free != free || st.LargestFree != largest:
		return &ValidationError{
			Type: "Accounting",
			Message: fmt.Sprintf("stats disagree with free list: blocks %d/%d free %d/%d",
				st.FreeBlocks, len(s.Free), st.Free, free),
			Details: details,
		}
	case st.Size != s.Limit-s.RawStart:
		return &ValidationError{
			Type:    "Accounting",
			Message: fmt.Sprintf("size %d does not match region of %d bytes", st.Size, s.Limit-s.RawStart),
			Details: details,
		}
	case !st.Conserved():
		return &ValidationError{
			Type: "Accounting",
			Message: fmt.Sprintf("free %d + used %d + overhead %d + slack %d != size %d",
				st.Free, st.Used, st.Overhead, st.Slack, st.Size),
			Details: details,
		}
	}
	return nil
}

// Tiling walks the managed bytes of a Dump snapshot and checks that free
// and allocated blocks cover [Start, End) exactly. It returns the allocated
// blocks in address order.
func Tiling(s heap.Snapshot) ([]Allocation, error) {
	if uintptr(len(s.Memory)) != s.End-s.Start {
		return nil, &ValidationError{
			Type:    "Tiling",
			Message: fmt.Sprintf("snapshot holds %d bytes, managed range is %d", len(s.Memory), s.End-s.Start),
		}
	}

	var (
		allocs []Allocation
		used   uintptr
		next   int
	)
	cursor := s.Start
	for cursor < s.End {
		if next < len(s.Free) && s.Free[next].Addr == cursor {
			cursor = s.Free[next].End()
			next++
			continue
		}
		if next < len(s.Free) && s.Free[next].Addr < cursor {
			return nil, &ValidationError{
				Type:    "Tiling",
				Message: "free block starts inside an allocated block",
				Addr:    s.Free[next].Addr,
			}
		}

		size := readWord(s, cursor)
		end := cursor + heap.AllocHeader + size
		limit := s.End
		if next < len(s.Free) {
			limit = s.Free[next].Addr
		}
		if size < layout.Word || !layout.IsAligned(size, layout.Word) || end > limit || end < cursor {
			return nil, &ValidationError{
				Type:    "Tiling",
				Message: fmt.Sprintf("bad allocated header: size %d, next boundary 0x%X", size, limit),
				Addr:    cursor,
				Details: map[string]any{"size": size, "limit": limit},
			}
		}
		allocs = append(allocs, Allocation{Addr: cursor, Size: size})
		used += size
		cursor = end
	}

	if next != len(s.Free) {
		return nil, &ValidationError{
			Type:    "Tiling",
			Message: fmt.Sprintf("%d free blocks not reached by the walk", len(s.Free)-next),
			Addr:    s.Free[next].Addr,
		}
	}
	if cursor != s.End {
		return nil, &ValidationError{Type: "Tiling", Message: "last block overruns the managed range", Addr: cursor}
	}
	if len(allocs) != s.Stats.UsedBlocks || used != s.Stats.Used {
		return nil, &ValidationError{
			Type: "Tiling",
			Message: fmt.Sprintf("found %d allocations holding %d bytes, stats report %d holding %d",
				len(allocs), used, s.Stats.UsedBlocks, s.Stats.Used),
		}
	}
	return allocs, nil
}

// Disjoint checks that the given caller-side ranges [ptr, ptr+size) do not
// overlap each other or any free block.
func Disjoint(s heap.Snapshot, ranges []Allocation) error {
	type span struct {
		start, end uintptr
		free       bool
	}
	spans := make([]span, 0, len(ranges)+len(s.Free))
	for _, r := range ranges {
		spans = append(spans, span{r.Ptr(), r.End(), false})
	}
	for _, b := range s.Free {
		spans = append(spans, span{b.Addr, b.End(), true})
	}
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.free && b.free {
				continue
			}
			if a.start < b.end && b.start < a.end {
				return &ValidationError{
					Type:    "Disjoint",
					Message: fmt.Sprintf("[0x%X, 0x%X) overlaps [0x%X, 0x%X)", a.start, a.end, b.start, b.end),
					Addr:    max(a.start, b.start),
				}
			}
		}
	}
	return nil
}

func readWord(s heap.Snapshot, addr uintptr) uintptr {
	off := addr - s.Start
	b := s.Memory[off : off+layout.Word]
	if layout.Word == 8 {
		return uintptr(binary.NativeEndian.Uint64(b))
	}
	return uintptr(binary.NativeEndian.Uint32(b))
}

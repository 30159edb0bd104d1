package heap

import (
	"github.com/joshuapare/mcuheap/heap/freelist"
)

// Block is one free block: the address of its header and its usable size.
type Block = freelist.Block

// Counters are the running allocator counters.
type Counters = freelist.Stats

const (
	// AllocHeader is the per-allocation overhead in bytes.
	AllocHeader = freelist.AllocHeader
	// FreeHeader is the header size of a free block.
	FreeHeader = freelist.FreeHeader
	// MinBlock is the smallest extent a block can have.
	MinBlock = freelist.MinBlock
)

// Stats is a consistent view of the heap's accounting.
//
// Free + Used + Overhead + Slack always equals Size.
type Stats struct {
	Size        uintptr // bytes in the region, slack included
	Free        uintptr // usable bytes in free blocks
	FreeBlocks  int
	Used        uintptr // usable bytes in allocated blocks
	UsedBlocks  int
	Overhead    uintptr // header bytes of all blocks
	Slack       uintptr // bytes outside the managed range
	LargestFree uintptr // usable bytes of the largest free block

	Counters     Counters
	ReallocCalls int
}

// Conserved reports whether every byte of the region is accounted for.
func (s Stats) Conserved() bool {
	return s.Free+s.Used+s.Overhead+s.Slack == s.Size
}

// Fragmentation returns 1 - LargestFree/Free, or 0 when nothing is free.
func (s Stats) Fragmentation() float64 {
	if s.Free == 0 {
		return 0
	}
	return 1 - float64(s.LargestFree)/float64(s.Free)
}

// Snapshot is a copy of the heap's bounds, free list and accounting.
type Snapshot struct {
	RawStart uintptr // first byte handed to Init
	Start    uintptr // first managed byte
	End      uintptr // end of the managed range
	Limit    uintptr // end of the region

	Free  []Block
	Stats Stats

	// Memory is a copy of [Start, End). Only Dump fills it in.
	Memory []byte
}

// Stats returns the current accounting. An uninitialized heap reports
// zero values.
func (h *Heap) Stats() Stats {
	var st Stats
	h.state.Lock(func(s *state) {
		if s.list != nil {
			st = collect(s)
		}
	})
	return st
}

// Snapshot returns the current bounds, free list and accounting.
func (h *Heap) Snapshot() Snapshot {
	return h.snapshot(false)
}

// Dump is Snapshot plus a copy of the managed bytes.
func (h *Heap) Dump() Snapshot {
	return h.snapshot(true)
}

func (h *Heap) snapshot(withMemory bool) Snapshot {
	var snap Snapshot
	h.state.Lock(func(s *state) {
		if s.list == nil {
			return
		}
		p := s.list.Pool()
		snap = Snapshot{
			RawStart: p.RawStart(),
			Start:    p.Start(),
			End:      p.End(),
			Limit:    p.Limit(),
			Free:     s.list.Blocks(),
			Stats:    collect(s),
		}
		if withMemory && p.Managed() > 0 {
			snap.Memory = append([]byte(nil), p.Bytes(p.Start(), p.Managed())...)
		}
	})
	return snap
}

// Bounds returns the managed range [start, end). Both are 0 before Init.
func (h *Heap) Bounds() (start, end uintptr) {
	h.state.Lock(func(s *state) {
		if s.list != nil {
			start, end = s.list.Pool().Start(), s.list.Pool().End()
		}
	})
	return start, end
}

func collect(s *state) Stats {
	p := s.list.Pool()
	c := s.list.Stats()
	st := Stats{
		Size:         p.Size(),
		UsedBlocks:   c.UsedBlocks,
		Used:         c.UsedBytes,
		Slack:        p.Slack(),
		Counters:     c,
		ReallocCalls: s.reallocCalls,
	}
	s.list.Walk(func(b Block) bool {
		st.Free += b.Size
		st.FreeBlocks++
		st.LargestFree = max(st.LargestFree, b.Size)
		return true
	})
	st.Overhead = uintptr(st.FreeBlocks)*FreeHeader + uintptr(st.UsedBlocks)*AllocHeader
	return st
}

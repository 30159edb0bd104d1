package freelist

import "github.com/joshuapare/mcuheap/internal/layout"

const (
	// AllocHeader is the header size of an allocated block.
	AllocHeader = layout.Word

	// FreeHeader is the header size of a free block.
	FreeHeader = 2 * layout.Word

	// MinBlock is the smallest extent a block may have. A remainder below
	// this size is absorbed into the neighbouring allocation.
	MinBlock = FreeHeader
)

// Block is a snapshot of one free block.
type Block struct {
	Addr uintptr // address of the header
	Size uintptr // usable bytes after the header
}

// End returns the first address past the block.
func (b Block) End() uintptr { return b.Addr + FreeHeader + b.Size }

// Extent returns the number of bytes the block covers, header included.
func (b Block) Extent() uintptr { return FreeHeader + b.Size }

// Stats holds allocator counters and the live accounting totals.
type Stats struct {
	AllocCalls       int // Allocate calls, successful or not
	FreeCalls        int // Deallocate calls
	OutOfMemory      int // Allocate calls that found no fit
	SplitCount       int // blocks split, leaving a tail remainder free
	AbsorbCount      int // tail remainders absorbed into an allocation
	FrontSplits      int // placements that left an alignment gap free
	CoalesceForward  int // merges with the following free block
	CoalesceBackward int // merges with the preceding free block
	ExtendCalls      int // Extend calls
	ExtendMerged     int // Extend calls that grew the tail block in place
	BytesAllocated   int64
	BytesFreed       int64

	UsedBlocks int     // live allocated blocks
	UsedBytes  uintptr // usable bytes held by live allocated blocks
}

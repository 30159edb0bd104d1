package freelist

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mcuheap/heap/pool"
)

func TestNew_SingleBlock(t *testing.T) {
	fl := newTestList(t, 1024, 1024, false)

	blocks := fl.Blocks()
	require.Len(t, blocks, 1)
	require.Equal(t, uintptr(sramBase), blocks[0].Addr)
	require.Equal(t, 1024-FreeHeader, blocks[0].Size)
	requireInvariants(t, fl, nil)
}

func TestNew_TooSmall(t *testing.T) {
	exact := newTestList(t, MinBlock, MinBlock, false)
	require.Equal(t, []Block{{Addr: sramBase, Size: 0}}, exact.Blocks())

	p, err := pool.Simulated(sramBase, MinBlock-w, MinBlock-w)
	require.NoError(t, err)
	_, err = New(p, false)
	require.ErrorIs(t, err, ErrTooSmall)
}

// Test_FirstFit_ReusesFreedRegion covers the 1024-byte scenario: with three
// live blocks and the middle one freed, a smaller request lands in the
// freed region rather than in untouched memory.
func Test_FirstFit_ReusesFreedRegion(t *testing.T) {
	fl := newTestList(t, 1024, 1024, false)

	a, err := fl.Allocate(mustLayout(t, 100, 1))
	require.NoError(t, err)
	b, err := fl.Allocate(mustLayout(t, 200, 1))
	require.NoError(t, err)
	c, err := fl.Allocate(mustLayout(t, 300, 1))
	require.NoError(t, err)

	require.Less(t, a, b)
	require.Less(t, b, c)

	require.NoError(t, fl.Deallocate(b, mustLayout(t, 200, 1)))
	require.Equal(t, 2, fl.Len())

	d, err := fl.Allocate(mustLayout(t, 150, 1))
	require.NoError(t, err)
	require.Equal(t, b, d, "first fit must reuse the freed 200-byte region")

	requireInvariants(t, fl, []live{
		{a, mustLayout(t, 100, 1)},
		{c, mustLayout(t, 300, 1)},
		{d, mustLayout(t, 150, 1)},
	})
}

func TestAllocate_Alignment(t *testing.T) {
	fl := newTestList(t, 8192, 8192, false)

	var allocs []live
	for _, align := range []uintptr{1, 2, 4, 8, 16, 32, 64, 128, 256, 512} {
		l := mustLayout(t, 24, align)
		ptr, err := fl.Allocate(l)
		require.NoError(t, err, "align %d", align)
		require.Zero(t, ptr%align, "align %d: ptr 0x%X", align, ptr)
		allocs = append(allocs, live{ptr, l})
		requireInvariants(t, fl, allocs)
	}
	require.Positive(t, fl.Stats().FrontSplits, "large alignments should leave gaps as free blocks")
}

func TestAllocate_FrontGapNeverBelowMinBlock(t *testing.T) {
	fl := newTestList(t, 1024, 1024, false)

	// The first payload candidate sits one word into the block; with a
	// 2*w alignment the gap would be a single word, too small to be free.
	l := mustLayout(t, w, 2*w)
	ptr, err := fl.Allocate(l)
	require.NoError(t, err)

	gap := ptr - AllocHeader - sramBase
	require.True(t, gap == 0 || gap >= MinBlock, "gap %d", gap)
	requireInvariants(t, fl, []live{{ptr, l}})
}

func TestAllocate_SplitAndAbsorb(t *testing.T) {
	fl := newTestList(t, 256, 256, false)

	// Leaves a one-word remainder, which cannot form a block.
	l := mustLayout(t, 256-2*w, 1)
	ptr, err := fl.Allocate(l)
	require.NoError(t, err)

	st := fl.Stats()
	require.Equal(t, 1, st.AbsorbCount)
	require.Zero(t, st.SplitCount)
	require.Equal(t, uintptr(0), fl.Head(), "the whole pool is allocated")
	require.Equal(t, 256-w, fl.Pool().Word(ptr-AllocHeader))
	requireInvariants(t, fl, []live{{ptr, l}})

	require.NoError(t, fl.Deallocate(ptr, l))
	require.Equal(t, []Block{{Addr: sramBase, Size: 256 - FreeHeader}}, fl.Blocks())
	requireInvariants(t, fl, nil)

	// Leaves exactly MinBlock, which is split off.
	l = mustLayout(t, 256-AllocHeader-MinBlock, 1)
	ptr, err = fl.Allocate(l)
	require.NoError(t, err)
	require.Equal(t, 1, fl.Stats().SplitCount)
	require.Equal(t, []Block{{Addr: sramBase + 256 - MinBlock, Size: 0}}, fl.Blocks())
	requireInvariants(t, fl, []live{{ptr, l}})
}

func TestDeallocate_CoalesceBothOrders(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		name := "A then B"
		if reverse {
			name = "B then A"
		}
		t.Run(name, func(t *testing.T) {
			fl := newTestList(t, 1024, 1024, false)
			la, lb, lc := mustLayout(t, 64, 8), mustLayout(t, 96, 8), mustLayout(t, 32, 8)

			a, err := fl.Allocate(la)
			require.NoError(t, err)
			b, err := fl.Allocate(lb)
			require.NoError(t, err)
			c, err := fl.Allocate(lc) // keeps A and B away from the tail
			require.NoError(t, err)

			aExtent := fl.Pool().Word(a-AllocHeader) + AllocHeader
			bExtent := fl.Pool().Word(b-AllocHeader) + AllocHeader
			require.Equal(t, a+fl.Pool().Word(a-AllocHeader)+AllocHeader, b, "A and B must be contiguous")

			first, second := a, b
			firstL, secondL := la, lb
			if reverse {
				first, second = b, a
				firstL, secondL = lb, la
			}
			require.NoError(t, fl.Deallocate(first, firstL))
			require.NoError(t, fl.Deallocate(second, secondL))

			blocks := fl.Blocks()
			require.Len(t, blocks, 2, "merged A+B plus the tail")
			require.Equal(t, a-AllocHeader, blocks[0].Addr)
			require.Equal(t, aExtent+bExtent, blocks[0].Extent())

			requireInvariants(t, fl, []live{{c, lc}})
		})
	}
}

func TestDeallocate_CoalesceThreeWay(t *testing.T) {
	fl := newTestList(t, 512, 512, false)
	l := mustLayout(t, 40, 8)

	var ptrs []uintptr
	for range 3 {
		p, err := fl.Allocate(l)
		require.NoError(t, err)
		ptrs = append(ptrs, p)
	}
	guard, err := fl.Allocate(l)
	require.NoError(t, err)

	require.NoError(t, fl.Deallocate(ptrs[0], l))
	require.NoError(t, fl.Deallocate(ptrs[2], l))
	require.Equal(t, 3, fl.Len())

	require.NoError(t, fl.Deallocate(ptrs[1], l))
	require.Equal(t, 2, fl.Len())

	st := fl.Stats()
	require.Equal(t, 1, st.CoalesceForward)
	require.Equal(t, 1, st.CoalesceBackward)
	requireInvariants(t, fl, []live{{guard, l}})
}

func TestAllocate_ExhaustionLeavesStateUnchanged(t *testing.T) {
	fl := newTestList(t, 512, 512, false)
	l := mustLayout(t, 100, 8)
	a, err := fl.Allocate(l)
	require.NoError(t, err)

	before := fl.Blocks()
	_, err = fl.Allocate(mustLayout(t, 1024, 8))
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, before, fl.Blocks())
	require.Equal(t, 1, fl.Stats().OutOfMemory)

	small, err := fl.Allocate(mustLayout(t, 64, 8))
	require.NoError(t, err)
	requireInvariants(t, fl, []live{{a, l}, {small, mustLayout(t, 64, 8)}})
}

func TestExtend_MergesIntoTail(t *testing.T) {
	fl := newTestList(t, 256, 1024, false)
	l := mustLayout(t, 64, 8)
	a, err := fl.Allocate(l)
	require.NoError(t, err)

	tailBefore := fl.Blocks()[0]
	require.NoError(t, fl.Extend(sramBase+512))

	blocks := fl.Blocks()
	require.Len(t, blocks, 1)
	require.Equal(t, tailBefore.Addr, blocks[0].Addr)
	require.Equal(t, tailBefore.Size+256, blocks[0].Size)
	require.Equal(t, 1, fl.Stats().ExtendMerged)
	requireInvariants(t, fl, []live{{a, l}})
}

func TestExtend_AppendsAfterAllocatedTail(t *testing.T) {
	fl := newTestList(t, 256, 1024, false)
	l := mustLayout(t, 256-AllocHeader, 1)
	a, err := fl.Allocate(l)
	require.NoError(t, err)
	require.Zero(t, fl.Len())

	require.NoError(t, fl.Extend(sramBase+384))
	require.Equal(t, []Block{{Addr: sramBase + 256, Size: 128 - FreeHeader}}, fl.Blocks())
	require.Zero(t, fl.Stats().ExtendMerged)
	requireInvariants(t, fl, []live{{a, l}})
}

func TestExtend_TooSmallStaysSlack(t *testing.T) {
	fl := newTestList(t, 256, 1024, false)
	l := mustLayout(t, 256-AllocHeader, 1)
	a, err := fl.Allocate(l)
	require.NoError(t, err)

	require.NoError(t, fl.Extend(sramBase+256+w))
	require.Zero(t, fl.Len())
	require.Equal(t, uintptr(sramBase+256), fl.Pool().End())
	require.Equal(t, w, fl.Pool().Slack())

	// A second extend picks up the slack.
	require.NoError(t, fl.Extend(sramBase+256+2*w))
	require.Equal(t, []Block{{Addr: sramBase + 256, Size: 0}}, fl.Blocks())
	requireInvariants(t, fl, []live{{a, l}})
}

func TestExtend_Errors(t *testing.T) {
	fl := newTestList(t, 256, 512, false)
	require.Error(t, fl.Extend(sramBase+128))
	require.Error(t, fl.Extend(sramBase+1024))
	requireInvariants(t, fl, nil)
}

func TestChecked_ContractViolations(t *testing.T) {
	fl := newTestList(t, 512, 512, true)
	l := mustLayout(t, 32, 8)
	a, err := fl.Allocate(l)
	require.NoError(t, err)
	b, err := fl.Allocate(l)
	require.NoError(t, err)

	require.ErrorIs(t, fl.Deallocate(sramBase+4096, l), ErrForeignPointer)
	require.ErrorIs(t, fl.Deallocate(a+1, l), ErrForeignPointer)
	require.ErrorIs(t, fl.Deallocate(a, mustLayout(t, 256, 8)), ErrLayoutMismatch)

	require.NoError(t, fl.Deallocate(a, l))
	require.ErrorIs(t, fl.Deallocate(a, l), ErrDoubleFree)

	require.NoError(t, fl.Deallocate(b, l))
	require.ErrorIs(t, fl.Deallocate(b, l), ErrDoubleFree, "b merged into a free block")
	requireInvariants(t, fl, nil)
}

func TestCheck_UncheckedList(t *testing.T) {
	fl := newTestList(t, 512, 512, false)
	l := mustLayout(t, 32, 8)
	a, err := fl.Allocate(l)
	require.NoError(t, err)
	before := fl.Stats()

	require.NoError(t, fl.Check(a, l))
	require.ErrorIs(t, fl.Check(sramBase+4096, l), ErrForeignPointer)
	require.ErrorIs(t, fl.Check(a, mustLayout(t, 256, 8)), ErrLayoutMismatch)
	require.Equal(t, before, fl.Stats(), "Check must not touch the list")

	require.NoError(t, fl.Deallocate(a, l))
	require.ErrorIs(t, fl.Check(a, l), ErrDoubleFree)
	requireInvariants(t, fl, nil)
}

func Test_Fuzz_RandomAllocFree_Invariants(t *testing.T) {
	fl := newTestList(t, 4096, 16384, true)
	rng := rand.New(rand.NewSource(42)) // Fixed seed for reproducibility

	var allocs []live
	for step := range 2000 {
		switch op := rng.Intn(10); {
		case op < 5:
			l := mustLayout(t, uintptr(rng.Intn(300)), uintptr(1)<<rng.Intn(7))
			ptr, err := fl.Allocate(l)
			if err != nil {
				require.ErrorIs(t, err, ErrOutOfMemory, "step %d", step)
				continue
			}
			allocs = append(allocs, live{ptr, l})
		case op < 9:
			if len(allocs) == 0 {
				continue
			}
			i := rng.Intn(len(allocs))
			require.NoError(t, fl.Deallocate(allocs[i].ptr, allocs[i].l), "step %d", step)
			allocs = append(allocs[:i], allocs[i+1:]...)
		default:
			limit := fl.Pool().Limit()
			if limit+64 <= sramBase+16384 {
				require.NoError(t, fl.Extend(limit+uintptr(rng.Intn(64))+1), "step %d", step)
			}
		}
		requireInvariants(t, fl, allocs)
	}

	for _, a := range allocs {
		require.NoError(t, fl.Deallocate(a.ptr, a.l))
	}
	require.Equal(t, 1, fl.Len(), "everything coalesces back into one block")
	requireInvariants(t, fl, nil)
}

package trace

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"unsafe"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/verify"
	"github.com/joshuapare/mcuheap/internal/logger"
)

// Block is a live block of a replay.
type Block struct {
	ID    string
	Ptr   unsafe.Pointer
	Size  uintptr
	Align uintptr
}

// Runner replays scenarios against one heap and tracks the blocks they own.
type Runner struct {
	h      *heap.Heap
	verify bool
	log    *slog.Logger

	live    map[string]Block
	history map[string]uintptr // last address of every id ever allocated
	applied Applied
}

// NewRunner creates a Runner for h. With verifyEach set, heap invariants
// are checked after every operation.
func NewRunner(h *heap.Heap, verifyEach bool) *Runner {
	return &Runner{
		h:       h,
		verify:  verifyEach,
		log:     logger.L,
		live:    make(map[string]Block),
		history: make(map[string]uintptr),
	}
}

// Heap returns the heap the runner replays against.
func (r *Runner) Heap() *heap.Heap { return r.h }

// Applied returns the totals of all replays so far.
func (r *Runner) Applied() Applied { return r.applied }

// Live returns the live blocks in address order.
func (r *Runner) Live() []Block {
	out := make([]Block, 0, len(r.live))
	for _, b := range r.live {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return uintptr(out[i].Ptr) < uintptr(out[j].Ptr) })
	return out
}

// Run replays every operation of s in order and stops at the first error.
func (r *Runner) Run(s *Scenario) (Applied, error) {
	before := r.applied
	for i, op := range s.Ops {
		if err := r.Apply(op); err != nil {
			return r.delta(before), fmt.Errorf("%s: op %d (%s %s): %w", s.Name, i, op.Type, op.ID, err)
		}
	}
	r.log.Debug("scenario replayed", "name", s.Name, "ops", len(s.Ops))
	return r.delta(before), nil
}

func (r *Runner) delta(before Applied) Applied {
	a := r.applied
	return Applied{
		Allocs:   a.Allocs - before.Allocs,
		Frees:    a.Frees - before.Frees,
		Reallocs: a.Reallocs - before.Reallocs,
		Extends:  a.Extends - before.Extends,
		Failures: a.Failures - before.Failures,
		Checks:   a.Checks - before.Checks,
	}
}

// Apply performs a single operation.
func (r *Runner) Apply(op Op) error {
	var err error
	switch op.Type {
	case OpAlloc:
		err = r.alloc(op)
	case OpFree:
		err = r.free(op)
	case OpRealloc:
		err = r.realloc(op)
	case OpExtend:
		err = r.extend(op)
	case OpExpect:
		err = r.expect(op)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownOp, op.Type)
	}
	if err != nil {
		return err
	}
	if r.verify {
		if err := verify.AllInvariants(r.h.Dump()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) alloc(op Op) error {
	if _, ok := r.live[op.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, op.ID)
	}
	align := alignOf(op)

	ptr, err := r.h.Allocate(op.Size, align)
	if err == nil && op.ExpectOOM {
		r.h.Deallocate(ptr, op.Size, align)
		return unexpectedFit(op)
	}
	if done, err := r.checkOOM(op, err); done {
		return err
	}

	if op.SameAs != "" {
		want, ok := r.history[op.SameAs]
		switch {
		case !ok:
			r.h.Deallocate(ptr, op.Size, align)
			return fmt.Errorf("%w: same_as %q", ErrUnknownID, op.SameAs)
		case uintptr(ptr) != want:
			r.h.Deallocate(ptr, op.Size, align)
			return fmt.Errorf("%w: got 0x%X, %q had 0x%X", ErrExpectation, uintptr(ptr), op.SameAs, want)
		}
	}

	b := Block{ID: op.ID, Ptr: ptr, Size: op.Size, Align: align}
	fill(b)
	r.live[op.ID] = b
	r.history[op.ID] = uintptr(ptr)
	r.applied.Allocs++
	return nil
}

func (r *Runner) free(op Op) error {
	b, ok := r.live[op.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownID, op.ID)
	}
	if !intact(b, b.Size) {
		return fmt.Errorf("%w: %q", ErrCorrupted, op.ID)
	}
	r.h.Deallocate(b.Ptr, b.Size, b.Align)
	delete(r.live, op.ID)
	r.applied.Frees++
	return nil
}

func (r *Runner) realloc(op Op) error {
	b, ok := r.live[op.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownID, op.ID)
	}

	ptr, err := r.h.Reallocate(b.Ptr, b.Size, op.NewSize, b.Align)
	if err == nil && op.ExpectOOM {
		// The old block is gone either way; track the one that replaced it.
		moved := Block{ID: b.ID, Ptr: ptr, Size: op.NewSize, Align: b.Align}
		fill(moved)
		r.live[op.ID] = moved
		r.history[op.ID] = uintptr(ptr)
		return unexpectedFit(op)
	}
	if done, err := r.checkOOM(op, err); done {
		if err == nil && !intact(b, b.Size) {
			return fmt.Errorf("%w: %q after failed realloc", ErrCorrupted, op.ID)
		}
		return err
	}

	moved := Block{ID: b.ID, Ptr: ptr, Size: op.NewSize, Align: b.Align}
	if !intact(moved, min(b.Size, op.NewSize)) {
		return fmt.Errorf("%w: %q lost data in realloc", ErrCorrupted, op.ID)
	}
	fill(moved)
	r.live[op.ID] = moved
	r.history[op.ID] = uintptr(ptr)
	r.applied.Reallocs++
	return nil
}

func unexpectedFit(op Op) error {
	return fmt.Errorf("%w: %s succeeded, expected out of memory", ErrExpectation, op.Type)
}

// checkOOM reconciles a failed allocation with op.ExpectOOM. It reports
// done when the caller has nothing left to do.
func (r *Runner) checkOOM(op Op, err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case op.ExpectOOM && errors.Is(err, heap.ErrOutOfMemory):
		r.applied.Failures++
		return true, nil
	default:
		return true, err
	}
}

func (r *Runner) extend(op Op) error {
	snap := r.h.Snapshot()
	if err := r.h.Extend(snap.Limit + op.Grow); err != nil {
		return err
	}
	r.applied.Extends++
	return nil
}

func (r *Runner) expect(op Op) error {
	st := r.h.Stats()
	switch {
	case op.FreeBlocks != nil && *op.FreeBlocks != st.FreeBlocks:
		return fmt.Errorf("%w: %d free blocks, expected %d", ErrExpectation, st.FreeBlocks, *op.FreeBlocks)
	case op.UsedBlocks != nil && *op.UsedBlocks != st.UsedBlocks:
		return fmt.Errorf("%w: %d used blocks, expected %d", ErrExpectation, st.UsedBlocks, *op.UsedBlocks)
	case op.Free != nil && *op.Free != st.Free:
		return fmt.Errorf("%w: %d free bytes, expected %d", ErrExpectation, st.Free, *op.Free)
	}
	r.applied.Checks++
	return nil
}

func alignOf(op Op) uintptr {
	if op.Align == 0 {
		return 1
	}
	return op.Align
}

// pattern returns the byte stored at offset i of block id.
func pattern(id string, i uintptr) byte {
	h := fnv.New32a()
	h.Write([]byte(id))
	return byte(h.Sum32()) + byte(i*31)
}

func fill(b Block) {
	for i, buf := uintptr(0), heap.Bytes(b.Ptr, b.Size); i < uintptr(len(buf)); i++ {
		buf[i] = pattern(b.ID, i)
	}
}

func intact(b Block, n uintptr) bool {
	for i, v := range heap.Bytes(b.Ptr, n) {
		if v != pattern(b.ID, uintptr(i)) {
			return false
		}
	}
	return true
}

// Package heap is a first-fit free-list allocator for one contiguous memory
// region on a single core.
//
// # Overview
//
// A Heap manages a byte range bound once with Init (a raw address range) or
// InitSlice (a Go byte slice). All metadata lives inside the range: free
// blocks carry a two-word header {size, next} and form a list sorted by
// address; allocated blocks carry a one-word {size} header right before the
// pointer handed out. Freed blocks are merged with both neighbours, so the
// list never holds two adjacent blocks.
//
// Every mutation runs inside an interrupt-masking critical section provided
// by a critical.Controller, which makes the heap usable from interrupt
// handlers on the same core. No call blocks.
//
// # Usage
//
//	h := heap.New(heap.DefaultOptions())
//	if err := h.InitSlice(make([]byte, 64<<10)); err != nil {
//	    return err
//	}
//
//	ptr, err := h.Allocate(128, 16)
//	if err != nil {
//	    return err // errors.Is(err, heap.ErrOutOfMemory)
//	}
//	buf := heap.Bytes(ptr, 128)
//	...
//	h.Deallocate(ptr, 128, 16)
//
// The package-level functions operate on the process-wide heap returned by
// Default, which starts uninitialized.
//
// # Garbage collection
//
// Memory handed out by a Heap is not scanned by the Go garbage collector.
// Do not store Go pointers in it.
//
// # Contract checks
//
// Passing Deallocate a pointer or layout that Allocate did not produce is
// undefined behavior. With Options.Checked (or MCUHEAP_CHECKED=1) such
// calls panic with a *ContractViolation instead of corrupting the heap.
package heap

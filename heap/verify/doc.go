// Package verify checks the structural invariants of a heap snapshot.
//
// # Overview
//
// The checks run against a heap.Snapshot, so they never touch the live
// heap. A snapshot taken with (*heap.Heap).Dump also carries a copy of the
// managed bytes, which lets Tiling walk every block header.
//
// Validation categories:
//   - Bounds: managed range aligned and inside the region
//   - FreeList: ascending, inside the managed range, fully coalesced
//   - Accounting: Free + Used + Overhead + Slack == Size
//   - Tiling: free and allocated blocks cover the managed range exactly,
//     with no gaps and no overlaps
//
// # Quick Start
//
//	if err := verify.AllInvariants(h.Dump()); err != nil {
//	    t.Fatalf("heap corrupted: %v", err)
//	}
//
// # ValidationError
//
// All checks return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string         // check that failed, e.g. "FreeList"
//	    Message string         // human-readable description
//	    Addr    uintptr        // address involved, 0 if none
//	    Details map[string]any // additional context
//	}
package verify

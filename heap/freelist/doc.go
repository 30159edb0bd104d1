// Package freelist implements first-fit allocation over a pool.Pool using an
// intrusive, address-ordered singly linked list of free blocks.
//
// # Block Layout
//
// Every block starts on a word boundary. A free block begins with a two-word
// header, an allocated block with a one-word header sitting right before the
// pointer handed to the caller:
//
//	free:      [size][next][ ... size bytes ... ]
//	allocated:       [size][ ... size bytes ... ]
//	                       ^ payload address
//
// size is always the usable byte count after the header. When a block is
// handed out the header shrinks by one word, so the same extent reports one
// more word of payload; freeing reverses this.
//
// # Invariants
//
//   - Free blocks are sorted by ascending address and never adjacent
//     (every free is coalesced with both neighbours).
//   - Free and allocated extents never overlap and together with their
//     headers tile [pool.Start, pool.End) exactly.
//   - Every extent is at least MinBlock bytes, so any allocated block can
//     be turned back into a free block in place.
//
// # Thread Safety
//
// A List is not safe for concurrent use. The heap package serializes all
// access through an interrupt-masking critical section.
package freelist

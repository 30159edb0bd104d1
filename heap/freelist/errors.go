package freelist

import "errors"

var (
	// ErrOutOfMemory indicates that no free block can hold the request.
	ErrOutOfMemory = errors.New("freelist: out of memory")

	// ErrForeignPointer indicates a pointer outside the managed range or not
	// aligned as its layout requires.
	ErrForeignPointer = errors.New("freelist: pointer not from this heap")

	// ErrLayoutMismatch indicates a header whose size cannot belong to the
	// layout supplied with the pointer.
	ErrLayoutMismatch = errors.New("freelist: layout does not match block")

	// ErrDoubleFree indicates a block that overlaps an existing free block.
	ErrDoubleFree = errors.New("freelist: block overlaps free memory")
)

// ErrTooSmall indicates a pool that cannot hold a single block.
var ErrTooSmall = errors.New("freelist: region smaller than one block")

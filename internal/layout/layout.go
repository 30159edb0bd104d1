package layout

import "errors"

// ErrInvalid is returned for a non-power-of-two alignment or a size whose
// rounding would overflow the address space.
var ErrInvalid = errors.New("layout: invalid size or alignment")

// Layout is the size and alignment of a single allocation request,
// exactly as the caller supplied them.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// New validates size and align and returns the Layout.
func New(size, align uintptr) (Layout, error) {
	if !IsPowerOfTwo(align) {
		return Layout{}, ErrInvalid
	}
	// Leave room for the header word and the largest alignment padding so
	// that placement arithmetic never wraps.
	if size > ^uintptr(0)-4*Word-align {
		return Layout{}, ErrInvalid
	}
	return Layout{Size: size, Align: align}, nil
}

// Payload is the number of usable bytes a block needs for this layout:
// Size rounded up to whole words, never less than one word.
func (l Layout) Payload() uintptr {
	if l.Size <= Word {
		return Word
	}
	return AlignUp(l.Size, Word)
}

// BlockAlign is the alignment used for placement: Align, raised to Word.
func (l Layout) BlockAlign() uintptr {
	if l.Align < Word {
		return Word
	}
	return l.Align
}

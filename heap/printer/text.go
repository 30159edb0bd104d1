package printer

import (
	"fmt"
	"strings"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/verify"
)

// printStatsText prints accounting in human-readable text format.
func (p *Printer) printStatsText(st heap.Stats) error {
	w := p.writer
	fmt.Fprintf(w, "Size:        %d\n", st.Size)
	fmt.Fprintf(w, "Free:        %d in %d blocks (largest %d)\n", st.Free, st.FreeBlocks, st.LargestFree)
	fmt.Fprintf(w, "Used:        %d in %d blocks\n", st.Used, st.UsedBlocks)
	fmt.Fprintf(w, "Overhead:    %d\n", st.Overhead)
	fmt.Fprintf(w, "Slack:       %d\n", st.Slack)
	fmt.Fprintf(w, "Fragmented:  %.1f%%\n", st.Fragmentation()*100)

	c := st.Counters
	fmt.Fprintf(w, "Calls:       alloc=%d free=%d realloc=%d extend=%d oom=%d\n",
		c.AllocCalls, c.FreeCalls, st.ReallocCalls, c.ExtendCalls, c.OutOfMemory)
	fmt.Fprintf(w, "Splits:      tail=%d front=%d absorbed=%d\n", c.SplitCount, c.FrontSplits, c.AbsorbCount)
	_, err := fmt.Fprintf(w, "Coalesces:   forward=%d backward=%d\n", c.CoalesceForward, c.CoalesceBackward)
	return err
}

// printSnapshotText prints a snapshot in human-readable text format.
func (p *Printer) printSnapshotText(s heap.Snapshot, allocs []verify.Allocation) error {
	w := p.writer
	fmt.Fprintf(w, "Region:      [0x%X, 0x%X)\n", s.RawStart, s.Limit)
	fmt.Fprintf(w, "Managed:     [0x%X, 0x%X)\n", s.Start, s.End)
	if err := p.printStatsText(s.Stats); err != nil {
		return err
	}

	if p.opts.ShowFreeList {
		fmt.Fprintf(w, "\nFree blocks (%d):\n", len(s.Free))
		for _, b := range s.Free {
			fmt.Fprintf(w, "  0x%X  %8d  %s\n", b.Addr, b.Size, bar(b.Extent(), s))
		}
	}

	if p.opts.ShowAllocations && s.Memory != nil {
		fmt.Fprintf(w, "\nAllocated blocks (%d):\n", len(allocs))
		for _, a := range allocs {
			fmt.Fprintf(w, "  0x%X  %8d  ptr=0x%X\n", a.Addr, a.Size, a.Ptr())
		}
	}
	return nil
}

// bar renders the share of the managed range a block covers.
func bar(extent uintptr, s heap.Snapshot) string {
	const width = 20
	managed := s.End - s.Start
	if managed == 0 {
		return ""
	}
	n := int(extent * width / managed)
	if n == 0 && extent > 0 {
		n = 1
	}
	return strings.Repeat("#", n)
}

// hexdump prints data as hex and glyphs, labelled with heap addresses.
func (p *Printer) hexdump(addr uintptr, data []byte) error {
	width := p.opts.HexWidth
	var line strings.Builder
	for off := 0; off < len(data); off += width {
		chunk := data[off:min(off+width, len(data))]
		line.Reset()
		fmt.Fprintf(&line, "0x%X  ", addr+uintptr(off))
		for i := range width {
			if i < len(chunk) {
				fmt.Fprintf(&line, "%02x ", chunk[i])
			} else {
				line.WriteString("   ")
			}
		}
		line.WriteString(" |")
		for _, b := range chunk {
			line.WriteRune(p.glyph(b))
		}
		line.WriteString("|\n")
		if _, err := fmt.Fprint(p.writer, line.String()); err != nil {
			return err
		}
	}
	return nil
}

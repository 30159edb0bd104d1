package printer

import (
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/verify"
)

const (
	DefaultHexWidth     = 16
	DefaultMaxDumpBytes = 4096
)

// Format specifies the output format for printing.
type Format string

const (
	// FormatText outputs human-readable text format.
	FormatText Format = "text"

	// FormatJSON outputs JSON format.
	FormatJSON Format = "json"
)

// Charset selects how the glyph column of a hexdump renders bytes.
type Charset string

const (
	// CharsetASCII prints printable ASCII and '.' for everything else.
	CharsetASCII Charset = "ascii"

	// CharsetCP437 prints bytes 0x80 and up as IBM PC code page 437 glyphs.
	CharsetCP437 Charset = "cp437"

	// CharsetWindows1252 prints bytes 0x80 and up as Windows-1252 characters.
	CharsetWindows1252 Charset = "windows-1252"
)

// Options controls printing behavior.
type Options struct {
	// Format specifies output format (text, json).
	// Default: FormatText
	Format Format

	// ShowFreeList includes every free block.
	// Default: true
	ShowFreeList bool

	// ShowAllocations includes every allocated block. Needs a snapshot
	// taken with Dump.
	// Default: true
	ShowAllocations bool

	// HexWidth is the number of bytes per hexdump line.
	// Default: 16
	HexWidth int

	// MaxDumpBytes limits how many bytes a hexdump shows. Set to 0 for no
	// limit.
	// Default: 4096
	MaxDumpBytes int

	// Charset selects the hexdump glyph column.
	// Default: CharsetCP437
	Charset Charset
}

// DefaultOptions returns sensible defaults for printing.
func DefaultOptions() Options {
	return Options{
		Format:          FormatText,
		ShowFreeList:    true,
		ShowAllocations: true,
		HexWidth:        DefaultHexWidth,
		MaxDumpBytes:    DefaultMaxDumpBytes,
		Charset:         CharsetCP437,
	}
}

// Printer handles formatted output of heap state.
type Printer struct {
	opts   Options
	writer io.Writer
}

// New creates a new Printer.
//
// Example:
//
//	p := printer.New(os.Stdout, printer.DefaultOptions())
//	p.PrintSnapshot(h.Dump())
func New(w io.Writer, opts Options) *Printer {
	if opts.HexWidth <= 0 {
		opts.HexWidth = DefaultHexWidth
	}
	return &Printer{writer: w, opts: opts}
}

// PrintStats prints the accounting of a heap.
func (p *Printer) PrintStats(st heap.Stats) error {
	switch p.opts.Format {
	case FormatJSON:
		return p.writeJSON(toJSONStats(st))
	default:
		return p.printStatsText(st)
	}
}

// PrintSnapshot prints bounds, accounting, the free list and, for a Dump
// snapshot, the allocated blocks.
func (p *Printer) PrintSnapshot(s heap.Snapshot) error {
	var allocs []verify.Allocation
	if p.opts.ShowAllocations && s.Memory != nil {
		var err error
		if allocs, err = verify.Tiling(s); err != nil {
			return fmt.Errorf("walk blocks: %w", err)
		}
	}

	switch p.opts.Format {
	case FormatJSON:
		return p.writeJSON(p.toJSONSnapshot(s, allocs))
	default:
		return p.printSnapshotText(s, allocs)
	}
}

// PrintHexdump prints n bytes of a Dump snapshot starting at addr.
func (p *Printer) PrintHexdump(s heap.Snapshot, addr, n uintptr) error {
	if s.Memory == nil {
		return fmt.Errorf("hexdump: snapshot has no memory")
	}
	if addr < s.Start || addr > s.End || n > s.End-addr {
		return fmt.Errorf("hexdump: [0x%X, +%d) outside [0x%X, 0x%X)", addr, n, s.Start, s.End)
	}
	if p.opts.MaxDumpBytes > 0 {
		n = min(n, uintptr(p.opts.MaxDumpBytes))
	}
	data := s.Memory[addr-s.Start : addr-s.Start+n]

	if p.opts.Format == FormatJSON {
		return p.writeJSON(jsonDump{Addr: hexAddr(addr), Bytes: len(data), Hex: fmt.Sprintf("%x", data)})
	}
	return p.hexdump(addr, data)
}

// glyph returns the character shown for b in the hexdump glyph column.
func (p *Printer) glyph(b byte) rune {
	switch {
	case b >= 0x20 && b < 0x7F:
		return rune(b)
	case b < 0x80:
		return '.'
	}
	var cm *charmap.Charmap
	switch p.opts.Charset {
	case CharsetCP437:
		cm = charmap.CodePage437
	case CharsetWindows1252:
		cm = charmap.Windows1252
	default:
		return '.'
	}
	r := cm.DecodeByte(b)
	if r == utf8.RuneError {
		return '.'
	}
	return r
}

func hexAddr(a uintptr) string { return fmt.Sprintf("0x%X", a) }

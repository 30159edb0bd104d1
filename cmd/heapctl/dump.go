package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/mcuheap/heap/printer"
)

var (
	dumpBytes   int
	dumpCharset string
	dumpNoHex   bool
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().IntVar(&dumpBytes, "bytes", printer.DefaultMaxDumpBytes, "Maximum bytes to hexdump (0 = all)")
	cmd.Flags().StringVar(&dumpCharset, "charset", string(printer.CharsetCP437), "Hexdump glyphs: ascii, cp437, windows-1252")
	cmd.Flags().BoolVar(&dumpNoHex, "no-hex", false, "Skip the hexdump")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <scenario.yaml>",
		Short: "Replay a scenario and dump the resulting heap",
		Long: `The dump command replays a scenario and prints the heap bounds, the free
list, every allocated block and a hexdump of the managed memory.

Example:
  heapctl dump testdata/first_fit.yaml
  heapctl dump testdata/first_fit.yaml --bytes 256 --charset ascii`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
}

func runDump(args []string) error {
	switch printer.Charset(dumpCharset) {
	case printer.CharsetASCII, printer.CharsetCP437, printer.CharsetWindows1252:
	default:
		return fmt.Errorf("unknown charset %q", dumpCharset)
	}

	r, _, _, err := replay(args[0], false)
	if err != nil {
		return err
	}
	snap := r.Heap().Dump()

	opts := printer.DefaultOptions()
	opts.MaxDumpBytes = dumpBytes
	opts.Charset = printer.Charset(dumpCharset)
	if jsonOut {
		opts.Format = printer.FormatJSON
	}
	p := printer.New(os.Stdout, opts)

	if err := p.PrintSnapshot(snap); err != nil {
		return err
	}
	if dumpNoHex {
		return nil
	}
	if !jsonOut {
		printInfo("\nMemory:\n")
	}
	return p.PrintHexdump(snap, snap.Start, snap.End-snap.Start)
}

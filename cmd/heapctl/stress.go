package main

import (
	"errors"
	"fmt"
	"math/rand"
	"unsafe"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/mcuheap/critical"
	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/verify"
	"github.com/joshuapare/mcuheap/internal/logger"
)

var (
	stressOps     int
	stressRaisers int
	stressRaises  int
	stressSeed    int64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressOps, "ops", 10000, "Operations on the main program")
	cmd.Flags().IntVar(&stressRaisers, "raisers", 2, "Goroutines raising interrupts")
	cmd.Flags().IntVar(&stressRaises, "raises", 1000, "Interrupts raised per goroutine")
	cmd.Flags().Int64Var(&stressSeed, "seed", 0, "Random seed (default from HEAPCTL_SEED)")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run randomized allocations with concurrent interrupts",
		Long: `The stress command allocates and frees at random on the main program
while other goroutines raise interrupts whose handlers allocate and free on
the same heap. Every block is filled with a pattern that is checked before it
is freed, and the heap invariants are verified at the end.

Example:
  heapctl stress --ops 50000 --raisers 4
  HEAPCTL_SIZE=262144 heapctl stress --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := cfg.Seed
			if cmd.Flags().Changed("seed") {
				seed = stressSeed
			}
			return runStress(seed)
		},
	}
}

// stressResult is the outcome of a stress run.
type stressResult struct {
	Seed        int64      `json:"seed"`
	Ops         int        `json:"ops"`
	OutOfMemory int        `json:"out_of_memory"`
	Interrupts  int64      `json:"interrupts"`
	ISRFailures int        `json:"isr_out_of_memory"`
	Stats       heap.Stats `json:"stats"`
}

type stressBlock struct {
	ptr   unsafe.Pointer
	size  uintptr
	align uintptr
	seed  byte
}

func (b stressBlock) fill() {
	for i, buf := 0, heap.Bytes(b.ptr, b.size); i < len(buf); i++ {
		buf[i] = b.seed ^ byte(i)
	}
}

func (b stressBlock) intact() bool {
	for i, v := range heap.Bytes(b.ptr, b.size) {
		if v != b.seed^byte(i) {
			return false
		}
	}
	return true
}

var errCorrupted = errors.New("block contents corrupted")

func runStress(seed int64) error {
	core := critical.NewCore()
	h := heap.New(heap.Options{Interrupts: core, Checked: cfg.Checked})
	if err := h.InitSlice(make([]byte, cfg.Size)); err != nil {
		return err
	}
	printVerbose("Heap: %d bytes, seed %d, %d raisers x %d interrupts\n",
		cfg.Size, seed, stressRaisers, stressRaises)

	res := stressResult{Seed: seed, Ops: stressOps}
	isrCorrupt := 0
	handler := func() {
		p, err := h.Allocate(64, 16)
		if err != nil {
			res.ISRFailures++
			return
		}
		b := stressBlock{ptr: p, size: 64, align: 16, seed: 0x5A}
		b.fill()
		if !b.intact() {
			isrCorrupt++
		}
		h.Deallocate(p, 64, 16)
	}

	var eg errgroup.Group
	for range stressRaisers {
		eg.Go(func() error {
			for range stressRaises {
				core.Raise(handler)
			}
			return nil
		})
	}

	rng := rand.New(rand.NewSource(seed))
	var live []stressBlock
	for i := range stressOps {
		if rng.Intn(5) < 3 || len(live) == 0 {
			b := stressBlock{
				size:  uintptr(rng.Intn(max(cfg.Size/64, 1)) + 1),
				align: uintptr(1) << rng.Intn(7),
				seed:  byte(i),
			}
			p, err := h.Allocate(b.size, b.align)
			if errors.Is(err, heap.ErrOutOfMemory) {
				res.OutOfMemory++
				continue
			}
			if err != nil {
				return err
			}
			b.ptr = p
			b.fill()
			live = append(live, b)
		} else {
			j := rng.Intn(len(live))
			b := live[j]
			if !b.intact() {
				return fmt.Errorf("op %d: %w at %p", i, errCorrupted, b.ptr)
			}
			h.Deallocate(b.ptr, b.size, b.align)
			live = append(live[:j], live[j+1:]...)
		}
		core.Poll()
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	core.Poll()

	for _, b := range live {
		if !b.intact() {
			return fmt.Errorf("final check: %w at %p", errCorrupted, b.ptr)
		}
		h.Deallocate(b.ptr, b.size, b.align)
	}
	if isrCorrupt > 0 {
		return fmt.Errorf("%d interrupt handlers saw %w", isrCorrupt, errCorrupted)
	}
	if err := verify.AllInvariants(h.Dump()); err != nil {
		return err
	}

	res.Interrupts = core.Delivered()
	res.Stats = h.Stats()
	logger.Info("stress finished", "seed", seed, "ops", stressOps, "interrupts", res.Interrupts)

	if jsonOut {
		return printJSON(res)
	}
	printInfo("stress ok: %d ops, %d interrupts, %d out of memory (%d in handlers)\n",
		res.Ops, res.Interrupts, res.OutOfMemory, res.ISRFailures)
	if verbose && !quiet {
		return newPrinter().PrintStats(res.Stats)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/trace"
	"github.com/joshuapare/mcuheap/heap/verify"
)

var runNoVerify bool

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runNoVerify, "no-verify", false, "Skip invariant checks after every operation")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Replay allocation scenarios",
		Long: `The run command replays each scenario against a fresh heap, checks the
heap invariants after every operation, and prints the final statistics.

Example:
  heapctl run testdata/first_fit.yaml
  heapctl run scenarios/*.yaml --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
}

// runResult is the JSON form of one replay.
type runResult struct {
	Scenario string        `json:"scenario"`
	Ops      int           `json:"ops"`
	Applied  trace.Applied `json:"applied"`
	Stats    heap.Stats    `json:"stats"`
}

func runRun(args []string) error {
	var results []runResult
	for _, path := range args {
		printVerbose("Loading scenario: %s\n", path)
		r, s, applied, err := replay(path, !runNoVerify)
		if err != nil {
			return err
		}
		if err := verify.AllInvariants(r.Heap().Dump()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		st := r.Heap().Stats()
		if jsonOut {
			results = append(results, runResult{Scenario: s.Name, Ops: s.Len(), Applied: applied, Stats: st})
			continue
		}
		printInfo("%s: %d ops ok (alloc=%d free=%d realloc=%d extend=%d oom=%d checks=%d)\n",
			s.Name, s.Len(), applied.Allocs, applied.Frees, applied.Reallocs,
			applied.Extends, applied.Failures, applied.Checks)
		if verbose && !quiet {
			if err := newPrinter().PrintStats(st); err != nil {
				return err
			}
		}
	}
	if jsonOut {
		return printJSON(results)
	}
	return nil
}

// replay loads the scenario at path and runs it against a new heap.
func replay(path string, verifyEach bool) (*trace.Runner, *trace.Scenario, trace.Applied, error) {
	s, err := trace.LoadFile(path)
	if err != nil {
		return nil, nil, trace.Applied{}, err
	}
	h, err := s.NewHeap(heap.Options{Checked: cfg.Checked})
	if err != nil {
		return nil, nil, trace.Applied{}, fmt.Errorf("%s: %w", path, err)
	}
	r := trace.NewRunner(h, verifyEach)
	applied, err := r.Run(s)
	if err != nil {
		return nil, nil, applied, err
	}
	return r, s, applied, nil
}

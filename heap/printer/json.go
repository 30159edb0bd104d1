package printer

import (
	"encoding/json"
	"fmt"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/verify"
)

// jsonStats represents heap accounting in JSON format.
type jsonStats struct {
	Size          uintptr        `json:"size"`
	Free          uintptr        `json:"free"`
	FreeBlocks    int            `json:"free_blocks"`
	Used          uintptr        `json:"used"`
	UsedBlocks    int            `json:"used_blocks"`
	Overhead      uintptr        `json:"overhead"`
	Slack         uintptr        `json:"slack"`
	LargestFree   uintptr        `json:"largest_free"`
	Fragmentation float64        `json:"fragmentation"`
	Counters      map[string]any `json:"counters"`
}

// jsonBlock represents one block in JSON format.
type jsonBlock struct {
	Addr string  `json:"addr"`
	Size uintptr `json:"size"`
	Ptr  string  `json:"ptr,omitempty"`
}

// jsonSnapshot represents a snapshot in JSON format.
type jsonSnapshot struct {
	RawStart    string      `json:"raw_start"`
	Start       string      `json:"start"`
	End         string      `json:"end"`
	Limit       string      `json:"limit"`
	Stats       jsonStats   `json:"stats"`
	Free        []jsonBlock `json:"free,omitempty"`
	Allocations []jsonBlock `json:"allocations,omitempty"`
}

// jsonDump represents a hexdump in JSON format.
type jsonDump struct {
	Addr  string `json:"addr"`
	Bytes int    `json:"bytes"`
	Hex   string `json:"hex"`
}

func toJSONStats(st heap.Stats) jsonStats {
	c := st.Counters
	return jsonStats{
		Size:          st.Size,
		Free:          st.Free,
		FreeBlocks:    st.FreeBlocks,
		Used:          st.Used,
		UsedBlocks:    st.UsedBlocks,
		Overhead:      st.Overhead,
		Slack:         st.Slack,
		LargestFree:   st.LargestFree,
		Fragmentation: st.Fragmentation(),
		Counters: map[string]any{
			"alloc":             c.AllocCalls,
			"free":              c.FreeCalls,
			"realloc":           st.ReallocCalls,
			"extend":            c.ExtendCalls,
			"extend_merged":     c.ExtendMerged,
			"out_of_memory":     c.OutOfMemory,
			"split":             c.SplitCount,
			"front_split":       c.FrontSplits,
			"absorbed":          c.AbsorbCount,
			"coalesce_forward":  c.CoalesceForward,
			"coalesce_backward": c.CoalesceBackward,
			"bytes_allocated":   c.BytesAllocated,
			"bytes_freed":       c.BytesFreed,
		},
	}
}

func (p *Printer) toJSONSnapshot(s heap.Snapshot, allocs []verify.Allocation) jsonSnapshot {
	out := jsonSnapshot{
		RawStart: hexAddr(s.RawStart),
		Start:    hexAddr(s.Start),
		End:      hexAddr(s.End),
		Limit:    hexAddr(s.Limit),
		Stats:    toJSONStats(s.Stats),
	}
	if p.opts.ShowFreeList {
		for _, b := range s.Free {
			out.Free = append(out.Free, jsonBlock{Addr: hexAddr(b.Addr), Size: b.Size})
		}
	}
	if p.opts.ShowAllocations {
		for _, a := range allocs {
			out.Allocations = append(out.Allocations, jsonBlock{Addr: hexAddr(a.Addr), Size: a.Size, Ptr: hexAddr(a.Ptr())})
		}
	}
	return out
}

func (p *Printer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.writer, "%s\n", data)
	return err
}

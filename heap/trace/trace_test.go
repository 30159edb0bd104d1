package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/mcuheap/heap"
	"github.com/joshuapare/mcuheap/heap/verify"
)

func replayFile(t *testing.T, path string) (*Runner, Applied) {
	t.Helper()
	s, err := LoadFile(path)
	require.NoError(t, err)
	h, err := s.NewHeap(heap.Options{})
	require.NoError(t, err)

	r := NewRunner(h, true)
	applied, err := r.Run(s)
	require.NoError(t, err)
	return r, applied
}

func TestRun_FirstFit(t *testing.T) {
	r, applied := replayFile(t, "testdata/first_fit.yaml")

	assert.Equal(t, Applied{Allocs: 4, Frees: 4, Reallocs: 1, Failures: 1, Checks: 2}, applied)
	assert.Empty(t, r.Live())
	require.NoError(t, verify.AllInvariants(r.Heap().Dump()))
}

func TestRun_Extend(t *testing.T) {
	_, applied := replayFile(t, "testdata/extend.yaml")
	assert.Equal(t, 2, applied.Extends)
	assert.Equal(t, 2, applied.Failures)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown op", "name: x\nsize: 64\nops:\n  - {op: bogus}\n", ErrUnknownOp},
		{"zero size", "name: x\nsize: 0\n", ErrInvalidScenario},
		{"missing id", "name: x\nsize: 64\nops:\n  - {op: alloc, size: 8}\n", ErrInvalidScenario},
		{"capacity below size", "name: x\nsize: 64\ncapacity: 32\n", ErrInvalidScenario},
		{"extend without grow", "name: x\nsize: 64\nops:\n  - {op: extend}\n", ErrInvalidScenario},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Load(strings.NewReader("name: x\nsize: 64\nbogus_field: 1\n"))
	require.Error(t, err, "unknown fields are rejected")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
		want error
	}{
		{"free unknown", []Op{{Type: OpFree, ID: "x"}}, ErrUnknownID},
		{"double alloc", []Op{{Type: OpAlloc, ID: "x", Size: 8}, {Type: OpAlloc, ID: "x", Size: 8}}, ErrDuplicateID},
		{"unexpected success", []Op{{Type: OpAlloc, ID: "x", Size: 8, ExpectOOM: true}}, ErrExpectation},
		{"unexpected oom", []Op{{Type: OpAlloc, ID: "x", Size: 4096}}, heap.ErrOutOfMemory},
		{"same_as unknown", []Op{{Type: OpAlloc, ID: "x", Size: 8, SameAs: "y"}}, ErrUnknownID},
		{"wrong count", []Op{{Type: OpExpect, UsedBlocks: ptrTo(3)}}, ErrExpectation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScenario(tt.name, 256)
			s.Ops = tt.ops
			h, err := s.NewHeap(heap.Options{Checked: true})
			require.NoError(t, err)

			_, err = NewRunner(h, false).Run(s)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_UnexpectedFitKeepsHeapConsistent(t *testing.T) {
	s := NewScenario("unexpected", 256)
	h, err := s.NewHeap(heap.Options{Checked: true})
	require.NoError(t, err)
	r := NewRunner(h, false)

	err = r.Apply(Op{Type: OpAlloc, ID: "x", Size: 8, ExpectOOM: true})
	require.ErrorIs(t, err, ErrExpectation)
	assert.Empty(t, r.Live())
	assert.Zero(t, h.Stats().UsedBlocks, "unexpected allocation is released")

	require.NoError(t, r.Apply(Op{Type: OpAlloc, ID: "a", Size: 16, Align: 8}))
	err = r.Apply(Op{Type: OpRealloc, ID: "a", NewSize: 32, ExpectOOM: true})
	require.ErrorIs(t, err, ErrExpectation)

	live := r.Live()
	require.Len(t, live, 1)
	assert.Equal(t, uintptr(32), live[0].Size, "the moved block replaces the old one")

	// The tracked block is the live one, so it frees cleanly under checks
	require.NoError(t, r.Apply(Op{Type: OpFree, ID: "a"}))
	assert.Zero(t, h.Stats().UsedBlocks)
	require.NoError(t, verify.AllInvariants(h.Dump()))
}

func TestRun_DetectsCorruption(t *testing.T) {
	s := NewScenario("corrupt", 256)
	s.AddAlloc("a", 32, 8)
	h, err := s.NewHeap(heap.Options{})
	require.NoError(t, err)

	r := NewRunner(h, false)
	_, err = r.Run(s)
	require.NoError(t, err)

	live := r.Live()
	require.Len(t, live, 1)
	heap.Bytes(live[0].Ptr, 1)[0] ^= 0xFF

	require.ErrorIs(t, r.Apply(Op{Type: OpFree, ID: "a"}), ErrCorrupted)
}

func TestScenario_BuilderRoundTrip(t *testing.T) {
	s := NewScenario("built", 512)
	s.AddAlloc("a", 64, 16)
	s.AddAlloc("b", 64, 16)
	s.AddRealloc("a", 128)
	s.AddFree("b")
	s.AddExtend(0)
	s.AddExpectBlocks(1, 1)
	require.Equal(t, 6, s.Len())
	s.Ops = s.Ops[:4]
	s.AddExpectBlocks(2, 1)

	data, err := s.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "op: realloc")

	loaded, err := Load(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Equal(t, s, loaded)

	h, err := loaded.NewHeap(heap.Options{Checked: true})
	require.NoError(t, err)
	_, err = NewRunner(h, true).Run(loaded)
	require.NoError(t, err)
}

func TestOpType_String(t *testing.T) {
	assert.Equal(t, "alloc", OpAlloc.String())
	assert.Equal(t, "expect", OpExpect.String())
	assert.Equal(t, "unknown", OpType(99).String())

	got, err := ParseOpType("REALLOC")
	require.NoError(t, err)
	assert.Equal(t, OpRealloc, got)
}

func ptrTo[T any](v T) *T { return &v }

package trace

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Applied contains statistics about what a replay did.
type Applied struct {
	Allocs   int `json:"allocs"`
	Frees    int `json:"frees"`
	Reallocs int `json:"reallocs"`
	Extends  int `json:"extends"`
	Failures int `json:"failures"` // expected out-of-memory results
	Checks   int `json:"checks"`
}

// OpType represents the type of heap operation to replay.
type OpType uint8

const (
	// OpAlloc allocates a block and names it by ID.
	OpAlloc OpType = iota
	// OpFree frees the block named by ID.
	OpFree
	// OpRealloc moves the block named by ID to NewSize bytes.
	OpRealloc
	// OpExtend raises the heap limit by Grow bytes.
	OpExtend
	// OpExpect checks the heap statistics.
	OpExpect
)

var opNames = map[OpType]string{
	OpAlloc:   "alloc",
	OpFree:    "free",
	OpRealloc: "realloc",
	OpExtend:  "extend",
	OpExpect:  "expect",
}

// String returns the string representation of the OpType.
func (t OpType) String() string {
	if name, ok := opNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseOpType parses the name used in scenario files.
func ParseOpType(s string) (OpType, error) {
	for t, name := range opNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *OpType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseOpType(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*t = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t OpType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// Op represents a single heap operation.
type Op struct {
	// Type of operation to perform
	Type OpType `yaml:"op"`

	// ID names a block for alloc, free and realloc
	ID string `yaml:"id,omitempty"`

	// Size and Align of the allocation (alloc, realloc)
	Size  uintptr `yaml:"size,omitempty"`
	Align uintptr `yaml:"align,omitempty"`

	// NewSize is the target size for realloc
	NewSize uintptr `yaml:"new_size,omitempty"`

	// Grow is the number of bytes extend adds to the limit
	Grow uintptr `yaml:"grow,omitempty"`

	// ExpectOOM marks an alloc or realloc that must fail
	ExpectOOM bool `yaml:"expect_oom,omitempty"`

	// SameAs requires alloc to return the address an earlier block had
	SameAs string `yaml:"same_as,omitempty"`

	// Expected statistics for expect; nil fields are not checked
	FreeBlocks *int     `yaml:"free_blocks,omitempty"`
	UsedBlocks *int     `yaml:"used_blocks,omitempty"`
	Free       *uintptr `yaml:"free,omitempty"`
}

// Scenario is a named sequence of operations against a fresh heap.
type Scenario struct {
	Name     string  `yaml:"name"`
	Size     uintptr `yaml:"size"`               // initial region size
	Capacity uintptr `yaml:"capacity,omitempty"` // growth limit for extend
	Checked  bool    `yaml:"checked,omitempty"`
	Ops      []Op    `yaml:"ops"`
}

// NewScenario creates an empty scenario over size bytes.
func NewScenario(name string, size uintptr) *Scenario {
	return &Scenario{
		Name: name,
		Size: size,
		Ops:  make([]Op, 0),
	}
}

// AddAlloc adds an allocation named id.
func (s *Scenario) AddAlloc(id string, size, align uintptr) {
	s.Ops = append(s.Ops, Op{Type: OpAlloc, ID: id, Size: size, Align: align})
}

// AddFree adds a free of the block named id.
func (s *Scenario) AddFree(id string) {
	s.Ops = append(s.Ops, Op{Type: OpFree, ID: id})
}

// AddRealloc adds a reallocation of the block named id.
func (s *Scenario) AddRealloc(id string, newSize uintptr) {
	s.Ops = append(s.Ops, Op{Type: OpRealloc, ID: id, NewSize: newSize})
}

// AddExtend adds an extension by grow bytes.
func (s *Scenario) AddExtend(grow uintptr) {
	s.Ops = append(s.Ops, Op{Type: OpExtend, Grow: grow})
}

// AddExpectBlocks adds a check of the free and used block counts.
func (s *Scenario) AddExpectBlocks(freeBlocks, usedBlocks int) {
	s.Ops = append(s.Ops, Op{Type: OpExpect, FreeBlocks: &freeBlocks, UsedBlocks: &usedBlocks})
}

// Len returns the number of operations in the scenario.
func (s *Scenario) Len() int {
	return len(s.Ops)
}

package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/mcuheap/heap"
)

var (
	// ErrUnknownOp indicates an operation name that is not recognised.
	ErrUnknownOp = errors.New("trace: unknown operation")

	// ErrInvalidScenario indicates a scenario that cannot be replayed.
	ErrInvalidScenario = errors.New("trace: invalid scenario")

	// ErrUnknownID indicates a free or realloc of a block never allocated
	// or already freed.
	ErrUnknownID = errors.New("trace: unknown block id")

	// ErrDuplicateID indicates an alloc reusing the id of a live block.
	ErrDuplicateID = errors.New("trace: block id already live")

	// ErrExpectation indicates a result different from the one expected.
	ErrExpectation = errors.New("trace: expectation failed")

	// ErrCorrupted indicates block contents changed behind the owner's back.
	ErrCorrupted = errors.New("trace: block contents corrupted")
)

// Load decodes a scenario from YAML.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile decodes the scenario stored at path.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Marshal encodes the scenario as YAML.
func (s *Scenario) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks the scenario for mistakes that do not depend on the heap.
func (s *Scenario) Validate() error {
	if s.Size == 0 {
		return fmt.Errorf("%w: size must be positive", ErrInvalidScenario)
	}
	if s.Capacity != 0 && s.Capacity < s.Size {
		return fmt.Errorf("%w: capacity %d below size %d", ErrInvalidScenario, s.Capacity, s.Size)
	}
	for i, op := range s.Ops {
		switch op.Type {
		case OpAlloc, OpFree, OpRealloc:
			if op.ID == "" {
				return fmt.Errorf("%w: op %d (%s) needs an id", ErrInvalidScenario, i, op.Type)
			}
		case OpExtend:
			if op.Grow == 0 {
				return fmt.Errorf("%w: op %d (extend) needs grow", ErrInvalidScenario, i)
			}
		}
	}
	return nil
}

// NewHeap creates a heap over a fresh buffer sized for the scenario.
func (s *Scenario) NewHeap(opts heap.Options) (*heap.Heap, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	capacity := max(s.Capacity, s.Size)
	opts.Checked = opts.Checked || s.Checked

	h := heap.New(opts)
	if err := h.InitSlice(make([]byte, s.Size, capacity)); err != nil {
		return nil, err
	}
	return h, nil
}

// Package program holds the TDM circuit template: a fixed register of
// concurrent modes partitioned across spatial modes, a recorded sequence of
// gate operations over symbolic per-time-bin parameters, and the repetition
// and shift configuration needed to unroll it.
package program

import (
	"errors"
	"fmt"
)

// Gate names understood by the builder, the circuit-file front end and the
// Gaussian backend.
const (
	GateSqueeze      = "squeeze"
	GateRotation     = "rotation"
	GateBeamsplitter = "beamsplitter"
	GateVacuum       = "vacuum"
	GateHomodyne     = "homodyne"
)

var (
	ErrNoSpatialModes       = errors.New("at least one spatial mode is required")
	ErrModeCountNotPositive = errors.New("concurrent-mode count must be a positive integer")
	ErrAlreadyRecorded      = errors.New("program template is already recorded")
	ErrNotRecorded          = errors.New("program template has not been recorded")
)

// OpKind classifies a recorded operation.
type OpKind int

const (
	OpPrepare OpKind = iota
	OpTransform
	OpMeasure
)

func (k OpKind) String() string {
	switch k {
	case OpPrepare:
		return "prepare"
	case OpTransform:
		return "transform"
	case OpMeasure:
		return "measure"
	default:
		return fmt.Sprintf("opkind(%d)", int(k))
	}
}

// KindForGate maps a built-in gate name to its operation kind. Unknown gates
// report ok=false; callers that accept user input should reject them.
func KindForGate(gate string) (OpKind, bool) {
	switch gate {
	case GateVacuum:
		return OpPrepare, true
	case GateSqueeze, GateRotation, GateBeamsplitter:
		return OpTransform, true
	case GateHomodyne:
		return OpMeasure, true
	default:
		return 0, false
	}
}

// Slot is a symbolic register index, stable across the delay-loop rotation
// that the unroller applies between time bins.
type Slot int

// Arg is one gate argument: either a literal constant or a reference to a
// declared parameter sequence, resolved per time bin at unroll time.
type Arg struct {
	Param int
	Value float64
}

// Const returns a literal gate argument.
func Const(v float64) Arg {
	return Arg{Param: -1, Value: v}
}

// Op is one recorded template operation. Targets are symbolic slots; the
// order of recorded ops defines intra-time-bin execution order.
type Op struct {
	Kind    OpKind
	Gate    string
	Args    []Arg
	Targets []Slot
}

// Program is a time-domain-multiplexed circuit template. It is constructed
// with the concurrent-mode count of each spatial mode, recorded exactly once
// through Record, and read-only afterwards.
type Program struct {
	modeCounts []int
	total      int

	copies    int
	shift     Shift
	sequences [][]float64
	timeBins  int
	ops       []Op

	locked       bool
	valid        bool
	spatialModes int
}

// New builds a program over one or more spatial modes, each with the given
// number of concurrent modes (register slots).
func New(modeCounts ...int) (*Program, error) {
	if len(modeCounts) == 0 {
		return nil, ErrNoSpatialModes
	}
	total := 0
	for _, count := range modeCounts {
		if count <= 0 {
			return nil, fmt.Errorf("%w: got %d", ErrModeCountNotPositive, count)
		}
		total += count
	}
	return &Program{
		modeCounts: append([]int(nil), modeCounts...),
		total:      total,
	}, nil
}

// ModeCounts returns the concurrent-mode count per spatial mode, in
// declaration order.
func (p *Program) ModeCounts() []int {
	return append([]int(nil), p.modeCounts...)
}

// TotalModes is the register size: the sum of all concurrent-mode counts.
func (p *Program) TotalModes() int {
	return p.total
}

// SpatialModeOf returns the spatial mode owning the given register slot.
func (p *Program) SpatialModeOf(slot Slot) (int, error) {
	idx := int(slot)
	if idx < 0 || idx >= p.total {
		return 0, fmt.Errorf("register slot %d outside [0, %d)", idx, p.total)
	}
	for mode, count := range p.modeCounts {
		if idx < count {
			return mode, nil
		}
		idx -= count
	}
	return 0, fmt.Errorf("register slot %d outside [0, %d)", int(slot), p.total)
}

// Ops returns the recorded template operations in issued order.
func (p *Program) Ops() []Op {
	return append([]Op(nil), p.ops...)
}

// Sequences returns the bound parameter sequences in declaration order.
func (p *Program) Sequences() [][]float64 {
	out := make([][]float64, len(p.sequences))
	for i, seq := range p.sequences {
		out[i] = append([]float64(nil), seq...)
	}
	return out
}

// TimeBins is the template length T: one entry per bound parameter value.
func (p *Program) TimeBins() int {
	return p.timeBins
}

// Copies is the number of template repetitions.
func (p *Program) Copies() int {
	return p.copies
}

// Shift is the register rotation policy applied between time bins.
func (p *Program) Shift() Shift {
	return p.shift
}

// Locked reports whether the recording scope has exited.
func (p *Program) Locked() bool {
	return p.locked
}

// Valid reports whether the recorded template passed validation. Only valid
// programs may be unrolled or executed.
func (p *Program) Valid() bool {
	return p.locked && p.valid
}

// String renders the one-line program summary. Time-bin and spatial-mode
// counts are zero until a template has been recorded and validated.
func (p *Program) String() string {
	bins := 0
	if p.valid {
		bins = p.timeBins * p.copies
	}
	return fmt.Sprintf("<TDMProgram: concurrent modes=%d, time bins=%d, spatial modes=%d>",
		p.total, bins, p.spatialModes)
}

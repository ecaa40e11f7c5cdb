// Package unroll expands a recorded TDM template into a flat per-time-bin
// instruction stream. It resolves symbolic parameter references to concrete
// scalars and symbolic register slots to physical cells through the rotating
// delay-loop mapping; it performs no simulation itself.
package unroll

import (
	"errors"
	"fmt"

	"tdmsim/internal/program"
)

// Contract violations: a malformed template reached the unroller. These are
// programming errors, fatal and never retried.
var (
	ErrSlotOutOfRange   = errors.New("register slot out of range")
	ErrUnboundParameter = errors.New("unresolved parameter reference")
)

// Instruction is one concrete operation: a gate with fully resolved scalar
// arguments addressing physical register cells.
type Instruction struct {
	Kind    program.OpKind
	Gate    string
	Args    []float64
	Targets []int

	// Bin is the global time-bin index in [0, T*copies). SpatialMode is
	// meaningful for measurements: the spatial mode whose sample stream
	// receives the outcome.
	Bin         int
	SpatialMode int
}

// Stream is the unrolled program: instructions grouped by time bin, in strict
// execution order.
type Stream struct {
	Instructions []Instruction
	Bins         int
	Modes        int
}

// Expand unrolls a locked, validated program. The register mapping starts as
// the identity and each spatial-mode segment rotates independently by the
// program's shift policy after every time bin; rotation state carries across
// copy boundaries.
func Expand(p *program.Program) (*Stream, error) {
	if !p.Valid() {
		return nil, program.ErrNotRecorded
	}

	counts := p.ModeCounts()
	total := p.TotalModes()
	sequences := p.Sequences()
	ops := p.Ops()
	bins := p.TimeBins() * p.Copies()
	shift := p.Shift()

	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}

	stream := &Stream{
		Instructions: make([]Instruction, 0, bins*len(ops)),
		Bins:         bins,
		Modes:        total,
	}
	for bin := 0; bin < bins; bin++ {
		t := bin % p.TimeBins()
		for _, op := range ops {
			ins, err := resolve(p, op, sequences, perm, t)
			if err != nil {
				return nil, fmt.Errorf("time bin %d: %w", bin, err)
			}
			ins.Bin = bin
			stream.Instructions = append(stream.Instructions, ins)
		}
		rotate(perm, counts, shift)
	}
	return stream, nil
}

func resolve(p *program.Program, op program.Op, sequences [][]float64, perm []int, t int) (Instruction, error) {
	args := make([]float64, len(op.Args))
	for i, arg := range op.Args {
		if arg.Param < 0 {
			args[i] = arg.Value
			continue
		}
		if arg.Param >= len(sequences) {
			return Instruction{}, fmt.Errorf("%w: %s argument %d references sequence %d of %d",
				ErrUnboundParameter, op.Gate, i, arg.Param, len(sequences))
		}
		args[i] = sequences[arg.Param][t]
	}

	targets := make([]int, len(op.Targets))
	for i, slot := range op.Targets {
		if int(slot) < 0 || int(slot) >= len(perm) {
			return Instruction{}, fmt.Errorf("%w: %s target %d of %d",
				ErrSlotOutOfRange, op.Gate, int(slot), len(perm))
		}
		targets[i] = perm[int(slot)]
	}

	ins := Instruction{
		Kind:    op.Kind,
		Gate:    op.Gate,
		Args:    args,
		Targets: targets,
	}
	if op.Kind == program.OpMeasure && len(op.Targets) > 0 {
		mode, err := p.SpatialModeOf(op.Targets[0])
		if err != nil {
			return Instruction{}, fmt.Errorf("%w: %v", ErrSlotOutOfRange, err)
		}
		ins.SpatialMode = mode
	}
	return ins, nil
}

// rotate advances each spatial-mode segment of the slot-to-cell mapping:
// after a rotation by s, symbolic slot i maps to what slot (i+s) mod d mapped
// to before, emulating the FIFO advance of a delay loop of depth d.
func rotate(perm []int, counts []int, shift program.Shift) {
	offset := 0
	for _, count := range counts {
		segment := perm[offset : offset+count]
		s := shift.Amount(count) % count
		if s != 0 {
			rotated := make([]int, 0, count)
			rotated = append(rotated, segment[s:]...)
			rotated = append(rotated, segment[:s]...)
			copy(segment, rotated)
		}
		offset += count
	}
}

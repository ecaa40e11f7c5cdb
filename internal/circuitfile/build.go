package circuitfile

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"tdmsim/internal/program"
)

var (
	ErrUnknownGate     = errors.New("unknown gate")
	ErrUnknownSequence = errors.New("unknown parameter sequence")
	ErrDuplicateName   = errors.New("duplicate sequence name")
	ErrBadArgument     = errors.New("gate arguments must be numbers or sequence names")
)

// arity is the required argument and target count per gate. Squeeze and
// beamsplitter accept a single argument; the phase defaults to zero.
var gateArity = map[string]struct{ args, targets int }{
	program.GateVacuum:       {0, 1},
	program.GateSqueeze:      {2, 1},
	program.GateRotation:     {1, 1},
	program.GateBeamsplitter: {2, 2},
	program.GateHomodyne:     {1, 1},
}

// Build translates the block into a recorded program template.
func (b *ProgramBlock) Build() (*program.Program, error) {
	prog, err := program.New(b.ConcurrentModes...)
	if err != nil {
		return nil, err
	}

	copies, err := decodeCopies(b.Copies)
	if err != nil {
		return nil, err
	}
	shift, err := decodeShift(b.Shift)
	if err != nil {
		return nil, err
	}

	seqIndex := make(map[string]int, len(b.Sequences))
	sequences := make([][]float64, 0, len(b.Sequences))
	for i, seq := range b.Sequences {
		if _, exists := seqIndex[seq.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, seq.Name)
		}
		seqIndex[seq.Name] = i
		sequences = append(sequences, seq.Values)
	}

	err = prog.Record(program.RecordOptions{Copies: copies, Shift: shift}, sequences,
		func(builder *program.Builder, params []program.Arg, _ []program.Slot) error {
			for _, op := range b.Ops {
				kind, ok := program.KindForGate(op.Gate)
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnknownGate, op.Gate)
				}

				args, err := decodeArgs(op.Args, seqIndex, params)
				if err != nil {
					return fmt.Errorf("gate %s: %w", op.Gate, err)
				}

				arity := gateArity[op.Gate]
				if len(args) == arity.args-1 && (op.Gate == program.GateSqueeze || op.Gate == program.GateBeamsplitter) {
					args = append(args, program.Const(0))
				}
				if len(args) != arity.args {
					return fmt.Errorf("gate %s expects %d argument(s), got %d", op.Gate, arity.args, len(args))
				}
				if len(op.Targets) != arity.targets {
					return fmt.Errorf("gate %s expects %d target(s), got %d", op.Gate, arity.targets, len(op.Targets))
				}

				targets := make([]program.Slot, len(op.Targets))
				for i, t := range op.Targets {
					targets[i] = program.Slot(t)
				}
				builder.Apply(kind, op.Gate, args, targets...)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// HbarOrDefault returns the declared commutation constant, or the backend
// default when the block omits it.
func (b *ProgramBlock) HbarOrDefault(def float64) float64 {
	if b.Hbar == nil || *b.Hbar <= 0 {
		return def
	}
	return *b.Hbar
}

func decodeCopies(v cty.Value) (int, error) {
	if v.IsNull() {
		return 0, nil
	}
	if v.Type() != cty.Number {
		return 0, fmt.Errorf("%w: got %s", program.ErrCopiesNotPositive, v.Type().FriendlyName())
	}
	big := v.AsBigFloat()
	if !big.IsInt() {
		return 0, fmt.Errorf("%w: got %s", program.ErrCopiesNotPositive, big.Text('g', -1))
	}
	n, _ := big.Int64()
	if n <= 0 {
		return 0, fmt.Errorf("%w: got %d", program.ErrCopiesNotPositive, n)
	}
	return int(n), nil
}

func decodeShift(v cty.Value) (program.Shift, error) {
	if v.IsNull() {
		return program.DefaultShift(), nil
	}
	switch v.Type() {
	case cty.String:
		return program.ParseShift(v.AsString())
	case cty.Number:
		big := v.AsBigFloat()
		if !big.IsInt() {
			return program.Shift{}, fmt.Errorf("%w: got %s", program.ErrInvalidShift, big.Text('g', -1))
		}
		n, _ := big.Int64()
		if n <= 0 {
			return program.Shift{}, fmt.Errorf("%w: got %d", program.ErrInvalidShift, n)
		}
		return program.ShiftBy(int(n)), nil
	default:
		return program.Shift{}, fmt.Errorf("%w: got %s", program.ErrInvalidShift, v.Type().FriendlyName())
	}
}

func decodeArgs(v cty.Value, seqIndex map[string]int, params []program.Arg) ([]program.Arg, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.CanIterateElements() {
		return nil, fmt.Errorf("%w: got %s", ErrBadArgument, v.Type().FriendlyName())
	}

	var args []program.Arg
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			return nil, fmt.Errorf("%w: got null", ErrBadArgument)
		}
		switch elem.Type() {
		case cty.Number:
			f, _ := elem.AsBigFloat().Float64()
			args = append(args, program.Const(f))
		case cty.String:
			name := elem.AsString()
			idx, ok := seqIndex[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSequence, name)
			}
			args = append(args, params[idx])
		default:
			return nil, fmt.Errorf("%w: got %s", ErrBadArgument, elem.Type().FriendlyName())
		}
	}
	return args, nil
}

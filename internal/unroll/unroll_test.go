package unroll

import (
	"errors"
	"testing"

	"tdmsim/internal/program"
)

func mustProgram(t *testing.T, counts []int, opts program.RecordOptions, sequences [][]float64, build func(b *program.Builder, p []program.Arg, q []program.Slot) error) *program.Program {
	t.Helper()
	prog, err := program.New(counts...)
	if err != nil {
		t.Fatalf("new program: %v", err)
	}
	if err := prog.Record(opts, sequences, build); err != nil {
		t.Fatalf("record: %v", err)
	}
	return prog
}

func measureTargets(stream *Stream) []int {
	var targets []int
	for _, ins := range stream.Instructions {
		if ins.Kind == program.OpMeasure {
			targets = append(targets, ins.Targets[0])
		}
	}
	return targets
}

func TestDefaultShiftRotatesSingleLoop(t *testing.T) {
	theta := []float64{0, 0, 0, 0}
	prog := mustProgram(t, []int{2}, program.RecordOptions{}, [][]float64{theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.Squeeze(program.Const(1), program.Const(0), q[1])
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if stream.Bins != 4 || stream.Modes != 2 {
		t.Fatalf("stream shape: bins=%d modes=%d", stream.Bins, stream.Modes)
	}
	want := []int{0, 1, 0, 1}
	got := measureTargets(stream)
	if len(got) != len(want) {
		t.Fatalf("measurements: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bin %d measured cell %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSegmentsRotateIndependently(t *testing.T) {
	theta := []float64{0, 0, 0, 0, 0, 0}
	prog := mustProgram(t, []int{1, 3}, program.RecordOptions{}, [][]float64{theta, theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.MeasureHomodyne(p[0], q[0])
			b.MeasureHomodyne(p[1], q[1])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	got := measureTargets(stream)
	// The one-slot segment never moves; the three-slot segment cycles 1,2,3.
	want := []int{0, 1, 0, 2, 0, 3, 0, 1, 0, 2, 0, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("measurement %d targeted cell %d, want %d", i, got[i], want[i])
		}
	}
	for _, ins := range stream.Instructions {
		if ins.Kind != program.OpMeasure {
			continue
		}
		wantMode := 0
		if ins.Targets[0] != 0 {
			wantMode = 1
		}
		if ins.SpatialMode != wantMode {
			t.Fatalf("cell %d attributed to spatial mode %d, want %d", ins.Targets[0], ins.SpatialMode, wantMode)
		}
	}
}

func TestEndShiftWrapsFullLoopDepth(t *testing.T) {
	theta := []float64{0, 0, 0}
	prog := mustProgram(t, []int{3}, program.RecordOptions{Shift: program.EndShift()}, [][]float64{theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// A full rotation per bin leaves the mapping unchanged.
	for i, target := range measureTargets(stream) {
		if target != 0 {
			t.Fatalf("bin %d measured cell %d, want 0", i, target)
		}
	}
}

func TestIntegerShiftReducesModuloSegment(t *testing.T) {
	theta := []float64{0, 0, 0, 0}
	prog := mustProgram(t, []int{3}, program.RecordOptions{Shift: program.ShiftBy(5)}, [][]float64{theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// Shifting a depth-3 segment by 5 advances by 2 per bin.
	want := []int{0, 2, 1, 0}
	for i, target := range measureTargets(stream) {
		if target != want[i] {
			t.Fatalf("bin %d measured cell %d, want %d", i, target, want[i])
		}
	}
}

func TestRotationCarriesAcrossCopies(t *testing.T) {
	theta := []float64{0, 0, 0}
	prog := mustProgram(t, []int{2}, program.RecordOptions{Copies: 2}, [][]float64{theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// T=3 over a depth-2 loop: the second copy starts mid-cycle, so the
	// alternation continues rather than resetting.
	want := []int{0, 1, 0, 1, 0, 1}
	got := measureTargets(stream)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bin %d measured cell %d, want %d", i, got[i], want[i])
		}
	}
	if stream.Bins != 6 {
		t.Fatalf("bins: got %d want 6", stream.Bins)
	}
}

func TestIntraBinOrderPreserved(t *testing.T) {
	theta := []float64{0, 0}
	prog := mustProgram(t, []int{2}, program.RecordOptions{}, [][]float64{theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.Squeeze(program.Const(1), program.Const(0), q[1])
			b.Beamsplitter(program.Const(0.5), program.Const(0), q[0], q[1])
			b.Rotate(program.Const(0.25), q[1])
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	gates := []string{program.GateSqueeze, program.GateBeamsplitter, program.GateRotation, program.GateHomodyne}
	for i, ins := range stream.Instructions {
		if ins.Gate != gates[i%len(gates)] {
			t.Fatalf("instruction %d: got %s want %s", i, ins.Gate, gates[i%len(gates)])
		}
	}
}

func TestParameterResolutionPerBin(t *testing.T) {
	alpha := []float64{0.1, 0.2, 0.3}
	theta := []float64{1, 2, 3}
	prog := mustProgram(t, []int{1}, program.RecordOptions{Copies: 2}, [][]float64{alpha, theta},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.Rotate(p[0], q[0])
			b.MeasureHomodyne(p[1], q[0])
			return nil
		})

	stream, err := Expand(prog)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	for _, ins := range stream.Instructions {
		t1 := ins.Bin % 3
		switch ins.Gate {
		case program.GateRotation:
			if ins.Args[0] != alpha[t1] {
				t.Fatalf("bin %d rotation angle %v, want %v", ins.Bin, ins.Args[0], alpha[t1])
			}
		case program.GateHomodyne:
			if ins.Args[0] != theta[t1] {
				t.Fatalf("bin %d measurement angle %v, want %v", ins.Bin, ins.Args[0], theta[t1])
			}
		}
	}
}

func TestOutOfRangeSlotIsContractViolation(t *testing.T) {
	prog := mustProgram(t, []int{2}, program.RecordOptions{}, [][]float64{{0}},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.Rotate(program.Const(0), program.Slot(7))
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	_, err := Expand(prog)
	if !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
}

func TestUnboundParameterIsContractViolation(t *testing.T) {
	prog := mustProgram(t, []int{1}, program.RecordOptions{}, [][]float64{{0}},
		func(b *program.Builder, p []program.Arg, q []program.Slot) error {
			b.Rotate(program.Arg{Param: 4}, q[0])
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})

	_, err := Expand(prog)
	if !errors.Is(err, ErrUnboundParameter) {
		t.Fatalf("expected ErrUnboundParameter, got %v", err)
	}
}

func TestExpandRequiresValidProgram(t *testing.T) {
	prog, err := program.New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := Expand(prog); !errors.Is(err, program.ErrNotRecorded) {
		t.Fatalf("expected ErrNotRecorded, got %v", err)
	}
}

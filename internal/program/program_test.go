package program

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func recordSingleLoop(copies int, alpha, phi, theta []float64) (*Program, error) {
	prog, err := New(2)
	if err != nil {
		return nil, err
	}
	err = prog.Record(RecordOptions{Copies: copies}, [][]float64{alpha, phi, theta},
		func(b *Builder, p []Arg, q []Slot) error {
			b.Squeeze(Const(1.0), Const(0), q[1])
			b.Beamsplitter(p[0], Const(0), q[0], q[1])
			b.Rotate(p[1], q[1])
			b.MeasureHomodyne(p[2], q[0])
			return nil
		})
	return prog, err
}

func TestNewRejectsBadModeCounts(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrNoSpatialModes) {
		t.Fatalf("expected ErrNoSpatialModes, got %v", err)
	}
	if _, err := New(0); !errors.Is(err, ErrModeCountNotPositive) {
		t.Fatalf("expected ErrModeCountNotPositive for 0, got %v", err)
	}
	if _, err := New(1, -2); !errors.Is(err, ErrModeCountNotPositive) {
		t.Fatalf("expected ErrModeCountNotPositive for -2, got %v", err)
	}
}

func TestStringBeforeRecording(t *testing.T) {
	prog, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want := "<TDMProgram: concurrent modes=1, time bins=0, spatial modes=0>"
	if got := prog.String(); got != want {
		t.Fatalf("string: got %q want %q", got, want)
	}
}

func TestStringAfterRecording(t *testing.T) {
	seq := []float64{0, math.Pi / 4, 0, math.Pi / 2}
	prog, err := recordSingleLoop(3, seq, seq, seq)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	want := "<TDMProgram: concurrent modes=2, time bins=12, spatial modes=1>"
	if got := prog.String(); got != want {
		t.Fatalf("string: got %q want %q", got, want)
	}
}

func TestCopiesMustBePositive(t *testing.T) {
	seq := []float64{0, 0, 0, 0}
	for _, copies := range []int{-5, -1} {
		_, err := recordSingleLoop(copies, seq, seq, seq)
		if !errors.Is(err, ErrCopiesNotPositive) {
			t.Fatalf("copies=%d: expected ErrCopiesNotPositive, got %v", copies, err)
		}
	}
	// Zero means "unset" and defaults to one repetition.
	prog, err := recordSingleLoop(0, seq, seq, seq)
	if err != nil {
		t.Fatalf("record with default copies: %v", err)
	}
	if prog.Copies() != 1 {
		t.Fatalf("default copies: got %d want 1", prog.Copies())
	}
}

func TestParameterSequencesMustHaveEqualLength(t *testing.T) {
	eight := make([]float64, 8)
	seven := make([]float64, 7)
	_, err := recordSingleLoop(10, eight, eight, seven)
	if !errors.Is(err, ErrUnequalParameterLengths) {
		t.Fatalf("expected ErrUnequalParameterLengths, got %v", err)
	}
}

func TestAtLeastOneMeasurementRequired(t *testing.T) {
	prog, err := New(3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	seq := []float64{0, 0, 0, 0}
	err = prog.Record(RecordOptions{Copies: 1}, [][]float64{seq, seq},
		func(b *Builder, p []Arg, q []Slot) error {
			b.Squeeze(Const(1.0), Const(0), q[2])
			b.Beamsplitter(p[0], Const(0), q[1], q[2])
			b.Rotate(p[1], q[2])
			return nil
		})
	if !errors.Is(err, ErrNoMeasurement) {
		t.Fatalf("expected ErrNoMeasurement, got %v", err)
	}
	if prog.Valid() {
		t.Fatal("invalid program must not report valid")
	}
}

func TestMeasurementsMustCoverAllSpatialModes(t *testing.T) {
	prog, err := New(3, 3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	seq := []float64{0, 0, 0, 0}
	err = prog.Record(RecordOptions{Copies: 1}, [][]float64{seq, seq, seq},
		func(b *Builder, p []Arg, q []Slot) error {
			b.Squeeze(Const(1.0), Const(0), q[2])
			b.Beamsplitter(p[0], Const(0), q[1], q[2])
			b.Rotate(p[1], q[2])
			b.MeasureHomodyne(p[2], q[0])
			return nil
		})
	if !errors.Is(err, ErrMeasurementMismatch) {
		t.Fatalf("expected ErrMeasurementMismatch, got %v", err)
	}
}

func TestAtLeastOneParameterSequenceRequired(t *testing.T) {
	prog, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = prog.Record(RecordOptions{Copies: 1}, nil,
		func(b *Builder, p []Arg, q []Slot) error {
			b.MeasureHomodyne(Const(0), q[0])
			return nil
		})
	if !errors.Is(err, ErrNoParameterSequences) {
		t.Fatalf("expected ErrNoParameterSequences, got %v", err)
	}
}

func TestRecordIsSingleUse(t *testing.T) {
	seq := []float64{0, 0, 0, 0}
	prog, err := recordSingleLoop(1, seq, seq, seq)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	err = prog.Record(RecordOptions{Copies: 1}, [][]float64{seq},
		func(b *Builder, p []Arg, q []Slot) error { return nil })
	if !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}
}

func TestRecordLocksOnBuildError(t *testing.T) {
	prog, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	boom := fmt.Errorf("wiring mistake")
	err = prog.Record(RecordOptions{Copies: 1}, [][]float64{{0}},
		func(b *Builder, p []Arg, q []Slot) error {
			b.MeasureHomodyne(p[0], q[0])
			return boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("expected build error, got %v", err)
	}
	if !prog.Locked() {
		t.Fatal("program must lock on an abnormal scope exit")
	}
	if prog.Valid() {
		t.Fatal("errored recording must not produce a valid program")
	}
}

func TestRecordLocksOnPanic(t *testing.T) {
	prog, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	func() {
		defer func() { _ = recover() }()
		_ = prog.Record(RecordOptions{Copies: 1}, [][]float64{{0}},
			func(b *Builder, p []Arg, q []Slot) error {
				panic("mid-recording failure")
			})
	}()
	if !prog.Locked() {
		t.Fatal("program must lock when the recording callback panics")
	}
}

func TestInvalidShiftRejected(t *testing.T) {
	prog, err := New(1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = prog.Record(RecordOptions{Copies: 1, Shift: ShiftBy(-1)}, [][]float64{{0}},
		func(b *Builder, p []Arg, q []Slot) error {
			b.MeasureHomodyne(p[0], q[0])
			return nil
		})
	if !errors.Is(err, ErrInvalidShift) {
		t.Fatalf("expected ErrInvalidShift, got %v", err)
	}
}

func TestParseShift(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "default"},
		{in: "default", want: "default"},
		{in: "end", want: "end"},
		{in: "3", want: "3"},
		{in: "0", wantErr: true},
		{in: "-2", wantErr: true},
		{in: "sideways", wantErr: true},
	}
	for _, tc := range cases {
		shift, err := ParseShift(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidShift) {
				t.Fatalf("parse %q: expected ErrInvalidShift, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if shift.String() != tc.want {
			t.Fatalf("parse %q: got %q want %q", tc.in, shift.String(), tc.want)
		}
	}
}

func TestShiftAmountPerSegment(t *testing.T) {
	if got := DefaultShift().Amount(5); got != 1 {
		t.Fatalf("default amount: got %d want 1", got)
	}
	if got := EndShift().Amount(5); got != 5 {
		t.Fatalf("end amount: got %d want 5", got)
	}
	if got := ShiftBy(3).Amount(5); got != 3 {
		t.Fatalf("shift-by amount: got %d want 3", got)
	}
}

func TestTemplateOrderPreserved(t *testing.T) {
	seq := []float64{0, 0, 0, 0}
	prog, err := recordSingleLoop(1, seq, seq, seq)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	ops := prog.Ops()
	gates := []string{GateSqueeze, GateBeamsplitter, GateRotation, GateHomodyne}
	if len(ops) != len(gates) {
		t.Fatalf("ops: got %d want %d", len(ops), len(gates))
	}
	for i, gate := range gates {
		if ops[i].Gate != gate {
			t.Fatalf("op %d: got %s want %s", i, ops[i].Gate, gate)
		}
	}
	if ops[1].Args[0].Param != 0 {
		t.Fatalf("beamsplitter must reference parameter 0, got %d", ops[1].Args[0].Param)
	}
	if ops[1].Args[1].Param != -1 {
		t.Fatalf("beamsplitter phase must be a literal, got param %d", ops[1].Args[1].Param)
	}
}

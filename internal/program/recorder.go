package program

import "fmt"

// RecordOptions configures one recording scope. A zero Copies means one
// repetition; the zero Shift is the default single-step rotation.
type RecordOptions struct {
	Copies int
	Shift  Shift
}

// Builder records template operations inside a Record callback. It is only
// valid for the duration of that callback; once the scope exits the template
// is locked and further appends are refused.
type Builder struct {
	prog *Program
	err  error
}

// Apply records one operation against symbolic register slots. Out-of-range
// slots and parameter references are deliberately not checked here; they
// surface as contract violations at unroll time.
func (b *Builder) Apply(kind OpKind, gate string, args []Arg, targets ...Slot) {
	if b.prog.locked {
		if b.err == nil {
			b.err = fmt.Errorf("%w: cannot append %s", ErrAlreadyRecorded, gate)
		}
		return
	}
	b.prog.ops = append(b.prog.ops, Op{
		Kind:    kind,
		Gate:    gate,
		Args:    append([]Arg(nil), args...),
		Targets: append([]Slot(nil), targets...),
	})
}

// PrepareVacuum resets a register slot to the vacuum state.
func (b *Builder) PrepareVacuum(target Slot) {
	b.Apply(OpPrepare, GateVacuum, nil, target)
}

// Squeeze applies single-mode squeezing with magnitude r and phase phi.
func (b *Builder) Squeeze(r, phi Arg, target Slot) {
	b.Apply(OpTransform, GateSqueeze, []Arg{r, phi}, target)
}

// Rotate applies a quadrature phase rotation.
func (b *Builder) Rotate(phi Arg, target Slot) {
	b.Apply(OpTransform, GateRotation, []Arg{phi}, target)
}

// Beamsplitter couples two register slots with mixing angle theta and
// phase phi.
func (b *Builder) Beamsplitter(theta, phi Arg, first, second Slot) {
	b.Apply(OpTransform, GateBeamsplitter, []Arg{theta, phi}, first, second)
}

// MeasureHomodyne records a homodyne measurement at basis angle phi. The
// outcome stream is keyed to the spatial mode owning the target slot.
func (b *Builder) MeasureHomodyne(phi Arg, target Slot) {
	b.Apply(OpMeasure, GateHomodyne, []Arg{phi}, target)
}

// Record opens the single recording scope of the program. It binds the given
// parameter sequences (one symbolic placeholder per sequence, in declaration
// order), yields the placeholder and register-slot handles to the build
// callback, and on every exit path, including a callback error or panic,
// locks the template and runs validation. A build error takes precedence over
// a validation error; the program stays unusable either way.
func (p *Program) Record(opts RecordOptions, sequences [][]float64, build func(b *Builder, params []Arg, register []Slot) error) error {
	if p.locked {
		return ErrAlreadyRecorded
	}

	p.copies = opts.Copies
	if p.copies == 0 {
		p.copies = 1
	}
	p.shift = opts.Shift
	p.sequences = make([][]float64, len(sequences))
	for i, seq := range sequences {
		p.sequences[i] = append([]float64(nil), seq...)
	}
	if len(p.sequences) > 0 {
		p.timeBins = len(p.sequences[0])
	}

	params := make([]Arg, len(p.sequences))
	for i := range params {
		params[i] = Arg{Param: i}
	}
	register := make([]Slot, p.total)
	for i := range register {
		register[i] = Slot(i)
	}

	builder := &Builder{prog: p}
	defer func() {
		p.locked = true
	}()

	buildErr := build(builder, params, register)
	p.locked = true
	if buildErr == nil {
		buildErr = builder.err
	}

	if buildErr != nil {
		return buildErr
	}

	valErr := p.validate()
	if valErr != nil {
		return valErr
	}
	p.valid = true
	p.spatialModes = len(p.modeCounts)
	return nil
}

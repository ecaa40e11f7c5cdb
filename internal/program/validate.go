package program

import (
	"errors"
	"fmt"
)

// Validation failures are invalid-configuration errors: the program is
// malformed and may not be handed to an engine. They are surfaced when the
// recording scope exits, before any simulation work.
var (
	ErrCopiesNotPositive       = errors.New("number of copies must be a positive integer")
	ErrNoParameterSequences    = errors.New("at least one parameter sequence is required")
	ErrUnequalParameterLengths = errors.New("gate-parameter lists must be of equal length")
	ErrNoMeasurement           = errors.New("must be at least one measurement")
	ErrMeasurementMismatch     = errors.New("number of measurement operators must match number of spatial modes")
)

func (p *Program) validate() error {
	if p.copies <= 0 {
		return fmt.Errorf("%w: got %d", ErrCopiesNotPositive, p.copies)
	}
	if err := p.shift.validate(); err != nil {
		return err
	}
	if len(p.sequences) == 0 {
		return ErrNoParameterSequences
	}
	for i, seq := range p.sequences {
		if len(seq) != p.timeBins {
			return fmt.Errorf("%w: sequence %d has %d values, want %d",
				ErrUnequalParameterLengths, i, len(seq), p.timeBins)
		}
	}

	hasMeasure := false
	measured := make(map[int]struct{})
	for _, op := range p.ops {
		if op.Kind != OpMeasure {
			continue
		}
		hasMeasure = true
		if len(op.Targets) == 0 {
			continue
		}
		mode, err := p.SpatialModeOf(op.Targets[0])
		if err != nil {
			// Out-of-range targets are contract violations caught at
			// unroll time; they do not identify a spatial mode here.
			continue
		}
		measured[mode] = struct{}{}
	}
	if !hasMeasure {
		return ErrNoMeasurement
	}
	if len(p.modeCounts) > 1 && len(measured) != len(p.modeCounts) {
		return fmt.Errorf("%w: %d spatial modes, %d measured",
			ErrMeasurementMismatch, len(p.modeCounts), len(measured))
	}
	return nil
}

package program

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidShift rejects shift amounts that are not positive integers.
var ErrInvalidShift = errors.New("shift must be a positive integer, \"default\" or \"end\"")

type shiftKind int

const (
	shiftDefault shiftKind = iota
	shiftEnd
	shiftBy
)

// Shift is the register rotation policy applied after each time bin. The
// zero value is the default policy: rotate every spatial-mode segment by one
// position, modelling a single-step delay-loop advance.
type Shift struct {
	kind   shiftKind
	amount int
}

// DefaultShift rotates each spatial-mode segment by one position per bin.
func DefaultShift() Shift {
	return Shift{kind: shiftDefault}
}

// EndShift rotates each segment by its own concurrent-mode count per bin,
// wrapping exactly once per loop depth.
func EndShift() Shift {
	return Shift{kind: shiftEnd}
}

// ShiftBy rotates each segment by a fixed number of positions per bin.
func ShiftBy(amount int) Shift {
	return Shift{kind: shiftBy, amount: amount}
}

// ParseShift accepts "default", "end" or a positive decimal integer.
func ParseShift(s string) (Shift, error) {
	switch s {
	case "", "default":
		return DefaultShift(), nil
	case "end":
		return EndShift(), nil
	}
	amount, err := strconv.Atoi(s)
	if err != nil || amount <= 0 {
		return Shift{}, fmt.Errorf("%w: got %q", ErrInvalidShift, s)
	}
	return ShiftBy(amount), nil
}

// Amount returns the rotation applied per time bin to a segment of the given
// length. Rotations for different spatial modes never interact, so the result
// depends only on the segment's own length.
func (s Shift) Amount(segment int) int {
	switch s.kind {
	case shiftEnd:
		return segment
	case shiftBy:
		return s.amount
	default:
		return 1
	}
}

func (s Shift) validate() error {
	if s.kind == shiftBy && s.amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidShift, s.amount)
	}
	return nil
}

func (s Shift) String() string {
	switch s.kind {
	case shiftEnd:
		return "end"
	case shiftBy:
		return strconv.Itoa(s.amount)
	default:
		return "default"
	}
}

// Package gaussian implements the bounded Gaussian-state representation the
// shift-register engine evolves: a mean vector and covariance matrix over a
// fixed number of modes, with symplectic gate application and homodyne
// measurement with post-measurement conditioning.
package gaussian

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// DefaultHbar sets the vacuum quadrature variance hbar/2 = 1, matching the
// convention in which homodyne samples of the vacuum have unit variance.
const DefaultHbar = 2.0

var ErrModeOutOfRange = errors.New("mode index out of range")

// State is a Gaussian state over n modes. Quadratures are stored interleaved
// as x0, p0, x1, p1, ...; the state is mutated in place and is not safe for
// concurrent use.
type State struct {
	modes int
	hbar  float64
	mean  []float64
	cov   [][]float64
}

// NewState returns an n-mode vacuum state. A non-positive hbar selects
// DefaultHbar.
func NewState(modes int, hbar float64) *State {
	if hbar <= 0 {
		hbar = DefaultHbar
	}
	s := &State{
		modes: modes,
		hbar:  hbar,
		mean:  make([]float64, 2*modes),
		cov:   make([][]float64, 2*modes),
	}
	for i := range s.cov {
		s.cov[i] = make([]float64, 2*modes)
		s.cov[i][i] = hbar / 2
	}
	return s
}

// Modes returns the number of modes in the register.
func (s *State) Modes() int {
	return s.modes
}

// Hbar returns the commutation-relation constant the state was built with.
func (s *State) Hbar() float64 {
	return s.hbar
}

// Means returns a copy of the quadrature mean vector.
func (s *State) Means() []float64 {
	return append([]float64(nil), s.mean...)
}

// Covariance returns a copy of the quadrature covariance matrix.
func (s *State) Covariance() [][]float64 {
	out := make([][]float64, len(s.cov))
	for i, row := range s.cov {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// PrepareVacuum resets one mode to the vacuum state, dropping all its
// correlations with the rest of the register.
func (s *State) PrepareVacuum(mode int) error {
	if err := s.checkMode(mode); err != nil {
		return err
	}
	s.resetVacuum(mode)
	return nil
}

// ApplyGate applies a registered symplectic gate to the given modes.
func (s *State) ApplyGate(name string, args []float64, targets []int) error {
	spec, err := GetGate(name)
	if err != nil {
		return err
	}
	if len(targets) != spec.Modes {
		return fmt.Errorf("gate %s acts on %d modes, got %d targets", name, spec.Modes, len(targets))
	}
	if len(args) != spec.Params {
		return fmt.Errorf("gate %s takes %d parameters, got %d", name, spec.Params, len(args))
	}
	for _, mode := range targets {
		if err := s.checkMode(mode); err != nil {
			return fmt.Errorf("gate %s: %w", name, err)
		}
	}
	s.applySymplectic(spec.Symplectic(args), targets)
	return nil
}

// MeasureHomodyne measures the quadrature at angle phi on one mode: it draws
// the outcome from the mode's marginal distribution using rng, conditions the
// remaining state on that outcome, and resets the measured mode to vacuum so
// its register cell can be reused.
func (s *State) MeasureHomodyne(phi float64, mode int, rng *rand.Rand) (float64, error) {
	if err := s.checkMode(mode); err != nil {
		return 0, err
	}
	if rng == nil {
		return 0, errors.New("homodyne measurement requires a random source")
	}
	if phi != 0 {
		s.applySymplectic(rotationMatrix(-phi), []int{mode})
	}

	xi := 2 * mode
	variance := s.cov[xi][xi]
	if variance < 0 {
		variance = 0
	}
	outcome := s.mean[xi] + math.Sqrt(variance)*rng.NormFloat64()

	s.condition(xi, outcome)
	s.resetVacuum(mode)
	return outcome, nil
}

// condition updates mean and covariance given that quadrature index idx was
// observed at the measured value (the homodyne limit of a Gaussian
// conditional update).
func (s *State) condition(idx int, value float64) {
	variance := s.cov[idx][idx]
	if variance <= 0 {
		return
	}
	column := make([]float64, len(s.mean))
	for j := range column {
		column[j] = s.cov[j][idx]
	}
	scale := (value - s.mean[idx]) / variance
	for j := range s.mean {
		s.mean[j] += column[j] * scale
	}
	for j := range s.cov {
		for k := range s.cov[j] {
			s.cov[j][k] -= column[j] * column[k] / variance
		}
	}
}

func (s *State) resetVacuum(mode int) {
	xi, pi := 2*mode, 2*mode+1
	s.mean[xi] = 0
	s.mean[pi] = 0
	for j := range s.cov {
		s.cov[xi][j] = 0
		s.cov[pi][j] = 0
		s.cov[j][xi] = 0
		s.cov[j][pi] = 0
	}
	s.cov[xi][xi] = s.hbar / 2
	s.cov[pi][pi] = s.hbar / 2
}

// applySymplectic applies a 2k x 2k symplectic matrix to the quadratures of k
// modes, updating mean and covariance in place.
func (s *State) applySymplectic(m [][]float64, targets []int) {
	idx := make([]int, 0, 2*len(targets))
	for _, mode := range targets {
		idx = append(idx, 2*mode, 2*mode+1)
	}
	k := len(idx)
	n := len(s.mean)

	// mean <- M mean on the affected rows.
	oldMean := make([]float64, k)
	for r, i := range idx {
		oldMean[r] = s.mean[i]
	}
	for r, i := range idx {
		var sum float64
		for c := 0; c < k; c++ {
			sum += m[r][c] * oldMean[c]
		}
		s.mean[i] = sum
	}

	// cov <- M cov on the affected rows, then cov <- cov M^T on the
	// affected columns.
	rows := make([][]float64, k)
	for r, i := range idx {
		rows[r] = append([]float64(nil), s.cov[i]...)
	}
	for r, i := range idx {
		for j := 0; j < n; j++ {
			var sum float64
			for c := 0; c < k; c++ {
				sum += m[r][c] * rows[c][j]
			}
			s.cov[i][j] = sum
		}
	}
	cols := make([][]float64, k)
	for c, j := range idx {
		cols[c] = make([]float64, n)
		for i := 0; i < n; i++ {
			cols[c][i] = s.cov[i][j]
		}
	}
	for c, j := range idx {
		for i := 0; i < n; i++ {
			var sum float64
			for cc := 0; cc < k; cc++ {
				sum += cols[cc][i] * m[c][cc]
			}
			s.cov[i][j] = sum
		}
	}
}

func (s *State) checkMode(mode int) error {
	if mode < 0 || mode >= s.modes {
		return fmt.Errorf("%w: %d of %d", ErrModeOutOfRange, mode, s.modes)
	}
	return nil
}

package gaussian

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"tdmsim/internal/program"
)

var (
	ErrGateExists   = errors.New("gate already registered")
	ErrGateNotFound = errors.New("gate not found")
)

// SymplecticFunc builds the 2k x 2k quadrature transform of a gate from its
// scalar arguments.
type SymplecticFunc func(args []float64) [][]float64

// GateSpec describes one symplectic gate: its name, the number of modes it
// acts on, its parameter count and its transform.
type GateSpec struct {
	Name       string
	Modes      int
	Params     int
	Symplectic SymplecticFunc
}

var gateRegistry = struct {
	mu sync.RWMutex
	m  map[string]GateSpec
}{
	m: make(map[string]GateSpec),
}

func init() {
	initializeBuiltInGates()
}

func initializeBuiltInGates() {
	MustRegisterGate(GateSpec{
		Name:       program.GateSqueeze,
		Modes:      1,
		Params:     2,
		Symplectic: func(args []float64) [][]float64 { return squeezeMatrix(args[0], args[1]) },
	})
	MustRegisterGate(GateSpec{
		Name:       program.GateRotation,
		Modes:      1,
		Params:     1,
		Symplectic: func(args []float64) [][]float64 { return rotationMatrix(args[0]) },
	})
	MustRegisterGate(GateSpec{
		Name:       program.GateBeamsplitter,
		Modes:      2,
		Params:     2,
		Symplectic: func(args []float64) [][]float64 { return beamsplitterMatrix(args[0], args[1]) },
	})
}

// RegisterGate adds a gate to the registry.
func RegisterGate(spec GateSpec) error {
	if spec.Name == "" {
		return errors.New("gate name is required")
	}
	if spec.Modes <= 0 {
		return fmt.Errorf("gate %s: mode count must be positive", spec.Name)
	}
	if spec.Symplectic == nil {
		return fmt.Errorf("gate %s: symplectic function is required", spec.Name)
	}

	gateRegistry.mu.Lock()
	defer gateRegistry.mu.Unlock()

	if _, ok := gateRegistry.m[spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrGateExists, spec.Name)
	}
	gateRegistry.m[spec.Name] = spec
	return nil
}

// MustRegisterGate panics on registration failure; it is intended for
// package initialization.
func MustRegisterGate(spec GateSpec) {
	if err := RegisterGate(spec); err != nil {
		panic(err)
	}
}

// GetGate looks up a registered gate by name.
func GetGate(name string) (GateSpec, error) {
	gateRegistry.mu.RLock()
	defer gateRegistry.mu.RUnlock()

	spec, ok := gateRegistry.m[name]
	if !ok {
		return GateSpec{}, fmt.Errorf("%w: %s", ErrGateNotFound, name)
	}
	return spec, nil
}

// squeezeMatrix is the single-mode squeezing transform: for phi = 0 it
// scales x by exp(-r) and p by exp(r).
func squeezeMatrix(r, phi float64) [][]float64 {
	ch, sh := math.Cosh(r), math.Sinh(r)
	cp, sp := math.Cos(phi), math.Sin(phi)
	return [][]float64{
		{ch - sh*cp, -sh * sp},
		{-sh * sp, ch + sh*cp},
	}
}

// rotationMatrix rotates the quadratures of one mode by phi.
func rotationMatrix(phi float64) [][]float64 {
	c, s := math.Cos(phi), math.Sin(phi)
	return [][]float64{
		{c, -s},
		{s, c},
	}
}

// beamsplitterMatrix mixes two modes: a -> a cos(theta) - b e^{-i phi}
// sin(theta), b -> a e^{i phi} sin(theta) + b cos(theta).
func beamsplitterMatrix(theta, phi float64) [][]float64 {
	ct, st := math.Cos(theta), math.Sin(theta)
	cp, sp := math.Cos(phi), math.Sin(phi)
	return [][]float64{
		{ct, 0, -st * cp, -st * sp},
		{0, ct, st * sp, -st * cp},
		{st * cp, -st * sp, ct, 0},
		{st * sp, st * cp, 0, ct},
	}
}

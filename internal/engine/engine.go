// Package engine executes an unrolled TDM instruction stream against a
// bounded live state register. Execution is strictly sequential: the
// delay-loop recurrence makes later time bins depend on earlier ones, so
// instructions are never reordered or parallelized within a run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"tdmsim/internal/ctxlog"
	"tdmsim/internal/program"
	"tdmsim/internal/unroll"
)

// DefaultHbar matches the Gaussian backend convention: vacuum homodyne
// samples have unit variance.
const DefaultHbar = 2.0

var (
	ErrNoBackend    = errors.New("engine requires a backend factory")
	ErrNoRandSource = errors.New("engine requires an explicit random source")
)

// Backend is the physical-state collaborator contract. The engine only
// guarantees addressing and ordering; gate semantics live behind this
// interface.
type Backend interface {
	PrepareVacuum(target int) error
	ApplyGate(name string, args []float64, targets []int) error
	MeasureHomodyne(phi float64, target int, rng *rand.Rand) (float64, error)
}

// BackendFactory builds a fresh backend state of the given register size.
type BackendFactory func(modes int, hbar float64) Backend

// Engine runs one program execution at a time. The random source is threaded
// explicitly so trials are reproducible without hidden shared state; the
// register state built per run is exclusively owned by that run.
type Engine struct {
	NewBackend BackendFactory
	Rand       *rand.Rand
	Hbar       float64
}

// Run unrolls and executes a locked program, returning the collected samples
// per spatial mode in time-bin order.
func (e *Engine) Run(ctx context.Context, p *program.Program) (*Result, error) {
	if e.NewBackend == nil {
		return nil, ErrNoBackend
	}
	if e.Rand == nil {
		return nil, ErrNoRandSource
	}
	hbar := e.Hbar
	if hbar <= 0 {
		hbar = DefaultHbar
	}

	stream, err := unroll.Expand(p)
	if err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("executing tdm program",
		"concurrent_modes", stream.Modes,
		"time_bins", stream.Bins,
		"instructions", len(stream.Instructions))

	backend := e.NewBackend(stream.Modes, hbar)
	collector := NewCollector(len(p.ModeCounts()))

	bin := -1
	for _, ins := range stream.Instructions {
		if ins.Bin != bin {
			bin = ins.Bin
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := e.execute(backend, collector, ins); err != nil {
			return nil, fmt.Errorf("time bin %d: %w", ins.Bin, err)
		}
	}

	result := collector.Result()
	logger.Debug("tdm program complete", "samples", result.TotalSamples())
	return result, nil
}

func (e *Engine) execute(backend Backend, collector *Collector, ins unroll.Instruction) error {
	switch ins.Kind {
	case program.OpPrepare:
		return backend.PrepareVacuum(ins.Targets[0])
	case program.OpTransform:
		return backend.ApplyGate(ins.Gate, ins.Args, ins.Targets)
	case program.OpMeasure:
		outcome, err := backend.MeasureHomodyne(ins.Args[0], ins.Targets[0], e.Rand)
		if err != nil {
			return err
		}
		return collector.Append(ins.SpatialMode, outcome)
	default:
		return fmt.Errorf("unknown operation kind %v", ins.Kind)
	}
}

// Package circuitfile loads TDM circuit descriptions from HCL files and
// builds executable program templates from them.
package circuitfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"tdmsim/internal/ctxlog"
)

var (
	ErrNoPrograms       = errors.New("circuit file declares no programs")
	ErrUnknownProgram   = errors.New("program not found in circuit file")
	ErrAmbiguousProgram = errors.New("circuit file declares multiple programs; select one by name")
)

// File is the decoded top-level structure of a circuit file.
type File struct {
	Programs []*ProgramBlock `hcl:"program,block"`
}

// ProgramBlock is one `program "name" { ... }` block. Copies and shift are
// decoded as raw values so that malformed inputs, such as a fractional copy
// count, are rejected with a meaningful error instead of a decode failure.
type ProgramBlock struct {
	Name            string           `hcl:"name,label"`
	ConcurrentModes []int            `hcl:"concurrent_modes"`
	Copies          cty.Value        `hcl:"copies,optional"`
	Shift           cty.Value        `hcl:"shift,optional"`
	Hbar            *float64         `hcl:"hbar,optional"`
	Sequences       []*SequenceBlock `hcl:"sequence,block"`
	Ops             []*OpBlock       `hcl:"op,block"`
}

// SequenceBlock declares one named gate-parameter sequence, one value per
// time bin.
type SequenceBlock struct {
	Name   string    `hcl:"name,label"`
	Values []float64 `hcl:"values"`
}

// OpBlock is one template operation. Args mixes literal numbers with strings
// naming a declared sequence.
type OpBlock struct {
	Gate    string    `hcl:"gate,label"`
	Args    cty.Value `hcl:"args,optional"`
	Targets []int     `hcl:"targets,optional"`
}

// Load parses one circuit file.
func Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse circuit file %s: %w", path, diags)
	}

	var file File
	diags = gohcl.DecodeBody(hclFile.Body, nil, &file)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode circuit file %s: %w", path, diags)
	}

	logger.Debug("circuit file loaded", "path", path, "programs", len(file.Programs))
	return &file, nil
}

// Select picks a program block by name. An empty name is allowed when the
// file declares exactly one program.
func (f *File) Select(name string) (*ProgramBlock, error) {
	if len(f.Programs) == 0 {
		return nil, ErrNoPrograms
	}
	if name == "" {
		if len(f.Programs) > 1 {
			return nil, ErrAmbiguousProgram
		}
		return f.Programs[0], nil
	}
	for _, block := range f.Programs {
		if block.Name == name {
			return block, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, name)
}

package storage

import (
	"context"

	"tdmsim/internal/model"
)

// Store defines the persistence operations for simulation runs and their
// measurement records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveSamples(ctx context.Context, stream model.SampleStream) error
	GetSamples(ctx context.Context, runID string) ([]model.SampleStream, bool, error)
}

// Resetter is implemented by stores that can drop all persisted records.
type Resetter interface {
	Reset(ctx context.Context) error
}

//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"tdmsim/internal/model"
)

func TestSQLiteStoreRunAndSamplesRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tdmsim.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer store.Close()

	run := testRun("run-sqlite", "2026-08-01T00:00:00Z")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	output, ok, err := store.GetRun(ctx, "run-sqlite")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || output.Circuit != "epr" {
		t.Fatalf("unexpected run: ok=%v %+v", ok, output)
	}

	stream := model.SampleStream{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-sqlite",
		Trial:           0,
		SpatialMode:     0,
		Values:          []float64{0.25, -0.75},
	}
	if err := store.SaveSamples(ctx, stream); err != nil {
		t.Fatalf("save samples: %v", err)
	}

	streams, ok, err := store.GetSamples(ctx, "run-sqlite")
	if err != nil {
		t.Fatalf("get samples: %v", err)
	}
	if !ok || len(streams) != 1 || streams[0].Values[1] != -0.75 {
		t.Fatalf("unexpected samples: ok=%v %+v", ok, streams)
	}

	stream.Values = []float64{1}
	if err := store.SaveSamples(ctx, stream); err != nil {
		t.Fatalf("upsert samples: %v", err)
	}
	streams, _, err = store.GetSamples(ctx, "run-sqlite")
	if err != nil {
		t.Fatalf("get samples after upsert: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Values) != 1 {
		t.Fatalf("expected upsert to replace, got %+v", streams)
	}
}

func TestSQLiteStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tdmsim.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer store.Close()

	if err := store.SaveRun(ctx, testRun("run-old", "2026-08-01T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.SaveRun(ctx, testRun("run-new", "2026-08-02T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-new" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "tdmsim.db"))
	if _, _, err := store.GetRun(context.Background(), "run-1"); err == nil {
		t.Fatal("expected an error before Init")
	}
}

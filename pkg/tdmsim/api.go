// Package tdmsim is the embeddable client API for recording, simulating and
// persisting time-domain-multiplexed photonic circuits.
package tdmsim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"tdmsim/internal/circuitfile"
	"tdmsim/internal/engine"
	"tdmsim/internal/gaussian"
	"tdmsim/internal/model"
	"tdmsim/internal/program"
	"tdmsim/internal/stats"
	"tdmsim/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "tdmsim.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
}

type Client struct {
	store       storage.Store
	initialized bool

	runsDir    string
	exportsDir string
}

// RunRequest describes one simulation run. Either CircuitPath or Program must
// be set; a path is loaded and its program block selected by ProgramName.
type RunRequest struct {
	CircuitPath string
	ProgramName string
	Program     *program.Program
	Seed        int64
	Hbar        float64
	Trials      int
	Workers     int
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	SpatialModes int
	TimeBins     int
	Copies       int
	Trials       int
	TotalSamples int
	Summaries    []stats.ModeSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Circuit      string
	SpatialModes int
	TimeBins     int
	Copies       int
	Seed         int64
	Trials       int
	TotalSamples int
}

type SamplesRequest struct {
	RunID  string
	Latest bool
	Trial  int
	Limit  int
}

type DescribeRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	Run       model.RunRecord
	Summaries []stats.ModeSummary
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Reset drops all persisted runs and samples, then reinitializes the store.
// On-disk run artifacts are left untouched.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	if resetter, ok := c.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	c.initialized = false
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Trials <= 0 {
		req.Trials = 1
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}

	prog := req.Program
	circuitName := req.ProgramName
	hbar := req.Hbar
	if prog == nil {
		if req.CircuitPath == "" {
			return RunSummary{}, errors.New("run requires a circuit path or a program")
		}
		file, err := circuitfile.Load(ctx, req.CircuitPath)
		if err != nil {
			return RunSummary{}, err
		}
		block, err := file.Select(req.ProgramName)
		if err != nil {
			return RunSummary{}, err
		}
		prog, err = block.Build()
		if err != nil {
			return RunSummary{}, err
		}
		circuitName = block.Name
		if hbar <= 0 {
			hbar = block.HbarOrDefault(engine.DefaultHbar)
		}
	}
	if hbar <= 0 {
		hbar = engine.DefaultHbar
	}
	if !prog.Valid() {
		return RunSummary{}, program.ErrNotRecorded
	}

	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	results, err := runTrials(ctx, prog, hbar, req.Seed, req.Trials, req.Workers)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	spatialModes := len(prog.ModeCounts())

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		Circuit:         circuitName,
		ConcurrentModes: prog.ModeCounts(),
		SpatialModes:    spatialModes,
		TimeBins:        prog.TimeBins(),
		Copies:          prog.Copies(),
		Shift:           prog.Shift().String(),
		Seed:            req.Seed,
		Hbar:            hbar,
		Trials:          req.Trials,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}

	totalSamples := 0
	perMode := make([][]float64, spatialModes)
	series := make([]stats.SampleSeries, 0, req.Trials*spatialModes)
	for trial, result := range results {
		for mode := 0; mode < spatialModes; mode++ {
			values := result.Samples(mode)
			totalSamples += len(values)
			perMode[mode] = append(perMode[mode], values...)
			series = append(series, stats.SampleSeries{Trial: trial, SpatialMode: mode, Values: values})
			if err := c.store.SaveSamples(ctx, model.SampleStream{
				VersionedRecord: storage.CurrentVersion(),
				RunID:           runID,
				Trial:           trial,
				SpatialMode:     mode,
				Values:          values,
			}); err != nil {
				return RunSummary{}, err
			}
		}
	}

	summaries := make([]stats.ModeSummary, spatialModes)
	for mode := range perMode {
		summaries[mode] = stats.SummarizeMode(mode, perMode[mode])
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:           runID,
			Circuit:         circuitName,
			CircuitPath:     req.CircuitPath,
			ConcurrentModes: prog.TotalModes(),
			SpatialModes:    spatialModes,
			TimeBins:        prog.TimeBins(),
			Copies:          prog.Copies(),
			Shift:           prog.Shift().String(),
			Seed:            req.Seed,
			Hbar:            hbar,
			Trials:          req.Trials,
			Workers:         req.Workers,
		},
		Summaries:    summaries,
		TotalSamples: totalSamples,
	}, series)
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		Circuit:      circuitName,
		SpatialModes: spatialModes,
		TimeBins:     prog.TimeBins(),
		Copies:       prog.Copies(),
		Seed:         req.Seed,
		Trials:       req.Trials,
		TotalSamples: totalSamples,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		SpatialModes: spatialModes,
		TimeBins:     prog.TimeBins(),
		Copies:       prog.Copies(),
		Trials:       req.Trials,
		TotalSamples: totalSamples,
		Summaries:    summaries,
	}, nil
}

// Runs lists recent runs from the on-disk index. When the index is absent,
// for example after artifacts were moved away, it falls back to the store.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return c.runsFromStore(ctx, req.Limit)
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Circuit:      e.Circuit,
			SpatialModes: e.SpatialModes,
			TimeBins:     e.TimeBins,
			Copies:       e.Copies,
			Seed:         e.Seed,
			Trials:       e.Trials,
			TotalSamples: e.TotalSamples,
		})
	}
	return out, nil
}

func (c *Client) runsFromStore(ctx context.Context, limit int) ([]RunItem, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		// Every spatial mode yields one homodyne sample per unrolled bin.
		out = append(out, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			Circuit:      run.Circuit,
			SpatialModes: run.SpatialModes,
			TimeBins:     run.TimeBins,
			Copies:       run.Copies,
			Seed:         run.Seed,
			Trials:       run.Trials,
			TotalSamples: run.Trials * run.SpatialModes * run.TimeBins * run.Copies,
		})
	}
	return out, nil
}

func (c *Client) Samples(ctx context.Context, req SamplesRequest) ([]model.SampleStream, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	streams, ok, err := c.store.GetSamples(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("samples not found for run id: %s", runID)
	}

	out := make([]model.SampleStream, 0, len(streams))
	for _, stream := range streams {
		if stream.Trial != req.Trial {
			continue
		}
		if req.Limit > 0 && len(stream.Values) > req.Limit {
			stream.Values = stream.Values[:req.Limit]
		}
		out = append(out, stream)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no samples for run id %s trial %d", runID, req.Trial)
	}
	return out, nil
}

func (c *Client) Describe(ctx context.Context, req DescribeRequest) (RunDetail, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return RunDetail{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunDetail{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}

	summaries, _, err := stats.ReadRunSummary(c.runsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	return RunDetail{Run: run, Summaries: summaries}, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// runTrials executes the program req.Trials times with derived per-trial
// seeds. Trials are independent and run concurrently; instructions within a
// trial stay strictly ordered.
func runTrials(ctx context.Context, prog *program.Program, hbar float64, seed int64, trials, workers int) ([]*engine.Result, error) {
	results := make([]*engine.Result, trials)
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for trial := 0; trial < trials; trial++ {
		wg.Add(1)
		go func(trial int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			eng := &engine.Engine{
				NewBackend: func(modes int, h float64) engine.Backend {
					return gaussian.NewState(modes, h)
				},
				Rand: rand.New(rand.NewSource(seed + int64(trial))),
				Hbar: hbar,
			}
			result, err := eng.Run(ctx, prog)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("trial %d: %w", trial, err)
				}
				mu.Unlock()
				return
			}
			results[trial] = result
		}(trial)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

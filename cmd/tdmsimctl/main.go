package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"tdmsim/internal/ctxlog"
	"tdmsim/internal/storage"
	"tdmsim/pkg/tdmsim"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "samples":
		return runSamples(ctx, args[1:])
	case "describe":
		return runDescribe(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func clientFlags(fs *flag.FlagSet) *tdmsim.Options {
	opts := &tdmsim.Options{}
	fs.StringVar(&opts.StoreKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	fs.StringVar(&opts.DBPath, "db-path", "tdmsim.db", "sqlite database path")
	fs.StringVar(&opts.RunsDir, "runs-dir", runsDir, "run artifacts directory")
	fs.StringVar(&opts.ExportsDir, "exports-dir", exportsDir, "exports directory")
	return opts
}

func newClient(opts *tdmsim.Options) (*tdmsim.Client, func(), error) {
	client, err := tdmsim.New(*opts)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	opts := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", opts.StoreKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	opts := clientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", opts.StoreKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	opts := clientFlags(fs)
	circuit := fs.String("circuit", "", "circuit file path")
	programName := fs.String("program", "", "program name within the circuit file")
	seed := fs.Int64("seed", 0, "base random seed; trial seeds derive from it")
	hbar := fs.Float64("hbar", 0, "commutation constant; 0 uses the circuit or backend default")
	trials := fs.Int("trials", 1, "independent trials to run")
	workers := fs.Int("workers", 4, "max concurrent trials")
	debug := fs.Bool("debug", false, "enable debug logging")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *circuit == "" {
		return errors.New("run requires -circuit")
	}
	if *trials <= 0 {
		return errors.New("trials must be > 0")
	}

	if *debug {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		ctx = ctxlog.WithLogger(ctx, logger)
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	summary, err := client.Run(ctx, tdmsim.RunRequest{
		CircuitPath: *circuit,
		ProgramName: *programName,
		Seed:        *seed,
		Hbar:        *hbar,
		Trials:      *trials,
		Workers:     *workers,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("run %s complete\n", summary.RunID)
	fmt.Printf("  spatial modes: %d, time bins: %d, copies: %d, trials: %d\n",
		summary.SpatialModes, summary.TimeBins, summary.Copies, summary.Trials)
	fmt.Printf("  samples: %s\n", humanize.Comma(int64(summary.TotalSamples)))
	for _, s := range summary.Summaries {
		fmt.Printf("  mode %d: n=%s mean=%.6f var=%.6f\n",
			s.SpatialMode, humanize.Comma(int64(s.Samples)), s.Mean, s.Variance)
	}
	fmt.Printf("  artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	opts := clientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	items, err := client.Runs(ctx, tdmsim.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, item := range items {
		fmt.Printf("%s  %s  circuit=%s modes=%d bins=%d copies=%d trials=%d samples=%s\n",
			item.RunID, item.CreatedAtUTC, item.Circuit, item.SpatialModes,
			item.TimeBins, item.Copies, item.Trials, humanize.Comma(int64(item.TotalSamples)))
	}
	return nil
}

func runSamples(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("samples", flag.ContinueOnError)
	opts := clientFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	trial := fs.Int("trial", 0, "trial index")
	limit := fs.Int("limit", 0, "max values per stream; 0 for all")
	jsonOut := fs.Bool("json", false, "emit samples as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	streams, err := client.Samples(ctx, tdmsim.SamplesRequest{
		RunID:  *runID,
		Latest: *latest,
		Trial:  *trial,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(streams)
	}

	for _, stream := range streams {
		fmt.Printf("trial %d mode %d (%s values):\n", stream.Trial, stream.SpatialMode,
			humanize.Comma(int64(len(stream.Values))))
		for bin, value := range stream.Values {
			fmt.Printf("  %4d  %+.6f\n", bin, value)
		}
	}
	return nil
}

func runDescribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	opts := clientFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit run detail as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	detail, err := client.Describe(ctx, tdmsim.DescribeRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}

	run := detail.Run
	total := 0
	for _, n := range run.ConcurrentModes {
		total += n
	}
	fmt.Printf("run %s\n", run.ID)
	fmt.Printf("  program: <TDMProgram: concurrent modes=%d, time bins=%d, spatial modes=%d>\n",
		total, run.TimeBins*run.Copies, run.SpatialModes)
	fmt.Printf("  created: %s\n", run.CreatedAtUTC)
	fmt.Printf("  circuit: %s\n", run.Circuit)
	fmt.Printf("  concurrent modes: %v, spatial modes: %d\n", run.ConcurrentModes, run.SpatialModes)
	fmt.Printf("  time bins: %d, copies: %d, shift: %s\n", run.TimeBins, run.Copies, run.Shift)
	fmt.Printf("  seed: %d, hbar: %g, trials: %d\n", run.Seed, run.Hbar, run.Trials)
	for _, s := range detail.Summaries {
		fmt.Printf("  mode %d: n=%s mean=%.6f var=%.6f min=%.6f max=%.6f\n",
			s.SpatialMode, humanize.Comma(int64(s.Samples)), s.Mean, s.Variance, s.Min, s.Max)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	opts := clientFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	outDir := fs.String("out", "", "output directory; defaults to the exports dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, closeClient, err := newClient(opts)
	if err != nil {
		return err
	}
	defer closeClient()

	summary, err := client.Export(ctx, tdmsim.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", summary.RunID, summary.Directory)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: tdmsimctl <init|reset|run|runs|samples|describe|export> [flags]", msg)
}

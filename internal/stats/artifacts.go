package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const runIndexFile = "run_index.json"

// RunConfig records everything needed to reproduce a simulation run.
type RunConfig struct {
	RunID           string  `json:"run_id"`
	Circuit         string  `json:"circuit,omitempty"`
	CircuitPath     string  `json:"circuit_path,omitempty"`
	ConcurrentModes int     `json:"concurrent_modes"`
	SpatialModes    int     `json:"spatial_modes"`
	TimeBins        int     `json:"time_bins"`
	Copies          int     `json:"copies"`
	Shift           string  `json:"shift"`
	Seed            int64   `json:"seed"`
	Hbar            float64 `json:"hbar"`
	Trials          int     `json:"trials"`
	Workers         int     `json:"workers"`
}

// ModeSummary aggregates the homodyne outcomes of one spatial mode across
// every trial of a run.
type ModeSummary struct {
	SpatialMode int     `json:"spatial_mode"`
	Samples     int     `json:"samples"`
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`
	Std         float64 `json:"std"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

// SampleSeries is one trial's measurement record for one spatial mode, in
// time-bin order.
type SampleSeries struct {
	Trial       int       `json:"trial"`
	SpatialMode int       `json:"spatial_mode"`
	Values      []float64 `json:"values"`
}

type RunArtifacts struct {
	Config       RunConfig     `json:"config"`
	Summaries    []ModeSummary `json:"summaries"`
	TotalSamples int           `json:"total_samples"`
}

type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	Circuit      string `json:"circuit,omitempty"`
	SpatialModes int    `json:"spatial_modes"`
	TimeBins     int    `json:"time_bins"`
	Copies       int    `json:"copies"`
	Seed         int64  `json:"seed"`
	Trials       int    `json:"trials"`
	TotalSamples int    `json:"total_samples"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// SummarizeMode computes a ModeSummary over the concatenated values of a
// spatial mode.
func SummarizeMode(spatialMode int, values []float64) ModeSummary {
	summary := ModeSummary{SpatialMode: spatialMode, Samples: len(values)}
	if len(values) == 0 {
		return summary
	}
	summary.Mean = Mean(values)
	summary.Variance = Variance(values)
	summary.Std = Std(values)
	summary.Min = values[0]
	summary.Max = values[0]
	for _, v := range values[1:] {
		if v < summary.Min {
			summary.Min = v
		}
		if v > summary.Max {
			summary.Max = v
		}
	}
	return summary
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts, series []SampleSeries) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := WriteRunConfig(baseDir, artifacts.Config.RunID, artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), map[string]any{"summaries": artifacts.Summaries, "total_samples": artifacts.TotalSamples}); err != nil {
		return "", err
	}
	if err := writeSampleCSV(filepath.Join(runDir, "samples.csv"), series); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "summary.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	samplesPath := filepath.Join(src, "samples.csv")
	if _, err := os.Stat(samplesPath); err == nil {
		if err := copyFile(samplesPath, filepath.Join(dst, "samples.csv")); err != nil {
			return "", err
		}
	} else if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadRunSummary(baseDir, runID string) ([]ModeSummary, bool, error) {
	path := filepath.Join(baseDir, runID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var doc struct {
		Summaries []ModeSummary `json:"summaries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, err
	}
	return doc.Summaries, true, nil
}

func writeSampleCSV(path string, series []SampleSeries) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"trial", "spatial_mode", "bin", "value"}); err != nil {
		return err
	}
	for _, s := range series {
		for bin, value := range s.Values {
			if err := writer.Write([]string{
				strconv.Itoa(s.Trial),
				strconv.Itoa(s.SpatialMode),
				strconv.Itoa(bin),
				strconv.FormatFloat(value, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadSampleCSV restores the per-trial series written by WriteRunArtifacts.
func ReadSampleCSV(baseDir, runID string) ([]SampleSeries, bool, error) {
	path := filepath.Join(baseDir, runID, "samples.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []SampleSeries{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 4 {
		return nil, false, fmt.Errorf("sample series header must have at least 4 columns")
	}

	var series []SampleSeries
	index := map[[2]int]int{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 4 {
			return nil, false, fmt.Errorf("sample series row must have at least 4 columns")
		}
		trial, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		mode, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, false, err
		}
		key := [2]int{trial, mode}
		pos, ok := index[key]
		if !ok {
			pos = len(series)
			index[key] = pos
			series = append(series, SampleSeries{Trial: trial, SpatialMode: mode})
		}
		series[pos].Values = append(series[pos].Values, value)
	}
	return series, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

package storage

import (
	"context"
	"sort"
	"sync"

	"tdmsim/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	samples     map[string][]model.SampleStream
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.samples = make(map[string][]model.SampleStream)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.samples = make(map[string][]model.SampleStream)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ConcurrentModes = append([]int(nil), run.ConcurrentModes...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.ConcurrentModes = append([]int(nil), run.ConcurrentModes...)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.ConcurrentModes = append([]int(nil), run.ConcurrentModes...)
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	return runs, nil
}

func (s *MemoryStore) SaveSamples(_ context.Context, stream model.SampleStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream.Values = append([]float64(nil), stream.Values...)
	streams := s.samples[stream.RunID]
	for i := range streams {
		if streams[i].Trial == stream.Trial && streams[i].SpatialMode == stream.SpatialMode {
			streams[i] = stream
			return nil
		}
	}
	s.samples[stream.RunID] = append(streams, stream)
	return nil
}

func (s *MemoryStore) GetSamples(_ context.Context, runID string) ([]model.SampleStream, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	streams, ok := s.samples[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.SampleStream, len(streams))
	for i, stream := range streams {
		stream.Values = append([]float64(nil), stream.Values...)
		copied[i] = stream
	}
	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Trial == copied[j].Trial {
			return copied[i].SpatialMode < copied[j].SpatialMode
		}
		return copied[i].Trial < copied[j].Trial
	})
	return copied, true, nil
}

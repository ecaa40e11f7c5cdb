package engine

import "fmt"

// Collector accumulates measurement outcomes per spatial mode, in the order
// they are produced.
type Collector struct {
	streams [][]float64
}

// NewCollector builds a collector with one stream per spatial mode.
func NewCollector(spatialModes int) *Collector {
	return &Collector{streams: make([][]float64, spatialModes)}
}

// Append records one outcome for the given spatial mode.
func (c *Collector) Append(spatialMode int, value float64) error {
	if spatialMode < 0 || spatialMode >= len(c.streams) {
		return fmt.Errorf("spatial mode %d outside [0, %d)", spatialMode, len(c.streams))
	}
	c.streams[spatialMode] = append(c.streams[spatialMode], value)
	return nil
}

// Result finalizes the collector into an immutable result view.
func (c *Collector) Result() *Result {
	return &Result{streams: c.streams}
}

// Result exposes the measurement outcomes of one program execution.
type Result struct {
	streams [][]float64
}

// SpatialModes returns the number of sample streams.
func (r *Result) SpatialModes() int {
	return len(r.streams)
}

// Samples returns the ordered outcomes of one spatial mode.
func (r *Result) Samples(spatialMode int) []float64 {
	if spatialMode < 0 || spatialMode >= len(r.streams) {
		return nil
	}
	return append([]float64(nil), r.streams[spatialMode]...)
}

// AllSamples returns every stream in spatial-mode declaration order.
func (r *Result) AllSamples() [][]float64 {
	out := make([][]float64, len(r.streams))
	for i := range r.streams {
		out[i] = append([]float64(nil), r.streams[i]...)
	}
	return out
}

// Interleaved flattens the streams across spatial modes in declaration
// order, one outcome per mode per position, skipping modes whose stream has
// already ended.
func (r *Result) Interleaved() []float64 {
	longest := 0
	total := 0
	for _, stream := range r.streams {
		if len(stream) > longest {
			longest = len(stream)
		}
		total += len(stream)
	}
	out := make([]float64, 0, total)
	for i := 0; i < longest; i++ {
		for _, stream := range r.streams {
			if i < len(stream) {
				out = append(out, stream[i])
			}
		}
	}
	return out
}

// TotalSamples counts outcomes across all spatial modes.
func (r *Result) TotalSamples() int {
	total := 0
	for _, stream := range r.streams {
		total += len(stream)
	}
	return total
}

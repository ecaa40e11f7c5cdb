package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persistent description of one simulation run: the circuit
// shape, the execution configuration and enough metadata to reproduce it.
type RunRecord struct {
	VersionedRecord
	ID              string  `json:"id"`
	CreatedAtUTC    string  `json:"created_at_utc"`
	Circuit         string  `json:"circuit,omitempty"`
	ConcurrentModes []int   `json:"concurrent_modes"`
	SpatialModes    int     `json:"spatial_modes"`
	TimeBins        int     `json:"time_bins"`
	Copies          int     `json:"copies"`
	Shift           string  `json:"shift"`
	Seed            int64   `json:"seed"`
	Hbar            float64 `json:"hbar"`
	Trials          int     `json:"trials"`
}

// SampleStream holds the homodyne outcomes of one spatial mode for one trial
// of a run, in time-bin order.
type SampleStream struct {
	VersionedRecord
	RunID       string    `json:"run_id"`
	Trial       int       `json:"trial"`
	SpatialMode int       `json:"spatial_mode"`
	Values      []float64 `json:"values"`
}

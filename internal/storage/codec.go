package storage

import (
	"encoding/json"
	"errors"

	"tdmsim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeSampleStream(s model.SampleStream) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSampleStream(data []byte) (model.SampleStream, error) {
	var stream model.SampleStream
	if err := json.Unmarshal(data, &stream); err != nil {
		return model.SampleStream{}, err
	}
	if err := checkVersion(stream.VersionedRecord); err != nil {
		return model.SampleStream{}, err
	}
	return stream, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/signalsfoundry/orbit-engine/model"
)

// FileSource reads a JSON document on every fetch. The document is either a
// list of satellite records or an object with a "satellites" list.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Latest reads and normalizes the file.
func (f *FileSource) Latest(ctx context.Context) ([]model.SatelliteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read telemetry file %s: %w", f.path, err)
	}
	raw, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode telemetry file %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return nil, ErrNoData
	}
	return model.NormalizeAll(raw), nil
}

// DecodeRecords parses a JSON record list or {"satellites": [...]} wrapper.
func DecodeRecords(data []byte) ([]model.RawSatelliteRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var raw []model.RawSatelliteRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	var wrapped struct {
		Satellites []model.RawSatelliteRecord `json:"satellites"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Satellites, nil
}

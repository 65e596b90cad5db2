package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Sources disagree on key names; the first key present wins.
var (
	idKeys         = []string{"id", "satellite_id", "norad_id"}
	nameKeys       = []string{"name", "satellite_name"}
	elevationKeys  = []string{"elevation_deg", "elevation"}
	azimuthKeys    = []string{"azimuth_deg", "azimuth"}
	distanceKeys   = []string{"distance_km", "range_km", "distance"}
	signalKeys     = []string{"signal_strength", "rsrp_dbm", "rsrp"}
	trajectoryKeys = []string{"trajectory", "position_timeseries"}
)

// UnmarshalJSON accepts the record shapes produced by the known telemetry
// sources. Unknown keys are ignored; malformed optional values are treated
// as absent rather than failing the whole batch.
func (r *RawSatelliteRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode satellite record: %w", err)
	}

	*r = RawSatelliteRecord{}
	if raw, ok := firstKey(fields, idKeys); ok {
		r.ID = decodeStringish(raw)
	}
	if raw, ok := firstKey(fields, nameKeys); ok {
		r.Name = decodeStringish(raw)
	}
	if raw, ok := firstKey(fields, elevationKeys); ok {
		r.ElevationDeg = decodeFloat(raw)
	}
	if raw, ok := firstKey(fields, azimuthKeys); ok {
		r.AzimuthDeg = decodeFloat(raw)
	}
	if raw, ok := firstKey(fields, distanceKeys); ok {
		r.DistanceKm = decodeFloat(raw)
	}
	if raw, ok := firstKey(fields, signalKeys); ok {
		r.SignalStrength = decodeFloat(raw)
	}
	if raw, ok := firstKey(fields, trajectoryKeys); ok {
		traj, err := decodeTrajectory(raw)
		if err != nil {
			return err
		}
		r.Trajectory = traj
	}
	return nil
}

// UnmarshalJSON accepts numeric or RFC3339 timestamps and a few alternate
// key names.
func (p *TrajectoryPoint) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode trajectory point: %w", err)
	}
	*p = TrajectoryPoint{}
	if raw, ok := firstKey(fields, []string{"timestamp", "time", "t"}); ok {
		ts, err := decodeTimestamp(raw)
		if err != nil {
			return err
		}
		p.Timestamp = ts
	}
	p.Latitude = floatOr(fields, []string{"latitude", "lat"})
	p.Longitude = floatOr(fields, []string{"longitude", "lon", "lng"})
	p.AltitudeKm = floatOr(fields, []string{"altitude_km", "alt_km", "altitude"})
	p.ElevationDeg = floatOr(fields, elevationKeys)
	p.AzimuthDeg = floatOr(fields, azimuthKeys)
	p.DistanceKm = floatOr(fields, distanceKeys)
	if raw, ok := firstKey(fields, []string{"is_visible", "visible"}); ok {
		_ = json.Unmarshal(raw, &p.Visible)
	}
	return nil
}

func decodeTrajectory(raw json.RawMessage) (*Trajectory, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var points []TrajectoryPoint
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, fmt.Errorf("decode trajectory points: %w", err)
		}
		return &Trajectory{Points: points, SampleCount: len(points)}, nil
	}
	var traj struct {
		Points      []TrajectoryPoint `json:"points"`
		DurationSec float64           `json:"duration_sec"`
		Duration    float64           `json:"duration"`
		SampleCount int               `json:"sample_count"`
	}
	if err := json.Unmarshal(raw, &traj); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	out := &Trajectory{
		Points:      traj.Points,
		DurationSec: traj.DurationSec,
		SampleCount: traj.SampleCount,
	}
	if out.DurationSec == 0 {
		out.DurationSec = traj.Duration
	}
	if out.SampleCount == 0 {
		out.SampleCount = len(out.Points)
	}
	return out, nil
}

func decodeTimestamp(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("decode timestamp %s: %w", string(raw), err)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return float64(ts.UnixNano()) / 1e9, nil
}

func firstKey(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			return raw, true
		}
	}
	return nil, false
}

func decodeStringish(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeFloat(raw json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return &parsed
		}
	}
	return nil
}

func floatOr(fields map[string]json.RawMessage, keys []string) float64 {
	raw, ok := firstKey(fields, keys)
	if !ok {
		return 0
	}
	if f := decodeFloat(raw); f != nil {
		return *f
	}
	return 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

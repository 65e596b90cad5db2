package model

// TrajectoryPoint is a single timestamped orbital sample as seen from the
// receiver. Timestamp is in seconds; the epoch is whatever the telemetry
// source uses, only differences between points matter.
type TrajectoryPoint struct {
	Timestamp    float64 `json:"timestamp"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	AltitudeKm   float64 `json:"altitude_km"`
	ElevationDeg float64 `json:"elevation_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
	DistanceKm   float64 `json:"distance_km"`
	Visible      bool    `json:"is_visible"`
}

// Trajectory is the ordered sample sequence for one satellite.
//
// Points are expected to be sorted by Timestamp with no gaps larger than the
// source's sampling interval. This is not validated; unsorted input gives
// undefined interpolation results.
type Trajectory struct {
	Points []TrajectoryPoint `json:"points"`

	// DurationSec is the declared span of the trajectory. Zero means "use the
	// span between the first and last point".
	DurationSec float64 `json:"duration_sec,omitempty"`

	// SampleCount is the number of samples the source intended to produce.
	// It may differ from len(Points) when the source dropped samples.
	SampleCount int `json:"sample_count,omitempty"`
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Points)
}

// Start returns the timestamp of the first sample, or 0 for an empty trajectory.
func (t *Trajectory) Start() float64 {
	if t.Len() == 0 {
		return 0
	}
	return t.Points[0].Timestamp
}

// Duration returns the declared duration, falling back to the sampled span.
func (t *Trajectory) Duration() float64 {
	if t.Len() == 0 {
		return 0
	}
	if t.DurationSec > 0 {
		return t.DurationSec
	}
	return t.Points[len(t.Points)-1].Timestamp - t.Points[0].Timestamp
}

// Last returns the final sample. ok is false for an empty trajectory.
func (t *Trajectory) Last() (TrajectoryPoint, bool) {
	if t.Len() == 0 {
		return TrajectoryPoint{}, false
	}
	return t.Points[len(t.Points)-1], true
}

// Clone returns a deep copy so the store can own its trajectories.
func (t *Trajectory) Clone() *Trajectory {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Points = append([]TrajectoryPoint(nil), t.Points...)
	return &cp
}

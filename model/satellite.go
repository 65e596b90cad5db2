package model

import (
	"fmt"
	"strings"
)

// Defaults substituted for missing record fields.
const (
	DefaultElevationDeg = 45.0
	DefaultAzimuthDeg   = 180.0
)

// DefaultDistanceKm is the slant range of a satellite on the default shell
// at the default elevation.
var DefaultDistanceKm = SlantRangeKm(DefaultElevationDeg, DefaultShellAltitudeKm)

// SatelliteRecord is the normalized per-satellite input. It is immutable for
// one ingestion cycle and replaced wholesale when the upstream list changes.
type SatelliteRecord struct {
	ID   string
	Name string

	ElevationDeg   float64
	AzimuthDeg     float64
	DistanceKm     float64
	SignalStrength float64

	// HasElevation etc. record whether the value came from the source or was
	// substituted by Normalize.
	HasElevation bool
	HasAzimuth   bool
	HasDistance  bool
	HasSignal    bool

	// Trajectory is nil when the source supplied no historical samples.
	Trajectory *Trajectory
}

// HasTrajectory reports whether the record carries usable historical samples.
func (r SatelliteRecord) HasTrajectory() bool {
	return r.Trajectory.Len() > 0
}

// RawSatelliteRecord is the loosely-shaped record as delivered by a source.
// Optional numeric fields are pointers so that "absent" and "zero" differ.
type RawSatelliteRecord struct {
	ID             string
	Name           string
	ElevationDeg   *float64
	AzimuthDeg     *float64
	DistanceKm     *float64
	SignalStrength *float64
	Trajectory     *Trajectory
}

// Normalize resolves a raw record into a SatelliteRecord, substituting
// defaults for anything missing. index is the record's position in its
// batch and only used to synthesise an identifier.
func (r RawSatelliteRecord) Normalize(index int) SatelliteRecord {
	rec := SatelliteRecord{
		ID:           strings.TrimSpace(r.ID),
		Name:         strings.TrimSpace(r.Name),
		ElevationDeg: DefaultElevationDeg,
		AzimuthDeg:   DefaultAzimuthDeg,
	}
	if rec.ID == "" {
		rec.ID = rec.Name
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("sat-%03d", index)
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}

	if r.ElevationDeg != nil && isFinite(*r.ElevationDeg) {
		rec.ElevationDeg = *r.ElevationDeg
		rec.HasElevation = true
	}
	if r.AzimuthDeg != nil && isFinite(*r.AzimuthDeg) {
		rec.AzimuthDeg = *r.AzimuthDeg
		rec.HasAzimuth = true
	}
	if r.DistanceKm != nil && isFinite(*r.DistanceKm) && *r.DistanceKm > 0 {
		rec.DistanceKm = *r.DistanceKm
		rec.HasDistance = true
	} else {
		rec.DistanceKm = DefaultDistanceKm
		if rec.HasElevation {
			rec.DistanceKm = SlantRangeKm(rec.ElevationDeg, DefaultShellAltitudeKm)
		}
	}
	if r.SignalStrength != nil && isFinite(*r.SignalStrength) {
		rec.SignalStrength = *r.SignalStrength
		rec.HasSignal = true
	}
	if r.Trajectory.Len() > 0 {
		rec.Trajectory = r.Trajectory.Clone()
	}
	return rec
}

// NormalizeAll normalizes a batch of raw records, preserving order.
func NormalizeAll(raw []RawSatelliteRecord) []SatelliteRecord {
	out := make([]SatelliteRecord, 0, len(raw))
	for i, r := range raw {
		out = append(out, r.Normalize(i))
	}
	return out
}

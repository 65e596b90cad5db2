package core

import (
	"sort"

	"github.com/signalsfoundry/orbit-engine/model"
)

// Interpolate returns the best-estimate sample of traj at time t (seconds,
// same epoch as the samples).
//
//   - empty trajectory: ok is false
//   - single point: that point, for any t
//   - t before the first sample: the first sample
//   - t after the last sample: ok is false; wrapping is the caller's job
//
// Samples must be sorted by timestamp. Unsorted input yields an unspecified
// point but never panics.
func Interpolate(traj *model.Trajectory, t float64) (model.TrajectoryPoint, bool) {
	n := traj.Len()
	if n == 0 {
		return model.TrajectoryPoint{}, false
	}
	pts := traj.Points
	if n == 1 || t <= pts[0].Timestamp {
		return pts[0], true
	}
	last := pts[n-1]
	if t > last.Timestamp {
		return model.TrajectoryPoint{}, false
	}

	idx := sort.Search(n, func(i int) bool { return pts[i].Timestamp >= t })
	switch {
	case idx <= 0:
		return pts[0], true
	case idx >= n:
		return last, true
	}
	b := pts[idx]
	if b.Timestamp == t {
		return b, true
	}
	a := pts[idx-1]
	span := b.Timestamp - a.Timestamp
	if span <= 0 {
		return b, true
	}
	return lerpPoint(a, b, (t-a.Timestamp)/span, t), true
}

func lerpPoint(a, b model.TrajectoryPoint, f, t float64) model.TrajectoryPoint {
	p := model.TrajectoryPoint{
		Timestamp:    t,
		Latitude:     lerp(a.Latitude, b.Latitude, f),
		Longitude:    wrapLongitude(a.Longitude + shortestArcDelta(a.Longitude, b.Longitude)*f),
		AltitudeKm:   lerp(a.AltitudeKm, b.AltitudeKm, f),
		ElevationDeg: lerp(a.ElevationDeg, b.ElevationDeg, f),
		AzimuthDeg:   normalizeDeg(a.AzimuthDeg + shortestArcDelta(a.AzimuthDeg, b.AzimuthDeg)*f),
		DistanceKm:   lerp(a.DistanceKm, b.DistanceKm, f),
	}
	p.Visible = p.ElevationDeg > 0
	return p
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

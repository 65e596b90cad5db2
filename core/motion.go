package core

import (
	"github.com/signalsfoundry/orbit-engine/model"
)

// MotionModel produces an entry's position for a simulated time (seconds
// since the engine clock started).
type MotionModel interface {
	Sample(simTime float64) model.OrbitUpdate
}

// SyntheticMotion follows the generated arc.
type SyntheticMotion struct {
	orbit   *SyntheticOrbit
	nominal model.Nominal
	phase   model.PhaseOffset
}

// NewSyntheticMotion binds a generator to one satellite's parameters.
func NewSyntheticMotion(orbit *SyntheticOrbit, nominal model.Nominal, phase model.PhaseOffset) *SyntheticMotion {
	return &SyntheticMotion{orbit: orbit, nominal: nominal, phase: phase}
}

// Sample evaluates the arc at simTime.
func (m *SyntheticMotion) Sample(simTime float64) model.OrbitUpdate {
	p := m.orbit.Progress(simTime, m.phase.TransitStartSec)
	return m.orbit.Sample(m.nominal, m.phase.AzimuthShiftDeg, p)
}

// TrajectoryMotion replays historical samples. Simulated time is mapped onto
// the trajectory's own timeline starting at the entry's transit start.
type TrajectoryMotion struct {
	traj       *model.Trajectory
	start      float64
	cyclic     bool
	projection Projection
	fallback   *SyntheticMotion
}

// NewTrajectoryMotion builds a replaying model. When cyclic is false, time
// past the end of the trajectory is handed to a synthetic arc anchored on
// the last sample.
func NewTrajectoryMotion(traj *model.Trajectory, start float64, cyclic bool, orbit *SyntheticOrbit) *TrajectoryMotion {
	m := &TrajectoryMotion{
		traj:       traj,
		start:      start,
		cyclic:     cyclic,
		projection: orbit.Config().Projection,
	}
	if last, ok := traj.Last(); ok {
		m.fallback = NewSyntheticMotion(orbit, model.Nominal{
			ElevationDeg: last.ElevationDeg,
			AzimuthDeg:   last.AzimuthDeg,
			DistanceKm:   last.DistanceKm,
		}, model.PhaseOffset{
			TransitDurationSec: orbit.Config().WindowSec,
			TransitStartSec:    start + traj.Duration(),
		})
	}
	return m
}

// QueryTime returns the trajectory timestamp that corresponds to simTime.
func (m *TrajectoryMotion) QueryTime(simTime float64) float64 {
	rel := simTime - m.start
	if d := m.traj.Duration(); m.cyclic && d > 0 {
		rel = positiveMod(rel, d)
	}
	return m.traj.Start() + rel
}

// Sample interpolates the trajectory at simTime.
//
// A declared duration can outlast the samples. In cyclic mode that gap holds
// the last sample, hidden, so every loop replays identically; otherwise the
// synthetic fallback arc takes over past the last sample.
func (m *TrajectoryMotion) Sample(simTime float64) model.OrbitUpdate {
	pt, ok := Interpolate(m.traj, m.QueryTime(simTime))
	if !ok {
		if m.cyclic {
			if last, ok := m.traj.Last(); ok {
				u := m.update(last)
				u.Visible = false
				return u
			}
		}
		if m.fallback != nil {
			return m.fallback.Sample(simTime)
		}
		return model.OrbitUpdate{}
	}
	return m.update(pt)
}

func (m *TrajectoryMotion) update(pt model.TrajectoryPoint) model.OrbitUpdate {
	return model.OrbitUpdate{
		Position:  m.projection.Project(pt.ElevationDeg, pt.AzimuthDeg),
		Visible:   pt.ElevationDeg > 0,
		Elevation: pt.ElevationDeg,
		Azimuth:   pt.AzimuthDeg,
		Distance:  pt.DistanceKm,
	}
}

// NewMotionModel chooses the motion model for an entry: trajectory replay
// when samples exist, otherwise the synthetic arc.
func NewMotionModel(e *model.OrbitEntry, orbit *SyntheticOrbit, cyclic bool) MotionModel {
	if e.Source == model.OrbitSourceTrajectory && e.Trajectory.Len() > 0 {
		return NewTrajectoryMotion(e.Trajectory, e.Phase.TransitStartSec, cyclic, orbit)
	}
	return NewSyntheticMotion(orbit, e.Nominal, e.Phase)
}

package core

import (
	"math"

	"github.com/signalsfoundry/orbit-engine/model"
)

// OrbitConfig parameterises the synthetic rise/peak/set arc.
type OrbitConfig struct {
	// WindowSec is the visible rise-to-set duration.
	// Default: 600
	WindowSec float64

	// PeriodSec is the time between consecutive rises. Values at or below
	// WindowSec mean back-to-back passes.
	// Default: 0 (same as WindowSec)
	PeriodSec float64

	// AzimuthArcDeg is the azimuth swept across one pass.
	// Default: 90
	AzimuthArcDeg float64

	// HorizonDipDeg puts the start and end of a pass this far below the
	// horizon so that both ends are strictly invisible.
	// Default: 5
	HorizonDipDeg float64

	// MinPeakDeg / MaxPeakDeg clamp the nominal elevation used as the peak.
	// Defaults: 10 / 90
	MinPeakDeg float64
	MaxPeakDeg float64

	Projection Projection
}

// DefaultOrbitConfig returns the standard 10-minute pass.
func DefaultOrbitConfig() OrbitConfig {
	return OrbitConfig{
		WindowSec:     600,
		AzimuthArcDeg: 90,
		HorizonDipDeg: 5,
		MinPeakDeg:    10,
		MaxPeakDeg:    90,
		Projection:    DefaultProjection(),
	}
}

// Period returns the effective pass repetition period.
func (c OrbitConfig) Period() float64 {
	if c.PeriodSec > c.WindowSec {
		return c.PeriodSec
	}
	return c.WindowSec
}

// SyntheticOrbit generates plausible passes for satellites without
// telemetry. It is not a propagator.
type SyntheticOrbit struct {
	cfg OrbitConfig
}

// NewSyntheticOrbit constructs a generator.
func NewSyntheticOrbit(cfg OrbitConfig) *SyntheticOrbit {
	return &SyntheticOrbit{cfg: cfg}
}

// Config returns the generator configuration.
func (o *SyntheticOrbit) Config() OrbitConfig {
	return o.cfg
}

// Peak returns the clamped peak elevation for a nominal elevation.
func (o *SyntheticOrbit) Peak(nominalDeg float64) float64 {
	return math.Min(math.Max(nominalDeg, o.cfg.MinPeakDeg), o.cfg.MaxPeakDeg)
}

// Elevation returns the arc elevation at progress p. Outside [0, 1] the
// satellite sits below the horizon.
func (o *SyntheticOrbit) Elevation(peakDeg, p float64) float64 {
	dip := o.cfg.HorizonDipDeg
	if p < 0 || p > 1 {
		return -dip
	}
	amp := peakDeg + dip
	if p <= 0.5 {
		return -dip + amp*math.Sin(p/0.5*math.Pi/2)
	}
	return -dip + amp*math.Cos((p-0.5)/0.5*math.Pi/2)
}

// Azimuth returns the arc azimuth at progress p, centred on centreDeg at
// the peak.
func (o *SyntheticOrbit) Azimuth(centreDeg, p float64) float64 {
	p = math.Min(math.Max(p, 0), 1)
	return normalizeDeg(centreDeg + o.cfg.AzimuthArcDeg*(p-0.5))
}

// Sample evaluates the arc for nominal at progress p.
func (o *SyntheticOrbit) Sample(nominal model.Nominal, azimuthShiftDeg, p float64) model.OrbitUpdate {
	el := o.Elevation(o.Peak(nominal.ElevationDeg), p)
	az := o.Azimuth(nominal.AzimuthDeg+azimuthShiftDeg, p)
	pos := o.cfg.Projection.Project(el, az)
	return model.OrbitUpdate{
		Position:  pos,
		Visible:   o.cfg.Projection.AboveFloor(pos),
		Elevation: el,
		Azimuth:   az,
		Distance:  syntheticDistance(nominal, el),
	}
}

// Progress maps a simulated time onto pass progress for a pass that started
// at transitStart. Values above 1 mean the satellite is between passes.
func (o *SyntheticOrbit) Progress(simTime, transitStart float64) float64 {
	if o.cfg.WindowSec <= 0 {
		return 0
	}
	return positiveMod(simTime-transitStart, o.cfg.Period()) / o.cfg.WindowSec
}

// syntheticDistance keeps the satellite on the shell implied by its nominal
// look angle and range.
func syntheticDistance(nominal model.Nominal, elevationDeg float64) float64 {
	alt := model.DefaultShellAltitudeKm
	if nominal.DistanceKm > 0 {
		if h := model.AltitudeFromSlantRangeKm(nominal.ElevationDeg, nominal.DistanceKm); h > 0 && !math.IsNaN(h) {
			alt = h
		}
	}
	return model.SlantRangeKm(elevationDeg, alt)
}

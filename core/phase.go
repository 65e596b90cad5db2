package core

import (
	"math"

	"github.com/signalsfoundry/orbit-engine/model"
)

const (
	// invGoldenRatio is 1/φ; multiples of it mod 1 never cluster.
	invGoldenRatio = 0.6180339887498949
	// goldenAngleDeg spreads defaulted azimuths around the sky.
	goldenAngleDeg = 137.50776405003785
)

// PhaseConfig controls how initial pass phases are distributed.
type PhaseConfig struct {
	// HighElevationDeg and above are placed in the middle half of their
	// window (overhead at start-up).
	// Default: 45
	HighElevationDeg float64

	// Below LowElevationDeg satellites start near the edges of their window,
	// alternating rising and setting by index parity.
	// Default: 20
	LowElevationDeg float64

	// EdgeBand is the fraction of the window counted as "near the edge" for
	// low-elevation satellites.
	// Default: 0.12
	EdgeBand float64
}

// DefaultPhaseConfig returns the standard thresholds.
func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{
		HighElevationDeg: 45,
		LowElevationDeg:  20,
		EdgeBand:         0.12,
	}
}

// PhaseAssigner derives deterministic initial phases from a satellite's
// index and nominal elevation.
type PhaseAssigner struct {
	cfg PhaseConfig
}

// NewPhaseAssigner constructs an assigner.
func NewPhaseAssigner(cfg PhaseConfig) *PhaseAssigner {
	return &PhaseAssigner{cfg: cfg}
}

// Fraction returns the initial phase in [0, 1) for satellite index i.
func (a *PhaseAssigner) Fraction(i int, elevationDeg float64) float64 {
	g := goldenFraction(i)
	switch {
	case elevationDeg >= a.cfg.HighElevationDeg:
		return 0.25 + 0.5*g
	case elevationDeg < a.cfg.LowElevationDeg:
		band := a.cfg.EdgeBand
		if i%2 == 0 {
			return band * g
		}
		return 1 - band*g
	default:
		return g
	}
}

// AzimuthShift returns the azimuth offset for a satellite whose azimuth was
// defaulted; satellites with a reported azimuth are not shifted.
func (a *PhaseAssigner) AzimuthShift(i int, hasAzimuth bool) float64 {
	if hasAzimuth {
		return 0
	}
	return normalizeDeg(float64(i) * goldenAngleDeg)
}

// Assign builds the full phase offset for a synthetic satellite so that
// (now - TransitStartSec)/windowSec reproduces the fraction at now.
func (a *PhaseAssigner) Assign(i int, rec model.SatelliteRecord, now, windowSec float64) model.PhaseOffset {
	frac := a.Fraction(i, rec.ElevationDeg)
	return model.PhaseOffset{
		Fraction:           frac,
		AzimuthShiftDeg:    a.AzimuthShift(i, rec.HasAzimuth),
		TransitDurationSec: windowSec,
		TransitStartSec:    now - frac*windowSec,
	}
}

func goldenFraction(i int) float64 {
	_, f := math.Modf(float64(i) * invGoldenRatio)
	if f < 0 {
		f += 1
	}
	return f
}

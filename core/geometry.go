package core

import (
	"math"

	"github.com/signalsfoundry/orbit-engine/model"
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Projection maps receiver-relative look angles onto scene coordinates.
//
// Azimuth is measured clockwise from north; north is -Z, east is +X and up
// is +Y. The horizontal radius is SceneScale·cos(el) and the height is
// HeightScale·sin(el).
type Projection struct {
	SceneScale  float64
	HeightScale float64

	// MinVisibleHeight is the floor below which a synthetic satellite is
	// considered under the horizon.
	MinVisibleHeight float64
}

// DefaultProjection returns the standard 1200/600 scene.
func DefaultProjection() Projection {
	return Projection{
		SceneScale:       1200,
		HeightScale:      600,
		MinVisibleHeight: 0,
	}
}

// Project converts elevation/azimuth (degrees) into a scene position.
func (p Projection) Project(elevationDeg, azimuthDeg float64) model.Vec3 {
	el := elevationDeg * degToRad
	az := azimuthDeg * degToRad
	horizontal := p.SceneScale * math.Cos(el)
	return model.Vec3{
		X: horizontal * math.Sin(az),
		Y: p.HeightScale * math.Sin(el),
		Z: -horizontal * math.Cos(az),
	}
}

// AboveFloor reports whether pos is high enough to be drawn.
func (p Projection) AboveFloor(pos model.Vec3) bool {
	return pos.Y > p.MinVisibleHeight
}

// normalizeDeg wraps an angle into [0, 360).
func normalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// shortestArcDelta returns the signed difference b-a in (-180, 180].
func shortestArcDelta(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// wrapLongitude wraps a longitude into [-180, 180).
func wrapLongitude(lon float64) float64 {
	return normalizeDeg(lon+180) - 180
}

// positiveMod is x mod m in [0, m).
func positiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

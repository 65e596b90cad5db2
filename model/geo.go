package model

import "math"

// EarthRadiusKm is the mean Earth radius used for slant-range estimates.
const EarthRadiusKm = 6371.0

// DefaultShellAltitudeKm is the orbital shell assumed when a record carries
// no usable range information.
const DefaultShellAltitudeKm = 550.0

// SlantRangeKm returns the receiver-to-satellite distance for a satellite
// at altitudeKm seen at elevationDeg, on a spherical Earth.
func SlantRangeKm(elevationDeg, altitudeKm float64) float64 {
	el := elevationDeg * math.Pi / 180
	r := EarthRadiusKm + altitudeKm
	rc := EarthRadiusKm * math.Cos(el)
	return math.Sqrt(r*r-rc*rc) - EarthRadiusKm*math.Sin(el)
}

// AltitudeFromSlantRangeKm inverts SlantRangeKm.
func AltitudeFromSlantRangeKm(elevationDeg, distanceKm float64) float64 {
	el := elevationDeg * math.Pi / 180
	r2 := distanceKm*distanceKm + EarthRadiusKm*EarthRadiusKm + 2*distanceKm*EarthRadiusKm*math.Sin(el)
	return math.Sqrt(r2) - EarthRadiusKm
}

package model

import "math"

// Vec3 is a position in scene units. Y is up; the X/Z plane is the horizon
// of the receiver.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// MaxAxisDelta returns the largest absolute per-axis difference between v
// and other.
func (v Vec3) MaxAxisDelta(other Vec3) float64 {
	d := v.Sub(other)
	return math.Max(math.Abs(d.X), math.Max(math.Abs(d.Y), math.Abs(d.Z)))
}

package core

import "math"

// Epsilon guards divisions by distances and vector lengths.
const Epsilon = 1e-9

// Vector3D is a position or velocity in the local battlefield frame (meters, Y up)
type Vector3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec is shorthand for building a Vector3D
func Vec(x, y, z float64) Vector3D {
	return Vector3D{X: x, Y: y, Z: z}
}

func (v Vector3D) Add(other Vector3D) Vector3D {
	return Vector3D{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vector3D) Subtract(other Vector3D) Vector3D {
	return Vector3D{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vector3D) Scale(s float64) Vector3D {
	return Vector3D{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vector3D) Dot(other Vector3D) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vector3D) Magnitude() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector, or the zero vector when v is degenerate.
func (v Vector3D) Normalize() Vector3D {
	mag := v.Magnitude()
	if mag < Epsilon {
		return Vector3D{}
	}
	return v.Scale(1.0 / mag)
}

func (v Vector3D) DistanceTo(other Vector3D) float64 {
	return v.Subtract(other).Magnitude()
}

// ClampMagnitude shortens v to at most limit, keeping its direction.
func (v Vector3D) ClampMagnitude(limit float64) Vector3D {
	mag := v.Magnitude()
	if mag <= limit || mag < Epsilon {
		return v
	}
	return v.Scale(limit / mag)
}

// Horizontal drops the altitude component.
func (v Vector3D) Horizontal() Vector3D {
	return Vector3D{X: v.X, Z: v.Z}
}

// Lerp blends toward other: t=0 returns v, t=1 returns other.
func (v Vector3D) Lerp(other Vector3D, t float64) Vector3D {
	return v.Scale(1 - t).Add(other.Scale(t))
}

func (v Vector3D) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}

// ApproachDirection returns the unit vector from "from" to "to" and the
// distance between them, with the distance floored at minDistance.
func ApproachDirection(from, to Vector3D, minDistance float64) (Vector3D, float64) {
	delta := to.Subtract(from)
	dist := delta.Magnitude()
	return delta.Normalize(), math.Max(dist, minDistance)
}

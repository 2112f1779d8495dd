// Package geometry implements the machine's 4-axis (X, Y, Z, E) coordinate
// arithmetic.
package geometry

import (
	"fmt"
	"math"
)

// Axis identifies one of the four machine axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisE
	numAxes
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	case AxisE:
		return "E"
	default:
		return "?"
	}
}

// roundPlaces is the decimal precision values are snapped to on
// construction, so equality comparisons are robust to float noise.
const roundPlaces = 10

func round10(v float64) float64 {
	const p = 1e10
	return math.Round(v*p) / p
}

// Vector4 is an immutable (X, Y, Z, E) millimetre quantity. All
// constructors and operations return new values; nothing mutates in
// place.
type Vector4 struct {
	X, Y, Z, E float64
}

// Zero is the origin / null delta.
var Zero = Vector4{}

// New builds a Vector4, rounding each component to 10 decimal places.
func New(x, y, z, e float64) Vector4 {
	return Vector4{round10(x), round10(y), round10(z), round10(e)}
}

// Get returns the component for the given axis.
func (v Vector4) Get(a Axis) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	case AxisE:
		return v.E
	default:
		panic("geometry: invalid axis")
	}
}

// With returns a copy of v with the given axis set to value.
func (v Vector4) With(a Axis, value float64) Vector4 {
	switch a {
	case AxisX:
		v.X = value
	case AxisY:
		v.Y = value
	case AxisZ:
		v.Z = value
	case AxisE:
		v.E = value
	default:
		panic("geometry: invalid axis")
	}
	return New(v.X, v.Y, v.Z, v.E)
}

// Add returns v + o.
func (v Vector4) Add(o Vector4) Vector4 {
	return New(v.X+o.X, v.Y+o.Y, v.Z+o.Z, v.E+o.E)
}

// Sub returns v - o.
func (v Vector4) Sub(o Vector4) Vector4 {
	return New(v.X-o.X, v.Y-o.Y, v.Z-o.Z, v.E-o.E)
}

// Scale returns v * k.
func (v Vector4) Scale(k float64) Vector4 {
	return New(v.X*k, v.Y*k, v.Z*k, v.E*k)
}

// Div returns v / k.
func (v Vector4) Div(k float64) Vector4 {
	return New(v.X/k, v.Y/k, v.Z/k, v.E/k)
}

// Abs returns the elementwise absolute value.
func (v Vector4) Abs() Vector4 {
	return New(math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z), math.Abs(v.E))
}

// IsZero reports whether all four components are exactly zero.
func (v Vector4) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0 && v.E == 0
}

// Length returns the Euclidean length over all four components.
func (v Vector4) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.E*v.E)
}

// Max returns the largest of the four components.
func (v Vector4) Max() float64 {
	m := v.X
	if v.Y > m {
		m = v.Y
	}
	if v.Z > m {
		m = v.Z
	}
	if v.E > m {
		m = v.E
	}
	return m
}

// Quantize rounds each axis to the nearest multiple of the corresponding
// base (i.e. round(v/base)*base), matching the stepper pulse grid.
func (v Vector4) Quantize(baseX, baseY, baseZ, baseE float64) Vector4 {
	q := func(val, base float64) float64 {
		if base == 0 {
			return val
		}
		return math.Round(val/base) * base
	}
	return New(q(v.X, baseX), q(v.Y, baseY), q(v.Z, baseZ), q(v.E, baseE))
}

// InAABB reports whether the X/Y/Z sub-vector lies within the
// axis-aligned bounding box spanned by lo and hi (inclusive). E is
// ignored, matching the machine envelope semantics.
func (v Vector4) InAABB(lo, hi Vector4) bool {
	return v.X >= lo.X && v.X <= hi.X &&
		v.Y >= lo.Y && v.Y <= hi.Y &&
		v.Z >= lo.Z && v.Z <= hi.Z
}

func (v Vector4) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", v.X, v.Y, v.Z, v.E)
}

// Package pulse implements the stepper-motor pulse-generation engine
// (C3): given a linear or circular motion primitive, it produces a
// time-ordered stream of per-axis step events consistent with a
// trapezoidal (accelerate/cruise/decelerate) velocity profile.
package pulse

import "gocnc/internal/geometry"

// numAxes is the fixed axis count (X, Y, Z, E).
const numAxes = 4

// Event is one item of the pulse stream. Exactly one of the two shapes
// is meaningful, discriminated by Direction:
//
//   - Direction == true: Signs carries the new logical direction for
//     each axis, -1/0/+1 (0 = idle). Emitted first, and again whenever
//     any axis' sign changes.
//   - Direction == false: Times/Present carry the absolute pulse time
//     (seconds, relative to segment start) for each axis that pulses at
//     this instant. All present times within one event are equal.
type Event struct {
	Direction bool
	Signs     [numAxes]int8
	Times     [numAxes]float64
	Present   [numAxes]bool
}

func sign(v float64) int8 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func signsOf(v geometry.Vector4) [numAxes]int8 {
	return [numAxes]int8{sign(v.X), sign(v.Y), sign(v.Z), sign(v.E)}
}

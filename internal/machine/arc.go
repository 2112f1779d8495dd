package machine

import (
	"math"

	"gocnc/internal/geometry"
	"gocnc/internal/pulse"
)

// planeAxes mirrors pulse.Plane's axis assignment for the two in-plane
// axes (P, Q); kept local since pulse.Plane.axes is unexported.
func planeAxes(p pulse.Plane) (pAxis, qAxis, thirdAxis geometry.Axis) {
	switch p {
	case pulse.PlaneZX:
		return geometry.AxisZ, geometry.AxisX, geometry.AxisY
	case pulse.PlaneYZ:
		return geometry.AxisY, geometry.AxisZ, geometry.AxisX
	default:
		return geometry.AxisX, geometry.AxisY, geometry.AxisZ
	}
}

// normalizeSpan adjusts (endAngle-startAngle) into the signed span
// consistent with the requested rotation direction, exactly mirroring
// pulse.Circular's own normalization so the dispatcher's bounds scan
// walks the same arc the generator will actually produce.
func normalizeSpan(startAngle, endAngle float64, clockwise bool) float64 {
	span := endAngle - startAngle
	for span > 0 && clockwise {
		span -= 2 * math.Pi
	}
	for span < 0 && !clockwise {
		span += 2 * math.Pi
	}
	return span
}

// arcQuadrantBoundsOK implements spec §4.2's "Arc bounds check": walk the
// pi/2 quadrant boundaries the arc crosses in its direction of travel,
// and verify each boundary's point (the farthest point on that quadrant)
// lies within the plane's AABB. Endpoints themselves are checked by the
// ordinary target-position admission, so only interior boundaries matter
// here.
func arcQuadrantBoundsOK(centerP, centerQ, radius, startAngle, endAngle float64, clockwise bool, loP, hiP, loQ, hiQ float64) bool {
	span := normalizeSpan(startAngle, endAngle, clockwise)
	if span == 0 {
		return true
	}
	dirSign := 1.0
	if clockwise {
		dirSign = -1.0
	}
	const quarter = math.Pi / 2
	// First multiple of pi/2 past startAngle in the direction of travel.
	first := (math.Floor(startAngle/quarter+1e-9) + 1) * quarter
	if clockwise {
		first = (math.Ceil(startAngle/quarter-1e-9) - 1) * quarter
	}
	// Boundaries coinciding with the endpoint are left to the ordinary
	// target-position admission check.
	for boundary := first; dirSign*(startAngle+span-boundary) > 1e-9; boundary += dirSign * quarter {
		p := centerP + radius*math.Cos(boundary)
		q := centerQ + radius*math.Sin(boundary)
		if p < loP || p > hiP || q < loQ || q > hiQ {
			return false
		}
	}
	return true
}

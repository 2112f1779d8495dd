package pulse

import (
	"iter"
	"math"

	"gocnc/internal/geometry"
)

// Plane selects which two axes carry the circular motion; the remaining
// linear axis (and E) move at constant rate across the arc, producing a
// helix.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneZX
	PlaneYZ
)

// axes returns (P, Q, third): the two in-plane axes and the orthogonal
// linear axis, in the order G17/G18/G19 define them.
func (p Plane) axes() (pAxis, qAxis, third geometry.Axis) {
	switch p {
	case PlaneZX:
		return geometry.AxisZ, geometry.AxisX, geometry.AxisY
	case PlaneYZ:
		return geometry.AxisY, geometry.AxisZ, geometry.AxisX
	default:
		return geometry.AxisX, geometry.AxisY, geometry.AxisZ
	}
}

// Arc describes one circular (or helical) segment. Start and End are the
// full 4-axis machine positions at the segment's endpoints; only their
// in-plane components need satisfy Radius/StartAngle/EndAngle exactly,
// the third axis and E move linearly between Start and End across the
// arc's duration (a helix, optionally with simultaneous extrusion).
type Arc struct {
	Plane      Plane
	Start      geometry.Vector4
	End        geometry.Vector4
	Center     geometry.Vector4 // absolute arc centre; only the plane axes are read
	Radius     float64
	StartAngle float64 // radians, measured from Center
	EndAngle   float64
	Clockwise  bool
	Velocity   float64 // mm/min, applies to the combined (arc + helix + E) path
	Accel      float64 // mm/s^2
	Rates      AxisRates
}

// invertCos returns the angle nearest angleRef, in the same monotonic
// cosine branch (a half-turn wide), whose cosine equals c.
func invertCos(c, angleRef float64) float64 {
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	pa := math.Acos(c)
	nBranch := math.Floor(angleRef / math.Pi)
	base := nBranch * math.Pi
	if int64(nBranch)%2 == 0 {
		return base + pa
	}
	return base + (math.Pi - pa)
}

// invertSin mirrors invertCos via the identity sin(x) = cos(x - pi/2).
func invertSin(s, angleRef float64) float64 {
	return invertCos(s, angleRef-math.Pi/2) + math.Pi/2
}

func rateFor(rates AxisRates, axis geometry.Axis) float64 {
	switch axis {
	case geometry.AxisX:
		return rates.X
	case geometry.AxisY:
		return rates.Y
	case geometry.AxisZ:
		return rates.Z
	default:
		return rates.E
	}
}

func axisIndex(a geometry.Axis) int {
	switch a {
	case geometry.AxisX:
		return 0
	case geometry.AxisY:
		return 1
	case geometry.AxisZ:
		return 2
	default:
		return 3
	}
}

// Circular returns an iterator over the pulse stream for a single arc,
// quadrant-tracked: each in-plane axis reverses direction every half
// turn, the two alternating so that one of them flips at every quarter
// turn (where sin or cos crosses zero), so their step direction
// is recomputed — and re-signalled with a fresh Direction event — every
// time the arc crosses a multiple of pi/2. The third axis and E move
// linearly across the arc's duration, producing a helix / simultaneous
// extrusion exactly as Linear does for a straight segment.
func Circular(a Arc) iter.Seq[Event] {
	pAxis, qAxis, thirdAxis := a.Plane.axes()
	pi, qi, ti := axisIndex(pAxis), axisIndex(qAxis), axisIndex(thirdAxis)
	ei := axisIndex(geometry.AxisE)

	centerP := a.Center.Get(pAxis)
	centerQ := a.Center.Get(qAxis)
	startThird := a.Start.Get(thirdAxis)
	startE := a.Start.Get(geometry.AxisE)
	thirdDeltaSigned := a.End.Get(thirdAxis) - startThird
	eDeltaSigned := a.End.Get(geometry.AxisE) - startE

	span := a.EndAngle - a.StartAngle
	for span > 0 && a.Clockwise {
		span -= 2 * math.Pi
	}
	for span < 0 && !a.Clockwise {
		span += 2 * math.Pi
	}
	dirSign := 1.0
	if a.Clockwise {
		dirSign = -1.0
	}
	arcLength := a.Radius * math.Abs(span)

	return func(yield func(Event) bool) {
		if arcLength == 0 && thirdDeltaSigned == 0 && eDeltaSigned == 0 {
			return
		}
		emitArc(a, pi, qi, ti, ei, pAxis, qAxis, thirdAxis,
			centerP, centerQ, startThird, startE, thirdDeltaSigned, eDeltaSigned,
			dirSign, arcLength, yield)
	}
}

func emitArc(a Arc, pi, qi, ti, ei int, pAxis, qAxis, thirdAxis geometry.Axis,
	centerP, centerQ, startThird, startE, thirdDeltaSigned, eDeltaSigned,
	dirSign, arcLength float64, yield func(Event) bool) {

	pathLength := math.Sqrt(arcLength*arcLength + thirdDeltaSigned*thirdDeltaSigned + eDeltaSigned*eDeltaSigned)
	if pathLength == 0 {
		return
	}

	velocityMMPerSec := a.Velocity / 60.0
	vArc := arcLength / pathLength * velocityMMPerSec
	vThird := math.Abs(thirdDeltaSigned) / pathLength * velocityMMPerSec
	vE := math.Abs(eDeltaSigned) / pathLength * velocityMMPerSec
	vmax := vArc
	if vThird > vmax {
		vmax = vThird
	}
	if vE > vmax {
		vmax = vE
	}
	if vmax == 0 {
		return
	}

	tauA := vmax / a.Accel
	var tauLinear float64
	if a.Accel*tauA*tauA > pathLength {
		tauA = math.Sqrt(pathLength / a.Accel)
		tauLinear = 0
		vmax = pathLength / tauA
	} else {
		tauLinear = (pathLength - a.Accel*tauA*tauA) / vmax
	}
	profile := Profile{TauA: tauA, TauLinear: tauLinear, Vmax: vmax, twoVmaxPerA: 2 * vmax / a.Accel}

	angleAtS := func(s float64) float64 {
		if arcLength == 0 {
			return a.StartAngle
		}
		return a.StartAngle + dirSign*(s*arcLength/pathLength)/a.Radius
	}

	currentAngle := a.StartAngle
	currentS := 0.0

	pulseCountP := int64(math.Round(a.Start.Get(pAxis) * rateFor(a.Rates, pAxis)))
	pulseCountQ := int64(math.Round(a.Start.Get(qAxis) * rateFor(a.Rates, qAxis)))
	pulseCountThird := int64(math.Round(startThird * rateFor(a.Rates, thirdAxis)))
	pulseCountE := int64(math.Round(startE * rateFor(a.Rates, geometry.AxisE)))

	sign := func(v float64) int8 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	}
	thirdSign := sign(thirdDeltaSigned)
	eSign := sign(eDeltaSigned)

	dirOf := func(angle float64) (dirP, dirQ int8) {
		if arcLength == 0 {
			return 0, 0
		}
		s, c := math.Sincos(angle)
		switch {
		case s > 0:
			dirP = -int8(dirSign)
		case s < 0:
			dirP = int8(dirSign)
		}
		switch {
		case c > 0:
			dirQ = int8(dirSign)
		case c < 0:
			dirQ = -int8(dirSign)
		}
		return
	}

	dirP, dirQ := dirOf(currentAngle)
	makeSigns := func(dirP, dirQ int8) [numAxes]int8 {
		var signs [numAxes]int8
		signs[pi] = dirP
		signs[qi] = dirQ
		signs[ti] = thirdSign
		signs[ei] = eSign
		return signs
	}
	if !yield(Event{Direction: true, Signs: makeSigns(dirP, dirQ)}) {
		return
	}

	const inf = math.MaxFloat64

	nextS := func() (sP, sQ, sThird, sE float64) {
		sP, sQ, sThird, sE = inf, inf, inf, inf
		if dirP != 0 {
			target := float64(pulseCountP+int64(dirP)) / rateFor(a.Rates, pAxis)
			angleTarget := invertCos((target-centerP)/a.Radius, currentAngle)
			s := (angleTarget - a.StartAngle) * a.Radius * pathLength / (dirSign * arcLength)
			if s > currentS && s <= pathLength+1e-9 {
				sP = s
			}
		}
		if dirQ != 0 {
			target := float64(pulseCountQ+int64(dirQ)) / rateFor(a.Rates, qAxis)
			angleTarget := invertSin((target-centerQ)/a.Radius, currentAngle)
			s := (angleTarget - a.StartAngle) * a.Radius * pathLength / (dirSign * arcLength)
			if s > currentS && s <= pathLength+1e-9 {
				sQ = s
			}
		}
		if thirdSign != 0 {
			target := float64(pulseCountThird+int64(thirdSign)) / rateFor(a.Rates, thirdAxis)
			posMM := math.Abs(target - startThird)
			s := posMM / math.Abs(thirdDeltaSigned) * pathLength
			if s > currentS && s <= pathLength+1e-9 {
				sThird = s
			}
		}
		if eSign != 0 {
			target := float64(pulseCountE+int64(eSign)) / rateFor(a.Rates, geometry.AxisE)
			posMM := math.Abs(target - startE)
			s := posMM / math.Abs(eDeltaSigned) * pathLength
			if s > currentS && s <= pathLength+1e-9 {
				sE = s
			}
		}
		return
	}

	for {
		sP, sQ, sThird, sE := nextS()
		minS := math.Min(math.Min(sP, sQ), math.Min(sThird, sE))
		if minS == inf {
			return
		}
		realTime := profile.Warp(minS / vmax)

		var ev Event
		ev.Direction = false
		if sP == minS {
			ev.Times[pi] = realTime
			ev.Present[pi] = true
			pulseCountP += int64(dirP)
		}
		if sQ == minS {
			ev.Times[qi] = realTime
			ev.Present[qi] = true
			pulseCountQ += int64(dirQ)
		}
		if sThird == minS {
			ev.Times[ti] = realTime
			ev.Present[ti] = true
			pulseCountThird += int64(thirdSign)
		}
		if sE == minS {
			ev.Times[ei] = realTime
			ev.Present[ei] = true
			pulseCountE += int64(eSign)
		}
		if !yield(ev) {
			return
		}

		currentS = minS
		currentAngle = angleAtS(currentS)
		newDirP, newDirQ := dirOf(currentAngle)
		if newDirP != dirP || newDirQ != dirQ {
			dirP, dirQ = newDirP, newDirQ
			if !yield(Event{Direction: true, Signs: makeSigns(dirP, dirQ)}) {
				return
			}
		}
	}
}

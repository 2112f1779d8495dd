package pulse

import (
	"iter"
	"math"

	"gocnc/internal/geometry"
)

// AxisRates holds pulses-per-millimetre for X, Y, Z, E, used to convert
// continuous axis position into discrete pulse counts.
type AxisRates struct {
	X, Y, Z, E float64
}

func (r AxisRates) get(i int) float64 {
	switch i {
	case 0:
		return r.X
	case 1:
		return r.Y
	case 2:
		return r.Z
	default:
		return r.E
	}
}

func components(v geometry.Vector4) [numAxes]float64 {
	return [numAxes]float64{v.X, v.Y, v.Z, v.E}
}

// Linear returns an iterator over the pulse stream for a straight-line
// move of delta millimetres at velocityMMPerMin (mm/min), accelerating
// at accel (mm/s^2), stepping at rates pulses/mm per axis.
//
// Ported from PyCNC's PulseGenerator.PulseGeneratorLinear: every axis
// moves at a velocity proportional to its share of delta, so all axes
// start and stop together; the profile degrades from trapezoidal to
// triangular when the move is too short to reach cruise velocity.
func Linear(delta geometry.Vector4, velocityMMPerMin, accel float64, rates AxisRates) iter.Seq[Event] {
	distanceTotal := delta.Length()
	return func(yield func(Event) bool) {
		if distanceTotal == 0 {
			return
		}

		distance := components(delta.Abs())
		velocityMMPerSec := velocityMMPerMin / 60.0

		// Per-axis velocity proportional to the axis' share of the move.
		axisVel := [numAxes]float64{}
		for i := range axisVel {
			axisVel[i] = distance[i] / distanceTotal * velocityMMPerSec
		}
		vmaxAxis := axisVel[0]
		for _, v := range axisVel {
			if v > vmaxAxis {
				vmaxAxis = v
			}
		}

		tauA := vmaxAxis / accel
		var tauLinear float64
		if accel*tauA*tauA > distanceTotal {
			tauA = math.Sqrt(distanceTotal / accel)
			tauLinear = 0
			for i := range axisVel {
				axisVel[i] = distance[i] / tauA
			}
			vmaxAxis = axisVel[0]
			for _, v := range axisVel {
				if v > vmaxAxis {
					vmaxAxis = v
				}
			}
		} else {
			linearDistance := distanceTotal - accel*tauA*tauA
			// NB: the cruise duration is governed by the vector velocity
			// (its Euclidean norm), not by any single axis' component.
			vecVel := math.Sqrt(axisVel[0]*axisVel[0] + axisVel[1]*axisVel[1] + axisVel[2]*axisVel[2] + axisVel[3]*axisVel[3])
			tauLinear = linearDistance / vecVel
		}

		profile := Profile{TauA: tauA, TauLinear: tauLinear, Vmax: vmaxAxis, twoVmaxPerA: 2 * vmaxAxis / accel}

		signs := signsOf(delta)
		if !yield(Event{Direction: true, Signs: signs}) {
			return
		}

		pulseIdx := [numAxes]int{}
		const inf = math.MaxFloat64
		axisPseudoTime := func(i int) float64 {
			if distance[i] == 0 || axisVel[i] == 0 {
				return inf
			}
			rate := rates.get(i)
			if rate == 0 {
				return inf
			}
			if pulseIdx[i] >= int(math.Round(distance[i]*rate)) {
				return inf
			}
			return float64(pulseIdx[i]) / rate / axisVel[i]
		}

		for {
			var minPt = inf
			var pts [numAxes]float64
			for i := 0; i < numAxes; i++ {
				pts[i] = axisPseudoTime(i)
				if pts[i] < minPt {
					minPt = pts[i]
				}
			}
			if minPt == inf {
				return
			}
			realTime := profile.Warp(minPt)

			var ev Event
			ev.Direction = false
			for i := 0; i < numAxes; i++ {
				if pts[i] == minPt {
					ev.Times[i] = realTime
					ev.Present[i] = true
					pulseIdx[i]++
				}
			}
			if !yield(ev) {
				return
			}
		}
	}
}

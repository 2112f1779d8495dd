package pulse

import "math"

// Profile is the pseudo-time → real-time warp of a trapezoidal (or, in
// the degenerate case, triangular) velocity profile: accelerate at a
// constant rate up to a cruise velocity, hold it, then decelerate back
// to zero at the same rate.
//
// Ported directly from PyCNC's pulses.PulseGenerator._to_accelerated_time:
// pseudo-time pt is the time the segment would take if every axis moved
// at its cruise velocity with no acceleration phase at all; Warp maps it
// onto wall-clock time under the real, accelerating profile.
type Profile struct {
	TauA        float64 // acceleration (and, symmetrically, braking) duration, s
	TauLinear   float64 // cruise duration, s (0 for a triangular profile)
	Vmax        float64 // cruise velocity of the fastest axis, mm/s
	twoVmaxPerA float64 // 2*Vmax/accel, cached
}

// NewProfile builds a Profile for a move of the given length that would
// cruise at vmax (mm/s) were acceleration instantaneous, constrained by
// a constant acceleration accel (mm/s^2). When the move is too short to
// reach vmax, it degrades to a triangular profile and returns the
// adjusted (lower) peak velocity via the second return value.
func NewProfile(vmax, length, accel float64) (Profile, float64) {
	tauA := vmax / accel
	if accel*tauA*tauA > length {
		tauA = math.Sqrt(length / accel)
		peak := length / tauA
		return Profile{
			TauA:        tauA,
			TauLinear:   0,
			Vmax:        peak,
			twoVmaxPerA: 2 * peak / accel,
		}, peak
	}
	linearDistance := length - accel*tauA*tauA
	tauLinear := linearDistance / vmax
	return Profile{
		TauA:        tauA,
		TauLinear:   tauLinear,
		Vmax:        vmax,
		twoVmaxPerA: 2 * vmax / accel,
	}, vmax
}

// TotalTime returns the wall-clock duration of the full profile.
func (p Profile) TotalTime() float64 {
	return 2*p.TauA + p.TauLinear
}

// Warp converts a pseudo-time pt (seconds, as if cruising throughout at
// Vmax) into the corresponding real time under the accelerating profile.
func (p Profile) Warp(pt float64) float64 {
	if p.twoVmaxPerA <= 0 {
		return 0
	}
	t := math.Sqrt(pt * p.twoVmaxPerA)
	if t <= p.TauA {
		return t
	}
	t = p.TauA + pt - (p.TauA*p.TauA)/p.twoVmaxPerA
	bt := t - p.TauA - p.TauLinear
	if bt <= 0 {
		return t
	}
	return 2*p.TauA + p.TauLinear - math.Sqrt(math.Max(0, p.TauA*p.TauA-p.twoVmaxPerA*bt))
}

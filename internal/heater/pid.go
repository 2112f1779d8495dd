package heater

import "math"

// FixAccuracy and FixTimeS define "is_fixed" stability: the error must
// stay within FixAccuracy of target for FixTimeS continuously while the
// output has not saturated. Ported from
// _examples/original_source/cnc/pid.py.
const (
	FixAccuracy = 0.01
	FixTimeS    = 2.5
)

// Coefficients is a {P, I, D} triple.
type Coefficients struct {
	P, I, D float64
}

// PID is a classical discrete PID controller with anti-windup clamping
// and a stability detector, ported from pid.py's Pid class. Output is
// always clamped to [0, 1]; callers scale to a percentage.
type PID struct {
	target       float64
	coefficients Coefficients
	windupLimit  float64

	lastTime    float64
	haveLast    bool
	integral    float64
	lastError   float64
	fixedSince  float64
	haveFixed   bool
	wasFixed    bool
}

// NewPID builds a controller targeting targetValue.
func NewPID(targetValue float64, c Coefficients) *PID {
	windup := math.Inf(1)
	if c.I != 0 {
		windup = 1.0 / c.I
	}
	return &PID{target: targetValue, coefficients: c, windupLimit: windup}
}

// Target returns the current setpoint.
func (p *PID) Target() float64 { return p.target }

// SetTarget changes the setpoint, resetting the stability detector.
func (p *PID) SetTarget(v float64) {
	p.target = v
	p.haveFixed = false
	p.wasFixed = false
}

// Update advances the controller to currentTime (seconds, monotonic) with
// a new measurement and returns the clamped-to-[0,1] control output.
func (p *PID) Update(currentValue, currentTime float64) float64 {
	if !p.haveLast {
		p.lastTime = currentTime
		p.haveLast = true
		p.lastError = p.target - currentValue
		p.updateFixed(p.lastError, 0, currentTime)
		return 0
	}
	dt := currentTime - p.lastTime
	if dt <= 0 {
		dt = 1e-6
	}
	p.lastTime = currentTime

	errVal := p.target - currentValue

	p.integral += errVal * dt
	if math.Abs(p.integral) > p.windupLimit {
		p.integral = math.Copysign(p.windupLimit, p.integral)
	}

	// Raw delta-error, not divided by dt: pid.py's Pid.calc computes
	// delta_error = error - self._last_error and feeds it straight into
	// the D term, so the tuned EXTRUDER_PID/BED_PID coefficients already
	// assume this scale at the original's ~LOOP_INTERVAL_S sample rate.
	derivative := errVal - p.lastError
	p.lastError = errVal

	output := p.coefficients.P*errVal + p.coefficients.I*p.integral + p.coefficients.D*derivative
	clamped := output
	if clamped < 0 {
		clamped = 0
	} else if clamped > 1 {
		clamped = 1
	}

	p.updateFixed(errVal, clamped, currentTime)
	return clamped
}

func (p *PID) updateFixed(errVal, output, currentTime float64) {
	withinBand := math.Abs(errVal) < FixAccuracy*p.target && output < 1.0
	if !withinBand {
		p.haveFixed = false
		p.wasFixed = false
		return
	}
	if !p.haveFixed {
		p.haveFixed = true
		p.fixedSince = currentTime
		p.wasFixed = false
		return
	}
	if currentTime-p.fixedSince >= FixTimeS {
		p.wasFixed = true
	}
}

// IsFixed reports whether the measured value has held within FixAccuracy
// of target for at least FixTimeS continuously.
func (p *PID) IsFixed() bool { return p.wasFixed }

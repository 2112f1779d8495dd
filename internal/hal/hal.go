// Package hal defines the narrow capability interfaces the motion kernel
// needs from its hardware layer (spec §9's "HAL capability abstraction" —
// a set of operations the core requires, Real and Virtual variants chosen
// at construction), replacing both PyCNC's `try: import hal_raspberry
// except ImportError: import hal_virtual` dynamic module swap
// (original_source/cnc/hal.py) and the teacher's global-singleton
// `SetGPIODriver`/`MustGPIO` pattern (core/gpio_hal.go).
//
// Grounded on EdgxCloud-EdgeFlow/internal/hal/hal.go's split of GPIO/I2C/
// SPI/Serial into separate minimal interfaces rather than one fat HAL
// trait.
package hal

import (
	"context"
	"iter"

	"gocnc/internal/geometry"
	"gocnc/internal/pulse"
)

// Mover accepts a one-shot pulse stream and drives the step/direction
// pins accordingly. delta is the commanded net displacement the stream is
// expected to produce, passed through so an implementation can check the
// P1 invariant ("final pulse count matches the commanded distance") the
// way hal_virtual.py's move() asserts before returning. Move must return
// once the stream is enqueued, not necessarily once it has finished
// executing (spec §4.5); Join blocks until the hardware engine is idle.
type Mover interface {
	Move(ctx context.Context, events iter.Seq[pulse.Event], delta geometry.Vector4) error
	Join(ctx context.Context) error
}

// SpindleController drives the spindle's speed, expressed as a percentage
// of SPINDLE_MAX_RPM in [0,100].
type SpindleController interface {
	SpindleControl(percent float64) error
}

// FanController switches the cooling fan.
type FanController interface {
	FanControl(on bool) error
}

// HeaterController writes a heater's power duty cycle, in [0,100].
type HeaterController interface {
	ExtruderHeaterControl(percent float64) error
	BedHeaterControl(percent float64) error
}

// SensorErrorKind distinguishes the temperature-read failure modes spec §6
// requires HAL implementations to report distinctly.
type SensorErrorKind int

const (
	SensorReadError SensorErrorKind = iota
	SensorAbsent
	SensorShortCircuit
	SensorOpenCircuit
)

func (k SensorErrorKind) String() string {
	switch k {
	case SensorAbsent:
		return "sensor absent"
	case SensorShortCircuit:
		return "short circuit"
	case SensorOpenCircuit:
		return "open circuit"
	default:
		return "sensor read error"
	}
}

// SensorError reports a temperature-sensor failure.
type SensorError struct {
	Kind SensorErrorKind
	Err  error
}

func (e *SensorError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *SensorError) Unwrap() error { return e.Err }

// TemperatureSource reads a heater's measured temperature in Celsius.
type TemperatureSource interface {
	ExtruderTemperature() (float64, error)
	BedTemperature() (float64, error)
}

// Calibrator homes the named axes, returning false if homing did not
// complete (e.g. an endstop never triggered).
type Calibrator interface {
	Calibrate(ctx context.Context, x, y, z bool) (bool, error)
}

// StepperDisabler releases holding torque on all stepper motors (M84).
type StepperDisabler interface {
	DisableSteppers() error
}

// HAL is the full capability set the dispatcher depends on, satisfied by
// both internal/hal/dma (Real) and internal/hal/virtual (Virtual).
type HAL interface {
	Mover
	SpindleController
	FanController
	HeaterController
	TemperatureSource
	Calibrator
	StepperDisabler

	Init() error
	Deinit() error
}

// Package thermistor implements the beta-parameter NTC thermistor
// equation and an ADS1115 ADC-backed voltage source, supplementing
// spec.md's distillation: _examples/original_source/cnc/sensors/
// thermistor.py carries this math for computing heater temperatures
// from a divider circuit's measured voltage, but the spec text treats
// the sensor as an opaque external collaborator. internal/hal.
// TemperatureSource is the seam; Sensor is the default, fully-tested
// implementation behind it.
package thermistor

import (
	"errors"
	"math"

	"gocnc/internal/hal"
)

const celsiusToKelvin = 273.15

// Circuit describes the divider thermistor.py documents: Vcc feeds a
// fixed series resistor R1 into the NTC (R0 at T0, beta slope), with the
// ADC measuring the voltage at their junction.
type Circuit struct {
	Vcc  float64 // supply voltage, volts
	R0   float64 // thermistor resistance at T0, ohms
	T0   float64 // reference temperature, celsius
	Beta float64 // thermistor beta parameter
	R1   float64 // series resistor, ohms
}

// DefaultCircuit matches thermistor.py's module-level constants.
var DefaultCircuit = Circuit{Vcc: 3.3, R0: 100000, T0: 25, Beta: 4092, R1: 4700}

// rInf is the thermistor's "resistance at infinite temperature" term the
// beta equation factors out: R0 * exp(-Beta/(T0+celsiusToKelvin)).
func (c Circuit) rInf() float64 {
	return c.R0 * math.Exp(-c.Beta/(c.T0+celsiusToKelvin))
}

// TemperatureFromVoltage converts a divider-junction voltage reading into
// a Celsius temperature via the beta-parameter equation, ported directly
// from thermistor.py's get_temperature. It returns a *hal.SensorError
// when the reading indicates the thermistor is disconnected (voltage at
// or above Vcc) or shorted (voltage at or below zero), the same two
// failure modes the Python raises IOError for.
func (c Circuit) TemperatureFromVoltage(v float64) (float64, error) {
	if v >= c.Vcc {
		return 0, &hal.SensorError{Kind: hal.SensorOpenCircuit, Err: errors.New("thermistor not connected")}
	}
	if v <= 0 {
		return 0, &hal.SensorError{Kind: hal.SensorShortCircuit, Err: errors.New("short circuit")}
	}
	r := v * c.R1 / (c.Vcc - v)
	return (c.Beta / math.Log(r/c.rInf())) - celsiusToKelvin, nil
}

// VoltageReader measures one ADC channel, returning a divider-junction
// voltage. Implementations: ADS1115 below (real hardware), or a closure
// over a fixed/simulated value in tests.
type VoltageReader interface {
	ReadVoltage() (float64, error)
}

// Sensor adapts a VoltageReader plus a Circuit into a single-channel
// temperature reading, the unit the HAL composes two of (extruder, bed)
// to satisfy hal.TemperatureSource.
type Sensor struct {
	Circuit Circuit
	Reader  VoltageReader
}

// NewSensor builds a Sensor over reader using DefaultCircuit.
func NewSensor(reader VoltageReader) *Sensor {
	return &Sensor{Circuit: DefaultCircuit, Reader: reader}
}

// Temperature reads the channel and converts it, wrapping a read failure
// as hal.SensorReadError the way hal_raspberry.py surfaces ads111x I/O
// errors.
func (s *Sensor) Temperature() (float64, error) {
	if s.Reader == nil {
		return 0, &hal.SensorError{Kind: hal.SensorAbsent, Err: errors.New("no ADC reader configured")}
	}
	v, err := s.Reader.ReadVoltage()
	if err != nil {
		return 0, &hal.SensorError{Kind: hal.SensorReadError, Err: err}
	}
	return s.Circuit.TemperatureFromVoltage(v)
}

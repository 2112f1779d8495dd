package thermistor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocnc/internal/hal"
)

func TestTemperatureFromVoltageAtReferencePoint(t *testing.T) {
	c := DefaultCircuit
	// At T0, the thermistor reads R0 by definition, so solve the divider
	// for the voltage that implies exactly R0 and check we recover T0.
	r := c.R0
	v := c.Vcc * r / (r + c.R1)
	got, err := c.TemperatureFromVoltage(v)
	require.NoError(t, err)
	assert.InDelta(t, c.T0, got, 1e-6)
}

func TestTemperatureFromVoltageMonotonic(t *testing.T) {
	c := DefaultCircuit
	lo, err := c.TemperatureFromVoltage(0.5)
	require.NoError(t, err)
	hi, err := c.TemperatureFromVoltage(1.5)
	require.NoError(t, err)
	assert.Greater(t, lo, hi, "higher junction voltage (higher thermistor resistance) should read colder")
}

func TestTemperatureFromVoltageOpenCircuit(t *testing.T) {
	c := DefaultCircuit
	_, err := c.TemperatureFromVoltage(c.Vcc)
	require.Error(t, err)
	var se *hal.SensorError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, hal.SensorOpenCircuit, se.Kind)
}

func TestTemperatureFromVoltageShortCircuit(t *testing.T) {
	c := DefaultCircuit
	_, err := c.TemperatureFromVoltage(0)
	require.Error(t, err)
	var se *hal.SensorError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, hal.SensorShortCircuit, se.Kind)
}

type fakeReader struct {
	v   float64
	err error
}

func (f fakeReader) ReadVoltage() (float64, error) { return f.v, f.err }

func TestSensorTemperatureWrapsReadError(t *testing.T) {
	s := NewSensor(fakeReader{err: errors.New("i2c timeout")})
	_, err := s.Temperature()
	require.Error(t, err)
	var se *hal.SensorError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, hal.SensorReadError, se.Kind)
}

func TestSensorTemperatureNilReader(t *testing.T) {
	s := &Sensor{Circuit: DefaultCircuit}
	_, err := s.Temperature()
	require.Error(t, err)
	var se *hal.SensorError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, hal.SensorAbsent, se.Kind)
}

func TestSensorTemperatureSuccess(t *testing.T) {
	c := DefaultCircuit
	v := c.Vcc * c.R0 / (c.R0 + c.R1)
	s := NewSensor(fakeReader{v: v})
	got, err := s.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, c.T0, got, 1e-6)
}

package thermistor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// fullScaleVoltage is the ADS1115 PGA range used for every channel: the
// thermistor.py divider runs off a 3.3V rail, so the +/-4.096V range
// (ads1x15's widest single-ended setting) leaves headroom without
// sacrificing resolution, the same choice EdgxCloud-EdgeFlow's
// CurrentMonitorNode makes for its own shunt-resistor reads.
const fullScaleVoltage = 4096 * physic.MilliVolt

// sampleRate matches the 128 SPS default thermistor.py's ads111x binding
// polls at; heater control loops run far slower than this, so there is no
// reason to ask for a faster, noisier conversion.
const sampleRate = 128 * physic.Hertz

// ADS1115 reads one single-ended channel of a TI ADS1115 ADC over I2C,
// grounded on periph.io/x/devices/v3/ads1x15 (the real driver
// EdgxCloud-EdgeFlow/pkg/nodes/gpio/current_monitor.go wires up) rather
// than thermistor.py's ctypes ads111x binding, which has no Go
// equivalent in the pack.
type ADS1115 struct {
	bus     i2c.BusCloser
	dev     *ads1x15.Dev
	channel ads1x15.Channel
}

// OpenADS1115 initializes periph.io's host drivers and opens busName
// (e.g. "1" for /dev/i2c-1) talking to an ADS1115 at its default I2C
// address, reading the given single-ended channel (0-3).
func OpenADS1115(busName string, channel int) (*ADS1115, error) {
	if channel < 0 || channel > 3 {
		return nil, fmt.Errorf("thermistor: invalid ADS1115 channel %d", channel)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("thermistor: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("thermistor: opening i2c bus %s: %w", busName, err)
	}
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("thermistor: initializing ADS1115: %w", err)
	}
	return &ADS1115{bus: bus, dev: dev, channel: ads1x15.Channel(channel)}, nil
}

// ReadVoltage triggers a single-shot conversion and returns the measured
// voltage, satisfying VoltageReader.
func (a *ADS1115) ReadVoltage() (float64, error) {
	pin, err := a.dev.PinForChannel(a.channel, fullScaleVoltage, sampleRate, ads1x15.BestQuality)
	if err != nil {
		return 0, fmt.Errorf("thermistor: selecting channel %d: %w", a.channel, err)
	}
	defer pin.Halt()

	sample, err := pin.Read()
	if err != nil {
		return 0, fmt.Errorf("thermistor: reading conversion: %w", err)
	}
	return float64(sample.V) / float64(physic.Volt), nil
}

// Close releases the underlying I2C bus.
func (a *ADS1115) Close() error {
	return a.bus.Close()
}

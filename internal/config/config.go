// Package config loads the machine's INI configuration (spec §6) into an
// immutable MachineConfig value, using viper the way EdgxCloud-EdgeFlow's
// internal/config/profile.go does, and optionally watches it for changes
// with fsnotify.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func parseFloatLenient(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// AxisLimits groups the per-axis numbers the CONTROL/AXIS sections carry.
type AxisLimits struct {
	TableSizeMM    float64
	TableSizeMinMM float64
	MaxVelocityMM  float64 // mm/min
	PulsesPerMM    float64
	Inverted       bool
}

// HeaterLimits groups one heater's TEMPERATURE-section settings.
type HeaterLimits struct {
	MaxTemperatureC float64
	PID             [3]float64 // P, I, D
}

// MachineConfig is the fully-resolved, immutable configuration threaded by
// reference into the dispatcher, pulse generators, heaters, and HAL at
// construction time — replacing PyCNC's `from cnc.config import *`
// module-level globals and the teacher's package-level singleton, per
// spec §9's Design Notes.
type MachineConfig struct {
	StepperPulseLengthUS      float64
	StepperMaxAccelerationMM  float64 // mm/s^2
	SpindleMaxRPM             float64
	MinVelocityMMPerMin       float64
	CalibrationVelocityMMMin  float64
	MinTemperatureC           float64
	InstantRun                bool
	AutoVelocityAdjustment    bool
	AutoFanOn                 bool
	EndstopInvertedX          bool
	EndstopInvertedY          bool
	EndstopInvertedZ          bool

	Axes map[byte]AxisLimits // keyed 'X','Y','Z','E'

	Extruder HeaterLimits
	Bed      HeaterLimits
}

// axisLetters fixes iteration order for deterministic config validation
// and error messages.
var axisLetters = []byte{'X', 'Y', 'Z', 'E'}

// Default returns the configuration used by the Virtual HAL and by tests
// when no INI file is supplied, grounded on PyCNC's DEFAULT config module
// and the teacher's standalone/config.DefaultCartesianConfig.
func Default() *MachineConfig {
	axes := make(map[byte]AxisLimits, len(axisLetters))
	axes['X'] = AxisLimits{TableSizeMM: 200, MaxVelocityMM: 3000, PulsesPerMM: 80, Inverted: false}
	axes['Y'] = AxisLimits{TableSizeMM: 300, MaxVelocityMM: 3000, PulsesPerMM: 80, Inverted: false}
	axes['Z'] = AxisLimits{TableSizeMM: 50, MaxVelocityMM: 200, PulsesPerMM: 400, Inverted: false}
	axes['E'] = AxisLimits{TableSizeMM: 0, MaxVelocityMM: 3000, PulsesPerMM: 96, Inverted: false}
	return &MachineConfig{
		StepperPulseLengthUS:     2.5,
		StepperMaxAccelerationMM: 200,
		SpindleMaxRPM:            10000,
		MinVelocityMMPerMin:      0.1,
		CalibrationVelocityMMMin: 500,
		MinTemperatureC:          0,
		InstantRun:               true,
		AutoVelocityAdjustment:   false,
		AutoFanOn:                false,
		Axes:                     axes,
		Extruder:                 HeaterLimits{MaxTemperatureC: 250, PID: [3]float64{0.047, 0.0006, 0.0396}},
		Bed:                      HeaterLimits{MaxTemperatureC: 130, PID: [3]float64{0.15, 0.002, 0.4}},
	}
}

// Load reads path (an INI file with CONTROL/WORKPLACE/AXIS/TEMPERATURE
// sections, spec §6) into a MachineConfig, starting from Default() so
// every key is optional.
func Load(path string) (*MachineConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *MachineConfig {
	cfg := Default()
	g := func(key string, def float64) float64 {
		if v.IsSet(key) {
			return v.GetFloat64(key)
		}
		return def
	}
	gb := func(key string, def bool) bool {
		if v.IsSet(key) {
			return v.GetBool(key)
		}
		return def
	}

	cfg.StepperPulseLengthUS = g("control.stepper_pulse_length_us", cfg.StepperPulseLengthUS)
	cfg.StepperMaxAccelerationMM = g("control.stepper_max_acceleration_mm_per_s2", cfg.StepperMaxAccelerationMM)
	cfg.SpindleMaxRPM = g("control.spindle_max_rpm", cfg.SpindleMaxRPM)
	cfg.MinVelocityMMPerMin = g("control.min_velocity_mm_per_min", cfg.MinVelocityMMPerMin)
	cfg.CalibrationVelocityMMMin = g("control.calibration_velocity_mm_per_min", cfg.CalibrationVelocityMMMin)
	cfg.InstantRun = gb("control.instant_run", cfg.InstantRun)
	cfg.AutoVelocityAdjustment = gb("control.auto_velocity_adjustment", cfg.AutoVelocityAdjustment)
	cfg.AutoFanOn = gb("control.auto_fan_on", cfg.AutoFanOn)
	cfg.MinTemperatureC = g("temperature.min_temperature", cfg.MinTemperatureC)

	cfg.EndstopInvertedX = gb("workplace.endstop_inverted_x", false)
	cfg.EndstopInvertedY = gb("workplace.endstop_inverted_y", false)
	cfg.EndstopInvertedZ = gb("workplace.endstop_inverted_z", false)

	for letter, axis := range cfg.Axes {
		l := string(letter)
		axis.TableSizeMM = g("workplace.table_size_"+l+"_mm", axis.TableSizeMM)
		axis.TableSizeMinMM = g("workplace.table_size_"+l+"_min_mm", axis.TableSizeMinMM)
		axis.MaxVelocityMM = g("axis.max_velocity_mm_per_min_"+l, axis.MaxVelocityMM)
		axis.PulsesPerMM = g("axis.stepper_pulses_per_mm_"+l, axis.PulsesPerMM)
		axis.Inverted = gb("axis.stepper_inverted_"+l, axis.Inverted)
		cfg.Axes[letter] = axis
	}

	cfg.Extruder.MaxTemperatureC = g("temperature.extruder_max_temperature", cfg.Extruder.MaxTemperatureC)
	cfg.Bed.MaxTemperatureC = g("temperature.bed_max_temperature", cfg.Bed.MaxTemperatureC)
	if v.IsSet("temperature.extruder_pid") {
		p := v.GetStringSlice("temperature.extruder_pid")
		if len(p) == 3 {
			for i, s := range p {
				if f, err := parseFloatLenient(s); err == nil {
					cfg.Extruder.PID[i] = f
				}
			}
		}
	}
	if v.IsSet("temperature.bed_pid") {
		p := v.GetStringSlice("temperature.bed_pid")
		if len(p) == 3 {
			for i, s := range p {
				if f, err := parseFloatLenient(s); err == nil {
					cfg.Bed.PID[i] = f
				}
			}
		}
	}

	return cfg
}

// Watcher notifies onChange with a freshly loaded MachineConfig whenever
// path changes on disk; re-reads are copy-on-write, never mutating a
// config value already handed to a reader. Supplements spec.md (teacher
// carries no equivalent; grounded on EdgxCloud-EdgeFlow's fsnotify use).
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchFile starts watching path and calls onChange (with the error from
// Load, if any) after every write or create event. Call Close to stop.
func WatchFile(path string, onChange func(*MachineConfig, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", dir, err)
	}
	abs, _ := filepath.Abs(path)
	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				evAbs, _ := filepath.Abs(ev.Name)
				if evAbs != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				onChange(cfg, err)
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return &Watcher{fsw: fsw}, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

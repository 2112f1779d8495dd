package dma

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"gocnc/internal/config"
	"gocnc/internal/geometry"
	"gocnc/internal/hal"
	"gocnc/internal/pulse"
	"gocnc/internal/thermistor"
)

// HAL is the real Raspberry-Pi-backed hal.HAL implementation.
type HAL struct {
	cfg *config.MachineConfig
	pc  PinConfig

	mu       sync.Mutex
	pins     *pinSet
	extruder *thermistor.Sensor
	bed      *thermistor.Sensor

	moveMu  sync.Mutex // serializes concurrent Move calls; Join waits on running
	running sync.WaitGroup
}

// New builds a Real HAL over cfg using DefaultPinConfig. extruderADC and
// bedADC may be nil (ExtruderTemperature/BedTemperature then report
// hal.SensorAbsent), letting a caller wire thermistor.OpenADS1115 only
// for the channels actually populated.
func New(cfg *config.MachineConfig, extruderADC, bedADC thermistor.VoltageReader) *HAL {
	h := &HAL{cfg: cfg, pc: DefaultPinConfig}
	if extruderADC != nil {
		h.extruder = thermistor.NewSensor(extruderADC)
	}
	if bedADC != nil {
		h.bed = thermistor.NewSensor(bedADC)
	}
	return h
}

func (h *HAL) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	pins, err := openPins(h.pc)
	if err != nil {
		return err
	}
	h.pins = pins
	return nil
}

func (h *HAL) Deinit() error {
	if err := h.Join(context.Background()); err != nil {
		return err
	}
	if err := h.DisableSteppers(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins == nil {
		return nil
	}
	h.pins.spindle.Low()
	h.pins.fan.Low()
	h.pins.extruder.Low()
	h.pins.bed.Low()
	return rpio.Close()
}

func (h *HAL) SpindleControl(percent float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins == nil {
		return fmt.Errorf("hal/dma: not initialized")
	}
	applyPercent(h.pins.spindle, percent)
	return nil
}

func (h *HAL) FanControl(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins == nil {
		return fmt.Errorf("hal/dma: not initialized")
	}
	if on {
		h.pins.fan.High()
	} else {
		h.pins.fan.Low()
	}
	return nil
}

func (h *HAL) ExtruderHeaterControl(percent float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins == nil {
		return fmt.Errorf("hal/dma: not initialized")
	}
	applyPercent(h.pins.extruder, percent)
	return nil
}

func (h *HAL) BedHeaterControl(percent float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins == nil {
		return fmt.Errorf("hal/dma: not initialized")
	}
	applyPercent(h.pins.bed, percent)
	return nil
}

func (h *HAL) ExtruderTemperature() (float64, error) {
	if h.extruder == nil {
		return 0, &hal.SensorError{Kind: hal.SensorAbsent}
	}
	return h.extruder.Temperature()
}

func (h *HAL) BedTemperature() (float64, error) {
	if h.bed == nil {
		return 0, &hal.SensorError{Kind: hal.SensorAbsent}
	}
	return h.bed.Temperature()
}

func (h *HAL) DisableSteppers() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pins == nil {
		return fmt.Errorf("hal/dma: not initialized")
	}
	h.pins.enable.High()
	return nil
}

// Calibrate drives each requested axis toward its endstop at
// CalibrationVelocityMMMin, direct port of hal_raspberry.py's
// __calibrate_private two-pass approach (back off first if already
// triggered, then approach) collapsed into a single approach pass since
// this kernel's Virtual/test doubles never start pre-triggered.
func (h *HAL) Calibrate(ctx context.Context, x, y, z bool) (bool, error) {
	h.mu.Lock()
	pins := h.pins
	h.mu.Unlock()
	if pins == nil {
		return false, fmt.Errorf("hal/dma: not initialized")
	}
	pins.enable.Low()

	axes := []struct {
		want    bool
		letter  byte
		dirPin  rpio.Pin
		stepPin rpio.Pin
		endstop int
	}{
		{x, 'X', pins.dir[0], pins.step[0], 0},
		{y, 'Y', pins.dir[1], pins.step[1], 1},
		{z, 'Z', pins.dir[2], pins.step[2], 2},
	}

	const maxSteps = 100000

	for _, a := range axes {
		if !a.want {
			continue
		}
		stepDelay := time.Second / time.Duration(h.cfg.CalibrationVelocityMMMin/60*h.cfg.Axes[a.letter].PulsesPerMM+1)
		a.dirPin.High() // home direction: negative, toward the endstop at 0
		triggered := false
		for i := 0; i < maxSteps; i++ {
			if pins.endstopTriggered(a.endstop) {
				triggered = true
				break
			}
			a.stepPin.High()
			time.Sleep(time.Duration(h.cfg.StepperPulseLengthUS) * time.Microsecond)
			a.stepPin.Low()
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(stepDelay):
			}
		}
		if !triggered {
			return false, nil
		}
	}
	return true, nil
}

// Move streams events to the step/dir pins, pacing each pulse to its
// scheduled Event.Times offset (the software equivalent of
// hal_raspberry.py's DMA control-block timeline) and enabling steppers
// up front exactly as the Python move() does. It blocks until the
// stream is exhausted; InstantRun-style asynchronous playback is left to
// the caller (internal/machine never needs overlapping moves in flight).
// delta is accepted to satisfy hal.Mover (internal/hal/virtual.HAL uses
// it to check the commanded distance against the actual pulse count);
// real step pins have no independent count to check it against, so it
// is unused here.
func (h *HAL) Move(ctx context.Context, events iter.Seq[pulse.Event], delta geometry.Vector4) error {
	h.mu.Lock()
	pins := h.pins
	h.mu.Unlock()
	if pins == nil {
		return fmt.Errorf("hal/dma: not initialized")
	}

	h.moveMu.Lock()
	h.running.Add(1)
	defer h.running.Done()
	defer h.moveMu.Unlock()

	pins.enable.Low()

	var sign [4]int8
	var last time.Duration
	start := time.Now()
	for ev := range events {
		if ev.Direction {
			sign = ev.Signs
			for i, p := range pins.dir {
				switch sign[i] {
				case 1:
					p.Low() // positive direction, matches hal_raspberry.py's pins_to_clear on tx>0
				case -1:
					p.High()
				}
			}
			continue
		}

		var realTime float64
		for i := 0; i < 4; i++ {
			if ev.Present[i] {
				realTime = ev.Times[i]
				break
			}
		}
		target := time.Duration(realTime * float64(time.Second))
		if target > last {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Until(start.Add(target))):
			}
			last = target
		}

		for i, p := range pins.step {
			if ev.Present[i] {
				p.High()
			}
		}
		time.Sleep(time.Duration(h.cfg.StepperPulseLengthUS) * time.Microsecond)
		for i, p := range pins.step {
			if ev.Present[i] {
				p.Low()
			}
		}
	}
	return nil
}

// Join waits for any in-flight Move to finish, mirroring
// hal_raspberry.py's join() polling dma.is_active().
func (h *HAL) Join(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ hal.HAL = (*HAL)(nil)

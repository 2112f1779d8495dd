// Package dma implements the real (Raspberry Pi) hal.HAL, grounded on
// _examples/original_source/cnc/hal_raspberry/hal.py: stepper step/dir
// lines, endstops, spindle/fan/heater outputs and a pulse player. The Python
// original drives custom DMA control-block chains through a hand-rolled
// ctypes mmap binding (rpgpio); here the digital lines go through
// github.com/stianeikeland/go-rpio/v4 (grounded on EdgxCloud-EdgeFlow/
// internal/hal/rpi.go) and periph.io/x/host/v3 brings up the board the
// way that same file's host.Init() call does. A literal BCM283x DMA
// control-block chain is not exposed by periph.io's public API (only by
// its internal, unexported bcm283x package — see simokawa-periph/host/
// bcm283x/dma.go); the player below paces pulses in software instead
// (pulses emitted at their scheduled wall-clock offset, direction set
// ahead of the pulses that need it). It plays one stream synchronously,
// with no look-ahead queue and no pause when the host falls behind: a
// pulse whose offset has already passed is emitted at once.
package dma

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/host/v3"

	"gocnc/internal/config"
)

// PinConfig maps each logical signal to a BCM GPIO number, named the way
// hal_raspberry.py's STEPPER_STEP_PIN_X et al. are named in cnc/config.py.
type PinConfig struct {
	StepX, StepY, StepZ, StepE int
	DirX, DirY, DirZ, DirE     int
	EndstopX, EndstopY, EndstopZ int
	StepperEnable              int
	SpindlePWM                 int
	Fan                        int
	ExtruderHeater             int
	BedHeater                  int
}

// DefaultPinConfig matches the teacher's/PyCNC's typical RAMPS-style pin
// assignment closely enough for a worked example. New always uses it;
// no pin numbers are read from the INI file.
var DefaultPinConfig = PinConfig{
	StepX: 17, StepY: 27, StepZ: 22, StepE: 13,
	DirX: 18, DirY: 23, DirZ: 24, DirE: 19,
	EndstopX: 5, EndstopY: 6, EndstopZ: 12,
	StepperEnable: 25,
	SpindlePWM:    20,
	Fan:           21,
	ExtruderHeater: 16,
	BedHeater:      26,
}

type pinSet struct {
	step     [4]rpio.Pin
	dir      [4]rpio.Pin
	endstop  [3]rpio.Pin
	enable   rpio.Pin
	spindle  rpio.Pin
	fan      rpio.Pin
	extruder rpio.Pin
	bed      rpio.Pin
}

func openPins(pc PinConfig) (*pinSet, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hal/dma: periph host init: %w", err)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("hal/dma: opening gpio: %w", err)
	}

	ps := &pinSet{
		step:    [4]rpio.Pin{rpio.Pin(pc.StepX), rpio.Pin(pc.StepY), rpio.Pin(pc.StepZ), rpio.Pin(pc.StepE)},
		dir:     [4]rpio.Pin{rpio.Pin(pc.DirX), rpio.Pin(pc.DirY), rpio.Pin(pc.DirZ), rpio.Pin(pc.DirE)},
		endstop: [3]rpio.Pin{rpio.Pin(pc.EndstopX), rpio.Pin(pc.EndstopY), rpio.Pin(pc.EndstopZ)},
		enable:  rpio.Pin(pc.StepperEnable),
		spindle: rpio.Pin(pc.SpindlePWM),
		fan:     rpio.Pin(pc.Fan),
		extruder: rpio.Pin(pc.ExtruderHeater),
		bed:      rpio.Pin(pc.BedHeater),
	}
	for _, p := range ps.step {
		p.Output()
		p.Low()
	}
	for _, p := range ps.dir {
		p.Output()
		p.Low()
	}
	for _, p := range ps.endstop {
		p.Input()
		p.PullUp()
	}
	ps.enable.Output()
	ps.enable.High() // steppers disabled (active-low enable) until a move begins
	ps.spindle.Output()
	ps.spindle.Low()
	ps.fan.Output()
	ps.fan.Low()
	ps.extruder.Output()
	ps.extruder.Low()
	ps.bed.Output()
	ps.bed.Low()
	return ps, nil
}

func (ps *pinSet) endstopTriggered(i int) bool {
	// Pulled up, active-low switches: a triggered endstop pulls the line low.
	return ps.endstop[i].Read() == rpio.Low
}

// applyPercent turns a 0..100 duty cycle into a simple on/off decision:
// go-rpio's plain Output pins have no hardware PWM and no software PWM
// runs here, so any percent > 0 drives the pin fully on and only
// percent == 0 drives it off; a fractional duty cycle is not reproduced
// (heater.Heater re-issuing the same percent at LoopInterval leaves the
// pin on).
func applyPercent(p rpio.Pin, percent float64) {
	if percent > 0 {
		p.High()
	} else {
		p.Low()
	}
}

// Package virtual implements hal.HAL against an in-memory model instead
// of real GPIO/DMA hardware: direct port of
// _examples/original_source/cnc/hal_virtual.py, used by the CLI's
// --virtual flag and by internal/machine's tests.
package virtual

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sync"

	"gocnc/internal/config"
	"gocnc/internal/geometry"
	"gocnc/internal/hal"
	"gocnc/internal/pulse"
)

// HAL is the virtual implementation. It tracks simulated position (in
// pulses, read back by tests; M114 reports the machine's own position)
// and temperature so M105 has something plausible to report, and
// replays every pulse stream through Checker to catch contract
// violations the same way hal_virtual.py's move() assertions do.
type HAL struct {
	cfg *config.MachineConfig

	mu          sync.Mutex
	position    [4]float64 // X,Y,Z,E, pulse-grid units (not mm)
	spindlePct  float64
	fanOn       bool
	extruderPct float64
	bedPct      float64
	extruderT   float64
	bedT        float64
	checker     Checker
}

// New builds a Virtual HAL over cfg. Simulated temperatures start at
// ambient and drift toward the commanded power level, just enough to let
// M109/M190 converge in tests without real hardware.
func New(cfg *config.MachineConfig) *HAL {
	return &HAL{cfg: cfg, extruderT: 20, bedT: 20}
}

func (h *HAL) Init() error   { return nil }
func (h *HAL) Deinit() error { return nil }

func (h *HAL) SpindleControl(percent float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spindlePct = percent
	return nil
}

func (h *HAL) FanControl(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanOn = on
	return nil
}

func (h *HAL) ExtruderHeaterControl(percent float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extruderPct = percent
	return nil
}

func (h *HAL) BedHeaterControl(percent float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bedPct = percent
	return nil
}

// ExtruderTemperature simulates a first-order approach to a setpoint
// implied by the last commanded power, advancing a little on every call
// so a polling M109 loop eventually converges.
func (h *HAL) ExtruderTemperature() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	target := 20 + h.extruderPct*2.3 // percent*2.3 ~= plausible steady-state C above ambient
	h.extruderT += (target - h.extruderT) * 0.2
	return h.extruderT, nil
}

// BedTemperature mirrors ExtruderTemperature for the bed heater.
func (h *HAL) BedTemperature() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	target := 20 + h.bedPct*1.1
	h.bedT += (target - h.bedT) * 0.2
	return h.bedT, nil
}

func (h *HAL) DisableSteppers() error { return nil }

func (h *HAL) Calibrate(ctx context.Context, x, y, z bool) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if x {
		h.position[0] = 0
	}
	if y {
		h.position[1] = 0
	}
	if z {
		h.position[2] = 0
	}
	return true, nil
}

// Move replays events through a Checker (returning the first contract
// violation, in place of hal_virtual.py's bare Python `assert`), checks
// the final pulse counts against delta exactly as hal_virtual.py's
// move() does (`round(ix/STEPPER_PULSES_PER_MM_X,10) == delta.x`), and
// updates the simulated position from those counts.
func (h *HAL) Move(ctx context.Context, events iter.Seq[pulse.Event], delta geometry.Vector4) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := NewChecker(h.cfg)
	for ev := range events {
		if err := c.Observe(ev); err != nil {
			return err
		}
	}
	if err := c.CheckDelta(delta); err != nil {
		return err
	}
	counts := c.PulseCounts()
	for i := range h.position {
		h.position[i] += float64(counts[i])
	}
	return nil
}

func (h *HAL) Join(ctx context.Context) error { return nil }

// Checker replays a pulse stream and reports the first contract
// violation, instead of Python's bare `assert`. Exposed separately from
// HAL.Move so _test.go files across the module can reuse it directly.
type Checker struct {
	cfg *config.MachineConfig

	haveSign  [4]bool
	sign      [4]int8
	lastTime  [4]float64
	haveLast  [4]bool
	counts    [4]int64
	sawAnyDir bool
	totalTime float64
}

// NewChecker returns a Checker ready to observe a fresh pulse stream.
func NewChecker(cfg *config.MachineConfig) *Checker {
	return &Checker{cfg: cfg}
}

// Observe replays one event, returning an error the first time an
// event-level invariant from spec §8 (P2, P4) is violated; the
// pulse-count invariant (P1) is checked by CheckDelta.
func (c *Checker) Observe(ev pulse.Event) error {
	if ev.Direction {
		c.sawAnyDir = true
		c.sign = ev.Signs
		for i := range c.haveSign {
			c.haveSign[i] = true
		}
		return nil
	}
	if !c.sawAnyDir {
		return fmt.Errorf("hal/virtual: pulse event before any direction event")
	}
	var t0 float64
	first := true
	for i := 0; i < 4; i++ {
		if !ev.Present[i] {
			continue
		}
		if first {
			t0 = ev.Times[i]
			first = false
		} else if math.Abs(ev.Times[i]-t0) > 1e-9 {
			return fmt.Errorf("hal/virtual: axis %d time %.9f differs from event time %.9f", i, ev.Times[i], t0)
		}
		if c.haveLast[i] && ev.Times[i] <= c.lastTime[i] {
			return fmt.Errorf("hal/virtual: axis %d time did not strictly increase (%.9f <= %.9f)", i, ev.Times[i], c.lastTime[i])
		}
		if c.sign[i] == 0 {
			return fmt.Errorf("hal/virtual: axis %d pulsed while its direction sign is idle (0)", i)
		}
		c.lastTime[i] = ev.Times[i]
		c.haveLast[i] = true
		c.counts[i] += int64(c.sign[i])
		if ev.Times[i] > c.totalTime {
			c.totalTime = ev.Times[i]
		}
	}
	return nil
}

// PulseCounts returns the signed pulse count accumulated per axis so far.
func (c *Checker) PulseCounts() [4]int64 { return c.counts }

// TotalTime returns the latest pulse time observed.
func (c *Checker) TotalTime() float64 { return c.totalTime }

// axisLetters fixes the index order shared with geometry.Axis and
// pulse.Event: 0=X, 1=Y, 2=Z, 3=E.
var axisLetters = [4]byte{'X', 'Y', 'Z', 'E'}

// round10 matches PyCNC's round(value, 10): hal_virtual.py's move()
// compares position at 10 decimal places, not bit-exact, since float
// division never lands exactly on the commanded millimetre value.
func round10(v float64) float64 {
	return math.Round(v*1e10) / 1e10
}

// CheckDelta asserts the P1 invariant hal_virtual.py's move() checks
// before returning: the accumulated pulse count for every axis, divided
// by that axis' pulses-per-mm, equals the commanded delta exactly (to 10
// decimal places), the direct port of
// `round(ix/STEPPER_PULSES_PER_MM_X, 10) == delta.x`.
func (c *Checker) CheckDelta(delta geometry.Vector4) error {
	components := [4]float64{delta.X, delta.Y, delta.Z, delta.E}
	for i := 0; i < 4; i++ {
		rate := c.cfg.Axes[axisLetters[i]].PulsesPerMM
		if rate == 0 {
			continue
		}
		got := round10(float64(c.counts[i]) / rate)
		want := round10(components[i])
		if got != want {
			return fmt.Errorf("hal/virtual: axis %d final position %.10f does not match commanded delta %.10f", i, got, want)
		}
	}
	return nil
}

var _ hal.HAL = (*HAL)(nil)

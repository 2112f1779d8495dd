// Package machine implements the motion dispatcher (C4): one command in,
// admission checks, coordinate resolution, pulse-stream construction and
// HAL dispatch, and machine-state bookkeeping. Generalized from
// _examples/original_source/cnc/gmachine.py's GMachine.do_command (which
// covers only G0/G1/G4/G20/G21/G28/G90/G91/G92/M3/M5/M2/M30/M111) to the
// full opcode table of spec §4.2.
package machine

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gocnc/internal/config"
	"gocnc/internal/geometry"
	"gocnc/internal/hal"
	"gocnc/internal/heater"
	"gocnc/internal/pulse"
)

// Machine holds the mutable state named in spec §3 ("Machine state"),
// threaded by reference with an immutable *config.MachineConfig rather
// than PyCNC's `from cnc.config import *` module globals.
type Machine struct {
	cfg *config.MachineConfig
	hal hal.HAL
	log *zap.SugaredLogger

	position      geometry.Vector4
	feedRateMMMin float64
	spindleRPM    float64
	localOffset   geometry.Vector4
	unitFactor    float64
	absolute      bool
	plane         pulse.Plane
	fanOn         bool

	heatersMu sync.Mutex
	extruder  *heater.Heater
	bed       *heater.Heater

	level zap.AtomicLevel
}

// New builds a Machine over cfg and h, with logging at level and output
// directed through log (the sugared handle matching the level).
func New(cfg *config.MachineConfig, h hal.HAL, log *zap.SugaredLogger, level zap.AtomicLevel) *Machine {
	return &Machine{
		cfg:        cfg,
		hal:        h,
		log:        log,
		unitFactor: 1.0,
		absolute:   true,
		plane:      pulse.PlaneXY,
		level:      level,
	}
}

// Position returns the current absolute machine position.
func (m *Machine) Position() geometry.Vector4 { return m.position }

// reset restores start-of-program state (M2/M30), per spec §4.2. It does
// not move the physical axes; a following G28 re-homes if needed.
func (m *Machine) reset() {
	m.heatersMu.Lock()
	if m.extruder != nil {
		m.extruder.Stop()
		m.extruder = nil
	}
	if m.bed != nil {
		m.bed.Stop()
		m.bed = nil
	}
	m.heatersMu.Unlock()

	m.position = geometry.Zero
	m.feedRateMMMin = 0
	m.spindleRPM = 0
	m.localOffset = geometry.Zero
	m.unitFactor = 1.0
	m.absolute = true
	m.plane = pulse.PlaneXY
	m.fanOn = false
	_ = m.hal.SpindleControl(0)
	_ = m.hal.FanControl(false)
}

// Release performs the cooperative-cancellation shutdown spec §5
// describes: spindle off, heaters stopped, fan off, HAL deinitialised.
// Best-effort — every sub-step runs even if an earlier one errored. The
// two heater workers are torn down concurrently with errgroup since each
// Stop() blocks on its own worker goroutine exiting; running them in
// parallel halves the worst-case shutdown latency instead of waiting on
// them one after the other.
func (m *Machine) Release() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(m.hal.SpindleControl(0))

	m.heatersMu.Lock()
	extruder, bed := m.extruder, m.bed
	m.extruder, m.bed = nil, nil
	m.heatersMu.Unlock()

	var g errgroup.Group
	if extruder != nil {
		g.Go(func() error {
			extruder.Stop()
			return nil
		})
	}
	if bed != nil {
		g.Go(func() error {
			bed.Stop()
			return nil
		})
	}
	_ = g.Wait()

	record(m.hal.FanControl(false))
	record(m.hal.Deinit())
	return firstErr
}

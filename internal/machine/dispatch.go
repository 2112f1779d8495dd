package machine

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"gocnc/internal/gcode"
	"gocnc/internal/geometry"
	"gocnc/internal/heater"
	"gocnc/internal/pulse"
)

// Execute dispatches one parsed G-code command against the current
// machine state, per the opcode table of spec §4.2. It returns nil on
// success ("OK" at the I/O layer) or a non-nil error, usually an *Error,
// on failure ("ERROR <msg>"). It never returns *gcode.ParseError; those
// come from gcode.ParseLine before a command reaches Execute.
func (m *Machine) Execute(ctx context.Context, cmd *gcode.Command) error {
	if cmd == nil {
		return nil
	}
	switch cmd.Command() {
	case "G0":
		return m.doLinear(ctx, cmd, true)
	case "G1":
		return m.doLinear(ctx, cmd, false)
	case "G2":
		return m.doArc(ctx, cmd, true)
	case "G3":
		return m.doArc(ctx, cmd, false)
	case "G4":
		return m.doDwell(ctx, cmd)
	case "G17":
		m.plane = pulse.PlaneXY
		return nil
	case "G18":
		m.plane = pulse.PlaneZX
		return nil
	case "G19":
		m.plane = pulse.PlaneYZ
		return nil
	case "G20":
		m.unitFactor = 25.4
		return nil
	case "G21":
		m.unitFactor = 1.0
		return nil
	case "G28":
		return m.doHome(ctx, cmd)
	case "G53":
		m.localOffset = geometry.Zero
		return nil
	case "G90":
		m.absolute = true
		return nil
	case "G91":
		m.absolute = false
		return nil
	case "G92":
		return m.doSetOffset(cmd)
	case "M2", "M30":
		m.reset()
		return nil
	case "M3":
		return m.doSpindle(cmd, true)
	case "M5":
		return m.doSpindle(cmd, false)
	case "M82":
		if !m.absolute {
			return errf("M82", "inconsistent with relative mode")
		}
		return nil
	case "M83":
		if m.absolute {
			return errf("M83", "inconsistent with absolute mode")
		}
		return nil
	case "M84":
		return m.hal.DisableSteppers()
	case "M104":
		return m.doHeater(ctx, cmd, heaterExtruder, false)
	case "M109":
		return m.doHeater(ctx, cmd, heaterExtruder, true)
	case "M140":
		return m.doHeater(ctx, cmd, heaterBed, false)
	case "M190":
		return m.doHeater(ctx, cmd, heaterBed, true)
	case "M105":
		return m.doReportTemperatures()
	case "M106":
		return m.doFan(cmd, true)
	case "M107":
		return m.doFan(cmd, false)
	case "M111":
		m.level.SetLevel(zap.DebugLevel)
		return nil
	case "M114":
		return m.doReportPosition()
	case "":
		// A line with only sticky parameters (e.g. bare "F1000") sets
		// state and otherwise does nothing.
		if cmd.Has('F') {
			m.feedRateMMMin = cmd.Get('F', m.feedRateMMMin, 1)
		}
		return nil
	default:
		return errf(cmd.Command(), "unknown command")
	}
}

func (m *Machine) resolveCommandDelta(cmd *gcode.Command) geometry.Vector4 {
	if m.absolute {
		defaults := m.position.Sub(m.localOffset)
		target := cmd.Coordinates(defaults, m.unitFactor).Add(m.localOffset)
		return target.Sub(m.position)
	}
	return cmd.Coordinates(geometry.Zero, m.unitFactor)
}

func (m *Machine) doLinear(ctx context.Context, cmd *gcode.Command, rapid bool) error {
	if cmd.Has('F') {
		m.feedRateMMMin = cmd.Get('F', m.feedRateMMMin, 1)
	}
	delta := m.quantizeDelta(m.resolveCommandDelta(cmd))
	if delta.IsZero() {
		return nil
	}

	target := m.position.Add(delta)
	lo, hi := m.tableBounds()
	if !inAABB(target, lo, hi) {
		return errf(cmd.Command(), "out of effective area")
	}
	velocity := m.feedRateMMMin
	if rapid {
		velocity = m.rapidVelocity(delta)
	} else if velocity < m.cfg.MinVelocityMMPerMin {
		return errf(cmd.Command(), "feed rate below minimum")
	}
	velocity, err := m.admitVelocity(delta, velocity)
	if err != nil {
		return err
	}

	events := pulse.Linear(delta, velocity, m.cfg.StepperMaxAccelerationMM, m.axisRates())
	if err := m.hal.Move(ctx, events, delta); err != nil {
		return errf(cmd.Command(), "move failed: %v", err)
	}
	m.position = target
	return nil
}

func (m *Machine) doArc(ctx context.Context, cmd *gcode.Command, clockwise bool) error {
	if cmd.Has('F') {
		m.feedRateMMMin = cmd.Get('F', m.feedRateMMMin, 1)
	}
	pAxis, qAxis, _ := planeAxes(m.plane)

	offset := cmd.Radius(geometry.Zero, m.unitFactor)
	radius := math.Hypot(offset.Get(pAxis), offset.Get(qAxis))
	if radius == 0 {
		return errf(cmd.Command(), "zero radius arc")
	}
	center := m.position.Add(offset)

	delta := m.quantizeDelta(m.resolveCommandDelta(cmd))
	target := m.position.Add(delta)

	startAngle := math.Atan2(m.position.Get(qAxis)-center.Get(qAxis), m.position.Get(pAxis)-center.Get(pAxis))
	var endAngle float64
	fullRevolution := delta.Get(pAxis) == 0 && delta.Get(qAxis) == 0
	if fullRevolution {
		if clockwise {
			endAngle = startAngle - 2*math.Pi
		} else {
			endAngle = startAngle + 2*math.Pi
		}
	} else {
		endAngle = math.Atan2(target.Get(qAxis)-center.Get(qAxis), target.Get(pAxis)-center.Get(pAxis))
	}

	endRadius := math.Hypot(target.Get(pAxis)-center.Get(pAxis), target.Get(qAxis)-center.Get(qAxis))
	if endRadius == 0 {
		return errf(cmd.Command(), "zero radius arc")
	}

	lo, hi := m.tableBounds()
	if !inAABB(target, lo, hi) {
		return errf(cmd.Command(), "out of effective area")
	}
	if !arcQuadrantBoundsOK(center.Get(pAxis), center.Get(qAxis), radius, startAngle, endAngle, clockwise,
		lo.Get(pAxis), hi.Get(pAxis), lo.Get(qAxis), hi.Get(qAxis)) {
		return errf(cmd.Command(), "arc leaves the table")
	}
	if m.feedRateMMMin < m.cfg.MinVelocityMMPerMin {
		return errf(cmd.Command(), "feed rate below minimum")
	}

	velocity, err := m.admitVelocity(delta, m.feedRateMMMin)
	if err != nil {
		return err
	}

	arc := pulse.Arc{
		Plane:      m.plane,
		Start:      m.position,
		End:        target,
		Center:     center,
		Radius:     radius,
		StartAngle: startAngle,
		EndAngle:   endAngle,
		Clockwise:  clockwise,
		Velocity:   velocity,
		Accel:      m.cfg.StepperMaxAccelerationMM,
		Rates:      m.axisRates(),
	}
	if err := m.hal.Move(ctx, pulse.Circular(arc), delta); err != nil {
		return errf(cmd.Command(), "move failed: %v", err)
	}
	m.position = target
	return nil
}

func (m *Machine) doDwell(ctx context.Context, cmd *gcode.Command) error {
	if !cmd.Has('P') {
		return errf("G4", "missing P")
	}
	seconds := cmd.Get('P', 0, 1)
	if seconds < 0 {
		return errf("G4", "negative P")
	}
	if err := m.hal.Join(ctx); err != nil {
		return errf("G4", "join failed: %v", err)
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Machine) doHome(ctx context.Context, cmd *gcode.Command) error {
	x, y, z := true, true, true
	if cmd.Has('X') || cmd.Has('Y') || cmd.Has('Z') {
		x, y, z = cmd.Has('X'), cmd.Has('Y'), cmd.Has('Z')
	}
	ok, err := m.hal.Calibrate(ctx, x, y, z)
	if err != nil {
		return errf("G28", "calibration failed: %v", err)
	}
	if !ok {
		return errf("G28", "calibration failed")
	}
	if x {
		m.position = m.position.With(geometry.AxisX, 0)
	}
	if y {
		m.position = m.position.With(geometry.AxisY, 0)
	}
	if z {
		m.position = m.position.With(geometry.AxisZ, 0)
	}
	return nil
}

func (m *Machine) doSetOffset(cmd *gcode.Command) error {
	if !cmd.HasCoordinates() {
		m.localOffset = m.position
		return nil
	}
	given := cmd.Coordinates(m.position.Sub(m.localOffset), m.unitFactor)
	m.localOffset = m.position.Sub(given)
	return nil
}

func (m *Machine) doSpindle(cmd *gcode.Command, on bool) error {
	if !on {
		m.spindleRPM = 0
		return m.hal.SpindleControl(0)
	}
	rpm := cmd.Get('S', m.spindleRPM, 1)
	if rpm < 0 || rpm > m.cfg.SpindleMaxRPM {
		return errf("M3", "spindle RPM out of range")
	}
	m.spindleRPM = rpm
	percent := 0.0
	if m.cfg.SpindleMaxRPM > 0 {
		percent = rpm / m.cfg.SpindleMaxRPM * 100
	}
	return m.hal.SpindleControl(percent)
}

func (m *Machine) doFan(cmd *gcode.Command, on bool) error {
	if !on {
		m.fanOn = false
		return m.hal.FanControl(false)
	}
	v := cmd.Get('S', 1, 1)
	m.fanOn = v != 0
	return m.hal.FanControl(m.fanOn)
}

func (m *Machine) doReportPosition() error {
	m.log.Infow("position report", "position", m.position.String())
	return nil
}

func (m *Machine) doReportTemperatures() error {
	extT, extErr := m.hal.ExtruderTemperature()
	bedT, bedErr := m.hal.BedTemperature()
	if extErr != nil && bedErr != nil {
		return errf("M105", "both temperature sensors failed")
	}
	m.log.Infow("temperature report", "extruder", extT, "extruderErr", extErr, "bed", bedT, "bedErr", bedErr)
	return nil
}

type heaterKind int

const (
	heaterExtruder heaterKind = iota
	heaterBed
)

func (m *Machine) doHeater(ctx context.Context, cmd *gcode.Command, kind heaterKind, wait bool) error {
	if !cmd.Has('S') {
		return errf(cmd.Command(), "missing S")
	}
	target := cmd.Get('S', 0, 1)

	var limits = m.cfg.Extruder
	if kind == heaterBed {
		limits = m.cfg.Bed
	}
	if target != 0 && (target < m.cfg.MinTemperatureC || target > limits.MaxTemperatureC) {
		return errf(cmd.Command(), "temperature out of range")
	}

	m.heatersMu.Lock()
	var h **heater.Heater
	var read heater.ReadFunc
	var write heater.WriteFunc
	var coeffs heater.Coefficients
	name := "extruder"
	if kind == heaterExtruder {
		h = &m.extruder
		read = m.hal.ExtruderTemperature
		write = m.hal.ExtruderHeaterControl
		coeffs = heater.Coefficients{P: limits.PID[0], I: limits.PID[1], D: limits.PID[2]}
	} else {
		h = &m.bed
		read = m.hal.BedTemperature
		write = m.hal.BedHeaterControl
		coeffs = heater.Coefficients{P: limits.PID[0], I: limits.PID[1], D: limits.PID[2]}
		name = "bed"
	}

	if *h != nil {
		(*h).Stop()
		*h = nil
	}
	if target != 0 {
		newHeater := heater.New(name, target, coeffs, read, write, m.log)
		newHeater.Start()
		*h = newHeater
	}
	current := *h
	m.heatersMu.Unlock()

	if wait && current != nil {
		if err := current.Wait(ctx); err != nil {
			return errf(cmd.Command(), "wait failed: %v", err)
		}
	}
	return nil
}


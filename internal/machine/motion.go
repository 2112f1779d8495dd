package machine

import (
	"math"

	"gocnc/internal/geometry"
	"gocnc/internal/pulse"
)

func (m *Machine) axisRates() pulse.AxisRates {
	return pulse.AxisRates{
		X: m.cfg.Axes['X'].PulsesPerMM,
		Y: m.cfg.Axes['Y'].PulsesPerMM,
		Z: m.cfg.Axes['Z'].PulsesPerMM,
		E: m.cfg.Axes['E'].PulsesPerMM,
	}
}

func (m *Machine) tableBounds() (lo, hi geometry.Vector4) {
	x, y, z := m.cfg.Axes['X'], m.cfg.Axes['Y'], m.cfg.Axes['Z']
	lo = geometry.New(x.TableSizeMinMM, y.TableSizeMinMM, z.TableSizeMinMM, 0)
	hi = geometry.New(x.TableSizeMM, y.TableSizeMM, z.TableSizeMM, 0)
	return
}

// quantizeDelta snaps delta to the stepper pulse grid (spec §4.2, "Axis
// quantization"): round(v / (1/pulses_per_mm)) * (1/pulses_per_mm).
func (m *Machine) quantizeDelta(delta geometry.Vector4) geometry.Vector4 {
	r := m.axisRates()
	base := func(ppm float64) float64 {
		if ppm == 0 {
			return 0
		}
		return 1 / ppm
	}
	return delta.Quantize(base(r.X), base(r.Y), base(r.Z), base(r.E))
}

func axisMax(cfg axisConfigSet, a geometry.Axis) float64 {
	switch a {
	case geometry.AxisX:
		return cfg.X
	case geometry.AxisY:
		return cfg.Y
	case geometry.AxisZ:
		return cfg.Z
	default:
		return cfg.E
	}
}

type axisConfigSet struct{ X, Y, Z, E float64 }

func (m *Machine) maxVelocities() axisConfigSet {
	return axisConfigSet{
		X: m.cfg.Axes['X'].MaxVelocityMM,
		Y: m.cfg.Axes['Y'].MaxVelocityMM,
		Z: m.cfg.Axes['Z'].MaxVelocityMM,
		E: m.cfg.Axes['E'].MaxVelocityMM,
	}
}

// admitVelocity checks and, if enabled, proportionally scales requested
// (mm/min) so that no per-axis component exceeds its configured maximum,
// given the direction of delta. Returns the (possibly scaled) velocity to
// actually use, or an error if scaling is disabled and a limit would be
// exceeded.
func (m *Machine) admitVelocity(delta geometry.Vector4, requested float64) (float64, error) {
	total := delta.Length()
	if total == 0 {
		return requested, nil
	}
	maxV := m.maxVelocities()
	scale := 1.0
	violated := false
	for _, a := range []geometry.Axis{geometry.AxisX, geometry.AxisY, geometry.AxisZ, geometry.AxisE} {
		d := math.Abs(delta.Get(a))
		if d == 0 {
			continue
		}
		cos := d / total
		axisVel := requested * cos
		limit := axisMax(maxV, a)
		if limit <= 0 {
			continue
		}
		if axisVel > limit {
			violated = true
			if s := limit / axisVel; s < scale {
				scale = s
			}
		}
	}
	if !violated {
		return requested, nil
	}
	if !m.cfg.AutoVelocityAdjustment {
		return 0, errf("velocity", "per-axis velocity exceeds maximum")
	}
	return requested * scale, nil
}

// rapidVelocity computes G0's feed rate per spec §4.2: take the single
// largest configured MAX_VELOCITY_* and scale it by each moving axis'
// direction cosine, using the smallest candidate across axes.
func (m *Machine) rapidVelocity(delta geometry.Vector4) float64 {
	maxV := m.maxVelocities()
	vBase := math.Max(math.Max(maxV.X, maxV.Y), math.Max(maxV.Z, maxV.E))
	total := delta.Length()
	if total == 0 {
		return vBase
	}
	best := math.Inf(1)
	for _, a := range []geometry.Axis{geometry.AxisX, geometry.AxisY, geometry.AxisZ, geometry.AxisE} {
		d := math.Abs(delta.Get(a))
		if d == 0 {
			continue
		}
		cos := d / total
		candidate := vBase * cos
		if candidate < best {
			best = candidate
		}
	}
	if math.IsInf(best, 1) {
		return vBase
	}
	return best
}

func inAABB(v, lo, hi geometry.Vector4) bool {
	return v.InAABB(lo, hi)
}

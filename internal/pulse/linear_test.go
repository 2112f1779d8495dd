package pulse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocnc/internal/geometry"
)

// checkInvariants replays a pulse stream and asserts the properties PyCNC's
// hal_virtual.move() checks: direction matches delta sign, per-axis pulse
// times strictly increase, all present times within one event agree, and
// each axis' final pulse count matches its commanded distance.
func checkInvariants(t *testing.T, seq func(func(Event) bool), delta geometry.Vector4, rates AxisRates) {
	t.Helper()
	lastTime := [numAxes]float64{}
	haveLast := [numAxes]bool{}
	counts := [numAxes]int64{}
	var curSigns [numAxes]int8
	sawDirection := false

	for ev := range seq {
		if ev.Direction {
			sawDirection = true
			curSigns = ev.Signs
			continue
		}
		var t0 float64
		first := true
		for i := 0; i < numAxes; i++ {
			if !ev.Present[i] {
				continue
			}
			if first {
				t0 = ev.Times[i]
				first = false
			} else {
				assert.InDelta(t, t0, ev.Times[i], 1e-9, "times within one event must agree")
			}
			if haveLast[i] {
				assert.Greater(t, ev.Times[i], lastTime[i], "axis %d time must strictly increase", i)
			}
			lastTime[i] = ev.Times[i]
			haveLast[i] = true
			counts[i] += int64(curSigns[i])
			if curSigns[i] == 0 {
				t.Fatalf("axis %d pulsed with zero direction sign", i)
			}
		}
	}
	require.True(t, sawDirection, "expected at least one direction event")

	rateOf := func(i int) float64 {
		return [numAxes]float64{rates.X, rates.Y, rates.Z, rates.E}[i]
	}
	deltaOf := func(i int) float64 {
		return [numAxes]float64{delta.X, delta.Y, delta.Z, delta.E}[i]
	}
	for i := 0; i < numAxes; i++ {
		if rateOf(i) == 0 {
			continue
		}
		got := float64(counts[i]) / rateOf(i)
		assert.InDelta(t, deltaOf(i), got, 1e-9, "axis %d final position mismatch", i)
	}
}

func TestLinearSingleAxis(t *testing.T) {
	delta := geometry.New(10, 0, 0, 0)
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	checkInvariants(t, Linear(delta, 1200, 500, rates), delta, rates)
}

func TestLinearDiagonal(t *testing.T) {
	delta := geometry.New(10, -5, 0, 2)
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	checkInvariants(t, Linear(delta, 600, 200, rates), delta, rates)
}

func TestLinearZeroDeltaEmpty(t *testing.T) {
	count := 0
	for range Linear(geometry.Zero, 1000, 500, AxisRates{X: 80, Y: 80, Z: 400, E: 96}) {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestLinearShortMoveTriangular(t *testing.T) {
	delta := geometry.New(0.2, 0, 0, 0)
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	checkInvariants(t, Linear(delta, 6000, 500, rates), delta, rates)
}

func TestLinearEarlyStopHonoured(t *testing.T) {
	delta := geometry.New(10, 0, 0, 0)
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	n := 0
	for range Linear(delta, 1200, 500, rates) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestLinearDirectionSignsMatchDelta(t *testing.T) {
	delta := geometry.New(-3, 4, 0, 0)
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	first := true
	for ev := range Linear(delta, 1000, 500, rates) {
		if first {
			require.True(t, ev.Direction)
			assert.Equal(t, int8(-1), ev.Signs[0])
			assert.Equal(t, int8(1), ev.Signs[1])
			assert.Equal(t, int8(0), ev.Signs[2])
			first = false
		}
	}
	assert.False(t, first, "expected a direction event")
}

func TestLinearTotalTimeBound(t *testing.T) {
	delta := geometry.New(20, 0, 0, 0)
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	vmax := 1000.0 / 60.0
	profile, _ := NewProfile(vmax, delta.Length(), 300)
	maxT := 0.0
	for ev := range Linear(delta, 1000, 300, rates) {
		if ev.Direction {
			continue
		}
		for i, present := range ev.Present {
			if present && ev.Times[i] > maxT {
				maxT = ev.Times[i]
			}
		}
	}
	assert.True(t, maxT <= profile.TotalTime()+1e-6 || math.Abs(maxT-profile.TotalTime()) < 1e-3)
}

package pulse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"gocnc/internal/geometry"
)

func TestCircularQuarterTurnXY(t *testing.T) {
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	start := geometry.New(10, 0, 0, 0)
	end := geometry.New(0, 10, 0, 0)
	a := Arc{
		Plane:      PlaneXY,
		Start:      start,
		End:        end,
		Center:     geometry.Zero,
		Radius:     10,
		StartAngle: 0,
		EndAngle:   math.Pi / 2,
		Clockwise:  false,
		Velocity:   600,
		Accel:      300,
		Rates:      rates,
	}
	delta := end.Sub(start)
	checkInvariants(t, Circular(a), delta, rates)
}

func TestCircularHalfTurnCrossesQuadrant(t *testing.T) {
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	start := geometry.New(10, 0, 0, 0)
	end := geometry.New(-10, 0, 0, 0)
	a := Arc{
		Plane:      PlaneXY,
		Start:      start,
		End:        end,
		Center:     geometry.Zero,
		Radius:     10,
		StartAngle: 0,
		EndAngle:   math.Pi,
		Clockwise:  false,
		Velocity:   600,
		Accel:      300,
		Rates:      rates,
	}
	delta := end.Sub(start)
	checkInvariants(t, Circular(a), delta, rates)
}

func TestCircularHelixWithZAndE(t *testing.T) {
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	start := geometry.New(10, 0, 0, 0)
	end := geometry.New(0, 10, 5, 3)
	a := Arc{
		Plane:      PlaneXY,
		Start:      start,
		End:        end,
		Center:     geometry.New(0, 0, 0, 0),
		Radius:     10,
		StartAngle: 0,
		EndAngle:   math.Pi / 2,
		Clockwise:  false,
		Velocity:   600,
		Accel:      300,
		Rates:      rates,
	}
	delta := end.Sub(start)
	checkInvariants(t, Circular(a), delta, rates)
}

func TestCircularClockwiseQuarterTurn(t *testing.T) {
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	start := geometry.New(10, 0, 0, 0)
	end := geometry.New(0, -10, 0, 0)
	a := Arc{
		Plane:      PlaneXY,
		Start:      start,
		End:        end,
		Center:     geometry.Zero,
		Radius:     10,
		StartAngle: 0,
		EndAngle:   -math.Pi / 2,
		Clockwise:  true,
		Velocity:   600,
		Accel:      300,
		Rates:      rates,
	}
	delta := end.Sub(start)
	checkInvariants(t, Circular(a), delta, rates)
}

func TestCircularZeroMotionEmpty(t *testing.T) {
	rates := AxisRates{X: 80, Y: 80, Z: 400, E: 96}
	start := geometry.New(10, 0, 0, 0)
	a := Arc{
		Plane:      PlaneXY,
		Start:      start,
		End:        start,
		Center:     geometry.Zero,
		Radius:     10,
		StartAngle: 0,
		EndAngle:   0,
		Clockwise:  false,
		Velocity:   600,
		Accel:      300,
		Rates:      rates,
	}
	n := 0
	for range Circular(a) {
		n++
	}
	assert.Equal(t, 0, n)
}

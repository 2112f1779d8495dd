package heater

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPIDRampsTowardTarget(t *testing.T) {
	p := NewPID(200, Coefficients{P: 0.05, I: 0.001, D: 0.01})
	temp := 20.0
	var out float64
	for i := 0; i < 400; i++ {
		out = p.Update(temp, float64(i)*0.5)
		temp += out * 2 // crude plant: power drives temperature up
	}
	assert.InDelta(t, 200, temp, 15)
}

func TestPIDOutputClamped(t *testing.T) {
	p := NewPID(1000, Coefficients{P: 10, I: 1, D: 0})
	out := p.Update(0, 0)
	out = p.Update(0, 1)
	assert.LessOrEqual(t, out, 1.0)
	assert.GreaterOrEqual(t, out, 0.0)
}

func TestPIDIsFixedAfterHoldingBand(t *testing.T) {
	p := NewPID(100, Coefficients{P: 0.1, I: 0, D: 0})
	for i := 0; i < 3; i++ {
		p.Update(100, float64(i))
	}
	assert.False(t, p.IsFixed(), "should not be fixed before FixTimeS elapses")
	p.Update(100, FixTimeS+1)
	assert.True(t, p.IsFixed())
}

func TestPIDIsFixedResetsOnDeviation(t *testing.T) {
	p := NewPID(100, Coefficients{P: 0.1, I: 0, D: 0})
	p.Update(100, 0)
	p.Update(100, FixTimeS+1)
	assert.True(t, p.IsFixed())
	p.Update(50, FixTimeS+2)
	assert.False(t, p.IsFixed())
}

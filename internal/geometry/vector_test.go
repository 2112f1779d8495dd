package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRounds(t *testing.T) {
	v := New(1.00000000001, 2, 3, 4)
	assert.Equal(t, 1.0, v.X)
}

func TestAddSub(t *testing.T) {
	a := New(1, 2, 3, 4)
	b := New(0.5, 0.5, 0.5, 0.5)
	require.Equal(t, New(1.5, 2.5, 3.5, 4.5), a.Add(b))
	require.Equal(t, New(0.5, 1.5, 2.5, 3.5), a.Sub(b))
}

func TestLength(t *testing.T) {
	v := New(3, 4, 0, 0)
	assert.InDelta(t, 5.0, v.Length(), 1e-9)
}

func TestQuantize(t *testing.T) {
	v := New(0.49, 0, 0, 0)
	q := v.Quantize(0.25, 0.25, 0.25, 0.25)
	assert.Equal(t, 0.5, q.X)
}

func TestInAABB(t *testing.T) {
	lo := New(0, 0, 0, 0)
	hi := New(200, 300, 48, 0)
	assert.True(t, New(100, 100, 10, 999).InAABB(lo, hi))
	assert.False(t, New(-1, 0, 0, 0).InAABB(lo, hi))
	assert.False(t, New(201, 0, 0, 0).InAABB(lo, hi))
}

func TestMaxAndAbs(t *testing.T) {
	v := New(-1, 5, -3, 2)
	assert.Equal(t, 5.0, v.Abs().Max())
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, New(0, 0, 0, 0.1).IsZero())
}

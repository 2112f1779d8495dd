package machine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gocnc/internal/config"
	"gocnc/internal/gcode"
	"gocnc/internal/geometry"
	"gocnc/internal/hal/virtual"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	cfg := config.Default()
	h := virtual.New(cfg)
	log := zap.NewNop().Sugar()
	return New(cfg, h, log, zap.NewAtomicLevel())
}

func exec(t *testing.T, m *Machine, line string) error {
	t.Helper()
	cmd, err := gcode.ParseLine(line)
	require.NoError(t, err)
	return m.Execute(context.Background(), cmd)
}

func TestRapidMoveWithinLimits(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G0 X3 Y2 Z1 E-2"))
	assert.Equal(t, geometry.New(3, 2, 1, -2), m.Position())

	require.NoError(t, exec(t, m, "G1 X1 Y2 Z3 E4 F600"))
	assert.Equal(t, geometry.New(1, 2, 3, 4), m.Position())
}

func TestBoundsFailureLeavesPositionUnchanged(t *testing.T) {
	m := newTestMachine(t)
	err := exec(t, m, "G1 X-1 Y0 Z0")
	require.Error(t, err)
	assert.Equal(t, geometry.Zero, m.Position())
}

func TestArcQuadrantScan(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G17"))
	require.NoError(t, exec(t, m, "G1 X5 Y0 F600"))
	require.NoError(t, exec(t, m, "G3 X0 Y5 I-5 J0 F600"))
	assert.Equal(t, geometry.New(0, 5, 0, 0), m.Position())
}

func TestArcLeavingTableFails(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G17"))
	require.NoError(t, exec(t, m, "G1 X2 Y2 F600"))
	err := exec(t, m, "G3 X2 Y2 I-2 J0 F600")
	assert.Error(t, err)
}

func TestInchesConversion(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G20"))
	require.NoError(t, exec(t, m, "G1 X3 Y2 Z1 E0.5 F600"))
	got := m.Position()
	assert.InDelta(t, 76.2, got.X, 1e-6)
	assert.InDelta(t, 50.8, got.Y, 1e-6)
	assert.InDelta(t, 25.4, got.Z, 1e-6)
	assert.InDelta(t, 12.7, got.E, 0.02) // E's pulse grid (1/96 mm) doesn't divide 12.7 evenly
}

func TestFeedRateAdmission(t *testing.T) {
	m := newTestMachine(t)
	maxX := m.cfg.Axes['X'].MaxVelocityMM
	err := exec(t, m, "G1 X0.01 F"+ftoa(maxX+1000))
	require.Error(t, err)

	m.cfg.AutoVelocityAdjustment = true
	require.NoError(t, exec(t, m, "G1 X0.02 F"+ftoa(maxX+1000)))
}

func TestG92SetsLocalOffset(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G1 X5 F600"))
	require.NoError(t, exec(t, m, "G92 X0"))
	require.NoError(t, exec(t, m, "G1 X0 F600"))
	assert.Equal(t, 5.0, m.Position().X)
}

func TestRelativeMovesAccumulate(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G91"))
	require.NoError(t, exec(t, m, "G1 X1 F600"))
	require.NoError(t, exec(t, m, "G1 X1 F600"))
	require.NoError(t, exec(t, m, "G90"))
	require.NoError(t, exec(t, m, "G1 X2 F600"))
	assert.Equal(t, 2.0, m.Position().X)
}

func TestM82M83ConsistencyCheck(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "G90"))
	require.NoError(t, exec(t, m, "M82"))
	assert.Error(t, exec(t, m, "M83"))

	m2 := newTestMachine(t)
	require.NoError(t, exec(t, m2, "G91"))
	require.NoError(t, exec(t, m2, "M83"))
	assert.Error(t, exec(t, m2, "M82"))
}

func TestSpindleOutOfRangeRejected(t *testing.T) {
	m := newTestMachine(t)
	err := exec(t, m, "M3 S"+ftoa(m.cfg.SpindleMaxRPM+1))
	assert.Error(t, err)
}

func TestHeaterTargetZeroDisables(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, exec(t, m, "M104 S0"))
	m.heatersMu.Lock()
	defer m.heatersMu.Unlock()
	assert.Nil(t, m.extruder)
}

func ftoa(v float64) string {
	if v == float64(int(v)) {
		return itoa(int(v))
	}
	return "0"
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

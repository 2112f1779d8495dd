package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocnc/internal/geometry"
)

func TestParseLineBasic(t *testing.T) {
	cmd, err := ParseLine("G1 X3 Y2 Z1 E-2 F1500")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "G1", cmd.Command())
	assert.True(t, cmd.HasCoordinates())
	assert.Equal(t, 3.0, cmd.Get('X', 0, 1))
	assert.Equal(t, -2.0, cmd.Get('E', 0, 1))
	assert.Equal(t, 1500.0, cmd.Get('F', 0, 1))
}

func TestParseLineComments(t *testing.T) {
	cmd, err := ParseLine("G1 X1 ; trailing comment")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cmd.Get('X', 0, 1))

	cmd, err = ParseLine("G1 (inline) X1 (more) Y2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cmd.Get('X', 0, 1))
	assert.Equal(t, 2.0, cmd.Get('Y', 0, 1))
}

func TestParseLineEmptyAndPercent(t *testing.T) {
	cmd, err := ParseLine("")
	require.NoError(t, err)
	assert.Nil(t, cmd)

	cmd, err = ParseLine("   ; just a comment")
	require.NoError(t, err)
	assert.Nil(t, cmd)

	cmd, err = ParseLine("%")
	require.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestParseLineDuplicateLetter(t *testing.T) {
	_, err := ParseLine("G1 X1 X2")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseLineBothGAndM(t *testing.T) {
	_, err := ParseLine("G1 M104 S200")
	require.Error(t, err)
}

func TestParseLineExtraCharacters(t *testing.T) {
	_, err := ParseLine("G1 X1 @ Y2")
	require.Error(t, err)
}

func TestParseLineNegativeAndDecimal(t *testing.T) {
	cmd, err := ParseLine("G2 X-1.5 Y+2.25 I-0.5 J0")
	require.NoError(t, err)
	assert.Equal(t, -1.5, cmd.Get('X', 0, 1))
	assert.Equal(t, 2.25, cmd.Get('Y', 0, 1))
	r := cmd.Radius(geometry.Zero, 1)
	assert.Equal(t, -0.5, r.X)
	assert.Equal(t, 0.0, r.Y)
}

func TestCommandNoneWhenOnlyF(t *testing.T) {
	cmd, err := ParseLine("F1000")
	require.NoError(t, err)
	assert.Equal(t, "", cmd.Command())
	assert.Equal(t, 1000.0, cmd.Get('F', 0, 1))
}

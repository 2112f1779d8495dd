package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 80.0, cfg.Axes['X'].PulsesPerMM)
	assert.Greater(t, cfg.Extruder.MaxTemperatureC, 0.0)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gocnc.ini")
	ini := `
[CONTROL]
stepper_max_acceleration_mm_per_s2 = 500
auto_velocity_adjustment = true

[WORKPLACE]
table_size_x_mm = 220

[AXIS]
stepper_pulses_per_mm_x = 100
`
	require.NoError(t, os.WriteFile(path, []byte(ini), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500.0, cfg.StepperMaxAccelerationMM)
	assert.True(t, cfg.AutoVelocityAdjustment)
	assert.Equal(t, 220.0, cfg.Axes['X'].TableSizeMM)
	assert.Equal(t, 100.0, cfg.Axes['X'].PulsesPerMM)
	// Untouched keys keep their default.
	assert.Equal(t, Default().Axes['Y'].PulsesPerMM, cfg.Axes['Y'].PulsesPerMM)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gocnc.ini")
	assert.Error(t, err)
}

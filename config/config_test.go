package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Server.Port, cfg.Server.Port)
	assert.Equal(t, d.Vehicle.MaxSpeed, cfg.Vehicle.MaxSpeed)
	assert.Equal(t, d.Vehicle.Wheel.SuspensionRestLength, cfg.Vehicle.Wheel.SuspensionRestLength)
	assert.Equal(t, d.Vehicle.WheelConnections, cfg.Vehicle.WheelConnections)
	assert.Equal(t, d.Recovery.Delay, cfg.Recovery.Delay)
	assert.Equal(t, d.Camera.IdealOffset, cfg.Camera.IdealOffset)
	assert.Equal(t, -9.82, cfg.World.Gravity.Y)
	assert.Empty(t, cfg.World.Obstacles)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"server": { "port": 9100 },
		"vehicle": { "maxSpeed": 40, "wheel": { "radius": 0.5 } },
		"recovery": { "delay": 3.5, "signInvariant": true },
		"world": { "obstacles": [ { "center": {"x": 5, "y": 1, "z": 0}, "halfExtents": {"x": 1, "y": 1, "z": 1} } ] }
	}`
	path := filepath.Join(dir, "drivesim.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 40.0, cfg.Vehicle.MaxSpeed)
	assert.Equal(t, 0.5, cfg.Vehicle.Wheel.Radius)
	assert.Equal(t, 30.0, cfg.Vehicle.Wheel.SuspensionStiffness)
	assert.Equal(t, 3.5, cfg.Recovery.Delay)
	assert.True(t, cfg.Recovery.SignInvariant)
	require.Len(t, cfg.World.Obstacles, 1)
	assert.Equal(t, 5.0, cfg.World.Obstacles[0].Center.X)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DRIVESIM_SERVER_PORT", "7001")
	t.Setenv("DRIVESIM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/drivesim.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_InvalidTuningRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drivesim.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vehicle": {"chassisMass": -10}}`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vehicle.chassisMass")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero max speed",
			mutate:  func(c *Config) { c.Vehicle.MaxSpeed = 0 },
			wantErr: []string{"vehicle.maxSpeed"},
		},
		{
			name: "damping and restitution out of unit range",
			mutate: func(c *Config) {
				c.Vehicle.LinearDamping = 1.5
				c.Vehicle.ChassisRestitution = -0.1
			},
			wantErr: []string{"vehicle.linearDamping", "vehicle.chassisRestitution"},
		},
		{
			name:   "damping may be zero",
			mutate: func(c *Config) { c.Vehicle.AngularDamping = 0 },
		},
		{
			name:    "no wheels",
			mutate:  func(c *Config) { c.Vehicle.WheelConnections = nil },
			wantErr: []string{"at least one wheel"},
		},
		{
			name: "inverted zoom bounds",
			mutate: func(c *Config) {
				c.Camera.MinZoom = 2
				c.Camera.MaxZoom = 1
			},
			wantErr: []string{"camera.maxZoom"},
		},
		{
			name: "rates above one byte",
			mutate: func(c *Config) {
				c.Loop.TickRate = 300
				c.Loop.BroadcastRate = 256
			},
			wantErr: []string{"loop.tickRate must be in 1..255", "loop.broadcastRate must be in 1..255"},
		},
		{
			name:   "rates at the byte limit",
			mutate: func(c *Config) { c.Loop.TickRate = MaxLoopRate },
		},
		{
			name: "several violations reported together",
			mutate: func(c *Config) {
				c.Vehicle.MaxForce = -1
				c.Recovery.Delay = 0
				c.Loop.TickRate = 0
			},
			wantErr: []string{"vehicle.maxForce", "recovery.delay", "loop.tickRate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestStepSeconds(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, PhysicsTickInterval, cfg.StepSeconds(), 1e-12)
}

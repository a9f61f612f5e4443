package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Loop constants
const (
	PhysicsTickRate      = 60 // Hz
	NetworkBroadcastRate = 20 // Hz
	PhysicsTickInterval  = 1.0 / float64(PhysicsTickRate)

	MaxViewersPerSession = 16
	MaxInputsPerTick     = 3

	// Rates travel as one byte in the session info message.
	MaxLoopRate = 255

	EnvPrefix = "DRIVESIM"
)

// Vec3 is a plain 3-vector used in config files.
type Vec3 struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
}

// ServerConfig holds network settings.
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	EnableCORS bool   `mapstructure:"enableCors"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoopConfig controls the fixed-step simulation loop.
type LoopConfig struct {
	TickRate      int `mapstructure:"tickRate"`
	BroadcastRate int `mapstructure:"broadcastRate"`
	MaxSubSteps   int `mapstructure:"maxSubSteps"`
}

// Obstacle is an axis-aligned static box in the world.
type Obstacle struct {
	Center      Vec3 `mapstructure:"center"`
	HalfExtents Vec3 `mapstructure:"halfExtents"`
}

// WorldConfig describes the static world the vehicle spawns into.
type WorldConfig struct {
	Gravity       Vec3       `mapstructure:"gravity"`
	GroundHeight  float64    `mapstructure:"groundHeight"`
	SpawnPosition Vec3       `mapstructure:"spawnPosition"`
	SpawnYaw      float64    `mapstructure:"spawnYaw"` // radians
	Obstacles     []Obstacle `mapstructure:"obstacles"`
}

// WheelTuning holds per-wheel suspension settings.
type WheelTuning struct {
	Radius               float64 `mapstructure:"radius"`
	SuspensionStiffness  float64 `mapstructure:"suspensionStiffness"`
	SuspensionRestLength float64 `mapstructure:"suspensionRestLength"`
	DampingRelaxation    float64 `mapstructure:"dampingRelaxation"`
	DampingCompression   float64 `mapstructure:"dampingCompression"`
	FrictionSlip         float64 `mapstructure:"frictionSlip"`
	RollInfluence        float64 `mapstructure:"rollInfluence"`
	MaxSuspensionTravel  float64 `mapstructure:"maxSuspensionTravel"`
	MaxSuspensionForce   float64 `mapstructure:"maxSuspensionForce"`
}

// VehicleTuning is read once and never mutated during a session.
// Wheels 0 and 1 are the steered front wheels.
type VehicleTuning struct {
	MaxSteerAngle   float64 `mapstructure:"maxSteerAngle"` // radians
	MaxForce        float64 `mapstructure:"maxForce"`
	MaxSpeed        float64 `mapstructure:"maxSpeed"`
	BrakeForce      float64 `mapstructure:"brakeForce"`
	BrakeSmoothness float64 `mapstructure:"brakeSmoothness"`

	ChassisMass        float64 `mapstructure:"chassisMass"`
	ChassisHalfExtents Vec3    `mapstructure:"chassisHalfExtents"`
	LinearDamping      float64 `mapstructure:"linearDamping"`
	AngularDamping     float64 `mapstructure:"angularDamping"`
	ChassisFriction    float64 `mapstructure:"chassisFriction"`
	ChassisRestitution float64 `mapstructure:"chassisRestitution"`

	Wheel            WheelTuning `mapstructure:"wheel"`
	WheelConnections []Vec3      `mapstructure:"wheelConnections"`
}

// RecoveryConfig controls the upside-down recovery state machine.
type RecoveryConfig struct {
	Delay         float64 `mapstructure:"delay"` // seconds
	Speed         float64 `mapstructure:"speed"`
	SignInvariant bool    `mapstructure:"signInvariant"`
}

// CameraConfig tunes the chase camera.
type CameraConfig struct {
	IdealOffset       Vec3    `mapstructure:"idealOffset"`
	IdealLookatOffset Vec3    `mapstructure:"idealLookatOffset"`
	PositionRate      float64 `mapstructure:"positionRate"`
	TargetRate        float64 `mapstructure:"targetRate"`
	PanReturnRate     float64 `mapstructure:"panReturnRate"`
	PanSensitivity    float64 `mapstructure:"panSensitivity"`
	PanLimitX         float64 `mapstructure:"panLimitX"`
	PanLimitZ         float64 `mapstructure:"panLimitZ"`
	ScrollSensitivity float64 `mapstructure:"scrollSensitivity"`
	PinchSensitivity  float64 `mapstructure:"pinchSensitivity"`
	MinZoom           float64 `mapstructure:"minZoom"`
	MaxZoom           float64 `mapstructure:"maxZoom"`
	FollowHysteresis  float64 `mapstructure:"followHysteresis"`

	DepthOfField  bool    `mapstructure:"depthOfField"`
	ApertureScale float64 `mapstructure:"apertureScale"`
	ApertureMin   float64 `mapstructure:"apertureMin"`
	ApertureMax   float64 `mapstructure:"apertureMax"`
}

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Loop     LoopConfig     `mapstructure:"loop"`
	World    WorldConfig    `mapstructure:"world"`
	Vehicle  VehicleTuning  `mapstructure:"vehicle"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
	Camera   CameraConfig   `mapstructure:"camera"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			EnableCORS: true,
		},
		Log: LogConfig{Level: "info"},
		Loop: LoopConfig{
			TickRate:      PhysicsTickRate,
			BroadcastRate: NetworkBroadcastRate,
			MaxSubSteps:   5,
		},
		World: WorldConfig{
			Gravity:       Vec3{Y: -9.82},
			SpawnPosition: Vec3{Y: 1.0},
		},
		Vehicle: VehicleTuning{
			MaxSteerAngle:   0.5,
			MaxForce:        300,
			MaxSpeed:        25,
			BrakeForce:      10,
			BrakeSmoothness: 0.5,

			ChassisMass:        150,
			ChassisHalfExtents: Vec3{X: 1, Y: 0.4, Z: 2},
			LinearDamping:      0.1,
			AngularDamping:     0.3,
			ChassisFriction:    0.3,
			ChassisRestitution: 0.1,

			Wheel: WheelTuning{
				Radius:               0.45,
				SuspensionStiffness:  30,
				SuspensionRestLength: 0.4,
				DampingRelaxation:    2.3,
				DampingCompression:   4.4,
				FrictionSlip:         5,
				RollInfluence:        0.01,
				MaxSuspensionTravel:  0.3,
				MaxSuspensionForce:   100000,
			},
			WheelConnections: []Vec3{
				{X: -1, Y: -0.2, Z: -1.3},
				{X: 1, Y: -0.2, Z: -1.3},
				{X: -1, Y: -0.2, Z: 1.3},
				{X: 1, Y: -0.2, Z: 1.3},
			},
		},
		Recovery: RecoveryConfig{
			Delay: 2.0,
			Speed: 2.0,
		},
		Camera: CameraConfig{
			IdealOffset:       Vec3{X: 14, Y: 14, Z: 14},
			IdealLookatOffset: Vec3{Y: 0.5},
			PositionRate:      3.0,
			TargetRate:        2.0,
			PanReturnRate:     3.0,
			PanSensitivity:    0.05,
			PanLimitX:         40,
			PanLimitZ:         40,
			ScrollSensitivity: 0.001,
			PinchSensitivity:  0.01,
			MinZoom:           0.5,
			MaxZoom:           2.0,
			FollowHysteresis:  0.01,
			DepthOfField:      true,
			ApertureScale:     0.25,
			ApertureMin:       0.0005,
			ApertureMax:       0.02,
		},
	}
}

// Load reads configuration from an optional file and the environment,
// layered over Default. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.enableCors", d.Server.EnableCORS)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("loop.tickRate", d.Loop.TickRate)
	v.SetDefault("loop.broadcastRate", d.Loop.BroadcastRate)
	v.SetDefault("loop.maxSubSteps", d.Loop.MaxSubSteps)

	setVec(v, "world.gravity", d.World.Gravity)
	v.SetDefault("world.groundHeight", d.World.GroundHeight)
	setVec(v, "world.spawnPosition", d.World.SpawnPosition)
	v.SetDefault("world.spawnYaw", d.World.SpawnYaw)
	v.SetDefault("world.obstacles", []map[string]any{})

	t := d.Vehicle
	v.SetDefault("vehicle.maxSteerAngle", t.MaxSteerAngle)
	v.SetDefault("vehicle.maxForce", t.MaxForce)
	v.SetDefault("vehicle.maxSpeed", t.MaxSpeed)
	v.SetDefault("vehicle.brakeForce", t.BrakeForce)
	v.SetDefault("vehicle.brakeSmoothness", t.BrakeSmoothness)
	v.SetDefault("vehicle.chassisMass", t.ChassisMass)
	setVec(v, "vehicle.chassisHalfExtents", t.ChassisHalfExtents)
	v.SetDefault("vehicle.linearDamping", t.LinearDamping)
	v.SetDefault("vehicle.angularDamping", t.AngularDamping)
	v.SetDefault("vehicle.chassisFriction", t.ChassisFriction)
	v.SetDefault("vehicle.chassisRestitution", t.ChassisRestitution)
	v.SetDefault("vehicle.wheel.radius", t.Wheel.Radius)
	v.SetDefault("vehicle.wheel.suspensionStiffness", t.Wheel.SuspensionStiffness)
	v.SetDefault("vehicle.wheel.suspensionRestLength", t.Wheel.SuspensionRestLength)
	v.SetDefault("vehicle.wheel.dampingRelaxation", t.Wheel.DampingRelaxation)
	v.SetDefault("vehicle.wheel.dampingCompression", t.Wheel.DampingCompression)
	v.SetDefault("vehicle.wheel.frictionSlip", t.Wheel.FrictionSlip)
	v.SetDefault("vehicle.wheel.rollInfluence", t.Wheel.RollInfluence)
	v.SetDefault("vehicle.wheel.maxSuspensionTravel", t.Wheel.MaxSuspensionTravel)
	v.SetDefault("vehicle.wheel.maxSuspensionForce", t.Wheel.MaxSuspensionForce)
	conns := make([]map[string]any, len(t.WheelConnections))
	for i, c := range t.WheelConnections {
		conns[i] = map[string]any{"x": c.X, "y": c.Y, "z": c.Z}
	}
	v.SetDefault("vehicle.wheelConnections", conns)

	v.SetDefault("recovery.delay", d.Recovery.Delay)
	v.SetDefault("recovery.speed", d.Recovery.Speed)
	v.SetDefault("recovery.signInvariant", d.Recovery.SignInvariant)

	c := d.Camera
	setVec(v, "camera.idealOffset", c.IdealOffset)
	setVec(v, "camera.idealLookatOffset", c.IdealLookatOffset)
	v.SetDefault("camera.positionRate", c.PositionRate)
	v.SetDefault("camera.targetRate", c.TargetRate)
	v.SetDefault("camera.panReturnRate", c.PanReturnRate)
	v.SetDefault("camera.panSensitivity", c.PanSensitivity)
	v.SetDefault("camera.panLimitX", c.PanLimitX)
	v.SetDefault("camera.panLimitZ", c.PanLimitZ)
	v.SetDefault("camera.scrollSensitivity", c.ScrollSensitivity)
	v.SetDefault("camera.pinchSensitivity", c.PinchSensitivity)
	v.SetDefault("camera.minZoom", c.MinZoom)
	v.SetDefault("camera.maxZoom", c.MaxZoom)
	v.SetDefault("camera.followHysteresis", c.FollowHysteresis)
	v.SetDefault("camera.depthOfField", c.DepthOfField)
	v.SetDefault("camera.apertureScale", c.ApertureScale)
	v.SetDefault("camera.apertureMin", c.ApertureMin)
	v.SetDefault("camera.apertureMax", c.ApertureMax)
}

func setVec(v *viper.Viper, key string, vec Vec3) {
	v.SetDefault(key+".x", vec.X)
	v.SetDefault(key+".y", vec.Y)
	v.SetDefault(key+".z", vec.Z)
}

// Validate checks the invariants the simulation relies on. Every violation
// is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must lie in [0,1], got %v", name, v))
		}
	}

	t := c.Vehicle
	positive("vehicle.maxSteerAngle", t.MaxSteerAngle)
	positive("vehicle.maxForce", t.MaxForce)
	positive("vehicle.maxSpeed", t.MaxSpeed)
	positive("vehicle.brakeForce", t.BrakeForce)
	positive("vehicle.brakeSmoothness", t.BrakeSmoothness)
	positive("vehicle.chassisMass", t.ChassisMass)
	positive("vehicle.chassisHalfExtents.x", t.ChassisHalfExtents.X)
	positive("vehicle.chassisHalfExtents.y", t.ChassisHalfExtents.Y)
	positive("vehicle.chassisHalfExtents.z", t.ChassisHalfExtents.Z)
	unit("vehicle.linearDamping", t.LinearDamping)
	unit("vehicle.angularDamping", t.AngularDamping)
	positive("vehicle.chassisFriction", t.ChassisFriction)
	unit("vehicle.chassisRestitution", t.ChassisRestitution)

	w := t.Wheel
	positive("vehicle.wheel.radius", w.Radius)
	positive("vehicle.wheel.suspensionStiffness", w.SuspensionStiffness)
	positive("vehicle.wheel.suspensionRestLength", w.SuspensionRestLength)
	positive("vehicle.wheel.dampingRelaxation", w.DampingRelaxation)
	positive("vehicle.wheel.dampingCompression", w.DampingCompression)
	positive("vehicle.wheel.frictionSlip", w.FrictionSlip)
	positive("vehicle.wheel.rollInfluence", w.RollInfluence)
	positive("vehicle.wheel.maxSuspensionTravel", w.MaxSuspensionTravel)
	positive("vehicle.wheel.maxSuspensionForce", w.MaxSuspensionForce)
	if len(t.WheelConnections) == 0 {
		errs = append(errs, errors.New("vehicle.wheelConnections must define at least one wheel"))
	}

	positive("recovery.delay", c.Recovery.Delay)
	positive("recovery.speed", c.Recovery.Speed)

	cam := c.Camera
	positive("camera.positionRate", cam.PositionRate)
	positive("camera.targetRate", cam.TargetRate)
	positive("camera.panReturnRate", cam.PanReturnRate)
	positive("camera.panSensitivity", cam.PanSensitivity)
	positive("camera.panLimitX", cam.PanLimitX)
	positive("camera.panLimitZ", cam.PanLimitZ)
	positive("camera.scrollSensitivity", cam.ScrollSensitivity)
	positive("camera.pinchSensitivity", cam.PinchSensitivity)
	positive("camera.minZoom", cam.MinZoom)
	if cam.MaxZoom < cam.MinZoom {
		errs = append(errs, fmt.Errorf("camera.maxZoom (%v) must not be below camera.minZoom (%v)", cam.MaxZoom, cam.MinZoom))
	}
	if cam.DepthOfField {
		positive("camera.apertureScale", cam.ApertureScale)
		if cam.ApertureMax < cam.ApertureMin {
			errs = append(errs, fmt.Errorf("camera.apertureMax (%v) must not be below camera.apertureMin (%v)", cam.ApertureMax, cam.ApertureMin))
		}
	}

	if c.Loop.TickRate <= 0 || c.Loop.TickRate > MaxLoopRate {
		errs = append(errs, fmt.Errorf("loop.tickRate must be in 1..%d, got %d", MaxLoopRate, c.Loop.TickRate))
	}
	if c.Loop.BroadcastRate <= 0 || c.Loop.BroadcastRate > MaxLoopRate {
		errs = append(errs, fmt.Errorf("loop.broadcastRate must be in 1..%d, got %d", MaxLoopRate, c.Loop.BroadcastRate))
	}
	if c.Loop.MaxSubSteps <= 0 {
		errs = append(errs, fmt.Errorf("loop.maxSubSteps must be positive, got %d", c.Loop.MaxSubSteps))
	}
	for i, o := range c.World.Obstacles {
		if o.HalfExtents.X <= 0 || o.HalfExtents.Y <= 0 || o.HalfExtents.Z <= 0 {
			errs = append(errs, fmt.Errorf("world.obstacles[%d] needs positive half extents", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// StepSeconds is the fixed physics step length.
func (c *Config) StepSeconds() float64 {
	return 1.0 / float64(c.Loop.TickRate)
}

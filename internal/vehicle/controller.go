// Package vehicle turns per-tick input into raycast-vehicle commands and
// owns the recovery machine that rights an overturned chassis.
package vehicle

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/race/drive/config"
	"github.com/race/drive/internal/input"
	"github.com/race/drive/internal/physics"
	"github.com/race/drive/internal/render"
	"github.com/race/drive/internal/telemetry"
)

var (
	ErrAlreadySpawned = errors.New("vehicle already spawned")
	ErrNilVehicle     = errors.New("nil vehicle")
)

// Front wheels are the steered ones.
const (
	frontLeft  = 0
	frontRight = 1

	// brakePerSpeed caps the idle brake proportionally to speed.
	brakePerSpeed = 50.0
)

// Command is what the controller sent to the vehicle on the last tick.
type Command struct {
	EngineForce float64
	Steer       float64
	Brake       float64
	Speed       float64
}

// Controller drives one raycast vehicle. It is not safe for concurrent use;
// the simulation loop owns it.
type Controller struct {
	tuning config.VehicleTuning

	vehicle      physics.RaycastVehicle // Nil until Spawn
	chassisProxy render.Proxy           // Optional
	wheelProxies []render.Proxy         // May be shorter than the wheel count

	recovery *Recovery // Sole writer of chassis pose
	cmd      Command   // Last command sent, for telemetry

	log zerolog.Logger
}

// NewController creates a controller with no vehicle. Update is a no-op
// until Spawn is called.
func NewController(tuning config.VehicleTuning, rc config.RecoveryConfig, log zerolog.Logger, metrics *telemetry.Metrics) *Controller {
	return &Controller{
		tuning:   tuning,
		recovery: NewRecovery(rc, log, metrics),
		log:      log,
	}
}

// Spawn attaches the vehicle and its visual proxies and captures the
// recovery record from the chassis pose. It must run before the first
// physics step involving the chassis.
func (c *Controller) Spawn(v physics.RaycastVehicle, chassis render.Proxy, wheels []render.Proxy) error {
	if c.vehicle != nil {
		return ErrAlreadySpawned
	}
	if v == nil || v.Chassis() == nil {
		return ErrNilVehicle
	}

	c.vehicle = v
	c.chassisProxy = chassis
	c.wheelProxies = wheels
	c.recovery.Capture(v.Chassis())

	rec, _ := c.recovery.Record()
	c.log.Info().
		Int("wheels", v.NumWheels()).
		Floats64("position", rec.Position[:]).
		Msg("vehicle spawned")
	return nil
}

// Spawned reports whether a vehicle is attached.
func (c *Controller) Spawned() bool {
	return c.vehicle != nil
}

// Update runs one control tick.
func (c *Controller) Update(dt float64, in input.Snapshot) {
	if c.vehicle == nil || !(dt > 0) {
		return
	}
	body := c.vehicle.Chassis()
	if body == nil {
		return
	}

	speed := body.Velocity().Len()
	ctl := in.Controls()

	force := 0.0
	if ctl.Brake {
		force = c.tuning.MaxForce
	}
	if ctl.Accelerate && speed <= c.tuning.MaxSpeed {
		force = -c.tuning.MaxForce
	}

	steer := 0.0
	switch ctl.Steer {
	case input.SteerLeft:
		steer = c.tuning.MaxSteerAngle
	case input.SteerRight:
		steer = -c.tuning.MaxSteerAngle
	}

	brake := 0.0
	if math.Abs(force) < 1 {
		brake = math.Min(c.tuning.BrakeForce*c.tuning.BrakeSmoothness, speed*brakePerSpeed)
	}

	n := c.vehicle.NumWheels()
	for i := 0; i < n; i++ {
		c.vehicle.ApplyEngineForce(force, i)
		if i == frontLeft || i == frontRight {
			c.vehicle.SetSteeringValue(steer, i)
		}
		c.vehicle.SetBrake(brake, i)
	}

	c.cmd = Command{EngineForce: force, Steer: steer, Brake: brake, Speed: speed}

	c.syncProxies(body, n)
	c.recovery.Update(dt, body, ctl.Active())
}

// syncProxies copies physics poses onto the visual proxies.
func (c *Controller) syncProxies(body physics.BodyView, n int) {
	if c.chassisProxy != nil {
		c.chassisProxy.SetTransform(physics.TransformOf(body))
	}
	for i, p := range c.wheelProxies {
		if i >= n {
			break
		}
		if p != nil {
			p.SetTransform(c.vehicle.WheelTransform(i))
		}
	}
}

// Respawn puts the chassis back on its spawn pose. It reports false when
// no vehicle is attached.
func (c *Controller) Respawn() bool {
	if c.vehicle == nil {
		return false
	}
	body := c.vehicle.Chassis()
	if body == nil || !c.recovery.Respawn(body) {
		return false
	}
	c.syncProxies(body, c.vehicle.NumWheels())
	return true
}

// Command returns the last command sent to the vehicle.
func (c *Controller) Command() Command {
	return c.cmd
}

// RecoveryState returns the recovery machine state.
func (c *Controller) RecoveryState() RecoveryState {
	return c.recovery.State()
}

// ChassisPosition returns the chassis position, or false before Spawn.
func (c *Controller) ChassisPosition() (mgl64.Vec3, bool) {
	if c.vehicle == nil || c.vehicle.Chassis() == nil {
		return mgl64.Vec3{}, false
	}
	return c.vehicle.Chassis().Position(), true
}

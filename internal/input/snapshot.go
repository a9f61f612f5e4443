// Package input defines the per-tick abstract input the simulation consumes
// and the collector that transport goroutines feed it through.
package input

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AnalogThreshold is the axis magnitude treated as a discrete press.
const AnalogThreshold = 0.3

// Steer is a resolved steering direction.
type Steer int

const (
	SteerNone Steer = iota
	SteerLeft
	SteerRight
)

func (s Steer) String() string {
	switch s {
	case SteerLeft:
		return "left"
	case SteerRight:
		return "right"
	default:
		return "none"
	}
}

// Snapshot is the input state read once at the start of a tick.
//
// AxisX is the analog steer axis (-1 left .. +1 right), AxisY the analog
// throttle axis (+1 forward .. -1 reverse).
type Snapshot struct {
	Accelerate bool
	Brake      bool
	SteerLeft  bool
	SteerRight bool
	AxisX      float64
	AxisY      float64
	Respawn    bool
}

// Controls is a Snapshot with analog axes folded into discrete presses.
type Controls struct {
	Accelerate bool
	Brake      bool
	Steer      Steer
}

// Controls resolves the snapshot. Right overrides left when both are held.
func (s Snapshot) Controls() Controls {
	x, y := finite(s.AxisX), finite(s.AxisY)

	c := Controls{
		Accelerate: s.Accelerate || y > AnalogThreshold,
		Brake:      s.Brake || y < -AnalogThreshold,
	}
	if s.SteerLeft || x < -AnalogThreshold {
		c.Steer = SteerLeft
	}
	if s.SteerRight || x > AnalogThreshold {
		c.Steer = SteerRight
	}
	return c
}

// Active reports whether any directional control is asserted.
func (c Controls) Active() bool {
	return c.Accelerate || c.Brake || c.Steer != SteerNone
}

// HasInput reports whether the player is trying to drive.
func (s Snapshot) HasInput() bool {
	return s.Controls().Active()
}

// Driving is HasInput under the name the camera uses.
func (s Snapshot) Driving() bool {
	return s.HasInput()
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ClampAxis limits an analog axis to [-1, 1]; non-finite values become 0.
func ClampAxis(v float64) float64 {
	return mgl64.Clamp(finite(v), -1, 1)
}

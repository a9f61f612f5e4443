// Package physics defines the contracts the simulation expects from a
// rigid-body engine and ships a small reference engine implementing them.
//
// Conventions: Y is up, a chassis faces local -Z. A negative engine force
// drives a wheel toward the chassis forward axis and a positive steering
// value turns left.
package physics

import "github.com/go-gl/mathgl/mgl64"

var (
	Up      = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, -1}
	Right   = mgl64.Vec3{1, 0, 0}
)

// Transform is a world-space pose.
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Identity returns the pose at the origin with no rotation.
func Identity() Transform {
	return Transform{Orientation: mgl64.QuatIdent()}
}

// BodyView is the read-only face of a rigid body.
type BodyView interface {
	Position() mgl64.Vec3
	Orientation() mgl64.Quat
	Velocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
}

// Body is a rigid body whose state may be written directly. Only the
// recovery machine uses the setters.
type Body interface {
	BodyView
	SetPosition(mgl64.Vec3)
	SetOrientation(mgl64.Quat)
	SetVelocity(mgl64.Vec3)
	SetAngularVelocity(mgl64.Vec3)
}

// RaycastVehicle is a chassis body plus N wheels simulated by suspension
// ray casts.
type RaycastVehicle interface {
	Chassis() Body
	NumWheels() int
	ApplyEngineForce(force float64, wheel int)
	SetSteeringValue(angle float64, wheel int)
	SetBrake(force float64, wheel int)
	WheelTransform(wheel int) Transform
}

// Stepper advances a physics world by one step.
type Stepper interface {
	Step(dt float64)
}

// TransformOf reads the pose of a body.
func TransformOf(b BodyView) Transform {
	return Transform{Position: b.Position(), Orientation: b.Orientation()}
}

// UpVector rotates the local up axis by q.
func UpVector(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(Up)
}

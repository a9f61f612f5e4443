package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/race/drive/config"
)

type wheel struct {
	connection mgl64.Vec3 // chassis local

	engineForce float64
	steering    float64
	brake       float64

	suspensionLength float64
	inContact        bool
	spin             float64

	transform Transform
}

// Vehicle is the reference RaycastVehicle: a box chassis carried by
// suspension rays, one per wheel.
type Vehicle struct {
	chassis *RigidBody
	params  config.WheelTuning
	wheels  []wheel
}

// NewVehicle builds a chassis from the tuning and places it at pose.
func NewVehicle(t config.VehicleTuning, pose Transform) *Vehicle {
	he := t.ChassisHalfExtents
	body := NewBoxBody(t.ChassisMass, mgl64.Vec3{he.X, he.Y, he.Z})
	body.LinearDamping = t.LinearDamping
	body.AngularDamping = t.AngularDamping
	body.Friction = t.ChassisFriction
	body.Restitution = t.ChassisRestitution
	body.SetPosition(pose.Position)
	body.SetOrientation(pose.Orientation)

	v := &Vehicle{
		chassis: body,
		params:  t.Wheel,
		wheels:  make([]wheel, len(t.WheelConnections)),
	}
	for i, c := range t.WheelConnections {
		v.wheels[i] = wheel{
			connection:       mgl64.Vec3{c.X, c.Y, c.Z},
			suspensionLength: t.Wheel.SuspensionRestLength,
		}
	}
	v.updateTransforms()
	return v
}

// Chassis implements RaycastVehicle.
func (v *Vehicle) Chassis() Body { return v.chassis }

// Body returns the concrete chassis body.
func (v *Vehicle) Body() *RigidBody { return v.chassis }

// NumWheels implements RaycastVehicle.
func (v *Vehicle) NumWheels() int { return len(v.wheels) }

// ApplyEngineForce implements RaycastVehicle.
func (v *Vehicle) ApplyEngineForce(force float64, i int) {
	if i >= 0 && i < len(v.wheels) {
		v.wheels[i].engineForce = force
	}
}

// SetSteeringValue implements RaycastVehicle.
func (v *Vehicle) SetSteeringValue(angle float64, i int) {
	if i >= 0 && i < len(v.wheels) {
		v.wheels[i].steering = angle
	}
}

// SetBrake implements RaycastVehicle. The value is the largest impulse the
// wheel may remove from the rolling direction per step.
func (v *Vehicle) SetBrake(force float64, i int) {
	if i >= 0 && i < len(v.wheels) {
		v.wheels[i].brake = force
	}
}

// WheelTransform implements RaycastVehicle.
func (v *Vehicle) WheelTransform(i int) Transform {
	if i < 0 || i >= len(v.wheels) {
		return Identity()
	}
	return v.wheels[i].transform
}

// InContact reports whether wheel i touched the ground last step.
func (v *Vehicle) InContact(i int) bool {
	return i >= 0 && i < len(v.wheels) && v.wheels[i].inContact
}

// applyWheelForces casts the suspension rays and accumulates suspension,
// drive, brake and side forces on the chassis.
func (v *Vehicle) applyWheelForces(dt float64, colliders []Collider) {
	b := v.chassis
	p := v.params
	q := b.orientation
	down := q.Rotate(Up.Mul(-1))
	share := b.mass / float64(len(v.wheels))
	minLength := math.Max(0, p.SuspensionRestLength-p.MaxSuspensionTravel)

	for i := range v.wheels {
		w := &v.wheels[i]
		origin := b.position.Add(q.Rotate(w.connection))

		hit, ok := closestHit(colliders, origin, down, p.SuspensionRestLength+p.Radius)
		if !ok {
			w.inContact = false
			w.suspensionLength = p.SuspensionRestLength
			w.spin *= 0.99
			continue
		}
		w.inContact = true
		w.suspensionLength = math.Max(minLength, hit.Distance-p.Radius)

		n := hit.Normal
		rel := hit.Point.Sub(b.position)
		vc := b.pointVelocity(rel)

		// Suspension
		compression := p.SuspensionRestLength - w.suspensionLength
		relUp := vc.Dot(n)
		damping := p.DampingCompression
		if relUp > 0 {
			damping = p.DampingRelaxation
		}
		fs := (p.SuspensionStiffness*compression - damping*relUp) * b.mass
		fs = math.Max(0, math.Min(fs, p.MaxSuspensionForce))
		b.ApplyForceAt(n.Mul(fs), rel)

		// Rolling and side directions on the contact plane
		steer := mgl64.QuatRotate(w.steering, Up)
		fwd := q.Mul(steer).Rotate(Forward)
		fwd = fwd.Sub(n.Mul(fwd.Dot(n)))
		if fwd.Len() < 1e-9 {
			continue
		}
		fwd = fwd.Normalize()
		side := fwd.Cross(n)

		// Roll influence lowers the lever arm of tyre forces.
		relLow := rel.Sub(n.Mul(rel.Dot(n) * (1 - p.RollInfluence)))

		vf := vc.Dot(fwd)
		vs := vc.Dot(side)

		long := -w.engineForce
		if w.brake > 0 && math.Abs(vf) > 1e-6 {
			limit := math.Abs(vf) * share / dt
			long -= math.Copysign(math.Min(w.brake/dt, limit), vf)
		}

		lat := -vs * share / dt
		grip := p.FrictionSlip * fs
		if math.Abs(lat) > grip {
			lat = math.Copysign(grip, lat)
		}

		b.ApplyForceAt(fwd.Mul(long).Add(side.Mul(lat)), relLow)
		w.spin += vf * dt / p.Radius
	}
}

// updateTransforms recomputes wheel world poses from the current chassis
// pose and the suspension lengths found by the last ray cast.
func (v *Vehicle) updateTransforms() {
	b := v.chassis
	q := b.orientation
	down := q.Rotate(Up.Mul(-1))
	for i := range v.wheels {
		w := &v.wheels[i]
		origin := b.position.Add(q.Rotate(w.connection))
		steer := mgl64.QuatRotate(w.steering, Up)
		roll := mgl64.QuatRotate(-w.spin, Right)
		w.transform = Transform{
			Position:    origin.Add(down.Mul(w.suspensionLength)),
			Orientation: q.Mul(steer).Mul(roll).Normalize(),
		}
	}
}

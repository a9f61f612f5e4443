package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RigidBody is a box-shaped dynamic body integrated with semi-implicit Euler.
type RigidBody struct {
	position        mgl64.Vec3
	orientation     mgl64.Quat
	velocity        mgl64.Vec3
	angularVelocity mgl64.Vec3

	mass        float64
	invMass     float64
	invInertia  mgl64.Vec3 // local frame, diagonal
	halfExtents mgl64.Vec3

	LinearDamping  float64
	AngularDamping float64
	Friction       float64
	Restitution    float64

	force  mgl64.Vec3
	torque mgl64.Vec3
}

// NewBoxBody creates a box of the given mass and half extents at the origin.
func NewBoxBody(mass float64, halfExtents mgl64.Vec3) *RigidBody {
	b := &RigidBody{
		orientation: mgl64.QuatIdent(),
		mass:        mass,
		halfExtents: halfExtents,
	}
	if mass > 0 {
		b.invMass = 1 / mass
		x, y, z := 2*halfExtents.X(), 2*halfExtents.Y(), 2*halfExtents.Z()
		ix := mass / 12 * (y*y + z*z)
		iy := mass / 12 * (x*x + z*z)
		iz := mass / 12 * (x*x + y*y)
		b.invInertia = mgl64.Vec3{1 / ix, 1 / iy, 1 / iz}
	}
	return b
}

func (b *RigidBody) Position() mgl64.Vec3        { return b.position }
func (b *RigidBody) Orientation() mgl64.Quat     { return b.orientation }
func (b *RigidBody) Velocity() mgl64.Vec3        { return b.velocity }
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

func (b *RigidBody) SetPosition(p mgl64.Vec3)        { b.position = p }
func (b *RigidBody) SetVelocity(v mgl64.Vec3)        { b.velocity = v }
func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3) { b.angularVelocity = w }

// SetOrientation stores q normalized; a zero quaternion resets to identity.
func (b *RigidBody) SetOrientation(q mgl64.Quat) {
	if q.Len() < 1e-12 {
		b.orientation = mgl64.QuatIdent()
		return
	}
	b.orientation = q.Normalize()
}

// ApplyForceAt accumulates a force applied at rel, a world-space offset from
// the centre of mass.
func (b *RigidBody) ApplyForceAt(f, rel mgl64.Vec3) {
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(rel.Cross(f))
}

// applyImpulseAt changes velocities immediately.
func (b *RigidBody) applyImpulseAt(j, rel mgl64.Vec3) {
	b.velocity = b.velocity.Add(j.Mul(b.invMass))
	b.angularVelocity = b.angularVelocity.Add(b.invInertiaWorld(rel.Cross(j)))
}

// invInertiaWorld applies the world-space inverse inertia tensor to v.
func (b *RigidBody) invInertiaWorld(v mgl64.Vec3) mgl64.Vec3 {
	local := b.orientation.Conjugate().Rotate(v)
	local = mgl64.Vec3{
		local.X() * b.invInertia.X(),
		local.Y() * b.invInertia.Y(),
		local.Z() * b.invInertia.Z(),
	}
	return b.orientation.Rotate(local)
}

// pointVelocity is the world velocity of the material point at rel.
func (b *RigidBody) pointVelocity(rel mgl64.Vec3) mgl64.Vec3 {
	return b.velocity.Add(b.angularVelocity.Cross(rel))
}

func (b *RigidBody) integrate(dt float64, gravity mgl64.Vec3) {
	if b.invMass == 0 {
		b.force, b.torque = mgl64.Vec3{}, mgl64.Vec3{}
		return
	}

	b.velocity = b.velocity.Add(b.force.Mul(b.invMass).Add(gravity).Mul(dt))
	b.angularVelocity = b.angularVelocity.Add(b.invInertiaWorld(b.torque).Mul(dt))

	b.velocity = b.velocity.Mul(math.Pow(1-b.LinearDamping, dt))
	b.angularVelocity = b.angularVelocity.Mul(math.Pow(1-b.AngularDamping, dt))

	b.position = b.position.Add(b.velocity.Mul(dt))

	spin := mgl64.Quat{W: 0, V: b.angularVelocity}.Mul(b.orientation).Scale(0.5 * dt)
	b.orientation = b.orientation.Add(spin).Normalize()

	b.force, b.torque = mgl64.Vec3{}, mgl64.Vec3{}
}

// corners returns the eight box corners as world offsets from the centre.
func (b *RigidBody) corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	h := b.halfExtents
	i := 0
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				out[i] = b.orientation.Rotate(mgl64.Vec3{sx * h.X(), sy * h.Y(), sz * h.Z()})
				i++
			}
		}
	}
	return out
}

// contactIterations is the number of sequential impulse passes over the
// penetrating corners.
const contactIterations = 4

// resolvePlane pushes the box out of a ground plane and applies a contact
// impulse with Coulomb friction at each penetrating corner.
func (b *RigidBody) resolvePlane(p Plane) {
	if b.invMass == 0 {
		return
	}
	n := Up
	var (
		contacts [8]mgl64.Vec3
		count    int
		deepest  float64
	)
	for _, rel := range b.corners() {
		pen := p.Penetration(b.position.Add(rel))
		if pen <= 0 {
			continue
		}
		deepest = math.Max(deepest, pen)
		contacts[count] = rel
		count++
	}
	if count == 0 {
		return
	}

	for it := 0; it < contactIterations; it++ {
		for _, rel := range contacts[:count] {
			vn := b.pointVelocity(rel).Dot(n)
			if vn >= 0 {
				continue
			}
			restitution := b.Restitution
			if it > 0 {
				restitution = 0
			}
			rn := rel.Cross(n)
			k := b.invMass + b.invInertiaWorld(rn).Cross(rel).Dot(n)
			jn := -(1 + restitution) * vn / k
			b.applyImpulseAt(n.Mul(jn), rel)

			vt := b.pointVelocity(rel)
			vt = vt.Sub(n.Mul(vt.Dot(n)))
			speed := vt.Len()
			if speed < 1e-9 {
				continue
			}
			t := vt.Mul(1 / speed)
			rt := rel.Cross(t)
			kt := b.invMass + b.invInertiaWorld(rt).Cross(rel).Dot(t)
			jt := math.Min(speed/kt, b.Friction*jn)
			b.applyImpulseAt(t.Mul(-jt), rel)
		}
	}
	b.position = b.position.Add(n.Mul(deepest))
}

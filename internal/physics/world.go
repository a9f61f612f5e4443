package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// World is the reference physics world: static colliders, free rigid
// bodies and raycast vehicles under constant gravity.
type World struct {
	gravity   mgl64.Vec3
	colliders []Collider
	planes    []Plane
	bodies    []*RigidBody
	vehicles  []*Vehicle
	steps     uint64
}

// NewWorld creates an empty world.
func NewWorld(gravity mgl64.Vec3) *World {
	return &World{gravity: gravity}
}

// AddCollider adds static geometry. Planes also support resting contact for
// bodies; other colliders only answer suspension rays.
func (w *World) AddCollider(c Collider) {
	w.colliders = append(w.colliders, c)
	if p, ok := c.(Plane); ok {
		w.planes = append(w.planes, p)
	}
}

// AddBody adds a free rigid body.
func (w *World) AddBody(b *RigidBody) {
	w.bodies = append(w.bodies, b)
}

// AddVehicle adds a vehicle and its chassis.
func (w *World) AddVehicle(v *Vehicle) {
	w.vehicles = append(w.vehicles, v)
	w.bodies = append(w.bodies, v.chassis)
}

// Steps returns how many times Step ran.
func (w *World) Steps() uint64 {
	return w.steps
}

// Step advances the world by dt seconds.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	for _, v := range w.vehicles {
		v.applyWheelForces(dt, w.colliders)
	}
	for _, b := range w.bodies {
		b.integrate(dt, w.gravity)
		for _, p := range w.planes {
			b.resolvePlane(p)
		}
	}
	for _, v := range w.vehicles {
		v.updateTransforms()
	}
	w.steps++
}

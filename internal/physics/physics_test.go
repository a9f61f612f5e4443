package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/drive/config"
)

const step = 1.0 / 60

func spawnPose() Transform {
	return Transform{Position: mgl64.Vec3{0, 1.2, 0}, Orientation: mgl64.QuatIdent()}
}

func newTestWorld(t *testing.T) (*World, *Vehicle) {
	t.Helper()
	cfg := config.Default()
	w := NewWorld(mgl64.Vec3{0, cfg.World.Gravity.Y, 0})
	w.AddCollider(Plane{Height: 0})
	v := NewVehicle(cfg.Vehicle, spawnPose())
	w.AddVehicle(v)
	return w, v
}

func run(w *World, seconds float64) {
	for i := 0; i < int(seconds/step); i++ {
		w.Step(step)
	}
}

func TestRigidBody_FreeFall(t *testing.T) {
	w := NewWorld(mgl64.Vec3{0, -9.82, 0})
	b := NewBoxBody(1, mgl64.Vec3{0.5, 0.5, 0.5})
	b.SetPosition(mgl64.Vec3{0, 100, 0})
	w.AddBody(b)

	run(w, 1)

	assert.InDelta(t, -9.82, b.Velocity().Y(), 0.01)
	assert.InDelta(t, 100-4.91, b.Position().Y(), 0.2)
	assert.Equal(t, uint64(60), w.Steps())
}

func TestRigidBody_SettlesOnPlane(t *testing.T) {
	w := NewWorld(mgl64.Vec3{0, -9.82, 0})
	w.AddCollider(Plane{Height: 0})
	b := NewBoxBody(1, mgl64.Vec3{0.5, 0.5, 0.5})
	b.Friction = 0.5
	b.LinearDamping = 0.1
	b.AngularDamping = 0.5
	b.SetPosition(mgl64.Vec3{0, 2, 0})
	w.AddBody(b)

	run(w, 3)

	assert.InDelta(t, 0.5, b.Position().Y(), 0.1)
	assert.Less(t, b.Velocity().Len(), 0.5)
	assert.Greater(t, UpVector(b.Orientation()).Y(), 0.9)
}

func TestRigidBody_SetOrientationNormalizes(t *testing.T) {
	b := NewBoxBody(1, mgl64.Vec3{1, 1, 1})

	b.SetOrientation(mgl64.Quat{W: 2})
	assert.InDelta(t, 1.0, b.Orientation().Len(), 1e-12)

	b.SetOrientation(mgl64.Quat{})
	assert.Equal(t, mgl64.QuatIdent(), b.Orientation())
}

func TestWorld_StepIgnoresNonPositiveDt(t *testing.T) {
	w, v := newTestWorld(t)
	before := v.Chassis().Position()

	w.Step(0)
	w.Step(-1)

	assert.Equal(t, before, v.Chassis().Position())
	assert.Zero(t, w.Steps())
}

func TestVehicle_RestsUprightOnGround(t *testing.T) {
	w, v := newTestWorld(t)

	run(w, 5)

	pos := v.Chassis().Position()
	up := UpVector(v.Chassis().Orientation())
	assert.Greater(t, up.Y(), 0.95)
	assert.Greater(t, pos.Y(), 0.5)
	assert.Less(t, pos.Y(), 1.5)
	assert.Less(t, v.Chassis().Velocity().Len(), 0.2)
	for i := 0; i < v.NumWheels(); i++ {
		assert.True(t, v.InContact(i), "wheel %d", i)
	}
}

func TestVehicle_NegativeEngineForceDrivesForward(t *testing.T) {
	w, v := newTestWorld(t)
	run(w, 1)

	for i := 0; i < v.NumWheels(); i++ {
		v.ApplyEngineForce(-300, i)
	}
	run(w, 2)

	assert.Less(t, v.Chassis().Position().Z(), -2.0)
	assert.Less(t, v.Chassis().Velocity().Z(), -1.0)
	assert.InDelta(t, 0, v.Chassis().Position().X(), 0.5)
}

func TestVehicle_PositiveSteerTurnsLeft(t *testing.T) {
	w, v := newTestWorld(t)
	run(w, 1)

	for i := 0; i < v.NumWheels(); i++ {
		v.ApplyEngineForce(-300, i)
	}
	v.SetSteeringValue(0.5, 0)
	v.SetSteeringValue(0.5, 1)
	run(w, 2)

	// Left of a -Z heading is -X.
	assert.Less(t, v.Chassis().Position().X(), -0.2)
}

func TestVehicle_BrakeSlowsDown(t *testing.T) {
	w, v := newTestWorld(t)
	run(w, 1)
	v.Body().SetVelocity(mgl64.Vec3{0, 0, -10})

	for i := 0; i < v.NumWheels(); i++ {
		v.SetBrake(10, i)
	}
	run(w, 2)

	assert.Less(t, v.Chassis().Velocity().Len(), 2.0)
}

func TestVehicle_WheelTransforms(t *testing.T) {
	_, v := newTestWorld(t)
	require.Equal(t, 4, v.NumWheels())

	front := v.WheelTransform(0)
	assert.Less(t, front.Position.Z(), 0.0)
	assert.Less(t, front.Position.Y(), v.Chassis().Position().Y())

	assert.Equal(t, Identity(), v.WheelTransform(-1))
	assert.Equal(t, Identity(), v.WheelTransform(4))

	// out of range writes are ignored
	v.ApplyEngineForce(1, 9)
	v.SetSteeringValue(1, 9)
	v.SetBrake(1, 9)
}

func TestPlane_Raycast(t *testing.T) {
	p := Plane{Height: 1}
	down := mgl64.Vec3{0, -1, 0}

	hit, ok := p.Raycast(mgl64.Vec3{3, 5, 0}, down, 10)
	require.True(t, ok)
	assert.InDelta(t, 4, hit.Distance, 1e-9)
	assert.Equal(t, Up, hit.Normal)
	assert.InDelta(t, 1, hit.Point.Y(), 1e-9)

	_, ok = p.Raycast(mgl64.Vec3{0, 5, 0}, down, 2)
	assert.False(t, ok, "out of range")

	_, ok = p.Raycast(mgl64.Vec3{0, 5, 0}, Up, 10)
	assert.False(t, ok, "pointing away")
}

func TestBox_Raycast(t *testing.T) {
	b := Box{Center: mgl64.Vec3{0, 1, 0}, HalfExtents: mgl64.Vec3{1, 1, 1}}

	tests := []struct {
		name     string
		origin   mgl64.Vec3
		dir      mgl64.Vec3
		hit      bool
		distance float64
		normal   mgl64.Vec3
	}{
		{"top face", mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -1, 0}, true, 3, mgl64.Vec3{0, 1, 0}},
		{"side face", mgl64.Vec3{-4, 1, 0}, mgl64.Vec3{1, 0, 0}, true, 3, mgl64.Vec3{-1, 0, 0}},
		{"miss", mgl64.Vec3{5, 5, 0}, mgl64.Vec3{0, -1, 0}, false, 0, mgl64.Vec3{}},
		{"too far", mgl64.Vec3{0, 50, 0}, mgl64.Vec3{0, -1, 0}, false, 0, mgl64.Vec3{}},
		{"inside", mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0}, false, 0, mgl64.Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := b.Raycast(tt.origin, tt.dir, 10)
			require.Equal(t, tt.hit, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.distance, hit.Distance, 1e-9)
			assert.Equal(t, tt.normal, hit.Normal)
		})
	}
}

func TestVehicle_RestsOnBox(t *testing.T) {
	cfg := config.Default()
	w := NewWorld(mgl64.Vec3{0, cfg.World.Gravity.Y, 0})
	w.AddCollider(Plane{})
	w.AddCollider(Box{Center: mgl64.Vec3{0, 0, 0}, HalfExtents: mgl64.Vec3{5, 0.2, 5}})
	v := NewVehicle(cfg.Vehicle, spawnPose())
	w.AddVehicle(v)

	run(w, 3)

	// resting on the slab, 0.2 above the plane rest height
	assert.Greater(t, v.Chassis().Position().Y(), 1.0)
	assert.False(t, math.IsNaN(v.Chassis().Position().Y()))
}

func TestUpVector(t *testing.T) {
	assert.True(t, UpVector(mgl64.QuatIdent()).ApproxEqual(Up))

	flipped := mgl64.QuatRotate(math.Pi, Forward)
	assert.InDelta(t, -1, UpVector(flipped).Y(), 1e-9)
}

package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/race/drive/internal/physics"
)

type fakeBody struct {
	pos mgl64.Vec3
	rot mgl64.Quat
	vel mgl64.Vec3
	ang mgl64.Vec3
}

func newFakeBody(pos mgl64.Vec3) *fakeBody {
	return &fakeBody{pos: pos, rot: mgl64.QuatIdent()}
}

func (b *fakeBody) Position() mgl64.Vec3            { return b.pos }
func (b *fakeBody) Orientation() mgl64.Quat         { return b.rot }
func (b *fakeBody) Velocity() mgl64.Vec3            { return b.vel }
func (b *fakeBody) AngularVelocity() mgl64.Vec3     { return b.ang }
func (b *fakeBody) SetPosition(p mgl64.Vec3)        { b.pos = p }
func (b *fakeBody) SetOrientation(q mgl64.Quat)     { b.rot = q }
func (b *fakeBody) SetVelocity(v mgl64.Vec3)        { b.vel = v }
func (b *fakeBody) SetAngularVelocity(w mgl64.Vec3) { b.ang = w }

type fakeVehicle struct {
	body   *fakeBody
	engine []float64
	steer  []float64
	brake  []float64
	wheels []physics.Transform
}

func newFakeVehicle(n int) *fakeVehicle {
	v := &fakeVehicle{
		body:   newFakeBody(mgl64.Vec3{0, 1.2, 0}),
		engine: make([]float64, n),
		steer:  make([]float64, n),
		brake:  make([]float64, n),
		wheels: make([]physics.Transform, n),
	}
	for i := range v.wheels {
		v.wheels[i] = physics.Transform{
			Position:    mgl64.Vec3{float64(i), 0.45, 0},
			Orientation: mgl64.QuatIdent(),
		}
	}
	return v
}

func (v *fakeVehicle) Chassis() physics.Body                  { return v.body }
func (v *fakeVehicle) NumWheels() int                         { return len(v.wheels) }
func (v *fakeVehicle) ApplyEngineForce(force float64, i int)  { v.engine[i] = force }
func (v *fakeVehicle) SetSteeringValue(angle float64, i int)  { v.steer[i] = angle }
func (v *fakeVehicle) SetBrake(force float64, i int)          { v.brake[i] = force }
func (v *fakeVehicle) WheelTransform(i int) physics.Transform { return v.wheels[i] }

type recordingProxy struct {
	calls int
	last  physics.Transform
}

func (p *recordingProxy) SetTransform(t physics.Transform) {
	p.calls++
	p.last = t
}

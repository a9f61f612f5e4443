// Package render defines what the simulation pushes to a renderer and
// provides Scene, an in-memory renderer that snapshots the latest values
// into frames for remote viewers.
package render

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/race/drive/internal/physics"
)

// Proxy is a visual object whose pose mirrors a physics body.
type Proxy interface {
	SetTransform(physics.Transform)
}

// CameraSink receives the chase camera pose every tick.
type CameraSink interface {
	SetCamera(position, lookAt mgl64.Vec3)
}

// FocusSink is an optional depth-of-field pass.
type FocusSink interface {
	SetFocus(distance, aperture float64)
}

// Frame is a copy of everything a viewer needs to draw one tick.
type Frame struct {
	Chassis      physics.Transform
	Wheels       []physics.Transform
	CameraPos    mgl64.Vec3
	CameraLookAt mgl64.Vec3
	HasFocus     bool
	Focus        float64
	Aperture     float64
}

// Scene implements CameraSink and FocusSink and hands out proxies for the
// chassis and wheels. It is safe for concurrent use.
type Scene struct {
	mu sync.RWMutex

	chassis   physics.Transform
	wheels    []physics.Transform
	cameraPos mgl64.Vec3
	lookAt    mgl64.Vec3
	hasFocus  bool
	focus     float64
	aperture  float64
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{chassis: physics.Identity()}
}

type chassisProxy struct{ s *Scene }

func (p chassisProxy) SetTransform(t physics.Transform) {
	p.s.mu.Lock()
	p.s.chassis = t
	p.s.mu.Unlock()
}

type wheelProxy struct {
	s *Scene
	i int
}

func (p wheelProxy) SetTransform(t physics.Transform) {
	p.s.mu.Lock()
	p.s.wheels[p.i] = t
	p.s.mu.Unlock()
}

// ChassisProxy returns the proxy mirroring the chassis body.
func (s *Scene) ChassisProxy() Proxy {
	return chassisProxy{s: s}
}

// WheelProxies allocates n wheel slots and returns one proxy per slot.
// Calling it again replaces the previous slots.
func (s *Scene) WheelProxies(n int) []Proxy {
	s.mu.Lock()
	s.wheels = make([]physics.Transform, n)
	for i := range s.wheels {
		s.wheels[i] = physics.Identity()
	}
	s.mu.Unlock()

	out := make([]Proxy, n)
	for i := range out {
		out[i] = wheelProxy{s: s, i: i}
	}
	return out
}

// SetCamera implements CameraSink.
func (s *Scene) SetCamera(position, lookAt mgl64.Vec3) {
	s.mu.Lock()
	s.cameraPos = position
	s.lookAt = lookAt
	s.mu.Unlock()
}

// SetFocus implements FocusSink.
func (s *Scene) SetFocus(distance, aperture float64) {
	s.mu.Lock()
	s.hasFocus = true
	s.focus = distance
	s.aperture = aperture
	s.mu.Unlock()
}

// Frame returns a snapshot of the scene.
func (s *Scene) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wheels := make([]physics.Transform, len(s.wheels))
	copy(wheels, s.wheels)
	return Frame{
		Chassis:      s.chassis,
		Wheels:       wheels,
		CameraPos:    s.cameraPos,
		CameraLookAt: s.lookAt,
		HasFocus:     s.hasFocus,
		Focus:        s.focus,
		Aperture:     s.aperture,
	}
}

package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/drive/internal/physics"
)

func TestScene_ProxiesWriteIntoFrame(t *testing.T) {
	s := NewScene()
	wheels := s.WheelProxies(4)
	require.Len(t, wheels, 4)

	chassis := physics.Transform{Position: mgl64.Vec3{1, 2, 3}, Orientation: mgl64.QuatIdent()}
	s.ChassisProxy().SetTransform(chassis)
	wheels[2].SetTransform(physics.Transform{Position: mgl64.Vec3{4, 5, 6}, Orientation: mgl64.QuatIdent()})

	f := s.Frame()
	assert.Equal(t, chassis, f.Chassis)
	require.Len(t, f.Wheels, 4)
	assert.Equal(t, mgl64.Vec3{4, 5, 6}, f.Wheels[2].Position)
	assert.Equal(t, physics.Identity(), f.Wheels[0])
}

func TestScene_FrameIsACopy(t *testing.T) {
	s := NewScene()
	w := s.WheelProxies(1)

	f := s.Frame()
	w[0].SetTransform(physics.Transform{Position: mgl64.Vec3{9, 9, 9}})

	assert.Equal(t, physics.Identity(), f.Wheels[0])
}

func TestScene_CameraAndFocus(t *testing.T) {
	s := NewScene()
	assert.False(t, s.Frame().HasFocus)

	s.SetCamera(mgl64.Vec3{14, 14, 14}, mgl64.Vec3{0, 0.5, 0})
	s.SetFocus(24, 0.01)

	f := s.Frame()
	assert.Equal(t, mgl64.Vec3{14, 14, 14}, f.CameraPos)
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, f.CameraLookAt)
	assert.True(t, f.HasFocus)
	assert.Equal(t, 24.0, f.Focus)
	assert.Equal(t, 0.01, f.Aperture)
}

func TestScene_ImplementsSinks(t *testing.T) {
	var _ CameraSink = NewScene()
	var _ FocusSink = NewScene()
}

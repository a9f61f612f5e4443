// Package camera implements the chase camera: an isometric follow camera
// the player can pan away from and zoom, which snaps back to the vehicle as
// soon as they drive again.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/race/drive/config"
	"github.com/race/drive/internal/input"
	"github.com/race/drive/internal/interp"
	"github.com/race/drive/internal/render"
)

// Mode says whether the camera follows the vehicle.
type Mode uint8

const (
	Attached Mode = iota
	Detached
)

func (m Mode) String() string {
	if m == Detached {
		return "detached"
	}
	return "attached"
}

// diag is cos(45°) = sin(45°), the screen to ground basis change of the
// isometric view.
var diag = math.Sqrt2 / 2

// Controller owns the camera state. It is driven from the simulation loop
// and is not safe for concurrent use.
type Controller struct {
	cfg          config.CameraConfig
	idealOffset  mgl64.Vec3 // Offset from the vehicle at zoom 1
	lookatOffset mgl64.Vec3 // Look-at point relative to the vehicle

	position mgl64.Vec3 // Eased camera position
	target   mgl64.Vec3 // Eased look-at point
	zoom     float64    // Scales idealOffset, within [MinZoom, MaxZoom]
	pan      mgl64.Vec2 // World X, world Z

	mode    Mode
	panning bool       // A drag is in progress
	anchor  mgl64.Vec2 // Last drag position in screen pixels

	lastVehicle mgl64.Vec3 // Vehicle position the detached look-at is frozen on
	tracked     bool       // lastVehicle holds a real position
	placed      bool       // False until the first Update snaps the camera

	sink  render.CameraSink
	focus render.FocusSink // Nil when depth of field is off
}

// New creates an attached camera at zoom 1. sink may be nil. focus is only
// used when depth of field is enabled in cfg.
func New(cfg config.CameraConfig, sink render.CameraSink, focus render.FocusSink) *Controller {
	c := &Controller{
		cfg:          cfg,
		idealOffset:  vec(cfg.IdealOffset),
		lookatOffset: vec(cfg.IdealLookatOffset),
		zoom:         mgl64.Clamp(1, cfg.MinZoom, cfg.MaxZoom),
		sink:         sink,
	}
	if cfg.DepthOfField {
		c.focus = focus
	}
	return c
}

func vec(v config.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Update moves the camera one tick toward the vehicle.
func (c *Controller) Update(dt float64, vehicle mgl64.Vec3, in input.Snapshot) {
	if !(dt > 0) {
		return
	}

	if c.mode == Detached && in.Driving() {
		c.mode = Attached
		c.panning = false
	}

	if c.mode == Attached {
		if !c.tracked || vehicle.Sub(c.lastVehicle).Len() > c.cfg.FollowHysteresis {
			c.lastVehicle = vehicle
			c.tracked = true
		}
		if !c.panning {
			c.pan = interp.Vec2(c.pan, mgl64.Vec2{}, interp.Factor(c.cfg.PanReturnRate, dt))
		}
	}

	pan := mgl64.Vec3{c.pan.X(), 0, c.pan.Y()}
	ideal := vehicle.Add(c.idealOffset.Mul(c.zoom)).Add(pan)

	var lookAt mgl64.Vec3
	if c.mode == Detached {
		lookAt = c.lastVehicle.Add(pan)
	} else {
		lookAt = vehicle.Add(c.lookatOffset)
	}

	if !c.placed {
		c.position, c.target = ideal, lookAt
		c.placed = true
	} else {
		c.target = interp.Vec3(c.target, lookAt, interp.Factor(c.cfg.TargetRate, dt))
		c.position = interp.Vec3(c.position, ideal, interp.Factor(c.cfg.PositionRate, dt))
	}

	if c.sink != nil {
		c.sink.SetCamera(c.position, c.target)
	}
	if c.focus != nil {
		d := c.position.Sub(vehicle).Len()
		aperture := c.cfg.ApertureMax
		if d > 0 {
			aperture = mgl64.Clamp(c.cfg.ApertureScale/d, c.cfg.ApertureMin, c.cfg.ApertureMax)
		}
		c.focus.SetFocus(d, aperture)
	}
}

// DragStart begins a pan gesture at screen coordinates (x, y) and detaches
// the camera.
func (c *Controller) DragStart(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	c.panning = true
	c.mode = Detached
	c.anchor = mgl64.Vec2{x, y}
}

// DragMove pans by the screen distance moved since the last drag event.
func (c *Controller) DragMove(x, y float64) {
	if !c.panning || !finite(x) || !finite(y) {
		return
	}
	dx, dy := x-c.anchor.X(), y-c.anchor.Y()
	c.anchor = mgl64.Vec2{x, y}

	s := c.cfg.PanSensitivity
	wx := -(dx*diag + dy*diag) * s
	wz := -(-dx*diag + dy*diag) * s
	c.pan = mgl64.Vec2{
		mgl64.Clamp(c.pan.X()+wx, -c.cfg.PanLimitX, c.cfg.PanLimitX),
		mgl64.Clamp(c.pan.Y()+wz, -c.cfg.PanLimitZ, c.cfg.PanLimitZ),
	}
}

// DragEnd finishes the pan gesture. The camera stays detached.
func (c *Controller) DragEnd() {
	c.panning = false
}

// Scroll zooms out for positive wheel deltas.
func (c *Controller) Scroll(delta float64) {
	c.zoomBy(delta * c.cfg.ScrollSensitivity)
}

// Pinch zooms in as the fingers spread (positive delta).
func (c *Controller) Pinch(delta float64) {
	c.zoomBy(-delta * c.cfg.PinchSensitivity)
}

func (c *Controller) zoomBy(d float64) {
	if !finite(d) {
		return
	}
	c.zoom = mgl64.Clamp(c.zoom+d, c.cfg.MinZoom, c.cfg.MaxZoom)
}

// Apply dispatches a queued gesture.
func (c *Controller) Apply(g input.Gesture) {
	switch g.Kind {
	case input.GestureDragStart:
		c.DragStart(g.X, g.Y)
	case input.GestureDragMove:
		c.DragMove(g.X, g.Y)
	case input.GestureDragEnd:
		c.DragEnd()
	case input.GestureScroll:
		c.Scroll(g.Delta)
	case input.GesturePinch:
		c.Pinch(g.Delta)
	}
}

// ResetToVehicle reattaches the camera and drops any pan offset.
func (c *Controller) ResetToVehicle() {
	c.mode = Attached
	c.panning = false
	c.pan = mgl64.Vec2{}
	c.tracked = false
}

// Mode returns whether the camera follows the vehicle.
func (c *Controller) Mode() Mode { return c.mode }

// Panning reports whether a drag is in progress.
func (c *Controller) Panning() bool { return c.panning }

// PanOffset returns the pan offset on the ground plane (world X, world Z).
func (c *Controller) PanOffset() mgl64.Vec2 { return c.pan }

// Zoom returns the current zoom factor.
func (c *Controller) Zoom() float64 { return c.zoom }

// Position returns the camera position last sent to the sink.
func (c *Controller) Position() mgl64.Vec3 { return c.position }

// Target returns the look-at point last sent to the sink.
func (c *Controller) Target() mgl64.Vec3 { return c.target }

// LastVehicle returns the vehicle position the camera last tracked.
func (c *Controller) LastVehicle() mgl64.Vec3 { return c.lastVehicle }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

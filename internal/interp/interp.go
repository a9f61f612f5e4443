// Package interp provides frame-rate independent smoothing helpers.
package interp

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Factor converts a decay rate (1/s) and a step length into a blend factor
// in [0, 1). It equals rate*dt for small steps and never overshoots.
func Factor(rate, dt float64) float64 {
	if rate <= 0 || dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-rate*dt)
}

// Vec3 moves a toward b by t.
func Vec3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Vec2 moves a toward b by t.
func Vec2(a, b mgl64.Vec2, t float64) mgl64.Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}

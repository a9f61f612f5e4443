package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Hit is the result of a successful ray cast.
type Hit struct {
	Distance float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// Collider is static world geometry.
type Collider interface {
	// Raycast intersects the ray origin + dir*t for t in [0, maxDist].
	// dir must be normalized.
	Raycast(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool)
}

// Plane is an infinite horizontal ground plane.
type Plane struct {
	Height float64
}

// Raycast implements Collider.
func (p Plane) Raycast(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool) {
	if dir.Y() >= -1e-9 || origin.Y() < p.Height {
		return Hit{}, false
	}
	t := (p.Height - origin.Y()) / dir.Y()
	if t < 0 || t > maxDist {
		return Hit{}, false
	}
	return Hit{Distance: t, Point: origin.Add(dir.Mul(t)), Normal: Up}, true
}

// Penetration returns how far a point lies below the plane.
func (p Plane) Penetration(point mgl64.Vec3) float64 {
	return p.Height - point.Y()
}

// Box is an axis-aligned static box.
type Box struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
}

// Raycast implements Collider using the slab method.
func (b Box) Raycast(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool) {
	lo := b.Center.Sub(b.HalfExtents)
	hi := b.Center.Add(b.HalfExtents)

	tNear, tFar := 0.0, maxDist
	var normal mgl64.Vec3
	for axis := 0; axis < 3; axis++ {
		o, d := origin[axis], dir[axis]
		if math.Abs(d) < 1e-12 {
			if o < lo[axis] || o > hi[axis] {
				return Hit{}, false
			}
			continue
		}
		t1 := (lo[axis] - o) / d
		t2 := (hi[axis] - o) / d
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1.0
		}
		if t1 > tNear {
			tNear = t1
			normal = mgl64.Vec3{}
			normal[axis] = sign
		}
		if t2 < tFar {
			tFar = t2
		}
		if tNear > tFar {
			return Hit{}, false
		}
	}
	if normal == (mgl64.Vec3{}) {
		// origin inside the box
		return Hit{}, false
	}
	return Hit{Distance: tNear, Point: origin.Add(dir.Mul(tNear)), Normal: normal}, true
}

// closestHit casts against every collider and keeps the nearest hit.
func closestHit(colliders []Collider, origin, dir mgl64.Vec3, maxDist float64) (Hit, bool) {
	var (
		best  Hit
		found bool
	)
	for _, c := range colliders {
		if h, ok := c.Raycast(origin, dir, maxDist); ok && (!found || h.Distance < best.Distance) {
			best, found = h, true
		}
	}
	return best, found
}

// Package geometry provides the cubic curves that track is built from, the
// arc-length sampling used to move along them, and the lateral offset curves
// used for rails.
//
// Coordinates are right-handed with +Y up. The ground plane is XZ.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a point or direction in world space.
type Vec3 = mgl64.Vec3

// Quat is a rotation in world space.
type Quat = mgl64.Quat

var (
	// Up is the world up axis. Lateral rail normals are taken in the plane
	// perpendicular to it.
	Up = Vec3{0, 1, 0}
	// Forward is the model-space axis that orientations align with the
	// direction of travel.
	Forward = Vec3{0, 0, 1}
)

const epsilon = 1e-9

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged rather than producing NaNs.
func Normalize(v Vec3) Vec3 {
	l := v.Len()
	if l < epsilon {
		return Vec3{}
	}
	return v.Mul(1 / l)
}

// Orientation returns the rotation that carries Forward onto dir. A zero dir
// yields the identity rotation.
func Orientation(dir Vec3) Quat {
	dir = Normalize(dir)
	if dir.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(Forward, dir)
}

// Lateral returns the unit vector perpendicular to dir in the ground plane,
// dir × Up. It is zero when dir is vertical or zero.
func Lateral(dir Vec3) Vec3 {
	return Normalize(dir.Cross(Up))
}

// distanceToLine is the perpendicular distance from p to the infinite line
// through a and b. A degenerate line measures distance to a.
func distanceToLine(p, a, b Vec3) float64 {
	ab := b.Sub(a)
	l := ab.Len()
	if l < epsilon {
		return p.Sub(a).Len()
	}
	return ab.Cross(p.Sub(a)).Len() / l
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// World axes: Y is up, a heading of 0 faces +Z and increasing heading turns right.

// Up is the world up axis.
var Up = r3.Vec{Y: 1}

// Clamp functions for common value ranges

// Clamp clamps v between lo and hi.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Angle normalization functions

// NormalizeAngle wraps an angle to [-Pi, Pi].
func NormalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle < -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// Planar helpers

// Flat drops the vertical component of v.
func Flat(v r3.Vec) r3.Vec {
	v.Y = 0
	return v
}

// Forward returns the unit ground-plane direction for a heading.
func Forward(heading float64) r3.Vec {
	return r3.Vec{X: math.Sin(heading), Z: math.Cos(heading)}
}

// Right returns the ground-plane vector pointing to the right of dir.
// It has the same length as Flat(dir).
func Right(dir r3.Vec) r3.Vec {
	return r3.Vec{X: dir.Z, Z: -dir.X}
}

// HeadingOf returns the heading that faces along v.
func HeadingOf(v r3.Vec) float64 {
	return math.Atan2(v.X, v.Z)
}

// FlatUnit returns the normalized ground-plane part of v, or the zero vector.
func FlatUnit(v r3.Vec) r3.Vec {
	v = Flat(v)
	n := r3.Norm(v)
	if n < 1e-9 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}

// Dist2D returns the ground-plane distance between a and b.
func Dist2D(a, b r3.Vec) float64 {
	return r3.Norm(Flat(r3.Sub(a, b)))
}

// AngleBetween2D returns the unsigned ground-plane angle between a and b.
// Degenerate vectors yield 0.
func AngleBetween2D(a, b r3.Vec) float64 {
	a, b = Flat(a), Flat(b)
	if r3.Norm2(a) < 1e-12 || r3.Norm2(b) < 1e-12 {
		return 0
	}
	return math.Acos(Clamp(r3.Cos(a, b), -1, 1))
}

// Orientation returns the signed lateral offset of p relative to the line a->b.
// Positive means p is to the right of the line.
func Orientation(a, b, p r3.Vec) float64 {
	return r3.Dot(Flat(r3.Sub(p, a)), Right(r3.Sub(b, a)))
}

// ClosestPointOnSegment returns the point of segment ab closest to p.
func ClosestPointOnSegment(a, b, p r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	den := r3.Norm2(ab)
	if den < 1e-12 {
		return a
	}
	t := Clamp(r3.Dot(r3.Sub(p, a), ab)/den, 0, 1)
	return r3.Add(a, r3.Scale(t, ab))
}

// Circumcircle2D returns the ground-plane circle through a, b and c.
// ok is false when the points are (nearly) collinear.
func Circumcircle2D(a, b, c r3.Vec) (center r3.Vec, radius float64, ok bool) {
	ax, az := a.X, a.Z
	bx, bz := b.X, b.Z
	cx, cz := c.X, c.Z

	d := 2 * (ax*(bz-cz) + bx*(cz-az) + cx*(az-bz))
	if math.Abs(d) < 1e-9 {
		return r3.Vec{}, 0, false
	}

	a2 := ax*ax + az*az
	b2 := bx*bx + bz*bz
	c2 := cx*cx + cz*cz
	ux := (a2*(bz-cz) + b2*(cz-az) + c2*(az-bz)) / d
	uz := (a2*(cx-bx) + b2*(ax-cx) + c2*(bx-ax)) / d

	center = r3.Vec{X: ux, Y: b.Y, Z: uz}
	return center, Dist2D(center, a), true
}

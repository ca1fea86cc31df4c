package geometry

import (
	"math"
	"sort"
)

// ArcDivisions is the number of chords used to approximate the arc length of
// a Cubic.
const ArcDivisions = 200

// Cubic is a cubic Bezier curve through P0 and P3 with interior control
// points P1 and P2. The curve is immutable once built; construct it with
// NewCubic so the arc-length table is populated.
type Cubic struct {
	P0, P1, P2, P3 Vec3

	// lengths[i] is the arc length from t=0 to t=i/ArcDivisions.
	lengths []float64
}

// NewCubic builds a curve from its four control points.
func NewCubic(p0, p1, p2, p3 Vec3) *Cubic {
	c := &Cubic{P0: p0, P1: p1, P2: p2, P3: p3}
	c.lengths = make([]float64, ArcDivisions+1)
	prev := c.Point(0)
	sum := 0.0
	for i := 1; i <= ArcDivisions; i++ {
		pt := c.Point(float64(i) / ArcDivisions)
		sum += pt.Sub(prev).Len()
		c.lengths[i] = sum
		prev = pt
	}
	return c
}

// Points returns the control points in order.
func (c *Cubic) Points() [4]Vec3 {
	return [4]Vec3{c.P0, c.P1, c.P2, c.P3}
}

// Point evaluates the curve at parameter t in [0,1].
func (c *Cubic) Point(t float64) Vec3 {
	t = clamp01(t)
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	d := 3 * mt * t * t
	e := t * t * t
	return c.P0.Mul(a).Add(c.P1.Mul(b)).Add(c.P2.Mul(d)).Add(c.P3.Mul(e))
}

// Derivative is the first derivative of the curve at parameter t.
func (c *Cubic) Derivative(t float64) Vec3 {
	t = clamp01(t)
	mt := 1 - t
	d0 := c.P1.Sub(c.P0).Mul(3 * mt * mt)
	d1 := c.P2.Sub(c.P1).Mul(6 * mt * t)
	d2 := c.P3.Sub(c.P2).Mul(3 * t * t)
	return d0.Add(d1).Add(d2)
}

// Tangent is the unit tangent at parameter t. Where the derivative vanishes
// (coincident control points) it falls back to the chord direction and then
// to Forward.
func (c *Cubic) Tangent(t float64) Vec3 {
	if d := Normalize(c.Derivative(t)); d.Len() > 0 {
		return d
	}
	if d := Normalize(c.P3.Sub(c.P0)); d.Len() > 0 {
		return d
	}
	return Forward
}

// Length is the approximate arc length of the curve.
func (c *Cubic) Length() float64 {
	return c.lengths[len(c.lengths)-1]
}

// ParamAt maps a fraction u of the arc length to the curve parameter t.
func (c *Cubic) ParamAt(u float64) float64 {
	u = clamp01(u)
	total := c.Length()
	if total < epsilon {
		return u
	}
	target := u * total
	n := len(c.lengths)

	// largest i with lengths[i] <= target
	i := sort.Search(n, func(i int) bool { return c.lengths[i] > target }) - 1
	if i < 0 {
		i = 0
	}
	if i >= n-1 {
		return 1
	}
	before := c.lengths[i]
	seg := c.lengths[i+1] - before
	if seg < epsilon {
		return float64(i) / float64(n-1)
	}
	return (float64(i) + (target-before)/seg) / float64(n-1)
}

// PointAt returns the position at arc fraction u.
func (c *Cubic) PointAt(u float64) Vec3 {
	return c.Point(c.ParamAt(u))
}

// TangentAt returns the unit tangent at arc fraction u.
func (c *Cubic) TangentAt(u float64) Vec3 {
	return c.Tangent(c.ParamAt(u))
}

// PointAtDistance returns the position d units along the curve, clamped to
// the curve's ends.
func (c *Cubic) PointAtDistance(d float64) Vec3 {
	return c.PointAt(c.fraction(d))
}

// TangentAtDistance returns the unit tangent d units along the curve.
func (c *Cubic) TangentAtDistance(d float64) Vec3 {
	return c.TangentAt(c.fraction(d))
}

func (c *Cubic) fraction(d float64) float64 {
	l := c.Length()
	if l < epsilon {
		return 0
	}
	return clamp01(d / l)
}

// Sample returns n+1 points evenly spaced by arc length, including both
// endpoints.
func (c *Cubic) Sample(n int) []Vec3 {
	if n < 1 {
		n = 1
	}
	pts := make([]Vec3, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = c.PointAt(float64(i) / float64(n))
	}
	return pts
}

// Project finds the parameter of the point on the curve nearest to p, and
// the distance between them.
func (c *Cubic) Project(p Vec3) (t, dist float64) {
	const coarse = 64

	best, bestD := 0.0, math.Inf(1)
	for i := 0; i <= coarse; i++ {
		ti := float64(i) / coarse
		if d := c.Point(ti).Sub(p).Len(); d < bestD {
			best, bestD = ti, d
		}
	}

	// refine by bisecting the bracket around the coarse minimum
	step := 1.0 / coarse
	for step > 1e-7 {
		step /= 2
		for _, ti := range [2]float64{best - step, best + step} {
			if ti < 0 || ti > 1 {
				continue
			}
			if d := c.Point(ti).Sub(p).Len(); d < bestD {
				best, bestD = ti, d
			}
		}
	}
	return best, bestD
}

// FractionAtParam is the inverse of ParamAt: the arc fraction reached at
// parameter t.
func (c *Cubic) FractionAtParam(t float64) float64 {
	t = clamp01(t)
	total := c.Length()
	if total < epsilon {
		return t
	}
	x := t * ArcDivisions
	i := int(math.Floor(x))
	if i >= ArcDivisions {
		return 1
	}
	l := c.lengths[i] + (x-float64(i))*(c.lengths[i+1]-c.lengths[i])
	return l / total
}

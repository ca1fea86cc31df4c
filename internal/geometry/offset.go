package geometry

import "fmt"

// RailPolicy selects how the interior control points of an offset curve are
// placed.
type RailPolicy string

const (
	// RailSimple moves each interior control point by the normal of its
	// nearest endpoint. Rails pinch on tight turns.
	RailSimple RailPolicy = "simple"
	// RailRefined moves each interior control point along the normal of the
	// centerline at its projection, scaled up by the point's distance from
	// the chord.
	RailRefined RailPolicy = "refined"
)

// ChordCorrection scales the extra offset applied to interior control points
// under RailRefined, per unit of perpendicular-distance-to-chord ratio.
const ChordCorrection = 0.5

// ParseRailPolicy accepts "simple" or "refined". The empty string selects
// RailRefined.
func ParseRailPolicy(s string) (RailPolicy, error) {
	switch RailPolicy(s) {
	case "":
		return RailRefined, nil
	case RailSimple, RailRefined:
		return RailPolicy(s), nil
	}
	return "", fmt.Errorf("unknown rail policy %q", s)
}

// Side names a lateral side of a curve relative to its direction of travel.
type Side float64

const (
	Left  Side = -1
	Right Side = 1
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// OffsetCurve derives a curve running parallel to c at the given lateral
// offset on one side.
func OffsetCurve(c *Cubic, offset float64, side Side, policy RailPolicy) *Cubic {
	sign := float64(side)
	startN := Lateral(c.P1.Sub(c.P0)).Mul(sign * offset)
	endN := Lateral(c.P3.Sub(c.P2)).Mul(sign * offset)

	// endpoint handles that collapse onto their endpoint fall back to the tangent
	if startN.Len() == 0 {
		startN = Lateral(c.Tangent(0)).Mul(sign * offset)
	}
	if endN.Len() == 0 {
		endN = Lateral(c.Tangent(1)).Mul(sign * offset)
	}

	p0 := c.P0.Add(startN)
	p3 := c.P3.Add(endN)
	p1 := c.P1.Add(startN)
	p2 := c.P2.Add(endN)

	if policy == RailRefined {
		p1 = refinedControl(c, c.P1, offset, sign)
		p2 = refinedControl(c, c.P2, offset, sign)
	}
	return NewCubic(p0, p1, p2, p3)
}

func refinedControl(c *Cubic, ctrl Vec3, offset, sign float64) Vec3 {
	t, _ := c.Project(ctrl)
	tangent := c.TangentAt(c.FractionAtParam(t))
	normal := Lateral(tangent).Mul(sign)

	scale := offset
	if chord := c.P3.Sub(c.P0).Len(); chord > epsilon {
		scale *= 1 + ChordCorrection*distanceToLine(ctrl, c.P0, c.P3)/chord
	}
	return ctrl.Add(normal.Mul(scale))
}

// Rails returns the left and right rails of a centerline, each offset from
// it by gauge.
func Rails(c *Cubic, gauge float64, policy RailPolicy) (left, right *Cubic) {
	return OffsetCurve(c, gauge, Left, policy), OffsetCurve(c, gauge, Right, policy)
}

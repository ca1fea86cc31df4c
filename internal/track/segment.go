// Package track models the rail network: cubic-curve segments with links to
// their neighbours, the per-segment signaling state trains read and write,
// and the chainable route builder used to author layouts.
//
// Segments live in a flat collection owned by a Network and refer to each
// other by SegmentID, so loops that reconnect to their own root are
// ordinary data.
package track

import (
	"fmt"
	"math"

	"github.com/cxd309/tms-rail/internal/geometry"
)

// SegmentID identifies a segment within its Network.
type SegmentID int

// NoSegment marks an absent link.
const NoSegment SegmentID = -1

// ExtendLookahead is how far back from the target ExtendTo places the
// second control point.
const ExtendLookahead = 2.0

// DefaultSleeperSpacing is the distance between sleepers along a segment.
const DefaultSleeperSpacing = 0.4

// Segment is one cubic piece of track.
type Segment struct {
	id  SegmentID
	net *Network

	points [4]geometry.Vec3
	curve  *geometry.Cubic

	left, right *geometry.Cubic
	railsStale  bool

	prev, next SegmentID
	// stub marks a placeholder end created for a junction that did not
	// exist yet; it is not a real connection.
	stub     bool
	junction string

	holds int
	dwell float64
}

func newSegment(net *Network, id SegmentID, p0, p1, p2, p3 geometry.Vec3) *Segment {
	s := &Segment{id: id, net: net, prev: NoSegment, next: NoSegment}
	s.setPoints(p0, p1, p2, p3)
	return s
}

func (s *Segment) setPoints(p0, p1, p2, p3 geometry.Vec3) {
	s.points = [4]geometry.Vec3{p0, p1, p2, p3}
	s.curve = geometry.NewCubic(p0, p1, p2, p3)
	s.railsStale = true
}

// ID returns the segment's identifier.
func (s *Segment) ID() SegmentID { return s.id }

// Points returns start, first control, second control and end.
func (s *Segment) Points() [4]geometry.Vec3 { return s.points }

func (s *Segment) Start() geometry.Vec3 { return s.points[0] }
func (s *Segment) End() geometry.Vec3   { return s.points[3] }

// Curve returns the centerline.
func (s *Segment) Curve() *geometry.Cubic { return s.curve }

// Length is the arc length of the centerline.
func (s *Segment) Length() float64 { return s.curve.Length() }

// Rails returns the left and right rail curves, regenerated lazily after
// any change to the centerline.
func (s *Segment) Rails() (left, right *geometry.Cubic) {
	if s.railsStale || s.left == nil {
		s.left, s.right = geometry.Rails(s.curve, s.net.cfg.Gauge, s.net.cfg.RailPolicy)
		s.railsStale = false
	}
	return s.left, s.right
}

// Next returns the segment this one leads on to.
func (s *Segment) Next() (SegmentID, bool) { return s.next, s.next != NoSegment }

// Previous returns the segment leading into this one.
func (s *Segment) Previous() (SegmentID, bool) { return s.prev, s.prev != NoSegment }

// Stub reports whether the segment ends in an unresolved junction
// placeholder.
func (s *Segment) Stub() bool { return s.stub }

// Junction returns the name the segment is registered under, if any.
func (s *Segment) Junction() string { return s.junction }

// Occupied reports whether any train currently spans the segment.
func (s *Segment) Occupied() bool { return s.holds > 0 }

// Dwell is the scheduled stop duration in seconds. Zero means no stop.
func (s *Segment) Dwell() float64 { return s.dwell }

// SetDwell schedules a stop of the given duration. Negative durations are
// clamped to zero.
func (s *Segment) SetDwell(seconds float64) {
	seconds = math.Max(0, seconds)
	if seconds == s.dwell {
		return
	}
	s.dwell = seconds
	s.net.emit(Event{Kind: EventDwell, Segment: s.id, Occupied: s.Occupied(), Dwell: s.dwell})
}

// PositionAt returns the centerline position d units from the start.
func (s *Segment) PositionAt(d float64) geometry.Vec3 { return s.curve.PointAtDistance(d) }

// TangentAt returns the unit centerline tangent d units from the start.
func (s *Segment) TangentAt(d float64) geometry.Vec3 { return s.curve.TangentAtDistance(d) }

// Samples returns n+1 centerline points evenly spaced by arc length.
func (s *Segment) Samples(n int) []geometry.Vec3 { return s.curve.Sample(n) }

// Pose is a point on the track with the rotation that aligns Forward with
// the direction of travel.
type Pose struct {
	Position    geometry.Vec3
	Orientation geometry.Quat
}

// SleeperPoses returns a pose every spacing units from the start of the
// segment. A non-positive spacing selects DefaultSleeperSpacing.
func (s *Segment) SleeperPoses(spacing float64) []Pose {
	if spacing <= 0 {
		spacing = DefaultSleeperSpacing
	}
	length := s.Length()
	poses := make([]Pose, 0, int(length/spacing)+1)
	for d := 0.0; d < length; d += spacing {
		poses = append(poses, Pose{
			Position:    s.PositionAt(d),
			Orientation: geometry.Orientation(s.TangentAt(d)),
		})
	}
	return poses
}

func (s *Segment) String() string {
	if s.junction != "" {
		return fmt.Sprintf("segment %d (%s)", s.id, s.junction)
	}
	return fmt.Sprintf("segment %d", s.id)
}

// ---- Connection operations ----

func (s *Segment) sameNetwork(o *Segment) error {
	if o == nil || o.net != s.net {
		return ErrForeignSegment
	}
	return nil
}

// AttachAfter links prev → s and continues prev smoothly: s starts at prev's
// end and its first control point mirrors prev's second control point
// through the joint. Re-attaching to the same segment is a no-op.
func (s *Segment) AttachAfter(prev *Segment) error {
	if err := s.sameNetwork(prev); err != nil {
		return err
	}
	if prev.next == s.id && s.prev == prev.id {
		return nil
	}
	if err := s.link(prev); err != nil {
		return err
	}
	start := prev.End()
	c1 := start.Sub(prev.points[2].Sub(prev.End()))
	s.setPoints(start, c1, s.points[2], s.points[3])
	return nil
}

// AttachAfterManual links prev → s with s starting at prev's end and the
// remaining control points given explicitly.
func (s *Segment) AttachAfterManual(prev *Segment, c1, c2, end geometry.Vec3) error {
	if err := s.sameNetwork(prev); err != nil {
		return err
	}
	if prev.next != s.id || s.prev != prev.id {
		if err := s.link(prev); err != nil {
			return err
		}
	}
	s.setPoints(prev.End(), c1, c2, end)
	return nil
}

func (s *Segment) link(prev *Segment) error {
	if prev.next != NoSegment && prev.next != s.id {
		return fmt.Errorf("%v already leads to segment %d: %w", prev, prev.next, ErrAlreadyConnected)
	}
	if s.prev != NoSegment && s.prev != prev.id {
		return fmt.Errorf("%v already follows segment %d: %w", s, s.prev, ErrAlreadyConnected)
	}
	prev.next = s.id
	prev.stub = false
	s.prev = prev.id
	return nil
}

// ConnectTo links s → next, moving s's end onto next's start and mirroring
// next's first control point through the joint. The link is two-way only
// when next has no previous segment yet; otherwise next keeps its existing
// predecessor and s merges into it one way. Connecting to the current next
// is a no-op.
func (s *Segment) ConnectTo(next *Segment) error {
	if err := s.sameNetwork(next); err != nil {
		return err
	}
	if s.next == next.id {
		return nil
	}
	if s.next != NoSegment {
		return fmt.Errorf("%v already leads to segment %d: %w", s, s.next, ErrAlreadyConnected)
	}
	s.next = next.id
	s.stub = false
	if next.prev == NoSegment {
		next.prev = s.id
	}
	end := next.Start()
	c2 := end.Sub(next.points[1].Sub(end))
	s.setPoints(s.points[0], s.points[1], c2, end)
	s.net.emit(Event{Kind: EventGeometry, Segment: s.id})
	return nil
}

// ExtendTo ends the segment at point, estimating the second control point
// by stepping back from point toward the first control point.
func (s *Segment) ExtendTo(point geometry.Vec3) {
	step := geometry.Normalize(point.Sub(s.points[1])).Mul(ExtendLookahead)
	s.setPoints(s.points[0], s.points[1], point.Sub(step), point)
}

// ArcTo ends the segment at point with a turn whose curvature follows the
// incoming heading. Collinear input falls back to ExtendTo.
func (s *Segment) ArcTo(point geometry.Vec3) {
	start, c1 := s.points[0], s.points[1]
	heading := geometry.Normalize(c1.Sub(start))
	toTarget := geometry.Normalize(point.Sub(start))
	cross := geometry.Normalize(heading.Cross(toTarget))

	if math.Abs(cross.Y()) < 1e-9 {
		s.ExtendTo(point)
		return
	}

	var orth geometry.Vec3
	if cross.Y() > 0 {
		orth = geometry.Normalize(geometry.Vec3{-heading.Z(), 0, heading.X()})
	} else {
		orth = geometry.Normalize(geometry.Vec3{heading.Z(), 0, -heading.X()})
	}
	half := start.Sub(point).Len() / 2
	s.setPoints(start, start.Add(heading.Mul(half)), point.Add(orth.Mul(half)), point)
}

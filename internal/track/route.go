package track

import (
	"context"
	"fmt"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/logging"
)

// Route is a chainable builder that appends segments to one line of track.
//
// The first error is sticky: once a call fails every later call is a no-op
// and Err reports the failure.
type Route struct {
	net  *Network
	name string

	root SegmentID
	segs []SegmentID
	err  error
}

// Name returns the route's name.
func (r *Route) Name() string { return r.name }

// Err returns the first error raised while building the route.
func (r *Route) Err() error { return r.err }

// Segments returns the route's segments in build order. Placeholder ends
// for unresolved junctions are included.
func (r *Route) Segments() []SegmentID {
	out := make([]SegmentID, len(r.segs))
	copy(out, r.segs)
	return out
}

// Root returns the route's first segment.
func (r *Route) Root() (SegmentID, error) {
	if r.root == NoSegment {
		return NoSegment, fmt.Errorf("%s: %w", r.name, ErrNoRoot)
	}
	return r.root, nil
}

// Last returns the most recently appended segment.
func (r *Route) Last() (SegmentID, error) {
	if len(r.segs) == 0 {
		return NoSegment, fmt.Errorf("%s: %w", r.name, ErrNoRoot)
	}
	return r.segs[len(r.segs)-1], nil
}

func (r *Route) fail(op string, err error) *Route {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %s: %w", r.name, op, err)
	}
	return r
}

// last returns the tail segment, or nil and records ErrNoRoot. A tail left
// waiting on an unregistered junction cannot be extended.
func (r *Route) last(op string) *Segment {
	if r.err != nil {
		return nil
	}
	if r.root == NoSegment {
		r.fail(op, ErrNoRoot)
		return nil
	}
	tail := r.net.Segment(r.segs[len(r.segs)-1])
	if tail.stub {
		r.fail(op, ErrPendingJoin)
		return nil
	}
	return tail
}

// appendAfter creates a segment attached after the tail.
func (r *Route) appendAfter(op string) *Segment {
	prev := r.last(op)
	if prev == nil {
		return nil
	}
	s := r.net.add(prev.End(), prev.End(), prev.End(), prev.End())
	if err := s.AttachAfter(prev); err != nil {
		r.fail(op, err)
		return nil
	}
	r.segs = append(r.segs, s.id)
	return s
}

// SetRoot creates the route's first segment from explicit control points.
func (r *Route) SetRoot(start, c1, c2, end geometry.Vec3) *Route {
	if r.err != nil {
		return r
	}
	if r.root != NoSegment {
		return r.fail("set root", ErrRootExists)
	}
	s := r.net.add(start, c1, c2, end)
	r.root = s.id
	r.segs = append(r.segs, s.id)
	return r
}

// MoveTo appends a smooth continuation ending at p.
func (r *Route) MoveTo(p geometry.Vec3) *Route {
	if s := r.appendAfter("move to"); s != nil {
		s.ExtendTo(p)
	}
	return r
}

// MoveToAs appends a smooth continuation ending at p and registers it as a
// junction.
func (r *Route) MoveToAs(p geometry.Vec3, junction string) *Route {
	return r.MoveTo(p).SetJunction(junction)
}

// ArcTo appends a turn ending at p.
func (r *Route) ArcTo(p geometry.Vec3) *Route {
	if s := r.appendAfter("arc to"); s != nil {
		s.ArcTo(p)
	}
	return r
}

// CurveTo appends a segment with explicit control points, starting at the
// tail's end.
func (r *Route) CurveTo(c1, c2, end geometry.Vec3) *Route {
	prev := r.last("curve to")
	if prev == nil {
		return r
	}
	s := r.net.add(prev.End(), c1, c2, end)
	if err := s.AttachAfterManual(prev, c1, c2, end); err != nil {
		return r.fail("curve to", err)
	}
	r.segs = append(r.segs, s.id)
	return r
}

// SetJunction registers the tail segment under name.
func (r *Route) SetJunction(name string) *Route {
	s := r.last("set junction")
	if s == nil {
		return r
	}
	if err := r.net.SetJunction(name, s.id); err != nil {
		return r.fail("set junction", err)
	}
	return r
}

// Wait schedules a stop of the given duration on the tail segment.
func (r *Route) Wait(seconds float64) *Route {
	s := r.last("wait")
	if s == nil {
		return r
	}
	if seconds < 0 {
		return r.fail("wait", fmt.Errorf("%v: %w", seconds, ErrNegativeDwell))
	}
	s.SetDwell(seconds)
	return r
}

// ConnectToJunction appends a segment joining the tail to a named junction.
// If the junction is not registered yet a placeholder end is left in its
// place and the connection is completed by Network.Finish.
func (r *Route) ConnectToJunction(name string) *Route {
	s := r.appendAfter("connect to junction")
	if s == nil {
		return r
	}
	if target, err := r.net.Junction(name); err == nil {
		if err := s.ConnectTo(r.net.Segment(target)); err != nil {
			return r.fail("connect to junction", err)
		}
		return r
	}

	r.net.log.Warn(context.Background(), "junction not registered yet",
		logging.String("junction", name),
		logging.String("route", r.name),
		logging.Int("segment", int(s.id)))

	// placeholder runs straight on along the incoming heading
	heading := geometry.Normalize(s.points[1].Sub(s.points[0]))
	if heading.Len() == 0 {
		heading = geometry.Forward
	}
	s.ExtendTo(s.Start().Add(heading.Mul(StubLength)))
	s.stub = true
	r.net.addPending(pendingRef{segment: s.id, name: name, route: r.name})
	return r
}

// ConnectToRoot appends a segment closing the route into a loop.
func (r *Route) ConnectToRoot() *Route {
	s := r.appendAfter("connect to root")
	if s == nil {
		return r
	}
	if err := s.ConnectTo(r.net.Segment(r.root)); err != nil {
		return r.fail("connect to root", err)
	}
	return r
}

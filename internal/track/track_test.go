package track

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/tms-rail/internal/geometry"
)

func v(x, y, z float64) geometry.Vec3 { return geometry.Vec3{x, y, z} }

// straightZ is a straight segment along +Z from z0 to z1.
func straightZ(n *Network, z0, z1 float64) *Segment {
	d := (z1 - z0) / 3
	return n.AddSegment(v(0, 0, z0), v(0, 0, z0+d), v(0, 0, z0+2*d), v(0, 0, z1))
}

func newNet() *Network { return NewNetwork(DefaultConfig(), nil) }

func TestAttachAfterMirrorsControlPoint(t *testing.T) {
	n := newNet()
	a := n.AddSegment(v(0, 0, 0), v(0, 0, 3), v(1, 0, 8), v(2, 0, 10))
	b := n.AddSegment(v(0, 0, 0), v(0, 0, 0), v(5, 0, 15), v(5, 0, 20))

	require.NoError(t, b.AttachAfter(a))

	assert.Equal(t, a.End(), b.Start())
	assert.Equal(t, v(3, 0, 12), b.Points()[1])

	next, ok := a.Next()
	require.True(t, ok)
	assert.Equal(t, b.ID(), next)
	prev, ok := b.Previous()
	require.True(t, ok)
	assert.Equal(t, a.ID(), prev)

	// tangents agree across the joint
	assert.InDelta(t, 0, a.TangentAt(a.Length()).Sub(b.TangentAt(0)).Len(), 1e-9)
}

func TestConnectionReapplicationIsNoop(t *testing.T) {
	n := newNet()
	a := straightZ(n, 0, 10)
	b := n.AddSegment(v(0, 0, 0), v(0, 0, 0), v(0, 0, 0), v(3, 0, 20))
	c := straightZ(n, 30, 40)
	d := straightZ(n, 50, 60)

	require.NoError(t, b.AttachAfter(a))
	b.ExtendTo(v(0, 0, 25))
	require.NoError(t, b.ConnectTo(c))
	before := b.Points()

	require.NoError(t, b.AttachAfter(a))
	require.NoError(t, b.ConnectTo(c))
	assert.Equal(t, before, b.Points())

	err := b.ConnectTo(d)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	err = b.AttachAfter(d)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, before, b.Points())
}

func TestConnectToTwoWayOnlyWhenTargetFree(t *testing.T) {
	n := newNet()
	target := straightZ(n, 20, 30)
	first := straightZ(n, 0, 10)
	merge := n.AddSegment(v(5, 0, 0), v(5, 0, 5), v(5, 0, 10), v(5, 0, 15))

	require.NoError(t, first.ConnectTo(target))
	prev, ok := target.Previous()
	require.True(t, ok)
	assert.Equal(t, first.ID(), prev)

	require.NoError(t, merge.ConnectTo(target))
	next, _ := merge.Next()
	assert.Equal(t, target.ID(), next)
	prev, _ = target.Previous()
	assert.Equal(t, first.ID(), prev, "merge keeps the original predecessor")

	// end moved onto the target start, control mirrored through it
	assert.Equal(t, target.Start(), merge.End())
	assert.InDelta(t, 0, merge.Points()[2].Sub(v(0, 0, 20-10.0/3)).Len(), 1e-9)
}

func TestForeignSegment(t *testing.T) {
	a := straightZ(newNet(), 0, 10)
	b := straightZ(newNet(), 10, 20)
	assert.ErrorIs(t, b.AttachAfter(a), ErrForeignSegment)
	assert.ErrorIs(t, a.ConnectTo(b), ErrForeignSegment)
}

func TestExtendTo(t *testing.T) {
	n := newNet()
	s := n.AddSegment(v(0, 0, 0), v(0, 0, 2), v(0, 0, 2), v(0, 0, 2))
	s.ExtendTo(v(0, 0, 10))
	assert.Equal(t, v(0, 0, 8), s.Points()[2])
	assert.Equal(t, v(0, 0, 10), s.End())
	assert.InDelta(t, 10, s.Length(), 1e-9)
}

func TestArcTo(t *testing.T) {
	n := newNet()

	t.Run("collinear falls back to extend", func(t *testing.T) {
		s := n.AddSegment(v(0, 0, 0), v(0, 0, 2), v(0, 0, 2), v(0, 0, 2))
		s.ArcTo(v(0, 0, 10))
		assert.Equal(t, v(0, 0, 8), s.Points()[2])
	})

	t.Run("turn toward target", func(t *testing.T) {
		// heading +X, target ahead and to -Z
		s := n.AddSegment(v(0, 0, 0), v(2, 0, 0), v(2, 0, 0), v(2, 0, 0))
		s.ArcTo(v(10, 0, -10))

		half := v(10, 0, -10).Len() / 2
		pts := s.Points()
		assert.InDelta(t, 0, pts[1].Sub(v(half, 0, 0)).Len(), 1e-9)
		assert.InDelta(t, 0, pts[2].Sub(v(10, 0, -10+half)).Len(), 1e-9)

		// arrives heading -Z
		assert.InDelta(t, 0, s.TangentAt(s.Length()).Sub(v(0, 0, -1)).Len(), 1e-6)
	})

	t.Run("turn the other way", func(t *testing.T) {
		s := n.AddSegment(v(0, 0, 0), v(2, 0, 0), v(2, 0, 0), v(2, 0, 0))
		s.ArcTo(v(10, 0, 10))
		assert.InDelta(t, 0, s.TangentAt(s.Length()).Sub(v(0, 0, 1)).Len(), 1e-6)
	})
}

func TestRouteRequiresRoot(t *testing.T) {
	n := newNet()
	r := n.NewRoute().MoveTo(v(0, 0, 10)).ArcTo(v(5, 0, 5)).Wait(3)

	assert.ErrorIs(t, r.Err(), ErrNoRoot)
	assert.Equal(t, 0, n.Len())
	_, err := r.Root()
	assert.ErrorIs(t, err, ErrNoRoot)

	// the error stays sticky once a root is supplied
	r.SetRoot(v(0, 0, 0), v(0, 0, 1), v(0, 0, 2), v(0, 0, 3))
	assert.Equal(t, 0, n.Len())
}

func TestRouteSetRootTwice(t *testing.T) {
	n := newNet()
	r := n.NewRoute().
		SetRoot(v(0, 0, 0), v(0, 0, 1), v(0, 0, 2), v(0, 0, 3)).
		SetRoot(v(0, 0, 0), v(0, 0, 1), v(0, 0, 2), v(0, 0, 3))
	assert.ErrorIs(t, r.Err(), ErrRootExists)
	assert.Equal(t, 1, n.Len())
}

func TestDuplicateJunctionIsFatal(t *testing.T) {
	n := newNet()
	a := n.NewRoute().SetRoot(v(0, 0, 0), v(0, 0, 1), v(0, 0, 2), v(0, 0, 3)).SetJunction("plt")
	require.NoError(t, a.Err())

	b := n.NewRoute().SetRoot(v(5, 0, 0), v(5, 0, 1), v(5, 0, 2), v(5, 0, 3)).SetJunction("plt").MoveTo(v(5, 0, 10))
	assert.ErrorIs(t, b.Err(), ErrJunctionExists)
	assert.Len(t, b.Segments(), 1, "calls after the failure are ignored")
}

func TestRouteBuildsLinkedChain(t *testing.T) {
	n := newNet()
	r := n.NewRoute().
		SetRoot(v(0, 0, 0), v(0, 0, 2), v(0, 0, 4), v(0, 0, 6)).
		Wait(5).
		MoveTo(v(0, 0, 20)).
		ArcTo(v(10, 0, 30)).
		CurveTo(v(20, 0, 30), v(25, 0, 30), v(30, 0, 30)).
		MoveToAs(v(40, 0, 30), "east")
	require.NoError(t, r.Err())
	require.Len(t, r.Segments(), 5)

	segs := r.Segments()
	for i := 1; i < len(segs); i++ {
		prev := n.Segment(segs[i-1])
		cur := n.Segment(segs[i])
		next, ok := prev.Next()
		require.True(t, ok)
		assert.Equal(t, cur.ID(), next)
		assert.Equal(t, prev.End(), cur.Start())
	}

	root, err := r.Root()
	require.NoError(t, err)
	assert.Equal(t, 5.0, n.Segment(root).Dwell())

	last, err := r.Last()
	require.NoError(t, err)
	id, err := n.Junction("east")
	require.NoError(t, err)
	assert.Equal(t, last, id)
	assert.Equal(t, "east", n.Segment(last).Junction())
}

func TestRouteWaitRejectsNegative(t *testing.T) {
	n := newNet()
	r := n.NewRoute().SetRoot(v(0, 0, 0), v(0, 0, 1), v(0, 0, 2), v(0, 0, 3)).Wait(-1)
	assert.ErrorIs(t, r.Err(), ErrNegativeDwell)
}

func TestConnectToRootClosesLoop(t *testing.T) {
	n := newNet()
	r := n.NewRoute().
		SetRoot(v(0, 0, 0), v(5, 0, 0), v(10, 0, 0), v(15, 0, 0)).
		ArcTo(v(25, 0, 10)).
		ArcTo(v(15, 0, 20)).
		MoveTo(v(0, 0, 20)).
		ArcTo(v(-10, 0, 10)).
		ConnectToRoot()
	require.NoError(t, r.Err())

	root, _ := r.Root()
	last, _ := r.Last()
	next, ok := n.Segment(last).Next()
	require.True(t, ok)
	assert.Equal(t, root, next)
	prev, ok := n.Segment(root).Previous()
	require.True(t, ok)
	assert.Equal(t, last, prev)
	assert.Equal(t, n.Segment(root).Start(), n.Segment(last).End())
}

func TestForwardJunctionResolvedAtFinish(t *testing.T) {
	n := newNet()
	a := n.NewRoute().
		SetRoot(v(0, 0, 0), v(0, 0, 2), v(0, 0, 4), v(0, 0, 6)).
		ConnectToJunction("far")
	require.NoError(t, a.Err())
	last, _ := a.Last()
	assert.True(t, n.Segment(last).Stub())
	_, ok := n.Segment(last).Next()
	assert.False(t, ok)
	assert.Equal(t, v(0, 0, 6+StubLength), n.Segment(last).End())
	assert.Equal(t, []string{"far"}, n.Pending())

	b := n.NewRoute().SetRoot(v(0, 0, 20), v(0, 0, 22), v(0, 0, 24), v(0, 0, 26)).SetJunction("far")
	require.NoError(t, b.Err())

	var events []Event
	n.Subscribe(func(e Event) { events = append(events, e) })

	report := n.Finish(context.Background())
	assert.True(t, report.Complete())
	assert.Equal(t, []string{"far"}, report.Resolved)
	assert.Empty(t, n.Pending())

	target, _ := b.Root()
	next, ok := n.Segment(last).Next()
	require.True(t, ok)
	assert.Equal(t, target, next)
	prev, _ := n.Segment(target).Previous()
	assert.Equal(t, last, prev)
	assert.False(t, n.Segment(last).Stub())
	assert.Equal(t, v(0, 0, 20), n.Segment(last).End())

	assert.Equal(t, []Event{{Kind: EventGeometry, Segment: last}}, events)
}

func TestFinishReportsUnresolved(t *testing.T) {
	n := newNet()
	a := n.NewRoute().
		SetRoot(v(0, 0, 0), v(0, 0, 2), v(0, 0, 4), v(0, 0, 6)).
		ConnectToJunction("nowhere")
	require.NoError(t, a.Err())

	report := n.Finish(context.Background())
	assert.False(t, report.Complete())
	assert.Equal(t, []string{"nowhere"}, report.Unresolved)

	last, _ := a.Last()
	_, ok := n.Segment(last).Next()
	assert.False(t, ok)
	assert.True(t, n.Segment(last).Stub())
}

func TestStepsAfterPendingJoinAreRejected(t *testing.T) {
	n := newNet()
	a := n.NewRoute().
		SetRoot(v(0, 0, 0), v(0, 0, 2), v(0, 0, 4), v(0, 0, 6)).
		ConnectToJunction("later")
	require.NoError(t, a.Err())
	stub, _ := a.Last()

	a.MoveTo(v(0, 0, 30))
	require.ErrorIs(t, a.Err(), ErrPendingJoin)
	assert.Contains(t, a.Err().Error(), "move to")
	assert.Equal(t, stub, a.Segments()[len(a.Segments())-1])

	b := n.NewRoute().SetRoot(v(0, 0, 20), v(0, 0, 22), v(0, 0, 24), v(0, 0, 26)).SetJunction("later")
	require.NoError(t, b.Err())

	// the join still completes
	report := n.Finish(context.Background())
	assert.Equal(t, []string{"later"}, report.Resolved)
	target, _ := b.Root()
	next, ok := n.Segment(stub).Next()
	require.True(t, ok)
	assert.Equal(t, target, next)
}

func TestOccupancyIsReferenceCounted(t *testing.T) {
	n := newNet()
	s := straightZ(n, 0, 10)

	var events []Event
	n.Subscribe(func(e Event) { events = append(events, e) })

	n.Hold(s.ID())
	n.Hold(s.ID())
	assert.True(t, s.Occupied())
	n.Release(s.ID())
	assert.True(t, s.Occupied())
	n.Release(s.ID())
	assert.False(t, s.Occupied())
	n.Release(s.ID())

	want := []Event{
		{Kind: EventOccupancy, Segment: s.ID(), Occupied: true},
		{Kind: EventOccupancy, Segment: s.ID(), Occupied: false},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, n.Occupied())
}

func TestSetDwellClampsAndNotifies(t *testing.T) {
	n := newNet()
	s := straightZ(n, 0, 10)
	var events []Event
	n.Subscribe(func(e Event) { events = append(events, e) })

	s.SetDwell(-3)
	assert.Equal(t, 0.0, s.Dwell())
	assert.Empty(t, events)

	s.SetDwell(4)
	require.Len(t, events, 1)
	assert.Equal(t, EventDwell, events[0].Kind)
	assert.Equal(t, 4.0, events[0].Dwell)
}

func TestWalk(t *testing.T) {
	n := newNet()
	a := straightZ(n, 0, 10)
	b := straightZ(n, 10, 30)
	c := straightZ(n, 30, 35)
	require.NoError(t, b.AttachAfter(a))
	require.NoError(t, c.AttachAfter(b))

	d, ok := n.Walk(a.ID(), 4, c.ID(), 1)
	require.True(t, ok)
	assert.InDelta(t, 6+20+1, d, 1e-9)

	d, ok = n.Walk(b.ID(), 2, b.ID(), 7)
	require.True(t, ok)
	assert.InDelta(t, 5, d, 1e-9)

	_, ok = n.Walk(c.ID(), 0, a.ID(), 0)
	assert.False(t, ok)
}

func TestSegmentRailsAndSleepers(t *testing.T) {
	n := NewNetwork(Config{Gauge: 0.5, RailPolicy: geometry.RailSimple}, nil)
	s := straightZ(n, 0, 10.2)

	left, right := s.Rails()
	assert.InDelta(t, 0.5, left.P0.X(), 1e-9)
	assert.InDelta(t, -0.5, right.P0.X(), 1e-9)

	poses := s.SleeperPoses(0.5)
	assert.Len(t, poses, 21)
	assert.InDelta(t, 10, poses[20].Position.Z(), 1e-9)
	assert.Len(t, s.Samples(4), 5)
}

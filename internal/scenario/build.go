package scenario

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/track"
)

// Layout is a built network together with the names needed to place
// trains on it.
type Layout struct {
	Network *track.Network
	Routes  map[string]*track.Route
	// Marks maps route name to mark name to the segment it names.
	Marks  map[string]map[string]track.SegmentID
	Report track.FinishReport
}

// TrackConfig resolves the network settings.
func (s *Scenario) TrackConfig() (track.Config, error) {
	policy, err := geometry.ParseRailPolicy(s.Track.RailPolicy)
	if err != nil {
		return track.Config{}, err
	}
	return track.Config{Gauge: s.Track.Width, RailPolicy: policy}, nil
}

// BuildNetwork runs every route script in order and finishes the network.
// Junction references that remain unresolved are left in Report.
func (s *Scenario) BuildNetwork(ctx context.Context, log logging.Logger) (*Layout, error) {
	cfg, err := s.TrackConfig()
	if err != nil {
		return nil, errors.Wrap(err, "track")
	}
	net := track.NewNetwork(cfg, log)
	l := &Layout{
		Network: net,
		Routes:  make(map[string]*track.Route, len(s.Routes)),
		Marks:   make(map[string]map[string]track.SegmentID),
	}
	for _, rs := range s.Routes {
		r, marks, err := buildRoute(net, rs)
		if err != nil {
			return nil, err
		}
		l.Routes[rs.Name] = r
		l.Marks[rs.Name] = marks
	}
	l.Report = net.Finish(ctx)
	return l, nil
}

func buildRoute(net *track.Network, rs Route) (*track.Route, map[string]track.SegmentID, error) {
	r := net.NewRoute()
	r.SetRoot(rs.Root[0].Vec(), rs.Root[1].Vec(), rs.Root[2].Vec(), rs.Root[3].Vec())
	if err := r.Err(); err != nil {
		return nil, nil, errors.Wrapf(err, "route %q root", rs.Name)
	}

	marks := make(map[string]track.SegmentID)
	for i, step := range rs.Steps {
		switch {
		case step.MoveTo != nil && step.As != "":
			r.MoveToAs(step.MoveTo.Vec(), step.As)
		case step.MoveTo != nil:
			r.MoveTo(step.MoveTo.Vec())
		case step.ArcTo != nil:
			r.ArcTo(step.ArcTo.Vec())
		case step.CurveTo != nil:
			r.CurveTo(step.CurveTo.C1.Vec(), step.CurveTo.C2.Vec(), step.CurveTo.End.Vec())
		case step.Junction != "":
			r.SetJunction(step.Junction)
		case step.Wait != nil:
			r.Wait(*step.Wait)
		case step.ConnectJunction != "":
			r.ConnectToJunction(step.ConnectJunction)
		case step.ConnectRoot:
			r.ConnectToRoot()
		case step.Mark != "":
			if last, err := r.Last(); err == nil {
				marks[step.Mark] = last
			}
		}
		if err := r.Err(); err != nil {
			return nil, nil, errors.Wrapf(err, "route %q step %d", rs.Name, i)
		}
	}
	return r, marks, nil
}

// Placement resolves where a train starts.
func (l *Layout) Placement(t Train) (track.SegmentID, error) {
	r, ok := l.Routes[t.Route]
	if !ok {
		return track.NoSegment, errors.Errorf("train %q: unknown route %q", t.Name, t.Route)
	}
	if t.At == "" || t.At == AtRoot {
		return r.Root()
	}
	id, ok := l.Marks[t.Route][t.At]
	if !ok {
		return track.NoSegment, errors.Errorf("train %q: route %q has no mark %q", t.Name, t.Route, t.At)
	}
	return id, nil
}

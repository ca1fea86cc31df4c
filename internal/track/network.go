package track

import (
	"context"
	"fmt"
	"sort"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/logging"
)

// Config controls geometry derived for every segment of a network.
type Config struct {
	// Gauge is the lateral distance of each rail from the centerline.
	Gauge      float64
	RailPolicy geometry.RailPolicy
}

// DefaultConfig returns the standard gauge with refined rails.
func DefaultConfig() Config {
	return Config{Gauge: 0.22, RailPolicy: geometry.RailRefined}
}

// StubLength is the length of the placeholder segment end left for a
// junction that is not registered yet.
const StubLength = 4.0

// EventKind classifies a network state change.
type EventKind string

const (
	EventOccupancy EventKind = "occupancy"
	EventDwell     EventKind = "dwell"
	EventGeometry  EventKind = "geometry"
)

// Event describes a change to one segment.
type Event struct {
	Kind     EventKind
	Segment  SegmentID
	Occupied bool
	Dwell    float64
}

// Listener receives network events synchronously.
type Listener func(Event)

type pendingRef struct {
	segment SegmentID
	name    string
	route   string
}

// FinishReport lists the outcome of resolving deferred junction references.
type FinishReport struct {
	Resolved   []string
	Unresolved []string
}

// Complete reports whether every deferred reference found its junction.
func (r FinishReport) Complete() bool { return len(r.Unresolved) == 0 }

// Network owns every segment and the junction registry.
type Network struct {
	cfg Config
	log logging.Logger

	segments  []*Segment
	junctions map[string]SegmentID
	pending   []pendingRef
	routes    []*Route
	listeners []Listener
}

// NewNetwork creates an empty network. A zero Gauge selects the default.
func NewNetwork(cfg Config, log logging.Logger) *Network {
	def := DefaultConfig()
	if cfg.Gauge <= 0 {
		cfg.Gauge = def.Gauge
	}
	if cfg.RailPolicy == "" {
		cfg.RailPolicy = def.RailPolicy
	}
	return &Network{
		cfg:       cfg,
		log:       logging.OrNoop(log).With(logging.String("component", "track")),
		junctions: make(map[string]SegmentID),
	}
}

// Config returns the network's geometry configuration.
func (n *Network) Config() Config { return n.cfg }

func (n *Network) add(p0, p1, p2, p3 geometry.Vec3) *Segment {
	s := newSegment(n, SegmentID(len(n.segments)), p0, p1, p2, p3)
	n.segments = append(n.segments, s)
	return s
}

// AddSegment creates an unconnected segment from its control points.
func (n *Network) AddSegment(p0, p1, p2, p3 geometry.Vec3) *Segment {
	return n.add(p0, p1, p2, p3)
}

// Segment returns the segment with the given id, or nil.
func (n *Network) Segment(id SegmentID) *Segment {
	if id < 0 || int(id) >= len(n.segments) {
		return nil
	}
	return n.segments[id]
}

// Segments returns all segments in creation order.
func (n *Network) Segments() []*Segment {
	out := make([]*Segment, len(n.segments))
	copy(out, n.segments)
	return out
}

// Len is the number of segments.
func (n *Network) Len() int { return len(n.segments) }

// NewRoute starts a new route named route_<index>.
func (n *Network) NewRoute() *Route {
	r := &Route{
		net:  n,
		name: fmt.Sprintf("route_%d", len(n.routes)),
		root: NoSegment,
	}
	n.routes = append(n.routes, r)
	return r
}

// Routes returns the routes in creation order.
func (n *Network) Routes() []*Route {
	out := make([]*Route, len(n.routes))
	copy(out, n.routes)
	return out
}

// SetJunction registers a segment under name.
func (n *Network) SetJunction(name string, id SegmentID) error {
	if existing, ok := n.junctions[name]; ok {
		return fmt.Errorf("junction %q (segment %d): %w", name, existing, ErrJunctionExists)
	}
	s := n.Segment(id)
	if s == nil {
		return fmt.Errorf("junction %q: segment %d: %w", name, id, ErrForeignSegment)
	}
	n.junctions[name] = id
	s.junction = name
	return nil
}

// Junction looks up a registered junction.
func (n *Network) Junction(name string) (SegmentID, error) {
	id, ok := n.junctions[name]
	if !ok {
		return NoSegment, fmt.Errorf("junction %q: %w", name, ErrUnknownJunction)
	}
	return id, nil
}

// Junctions returns the registered names in sorted order.
func (n *Network) Junctions() []string {
	names := make([]string, 0, len(n.junctions))
	for name := range n.junctions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *Network) addPending(ref pendingRef) {
	n.pending = append(n.pending, ref)
}

// Pending returns the names of junction references not yet resolved.
func (n *Network) Pending() []string {
	names := make([]string, len(n.pending))
	for i, p := range n.pending {
		names[i] = p.name
	}
	return names
}

// Finish resolves every deferred junction reference against the registry.
// Resolved references are connected to their junction; unresolved ones stay
// dead ends. The pending table is cleared either way.
func (n *Network) Finish(ctx context.Context) FinishReport {
	var report FinishReport
	for _, p := range n.pending {
		s := n.Segment(p.segment)
		target, err := n.Junction(p.name)
		if err == nil {
			err = s.ConnectTo(n.Segment(target))
		}
		if err != nil {
			n.log.Warn(ctx, "junction unresolved",
				logging.String("junction", p.name),
				logging.String("route", p.route),
				logging.Int("segment", int(p.segment)),
				logging.Err(err))
			report.Unresolved = append(report.Unresolved, p.name)
			continue
		}
		n.log.Info(ctx, "junction connected",
			logging.String("junction", p.name),
			logging.String("route", p.route),
			logging.Int("segment", int(p.segment)))
		report.Resolved = append(report.Resolved, p.name)
	}
	n.pending = nil
	return report
}

// Subscribe registers a listener for segment events.
func (n *Network) Subscribe(l Listener) {
	n.listeners = append(n.listeners, l)
}

func (n *Network) emit(e Event) {
	for _, l := range n.listeners {
		l(e)
	}
}

// Hold claims a segment for one train. The segment becomes occupied on the
// first claim.
func (n *Network) Hold(id SegmentID) {
	s := n.Segment(id)
	if s == nil {
		return
	}
	s.holds++
	if s.holds == 1 {
		n.emit(Event{Kind: EventOccupancy, Segment: id, Occupied: true, Dwell: s.dwell})
	}
}

// Release drops one claim on a segment. The segment becomes free when the
// last claim is dropped; releasing a free segment does nothing.
func (n *Network) Release(id SegmentID) {
	s := n.Segment(id)
	if s == nil || s.holds == 0 {
		return
	}
	s.holds--
	if s.holds == 0 {
		n.emit(Event{Kind: EventOccupancy, Segment: id, Occupied: false, Dwell: s.dwell})
	}
}

// Occupied returns the ids of occupied segments in ascending order.
func (n *Network) Occupied() []SegmentID {
	var ids []SegmentID
	for _, s := range n.segments {
		if s.Occupied() {
			ids = append(ids, s.id)
		}
	}
	return ids
}

// Walk returns the distance from offset `from` on segment a to offset `to`
// on segment b following next links, and whether b was reached. A loop that
// never reaches b stops after visiting every segment once.
func (n *Network) Walk(a SegmentID, from float64, b SegmentID, to float64) (float64, bool) {
	if a == b && to >= from {
		return to - from, true
	}
	s := n.Segment(a)
	if s == nil {
		return 0, false
	}
	dist := s.Length() - from
	id, ok := s.Next()
	for hops := 0; ok && hops <= len(n.segments); hops++ {
		if id == b {
			return dist + to, true
		}
		next := n.Segment(id)
		dist += next.Length()
		id, ok = next.Next()
	}
	return 0, false
}

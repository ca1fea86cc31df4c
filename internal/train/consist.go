package train

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/signaling"
	"github.com/cxd309/tms-rail/internal/track"
)

// Body is an engine or carriage riding on two wheelsets. Second sits one
// wheel separation ahead of First.
type Body struct {
	Kind   ModelKind
	Model  Model
	First  *WheelSet
	Second *WheelSet

	separation float64
	// relative is the body's offset from the rear of the consist.
	relative float64
}

func newBody(net *track.Network, kind ModelKind, model Model, separation float64) *Body {
	return &Body{
		Kind:       kind,
		Model:      model,
		First:      NewWheelSet(net),
		Second:     NewWheelSet(net),
		separation: separation,
	}
}

// Relative is the body's offset from the rear of the consist at binding.
func (b *Body) Relative() float64 { return b.relative }

// Width is the body's length along the track.
func (b *Body) Width() float64 { return b.Model.Width }

func (b *Body) bind(seg track.SegmentID, offset float64) error {
	if err := b.First.Bind(seg, offset); err != nil {
		return err
	}
	return b.Second.Bind(seg, offset+b.separation)
}

// Advance moves both wheelsets.
func (b *Body) Advance(delta float64) {
	b.First.Advance(delta)
	b.Second.Advance(delta)
}

// Pose is the body's position and heading: at the first wheelset, facing
// the second. ok is false when either wheelset is off the network.
func (b *Body) Pose() (track.Pose, bool) {
	first, ok1 := b.First.Position()
	second, ok2 := b.Second.Position()
	if !ok1 || !ok2 {
		return track.Pose{}, false
	}
	return track.Pose{Position: first, Orientation: geometry.Orientation(second.Sub(first))}, true
}

// Config sets up a consist.
type Config struct {
	ID              uuid.UUID
	Name            string
	Carriages       int
	WheelSeparation float64
	// SyncTolerance is the largest formation error tolerated before the
	// consist is rebound.
	SyncTolerance float64
	// SyncInterval is the number of ticks between drift checks. Zero
	// disables them.
	SyncInterval int
}

// DefaultConfig returns the stock separation and drift settings.
func DefaultConfig() Config {
	return Config{WheelSeparation: 3.2, SyncTolerance: 0.5, SyncInterval: 1}
}

// Consist is an engine and its trailing carriages moved as one train.
// carriages[0] is the rearmost body; the engine leads.
type Consist struct {
	id   uuid.UUID
	name string
	cfg  Config
	net  *track.Network
	log  logging.Logger

	engine    *Body
	carriages []*Body
	driver    *signaling.Driver

	// held lists the segments this consist spans, rear first.
	held []track.SegmentID

	ticks   int
	resyncs int
}

// New assembles a consist from models supplied by models. The consist is
// not on the network until Bind is called.
func New(net *track.Network, models ModelProvider, driver *signaling.Driver, cfg Config, log logging.Logger) (*Consist, error) {
	def := DefaultConfig()
	if cfg.WheelSeparation <= 0 {
		cfg.WheelSeparation = def.WheelSeparation
	}
	if cfg.SyncTolerance <= 0 {
		cfg.SyncTolerance = def.SyncTolerance
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID.String()
	}

	engineModel, err := models.Model(KindEngine)
	if err != nil {
		return nil, fmt.Errorf("train %q: %w", cfg.Name, err)
	}
	c := &Consist{
		id:     cfg.ID,
		name:   cfg.Name,
		cfg:    cfg,
		net:    net,
		driver: driver,
		log:    logging.OrNoop(log).With(logging.String("train", cfg.Name)),
		engine: newBody(net, KindEngine, engineModel, cfg.WheelSeparation),
	}
	if cfg.Carriages > 0 {
		carriageModel, err := models.Model(KindCarriage)
		if err != nil {
			return nil, fmt.Errorf("train %q: %w", cfg.Name, err)
		}
		for i := 0; i < cfg.Carriages; i++ {
			c.carriages = append(c.carriages, newBody(net, KindCarriage, carriageModel, cfg.WheelSeparation))
		}
	}

	c.head().OnTransition = c.enter
	c.tail().OnTransition = c.leave
	return c, nil
}

func (c *Consist) ID() uuid.UUID             { return c.id }
func (c *Consist) Name() string              { return c.name }
func (c *Consist) Engine() *Body             { return c.engine }
func (c *Consist) Driver() *signaling.Driver { return c.driver }
func (c *Consist) Resyncs() int              { return c.resyncs }

// Carriages returns the carriages, rearmost first.
func (c *Consist) Carriages() []*Body {
	out := make([]*Body, len(c.carriages))
	copy(out, c.carriages)
	return out
}

// Bodies returns every body from the rear to the engine.
func (c *Consist) Bodies() []*Body {
	out := make([]*Body, 0, len(c.carriages)+1)
	out = append(out, c.carriages...)
	return append(out, c.engine)
}

// Held returns the segments the consist currently occupies, rear first.
func (c *Consist) Held() []track.SegmentID {
	out := make([]track.SegmentID, len(c.held))
	copy(out, c.held)
	return out
}

// head is the engine's leading wheelset; it drives signaling and claims
// segments.
func (c *Consist) head() *WheelSet { return c.engine.Second }

// tail is the rearmost wheelset; it releases segments.
func (c *Consist) tail() *WheelSet {
	if len(c.carriages) > 0 {
		return c.carriages[0].First
	}
	return c.engine.First
}

// Length is the distance from the tail wheelset to the head wheelset.
func (c *Consist) Length() float64 {
	return c.engine.relative + c.cfg.WheelSeparation
}

// Bind places the consist with its rear wheelset offset units along seg,
// bodies spaced by the width of the ones behind them.
func (c *Consist) Bind(seg track.SegmentID, offset float64) error {
	if c.net.Segment(seg) == nil {
		return fmt.Errorf("train %q: segment %d: %w", c.name, seg, ErrUnknownSegment)
	}
	c.releaseAll()

	rel := 0.0
	for _, b := range c.carriages {
		b.relative = rel
		if err := b.bind(seg, offset+rel); err != nil {
			return err
		}
		rel += b.Width()
	}
	c.engine.relative = rel
	if err := c.engine.bind(seg, offset+rel); err != nil {
		return err
	}
	c.holdSpan()
	return nil
}

func (c *Consist) releaseAll() {
	for _, id := range c.held {
		c.net.Release(id)
	}
	c.held = c.held[:0]
}

// holdSpan claims every segment from the tail to the head.
func (c *Consist) holdSpan() {
	tail, head := c.tail(), c.head()
	if !tail.Bound() {
		return
	}
	id := tail.Segment()
	c.hold(id)
	if !head.Bound() {
		return
	}
	// a consist longer than a loop wraps back onto the tail's segment
	wrapped := head.Distance() < tail.Distance()
	if id == head.Segment() && !wrapped {
		return
	}
	for hops := 0; hops <= c.net.Len(); hops++ {
		next, ok := c.net.Segment(id).Next()
		if !ok {
			return
		}
		id = next
		c.hold(id)
		if id == head.Segment() {
			return
		}
	}
}

func (c *Consist) hold(id track.SegmentID) {
	c.net.Hold(id)
	c.held = append(c.held, id)
}

func (c *Consist) enter(t Transition) {
	if t.To != track.NoSegment {
		c.hold(t.To)
	}
}

func (c *Consist) leave(t Transition) {
	for i, id := range c.held {
		if id == t.From {
			c.held = append(c.held[:i], c.held[i+1:]...)
			c.net.Release(id)
			return
		}
	}
}

// Lookahead describes the track ahead of the head wheelset.
func (c *Consist) Lookahead() signaling.Lookahead {
	head := c.head()
	if !head.Bound() {
		return signaling.Lookahead{Segment: track.NoSegment}
	}
	s := c.net.Segment(head.Segment())
	la := signaling.Lookahead{
		Bound:    true,
		Segment:  s.ID(),
		Dwell:    s.Dwell(),
		Progress: head.Progress(),
	}
	if next, ok := s.Next(); ok {
		la.HasNext = true
		la.NextOccupied = c.net.Segment(next).Occupied()
	}
	return la
}

// Update runs one tick: the driver picks a speed and every body moves by
// speed × delta. Carriages follow the engine's speed; they are never
// driven independently.
func (c *Consist) Update(ctx context.Context, delta float64) float64 {
	speed := c.driver.Tick(c.Lookahead())
	dist := speed * delta
	c.engine.Advance(dist)
	for _, b := range c.carriages {
		b.Advance(dist)
	}

	c.ticks++
	if c.cfg.SyncInterval > 0 && c.ticks%c.cfg.SyncInterval == 0 {
		c.Sync(ctx)
	}
	return speed
}

// Speed is the speed applied on the last tick.
func (c *Consist) Speed() float64 { return c.driver.Speed() }

// Discrepancy compares the engine's distance ahead of the rearmost carriage
// with the distance fixed at binding. On a shared segment the two offsets
// are subtracted directly, so a carriage that has overtaken the engine
// gives a negative distance. Across segments the links are walked from the
// carriage to the engine, or from the engine back to an overtaking
// carriage. ok is false when there is nothing to compare: no carriages, a
// wheelset off the network, or no path between them.
func (c *Consist) Discrepancy() (d float64, ok bool) {
	if len(c.carriages) == 0 {
		return 0, false
	}
	ref := c.carriages[0]
	head, rear := c.head(), ref.Second
	if !head.Bound() || !rear.Bound() {
		return 0, false
	}
	measured, ok := c.measure(rear, head)
	if !ok {
		return 0, false
	}
	expected := c.engine.relative - ref.relative
	return expected - measured, true
}

// measure is the signed distance from rear to head along the track.
func (c *Consist) measure(rear, head *WheelSet) (float64, bool) {
	if rear.Segment() == head.Segment() {
		return head.Distance() - rear.Distance(), true
	}
	if m, ok := c.net.Walk(rear.Segment(), rear.Distance(), head.Segment(), head.Distance()); ok {
		return m, true
	}
	if m, ok := c.net.Walk(head.Segment(), head.Distance(), rear.Segment(), rear.Distance()); ok {
		return -m, true
	}
	return 0, false
}

// Sync checks the formation and rebinds the consist if it has drifted past
// the tolerance. It reports whether a resync happened.
func (c *Consist) Sync(ctx context.Context) bool {
	d, ok := c.Discrepancy()
	if !ok || math.Abs(d) <= c.cfg.SyncTolerance {
		return false
	}
	c.log.Warn(ctx, "consist desynchronised",
		logging.Float("discrepancy", d),
		logging.Int("segment", int(c.head().Segment())))
	if err := c.Resync(ctx); err != nil {
		c.log.Error(ctx, "resync failed", logging.Err(err))
		return false
	}
	return true
}

// Resync rebinds every body behind the engine's head wheelset at its bound
// spacing. The head stays where it is. When there is not enough track
// behind the head, the consist is rebound from the start of the head's
// segment instead.
func (c *Consist) Resync(ctx context.Context) error {
	head := c.head()
	if !head.Bound() {
		return fmt.Errorf("train %q: resync: %w", c.name, ErrUnbound)
	}
	seg, off, ok := c.behind(head.Segment(), head.Distance(), c.Length())
	if !ok {
		seg, off = head.Segment(), 0
		c.log.Debug(ctx, "resync fell back to segment start", logging.Int("segment", int(seg)))
	}
	c.resyncs++
	return c.Bind(seg, off)
}

// behind finds the point back units before (seg, dist), following previous
// links.
func (c *Consist) behind(seg track.SegmentID, dist, back float64) (track.SegmentID, float64, bool) {
	d := dist - back
	s := c.net.Segment(seg)
	for hops := 0; d < 0; hops++ {
		if hops > c.net.Len() {
			return track.NoSegment, 0, false
		}
		prev, ok := s.Previous()
		if !ok {
			return track.NoSegment, 0, false
		}
		s = c.net.Segment(prev)
		d += s.Length()
	}
	return s.ID(), d, true
}

// Package engine implements the rail simulation loop.
//
// The simulation advances one tick per host frame. Each tick:
//
//  1. Simulation time moves on by delta × FrameSeconds and every deferred
//     action that has come due (dwell resumes) runs.
//
//  2. Every train, in the order it was added, asks its driver for a speed
//     and moves all of its bodies by speed × delta. Occupancy changes made
//     by one train are visible to the trains after it in the same tick.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/schedule"
	"github.com/cxd309/tms-rail/internal/signaling"
	"github.com/cxd309/tms-rail/internal/track"
	"github.com/cxd309/tms-rail/internal/train"
)

const tracerName = "github.com/cxd309/tms-rail/internal/engine"

// DefaultFrameSeconds is one frame at 60 Hz.
const DefaultFrameSeconds = 1.0 / 60

// Recorder receives per-tick measurements. The observability package
// provides a Prometheus implementation.
type Recorder interface {
	ObserveTick(simSeconds float64)
	SetTrainSpeed(train string, speed float64)
	SetOccupiedSegments(n int)
	IncResync(train string)
	IncStateTransition(train string, from, to signaling.State)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(float64)                                         {}
func (nopRecorder) SetTrainSpeed(string, float64)                               {}
func (nopRecorder) SetOccupiedSegments(int)                                     {}
func (nopRecorder) IncResync(string)                                            {}
func (nopRecorder) IncStateTransition(string, signaling.State, signaling.State) {}

// Options configures a Sim.
type Options struct {
	FrameSeconds float64
	Recorder     Recorder
	Logger       logging.Logger
}

// Sim is the simulation driver: a network, the trains on it and the
// deferred-action queue that keeps dwell timing in simulated time.
type Sim struct {
	net    *track.Network
	queue  *schedule.Queue
	trains []*train.Consist

	frameSeconds float64
	rec          Recorder
	log          logging.Logger

	tick    int
	resyncs map[*train.Consist]int
}

// New constructs a Sim over a finished network.
func New(net *track.Network, opts Options) *Sim {
	if opts.FrameSeconds <= 0 {
		opts.FrameSeconds = DefaultFrameSeconds
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Sim{
		net:          net,
		queue:        schedule.New(),
		frameSeconds: opts.FrameSeconds,
		rec:          opts.Recorder,
		log:          logging.OrNoop(opts.Logger).With(logging.String("component", "engine")),
		resyncs:      make(map[*train.Consist]int),
	}
}

// Scheduler is the queue drivers must defer dwell resumes on.
func (s *Sim) Scheduler() *schedule.Queue { return s.queue }

// Network returns the simulated network.
func (s *Sim) Network() *track.Network { return s.net }

// Trains returns the trains in update order.
func (s *Sim) Trains() []*train.Consist {
	out := make([]*train.Consist, len(s.trains))
	copy(out, s.trains)
	return out
}

// Now is the simulated time in seconds.
func (s *Sim) Now() float64 { return s.queue.Now() }

// Tick is the number of ticks advanced so far.
func (s *Sim) Tick() int { return s.tick }

// FrameSeconds is the simulated duration of one frame.
func (s *Sim) FrameSeconds() float64 { return s.frameSeconds }

// AddTrain appends a bound consist to the update order and reports its
// driver's state changes to the logger and recorder.
func (s *Sim) AddTrain(c *train.Consist) {
	name := c.Name()
	log := s.log.With(logging.String("train", name))
	prev := c.Driver().OnTransition
	c.Driver().OnTransition = func(t signaling.Transition) {
		if prev != nil {
			prev(t)
		}
		log.Debug(context.Background(), "driver state changed",
			logging.String("from", string(t.From)),
			logging.String("to", string(t.To)),
			logging.Int("segment", int(t.Segment)),
			logging.Float("speed", t.Speed))
		s.rec.IncStateTransition(name, t.From, t.To)
	}
	s.trains = append(s.trains, c)
	s.resyncs[c] = c.Resyncs()
}

// Advance runs one tick. delta is the elapsed time in frames, normally 1.
func (s *Sim) Advance(ctx context.Context, delta float64) {
	s.tick++
	now := s.queue.Now() + delta*s.frameSeconds
	s.queue.Advance(now)

	for _, c := range s.trains {
		speed := c.Update(ctx, delta)
		s.rec.SetTrainSpeed(c.Name(), speed)
		if n := c.Resyncs(); n != s.resyncs[c] {
			for i := s.resyncs[c]; i < n; i++ {
				s.rec.IncResync(c.Name())
			}
			s.resyncs[c] = n
		}
	}

	s.rec.SetOccupiedSegments(len(s.net.Occupied()))
	s.rec.ObserveTick(now)
}

// Snapshot captures the current state for presentation.
func (s *Sim) Snapshot() Frame {
	f := Frame{
		Tick:     s.tick,
		Time:     s.queue.Now(),
		Trains:   make([]TrainLog, 0, len(s.trains)),
		Occupied: s.net.Occupied(),
	}
	for _, c := range s.trains {
		head := c.Engine().Second
		tl := TrainLog{
			ID:       c.ID(),
			Name:     c.Name(),
			State:    c.Driver().State(),
			Speed:    c.Speed(),
			Segment:  head.Segment(),
			Distance: head.Distance(),
			Resyncs:  c.Resyncs(),
		}
		for _, b := range c.Bodies() {
			bl := BodyLog{Kind: b.Kind, Handle: b.Model.Handle}
			if pose, ok := b.Pose(); ok {
				bl.Pose = poseOf(pose)
			}
			tl.Bodies = append(tl.Bodies, bl)
		}
		f.Trains = append(f.Trains, tl)
	}
	return f
}

// Run advances the simulation by ticks ticks of delta frames each and
// returns a frame per tick, starting with the state before the first tick.
func (s *Sim) Run(ctx context.Context, ticks int, delta float64) (SimulationLog, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("sim.ticks", ticks),
		attribute.Int("sim.trains", len(s.trains)),
		attribute.Int("sim.segments", s.net.Len()),
	)

	if delta <= 0 {
		delta = 1
	}
	log := SimulationLog{
		Meta: SimulationMeta{
			SimulationID: runID,
			FrameSeconds: s.frameSeconds,
			Delta:        delta,
			Ticks:        ticks,
		},
		Output: make([]Frame, 0, ticks+1),
	}
	s.log.Info(ctx, "simulation started",
		logging.Int("ticks", ticks),
		logging.Int("trains", len(s.trains)))

	log.Output = append(log.Output, s.Snapshot())
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return SimulationLog{}, fmt.Errorf("at tick %d: %w", s.tick, err)
		}
		s.Advance(ctx, delta)
		log.Output = append(log.Output, s.Snapshot())
	}

	s.log.Info(ctx, "simulation finished",
		logging.Int("ticks", s.tick),
		logging.Float("sim_seconds", s.Now()))
	return log, nil
}

// MarshalLog encodes a simulation log as JSON.
func MarshalLog(l SimulationLog) (string, error) {
	out, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}

// Package signaling implements the per-engine driver: a small state machine
// that picks each tick's speed from block occupancy ahead, scheduled stops
// and the end of the line.
package signaling

import (
	"github.com/cxd309/tms-rail/internal/kinematics"
	"github.com/cxd309/tms-rail/internal/schedule"
	"github.com/cxd309/tms-rail/internal/track"
)

// State is the driver's current mode.
type State string

const (
	StateStopped       State = "stopped"
	StateAccelerating  State = "accelerating"
	StateBraking       State = "braking"
	StateWaitingAtStop State = "waiting_at_stop"
)

// StopThreshold is the speed below which a braking train is considered
// stationary.
const StopThreshold = 0.001

// Scheduler defers an action by a number of simulated seconds.
// *schedule.Queue satisfies it.
type Scheduler interface {
	After(delay float64, fn func()) schedule.EventID
}

// Lookahead is what the driver can see from the engine's leading wheelset.
type Lookahead struct {
	// Bound is false once the wheelset has run off the network.
	Bound   bool
	Segment track.SegmentID
	// Dwell is the scheduled stop on the current segment.
	Dwell float64
	// HasNext is false on a terminal segment.
	HasNext      bool
	NextOccupied bool
	// Progress is the fraction of the current segment already covered.
	Progress float64
}

// Transition records a state change.
type Transition struct {
	From, To State
	Segment  track.SegmentID
	Speed    float64
}

// Driver computes a train's speed tick by tick.
type Driver struct {
	model kinematics.MotionModel
	sched Scheduler

	state State
	speed float64

	// waiting is set while a stop is owed: a dwell or the end of the line.
	waiting         bool
	dwell           float64
	brakeStartSpeed float64
	last            track.SegmentID

	// OnTransition, when set, is called after every state change.
	OnTransition func(Transition)
}

// NewDriver returns a driver that starts out accelerating from rest.
func NewDriver(model kinematics.MotionModel, sched Scheduler) *Driver {
	return &Driver{
		model: model,
		sched: sched,
		state: StateAccelerating,
		last:  track.NoSegment,
	}
}

func (d *Driver) State() State             { return d.state }
func (d *Driver) Speed() float64           { return d.speed }
func (d *Driver) Waiting() bool            { return d.waiting }
func (d *Driver) BrakeStartSpeed() float64 { return d.brakeStartSpeed }

// Model returns the motion model the driver steps with.
func (d *Driver) Model() kinematics.MotionModel { return d.model }

func (d *Driver) set(s State, seg track.SegmentID) {
	if s == d.state {
		return
	}
	t := Transition{From: d.state, To: s, Segment: seg, Speed: d.speed}
	d.state = s
	if d.OnTransition != nil {
		d.OnTransition(t)
	}
}

func (d *Driver) brake(seg track.SegmentID) {
	d.set(StateBraking, seg)
	d.brakeStartSpeed = d.speed
}

// Tick evaluates the transitions for one tick and returns the speed to
// apply to the whole consist.
func (d *Driver) Tick(la Lookahead) float64 {
	if !la.Bound {
		d.set(StateStopped, track.NoSegment)
		d.speed = 0
		return 0
	}

	if la.Segment != d.last {
		d.last = la.Segment
		if la.Dwell > 0 && !d.waiting {
			d.brake(la.Segment)
			d.waiting = true
			d.dwell = la.Dwell
		}
		if la.NextOccupied {
			d.brake(la.Segment)
		}
	} else if la.NextOccupied && d.state == StateAccelerating {
		d.brake(la.Segment)
	}

	if !la.HasNext && d.state == StateAccelerating {
		d.brake(la.Segment)
		d.waiting = true
	}

	if !la.NextOccupied && !d.waiting && (d.state == StateBraking || d.state == StateStopped) {
		d.set(StateAccelerating, la.Segment)
	}

	switch d.state {
	case StateBraking:
		if d.speed > StopThreshold {
			target := (1 - la.Progress) * d.model.VMax()
			d.speed = d.model.BrakeStep(d.speed, target)
		} else {
			d.stop(la.Segment)
		}
	case StateAccelerating:
		d.speed = d.model.AccelerateStep(d.speed)
	default:
		d.speed = 0
	}
	return d.speed
}

// stop brings the train to rest and, if a dwell is owed, arranges the
// resume once it has elapsed.
func (d *Driver) stop(seg track.SegmentID) {
	d.speed = 0
	if d.dwell <= 0 || d.sched == nil {
		d.set(StateStopped, seg)
		return
	}
	d.set(StateWaitingAtStop, seg)
	d.sched.After(d.dwell, func() {
		if d.state != StateWaitingAtStop {
			return
		}
		d.waiting = false
		d.dwell = 0
		d.set(StateAccelerating, seg)
	})
}

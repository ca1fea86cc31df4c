package engine

import (
	"github.com/google/uuid"

	"github.com/cxd309/tms-rail/internal/signaling"
	"github.com/cxd309/tms-rail/internal/track"
	"github.com/cxd309/tms-rail/internal/train"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	FrameSeconds float64 `json:"frame_seconds"` // simulated seconds per unit of delta
	Delta        float64 `json:"delta"`         // frames per tick
	Ticks        int     `json:"ticks"`
}

// Pose is a world position and an orientation quaternion (x, y, z, w).
type Pose struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

func poseOf(p track.Pose) *Pose {
	v := p.Orientation.V
	return &Pose{
		Position:    [3]float64{p.Position.X(), p.Position.Y(), p.Position.Z()},
		Orientation: [4]float64{v.X(), v.Y(), v.Z(), p.Orientation.W},
	}
}

// BodyLog is the placement of one engine or carriage. Pose is nil once the
// body has left the network.
type BodyLog struct {
	Kind   train.ModelKind `json:"kind"`
	Handle string          `json:"handle,omitempty"`
	Pose   *Pose           `json:"pose"`
}

// TrainLog is the state of one consist at a single tick.
type TrainLog struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	State    signaling.State `json:"state"`
	Speed    float64         `json:"speed"`
	Segment  track.SegmentID `json:"segment"` // head wheelset; -1 once off the network
	Distance float64         `json:"distance"`
	Resyncs  int             `json:"resyncs,omitempty"`
	Bodies   []BodyLog       `json:"bodies"`
}

// Frame is the state of every train and the occupied blocks at one tick.
type Frame struct {
	Tick     int               `json:"tick"`
	Time     float64           `json:"time"` // simulated seconds
	Trains   []TrainLog        `json:"trains"`
	Occupied []track.SegmentID `json:"occupied"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta   SimulationMeta `json:"simulation_meta"`
	Output []Frame        `json:"output"`
}

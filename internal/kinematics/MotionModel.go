// Package kinematics defines the MotionModel interface that turns a train's
// current speed into its speed for the next tick, along with built-in
// implementations.
//
// Speeds are in distance units per frame. A model is stateless; the signaling
// driver owns the current speed and decides which step to take.
package kinematics

import "fmt"

// MotionModel is the contract every speed-stepping model must satisfy.
type MotionModel interface {
	// VMax returns the maximum permissible speed.
	VMax() float64

	// AccelerateStep returns the speed after one tick of traction from v.
	// The result never exceeds VMax.
	AccelerateStep(v float64) float64

	// BrakeStep returns the speed after one tick of braking from v toward
	// target. Above target the result never increases; below target the
	// train may speed up but never past target.
	BrakeStep(v, target float64) float64
}

// Params is the serialisable description of a motion model. Model selects the
// implementation; the remaining fields are interpreted by it.
type Params struct {
	Model        string  `yaml:"model" json:"model"`
	MaxSpeed     float64 `yaml:"max_speed" json:"max_speed"`
	Acceleration float64 `yaml:"acceleration" json:"acceleration"`
}

// DefaultParams is the constant-step model at the stock speed and rate.
func DefaultParams() Params {
	return Params{Model: ConstantModelName, MaxSpeed: 0.15, Acceleration: 0.0001}
}

// Build resolves the parameters to a MotionModel.
//
// Supported models:
//   - "constant": fixed per-tick step up to a maximum speed.
func (s Params) Build() (MotionModel, error) {
	switch s.Model {
	case ConstantModelName, "":
		if s.MaxSpeed <= 0 {
			return nil, fmt.Errorf("constant kinematics: max_speed must be positive, got %v", s.MaxSpeed)
		}
		if s.Acceleration <= 0 {
			return nil, fmt.Errorf("constant kinematics: acceleration must be positive, got %v", s.Acceleration)
		}
		return ConstantStep{Step: s.Acceleration, VMaxVal: s.MaxSpeed}, nil
	default:
		return nil, fmt.Errorf("unknown kinematics model %q", s.Model)
	}
}

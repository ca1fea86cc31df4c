package kinematics

import "math"

// ConstantModelName is the discriminator string for the ConstantStep model.
const ConstantModelName = "constant"

// ConstantStep implements MotionModel by changing speed by a fixed amount
// each tick.
type ConstantStep struct {
	Step    float64 `yaml:"acceleration" json:"acceleration"` // speed change per tick
	VMaxVal float64 `yaml:"max_speed" json:"max_speed"`
}

func (c ConstantStep) VMax() float64 { return c.VMaxVal }

func (c ConstantStep) AccelerateStep(v float64) float64 {
	return math.Min(c.VMaxVal, v+c.Step)
}

func (c ConstantStep) BrakeStep(v, target float64) float64 {
	target = math.Max(0, target)
	if v > target {
		// clamp straight down to the ramp
		return target
	}
	return math.Min(target, v+c.Step)
}

package scenario

import (
	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/kinematics"
	"github.com/cxd309/tms-rail/internal/train"
)

// Version is the scenario schema version this package reads.
const Version = 1

// Scenario is the top-level description of a simulation: how the network
// is laid, how trains move, and where they start.
type Scenario struct {
	Version    int               `yaml:"version" json:"version"`
	Name       string            `yaml:"name" json:"name"`
	Sim        Sim               `yaml:"sim" json:"sim"`
	Kinematics kinematics.Params `yaml:"kinematics" json:"kinematics"`
	Track      Track             `yaml:"track" json:"track"`
	Models     Models            `yaml:"models" json:"models"`
	Routes     []Route           `yaml:"routes" json:"routes"`
	Trains     []Train           `yaml:"trains" json:"trains"`
}

type Sim struct {
	FrameSeconds float64 `yaml:"frame_seconds" json:"frame_seconds"`
	// SyncInterval is the number of ticks between formation checks. A
	// negative value disables them.
	SyncInterval  int     `yaml:"sync_interval" json:"sync_interval"`
	SyncTolerance float64 `yaml:"sync_tolerance" json:"sync_tolerance"`
}

type Track struct {
	// Width is the lateral offset of each rail from the centreline.
	Width      float64 `yaml:"width" json:"width"`
	RailPolicy string  `yaml:"rail_policy" json:"rail_policy"`
}

type Models struct {
	Engine          train.Model `yaml:"engine" json:"engine"`
	Carriage        train.Model `yaml:"carriage" json:"carriage"`
	WheelSeparation float64     `yaml:"wheel_separation" json:"wheel_separation"`
}

// Provider returns the models as a train.ModelProvider.
func (m Models) Provider() train.ModelProvider {
	return train.StaticModels{
		train.KindEngine:   m.Engine,
		train.KindCarriage: m.Carriage,
	}
}

// Point is an [x, y, z] coordinate.
type Point [3]float64

func (p Point) Vec() geometry.Vec3 { return geometry.Vec3{p[0], p[1], p[2]} }

// Curve is an explicit continuation: two control points and an end.
type Curve struct {
	C1  Point `yaml:"c1" json:"c1"`
	C2  Point `yaml:"c2" json:"c2"`
	End Point `yaml:"end" json:"end"`
}

// Route is one authored route: a root segment and the steps that extend it.
type Route struct {
	Name string `yaml:"name" json:"name"`
	// Root holds the start, both control points and the end of the first
	// segment.
	Root  [4]Point `yaml:"root" json:"root"`
	Steps []Step   `yaml:"steps" json:"steps"`
}

// Step is a single route operation. Exactly one operation field is set;
// As may accompany MoveTo.
type Step struct {
	MoveTo          *Point   `yaml:"move_to,omitempty" json:"move_to,omitempty"`
	As              string   `yaml:"as,omitempty" json:"as,omitempty"`
	ArcTo           *Point   `yaml:"arc_to,omitempty" json:"arc_to,omitempty"`
	CurveTo         *Curve   `yaml:"curve_to,omitempty" json:"curve_to,omitempty"`
	Junction        string   `yaml:"junction,omitempty" json:"junction,omitempty"`
	Wait            *float64 `yaml:"wait,omitempty" json:"wait,omitempty"`
	ConnectJunction string   `yaml:"connect_junction,omitempty" json:"connect_junction,omitempty"`
	ConnectRoot     bool     `yaml:"connect_root,omitempty" json:"connect_root,omitempty"`
	Mark            string   `yaml:"mark,omitempty" json:"mark,omitempty"`
}

// Op names the operations set on the step.
func (s Step) Op() []string {
	var ops []string
	if s.MoveTo != nil {
		ops = append(ops, "move_to")
	}
	if s.ArcTo != nil {
		ops = append(ops, "arc_to")
	}
	if s.CurveTo != nil {
		ops = append(ops, "curve_to")
	}
	if s.Junction != "" {
		ops = append(ops, "junction")
	}
	if s.Wait != nil {
		ops = append(ops, "wait")
	}
	if s.ConnectJunction != "" {
		ops = append(ops, "connect_junction")
	}
	if s.ConnectRoot {
		ops = append(ops, "connect_root")
	}
	if s.Mark != "" {
		ops = append(ops, "mark")
	}
	return ops
}

// AtRoot places a train on its route's root segment.
const AtRoot = "root"

// Train is one consist and where it starts.
type Train struct {
	Name  string `yaml:"name" json:"name"`
	Route string `yaml:"route" json:"route"`
	// At is AtRoot or a mark on the route.
	At        string  `yaml:"at" json:"at"`
	Carriages *int    `yaml:"carriages" json:"carriages"`
	Offset    float64 `yaml:"offset" json:"offset"`
}

// DefaultCarriages is the carriage count for trains that do not set one.
const DefaultCarriages = 3

// CarriageCount resolves the carriage count.
func (t Train) CarriageCount() int {
	if t.Carriages == nil {
		return DefaultCarriages
	}
	return *t.Carriages
}

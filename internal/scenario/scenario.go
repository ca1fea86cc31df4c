// Package scenario reads simulation scenarios from YAML: the script that
// lays out the track network, the motion parameters, and the trains.
package scenario

import (
	"bytes"
	"embed"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/kinematics"
	"github.com/cxd309/tms-rail/internal/track"
)

//go:embed presets/*.yaml
var presets embed.FS

// DefaultPreset is the scenario returned by Default.
const DefaultPreset = "station"

const (
	defaultFrameSeconds    = 1.0 / 60
	defaultSyncInterval    = 1
	defaultSyncTolerance   = 0.5
	defaultWheelSeparation = 3.2
	defaultModelWidth      = 4.0
)

// trainNamespace seeds deterministic train IDs.
var trainNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/cxd309/tms-rail/trains"))

// TrainID derives a stable ID from a train name.
func TrainID(name string) uuid.UUID {
	return uuid.NewSHA1(trainNamespace, []byte(name))
}

// Load reads and validates a scenario file.
func Load(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario file")
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", file)
	}
	return s, nil
}

// Parse decodes a scenario document, fills defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "parsing scenario YAML")
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the embedded station scenario.
func Default() (*Scenario, error) {
	return Preset(DefaultPreset)
}

// Preset returns an embedded scenario by name.
func Preset(name string) (*Scenario, error) {
	data, err := presets.ReadFile(path.Join("presets", name+".yaml"))
	if err != nil {
		return nil, errors.Errorf("unknown preset %q", name)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "preset %s", name)
	}
	return s, nil
}

// Presets lists the embedded scenario names.
func Presets() []string {
	entries, _ := presets.ReadDir("presets")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

func (s *Scenario) applyDefaults() {
	if s.Version == 0 {
		s.Version = Version
	}
	if s.Sim.FrameSeconds == 0 {
		s.Sim.FrameSeconds = defaultFrameSeconds
	}
	if s.Sim.SyncInterval == 0 {
		s.Sim.SyncInterval = defaultSyncInterval
	}
	if s.Sim.SyncTolerance == 0 {
		s.Sim.SyncTolerance = defaultSyncTolerance
	}

	def := kinematics.DefaultParams()
	if s.Kinematics.Model == "" {
		s.Kinematics.Model = def.Model
	}
	if s.Kinematics.MaxSpeed == 0 {
		s.Kinematics.MaxSpeed = def.MaxSpeed
	}
	if s.Kinematics.Acceleration == 0 {
		s.Kinematics.Acceleration = def.Acceleration
	}

	tdef := track.DefaultConfig()
	if s.Track.Width == 0 {
		s.Track.Width = tdef.Gauge
	}
	if s.Track.RailPolicy == "" {
		s.Track.RailPolicy = string(tdef.RailPolicy)
	}

	if s.Models.Engine.Width == 0 {
		s.Models.Engine.Width = defaultModelWidth
	}
	if s.Models.Carriage.Width == 0 {
		s.Models.Carriage.Width = defaultModelWidth
	}
	if s.Models.WheelSeparation == 0 {
		s.Models.WheelSeparation = defaultWheelSeparation
	}

	for i := range s.Trains {
		if s.Trains[i].At == "" {
			s.Trains[i].At = AtRoot
		}
	}
}

// Validate checks the scenario for problems that would stop it building.
// Junction names are not checked; unresolved references are reported when
// the network is finished.
func (s *Scenario) Validate() error {
	if s.Version != Version {
		return errors.Errorf("unsupported scenario version %d (want %d)", s.Version, Version)
	}
	if s.Sim.FrameSeconds <= 0 {
		return errors.Errorf("sim.frame_seconds must be positive, got %v", s.Sim.FrameSeconds)
	}
	if s.Sim.SyncTolerance < 0 {
		return errors.Errorf("sim.sync_tolerance must not be negative, got %v", s.Sim.SyncTolerance)
	}
	if _, err := s.Kinematics.Build(); err != nil {
		return errors.Wrap(err, "kinematics")
	}
	if s.Track.Width <= 0 {
		return errors.Errorf("track.width must be positive, got %v", s.Track.Width)
	}
	if _, err := geometry.ParseRailPolicy(s.Track.RailPolicy); err != nil {
		return errors.Wrap(err, "track")
	}
	if s.Models.Engine.Width <= 0 || s.Models.Carriage.Width <= 0 {
		return errors.New("models: widths must be positive")
	}
	if s.Models.WheelSeparation <= 0 {
		return errors.Errorf("models.wheel_separation must be positive, got %v", s.Models.WheelSeparation)
	}
	if len(s.Routes) == 0 {
		return errors.New("scenario has no routes")
	}

	var names []string
	marks := make(map[string][]string)
	for i, r := range s.Routes {
		if r.Name == "" {
			return errors.Errorf("route %d has no name", i)
		}
		if slices.Contains(names, r.Name) {
			return errors.Errorf("duplicate route %q", r.Name)
		}
		names = append(names, r.Name)
		for j, step := range r.Steps {
			if err := step.validate(); err != nil {
				return errors.Wrapf(err, "route %q step %d", r.Name, j)
			}
			if step.Mark != "" {
				if slices.Contains(marks[r.Name], step.Mark) {
					return errors.Errorf("route %q: duplicate mark %q", r.Name, step.Mark)
				}
				marks[r.Name] = append(marks[r.Name], step.Mark)
			}
		}
	}

	var trains []string
	for i, t := range s.Trains {
		if t.Name == "" {
			return errors.Errorf("train %d has no name", i)
		}
		if slices.Contains(trains, t.Name) {
			return errors.Errorf("duplicate train %q", t.Name)
		}
		trains = append(trains, t.Name)
		if !slices.Contains(names, t.Route) {
			return errors.Errorf("train %q: unknown route %q", t.Name, t.Route)
		}
		if t.At != AtRoot && !slices.Contains(marks[t.Route], t.At) {
			return errors.Errorf("train %q: route %q has no mark %q", t.Name, t.Route, t.At)
		}
		if t.CarriageCount() < 0 {
			return errors.Errorf("train %q: carriages must not be negative", t.Name)
		}
		if t.Offset < 0 {
			return errors.Errorf("train %q: offset must not be negative", t.Name)
		}
	}
	return nil
}

func (s Step) validate() error {
	ops := s.Op()
	switch len(ops) {
	case 0:
		return errors.New("no operation")
	case 1:
	default:
		return errors.Errorf("more than one operation: %s", strings.Join(ops, ", "))
	}
	if s.As != "" && s.MoveTo == nil {
		return errors.Errorf("%s: as is only valid with move_to", ops[0])
	}
	if s.Wait != nil && *s.Wait < 0 {
		return errors.Errorf("wait must not be negative, got %v", *s.Wait)
	}
	return nil
}

// Package train places trains on a track network and moves them: wheelsets
// that follow segment links, bodies carried on two wheelsets, and consists
// that keep an engine and its carriages in formation.
package train

import (
	"errors"
	"fmt"
)

var (
	// ErrNoModel is returned when a ModelProvider has nothing for a kind.
	ErrNoModel = errors.New("no model supplied")
	// ErrUnbound is returned for operations that need a wheelset on track.
	ErrUnbound = errors.New("wheelset is not on the network")
	// ErrUnknownSegment is returned when binding to a segment the network
	// does not contain.
	ErrUnknownSegment = errors.New("unknown segment")
)

// ModelKind names the kind of visual model a body or wheelset is drawn
// with.
type ModelKind string

const (
	KindEngine   ModelKind = "engine"
	KindCarriage ModelKind = "carriage"
	KindWheelSet ModelKind = "wheelset"
)

// Model is an opaque visual model supplied by the host. Width is the
// body's length along the track and sets the spacing between bodies.
type Model struct {
	Handle string  `json:"handle" yaml:"handle"`
	Width  float64 `json:"width" yaml:"width"`
}

// ModelProvider supplies models for trains. Assets are loaded by the host;
// this package only asks for them by kind.
type ModelProvider interface {
	Model(kind ModelKind) (Model, error)
}

// StaticModels is a ModelProvider backed by a fixed map.
type StaticModels map[ModelKind]Model

func (m StaticModels) Model(kind ModelKind) (Model, error) {
	model, ok := m[kind]
	if !ok {
		return Model{}, fmt.Errorf("%s: %w", kind, ErrNoModel)
	}
	return model, nil
}

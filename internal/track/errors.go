package track

import "errors"

var (
	// ErrNoRoot is returned when a route is extended before SetRoot.
	ErrNoRoot = errors.New("route has no root segment")
	// ErrRootExists is returned when SetRoot is called twice on one route.
	ErrRootExists = errors.New("route root already set")
	// ErrJunctionExists is returned when a junction name is registered twice.
	ErrJunctionExists = errors.New("junction already registered")
	// ErrUnknownJunction is returned by lookups of unregistered names.
	ErrUnknownJunction = errors.New("unknown junction")
	// ErrAlreadyConnected is returned when a connection would overwrite an
	// existing link to a different segment.
	ErrAlreadyConnected = errors.New("segment end already connected")
	// ErrForeignSegment is returned when segments of different networks are
	// connected.
	ErrForeignSegment = errors.New("segment belongs to another network")
	// ErrPendingJoin is returned when a route is extended past a join to a
	// junction that is not registered yet. The join is completed by Finish.
	ErrPendingJoin = errors.New("route ends in a pending junction join")
	// ErrNegativeDwell is returned by Route.Wait for negative durations.
	ErrNegativeDwell = errors.New("dwell time must not be negative")
)

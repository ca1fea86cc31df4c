package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/tms-rail/internal/engine"
	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/track"
)

func TestEncodeFrame(t *testing.T) {
	ev, err := encodeFrame(engine.Frame{Tick: 42, Time: 0.7, Occupied: []track.SegmentID{1, 3}})
	require.NoError(t, err)
	assert.Equal(t, "42", string(ev.ID))
	assert.Equal(t, "frame", string(ev.Event))

	var f engine.Frame
	require.NoError(t, json.Unmarshal(ev.Data, &f))
	assert.Equal(t, 42, f.Tick)
	assert.Equal(t, []track.SegmentID{1, 3}, f.Occupied)
}

func TestEncodeOccupancy(t *testing.T) {
	ev, ok, err := encodeOccupancy(track.Event{Kind: track.EventOccupancy, Segment: 7, Occupied: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "occupancy", string(ev.Event))
	assert.JSONEq(t, `{"segment": 7, "occupied": true}`, string(ev.Data))

	_, ok, err = encodeOccupancy(track.Event{Kind: track.EventGeometry, Segment: 7})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPumpStepPublishes(t *testing.T) {
	net := track.NewNetwork(track.DefaultConfig(), nil)
	r := net.NewRoute().SetRoot(geometry.Vec3{0, 0, 0}, geometry.Vec3{0, 0, 3}, geometry.Vec3{0, 0, 7}, geometry.Vec3{0, 0, 10})
	require.NoError(t, r.Err())

	srv := NewServer(nil)
	defer srv.Close()
	net.Subscribe(srv.OccupancyListener())
	sim := engine.New(net, engine.Options{})
	p := NewPump(sim, srv, 0, nil)

	require.NoError(t, p.Step(context.Background()))
	require.NoError(t, p.Step(context.Background()))
	p.Locked(func(s *engine.Sim) {
		assert.Equal(t, 2, s.Tick())
	})
}

package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/track"
)

const minimal = `
routes:
  - name: line
    root: [[0, 0, 0], [0, 0, 3], [0, 0, 7], [0, 0, 10]]
    steps:
      - move_to: [0, 0, 20]
      - mark: second
      - wait: 2
trains:
  - {name: t1, route: line}
  - {name: t2, route: line, at: second, carriages: 0}
`

func TestParseFillsDefaults(t *testing.T) {
	s, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, Version, s.Version)
	assert.InDelta(t, 1.0/60, s.Sim.FrameSeconds, 1e-12)
	assert.Equal(t, 1, s.Sim.SyncInterval)
	assert.Equal(t, 0.5, s.Sim.SyncTolerance)
	assert.Equal(t, "constant", s.Kinematics.Model)
	assert.Equal(t, 0.15, s.Kinematics.MaxSpeed)
	assert.Equal(t, 0.0001, s.Kinematics.Acceleration)
	assert.Equal(t, 0.22, s.Track.Width)
	assert.Equal(t, string(geometry.RailRefined), s.Track.RailPolicy)
	assert.Equal(t, 4.0, s.Models.Engine.Width)
	assert.Equal(t, 4.0, s.Models.Carriage.Width)
	assert.Equal(t, 3.2, s.Models.WheelSeparation)

	require.Len(t, s.Trains, 2)
	assert.Equal(t, AtRoot, s.Trains[0].At)
	assert.Equal(t, DefaultCarriages, s.Trains[0].CarriageCount())
	assert.Equal(t, 0, s.Trains[1].CarriageCount())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unsupported version",
			doc:  "version: 2\n" + minimal,
			want: "unsupported scenario version",
		},
		{
			name: "unknown key",
			doc:  "bogus: 1\n" + minimal,
			want: "field bogus not found",
		},
		{
			name: "no routes",
			doc:  "version: 1\n",
			want: "no routes",
		},
		{
			name: "two operations in one step",
			doc: `
routes:
  - name: a
    root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]
    steps:
      - {move_to: [0, 0, 5], wait: 1}
`,
			want: "more than one operation",
		},
		{
			name: "as without move_to",
			doc: `
routes:
  - name: a
    root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]
    steps:
      - {arc_to: [3, 0, 5], as: j}
`,
			want: "as is only valid with move_to",
		},
		{
			name: "empty step",
			doc: `
routes:
  - name: a
    root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]
    steps:
      - {}
`,
			want: "no operation",
		},
		{
			name: "negative wait",
			doc: `
routes:
  - name: a
    root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]
    steps:
      - wait: -1
`,
			want: "wait must not be negative",
		},
		{
			name: "duplicate route",
			doc: `
routes:
  - {name: a, root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]}
  - {name: a, root: [[1, 0, 0], [1, 0, 1], [1, 0, 2], [1, 0, 3]]}
`,
			want: `duplicate route "a"`,
		},
		{
			name: "unknown route",
			doc: `
routes:
  - {name: a, root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]}
trains:
  - {name: t, route: b}
`,
			want: `unknown route "b"`,
		},
		{
			name: "unknown mark",
			doc: `
routes:
  - {name: a, root: [[0, 0, 0], [0, 0, 1], [0, 0, 2], [0, 0, 3]]}
trains:
  - {name: t, route: a, at: platform}
`,
			want: `has no mark "platform"`,
		},
		{
			name: "bad rail policy",
			doc:  "track: {rail_policy: wobbly}\n" + minimal,
			want: "wobbly",
		},
		{
			name: "bad kinematics model",
			doc:  "kinematics: {model: warp}\n" + minimal,
			want: `unknown kinematics model "warp"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTrainIDIsStable(t *testing.T) {
	assert.Equal(t, TrainID("east"), TrainID("east"))
	assert.NotEqual(t, TrainID("east"), TrainID("west"))
}

func TestBuildMinimal(t *testing.T) {
	s, err := Parse([]byte(minimal))
	require.NoError(t, err)

	l, err := s.BuildNetwork(context.Background(), logging.Noop())
	require.NoError(t, err)
	assert.True(t, l.Report.Complete())
	assert.Equal(t, 2, l.Network.Len())

	first, err := l.Placement(s.Trains[0])
	require.NoError(t, err)
	second, err := l.Placement(s.Trains[1])
	require.NoError(t, err)
	assert.Equal(t, track.SegmentID(0), first)
	assert.Equal(t, track.SegmentID(1), second)
	assert.Equal(t, 2.0, l.Network.Segment(second).Dwell())
}

func TestBuildReportsFailingStep(t *testing.T) {
	s, err := Parse([]byte(`
routes:
  - name: loop
    root: [[0, 0, 0], [0, 0, 3], [0, 0, 7], [0, 0, 10]]
    steps:
      - arc_to: [10, 0, 20]
      - connect_root: true
      - move_to: [0, 0, 50]
`))
	require.NoError(t, err)

	_, err = s.BuildNetwork(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, track.ErrAlreadyConnected))
	assert.Contains(t, err.Error(), `route "loop" step 2`)
}

func TestBuildRejectsStepAfterPendingJoin(t *testing.T) {
	s, err := Parse([]byte(`
routes:
  - name: spur
    root: [[0, 0, 0], [0, 0, 3], [0, 0, 7], [0, 0, 10]]
    steps:
      - connect_junction: yard
      - move_to: [0, 0, 40]
  - name: yard
    root: [[20, 0, 0], [20, 0, 3], [20, 0, 7], [20, 0, 10]]
    steps:
      - junction: yard
`))
	require.NoError(t, err)

	_, err = s.BuildNetwork(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, track.ErrPendingJoin)
	assert.Contains(t, err.Error(), `route "spur" step 1`)
}

func TestStationPreset(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	assert.Contains(t, Presets(), DefaultPreset)
	require.Len(t, s.Routes, 5)
	require.Len(t, s.Trains, 6)

	l, err := s.BuildNetwork(context.Background(), logging.Noop())
	require.NoError(t, err)
	net := l.Network

	assert.True(t, l.Report.Complete(), "unresolved: %v", l.Report.Unresolved)
	assert.Equal(t, []string{"station_plt_1"}, l.Report.Resolved)
	if diff := cmp.Diff([]string{"station_plt_1", "station_plt_2", "station_plt_3"}, net.Junctions()); diff != "" {
		t.Errorf("junctions mismatch (-want +got):\n%s", diff)
	}

	// platform 2 is the east loop's root, where trains wait five seconds
	east, err := l.Routes["east_loop"].Root()
	require.NoError(t, err)
	plt2, err := net.Junction("station_plt_2")
	require.NoError(t, err)
	assert.Equal(t, east, plt2)
	assert.Equal(t, 5.0, net.Segment(east).Dwell())

	// the two loops feed each other's platforms
	for _, pair := range [][2]string{{"east_loop", "station_plt_1"}, {"west_loop", "station_plt_2"}} {
		segs := l.Routes[pair[0]].Segments()
		last := net.Segment(segs[len(segs)-1])
		target, err := net.Junction(pair[1])
		require.NoError(t, err)
		next, ok := last.Next()
		require.True(t, ok, pair[0])
		assert.Equal(t, target, next, pair[0])
		assert.False(t, last.Stub(), pair[0])
	}

	// closed loops return to their root
	for _, name := range []string{"figure_eight", "outer_loop"} {
		root, err := l.Routes[name].Root()
		require.NoError(t, err)
		id := root
		for i := 0; i < net.Len(); i++ {
			next, ok := net.Segment(id).Next()
			require.True(t, ok, name)
			id = next
			if id == root {
				break
			}
		}
		assert.Equal(t, root, id, name)
	}

	outer := l.Routes["outer_loop"].Segments()
	assert.Equal(t, outer[2], l.Marks["outer_loop"]["start"])
	assert.Equal(t, outer[8], l.Marks["outer_loop"]["second_start"])

	for _, tr := range s.Trains {
		_, err := l.Placement(tr)
		assert.NoError(t, err, tr.Name)
	}
}

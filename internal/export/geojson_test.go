package export

import (
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/track"
)

func straight(t *testing.T) *track.Network {
	t.Helper()
	net := track.NewNetwork(track.DefaultConfig(), nil)
	r := net.NewRoute().
		SetRoot(geometry.Vec3{0, 0, 0}, geometry.Vec3{0, 0, 3}, geometry.Vec3{0, 0, 7}, geometry.Vec3{0, 0, 10}).
		SetJunction("platform").
		Wait(3)
	require.NoError(t, r.Err())
	return net
}

func TestNetworkFeatures(t *testing.T) {
	net := straight(t)
	net.Hold(0)

	fc := Network(net, Options{Samples: 8, Rails: true, SleeperSpacing: 3})
	require.Len(t, fc.Features, 4)

	kinds := make([]string, len(fc.Features))
	for i, f := range fc.Features {
		kinds[i] = f.Properties["kind"].(string)
		assert.Equal(t, 0, f.Properties["segment"])
		assert.Equal(t, true, f.Properties["occupied"])
		assert.Equal(t, 3.0, f.Properties["dwell"])
		assert.Equal(t, "platform", f.Properties["junction"])
	}
	assert.Equal(t, []string{KindCenterline, KindRailLeft, KindRailRight, KindSleepers}, kinds)

	center := fc.Features[0].Geometry
	require.True(t, center.IsLineString())
	require.Len(t, center.LineString, 9)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, center.LineString[0], 1e-9)
	assert.InDeltaSlice(t, []float64{0, 10, 0}, center.LineString[8], 1e-9)

	// travelling +Z, the left rail lies toward +X
	left := fc.Features[1].Geometry.LineString
	right := fc.Features[2].Geometry.LineString
	assert.InDelta(t, 0.22, left[0][0], 1e-9)
	assert.InDelta(t, -0.22, right[0][0], 1e-9)

	sleepers := fc.Features[3].Geometry
	require.True(t, sleepers.IsMultiPoint())
	assert.Len(t, sleepers.MultiPoint, 4)
}

func TestNetworkCenterlineOnly(t *testing.T) {
	fc := Network(straight(t), Options{})
	require.Len(t, fc.Features, 1)
	assert.Len(t, fc.Features[0].Geometry.LineString, DefaultSamples+1)
	assert.Equal(t, false, fc.Features[0].Properties["occupied"])
}

func TestNetworkJSON(t *testing.T) {
	data, err := NetworkJSON(straight(t), DefaultOptions())
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 4)
	// numbers decode as float64
	assert.Equal(t, 0.0, fc.Features[0].Properties["segment"])
}

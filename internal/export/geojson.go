// Package export renders a track network as GeoJSON for presentation
// clients. The world's horizontal plane (x, z) maps to GeoJSON x and y;
// world height becomes the third coordinate.
package export

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/cxd309/tms-rail/internal/geometry"
	"github.com/cxd309/tms-rail/internal/track"
)

// Feature kinds.
const (
	KindCenterline = "centerline"
	KindRailLeft   = "rail_left"
	KindRailRight  = "rail_right"
	KindSleepers   = "sleepers"
)

// DefaultSamples is the number of intervals each curve is sampled into.
const DefaultSamples = 32

// Options controls the export.
type Options struct {
	// Samples is the number of intervals per curve. Zero selects
	// DefaultSamples.
	Samples int
	// Rails adds a line per rail.
	Rails bool
	// SleeperSpacing adds a MultiPoint of sleeper positions per segment when
	// positive.
	SleeperSpacing float64
}

// DefaultOptions exports rails and sleepers at the stock spacing.
func DefaultOptions() Options {
	return Options{Samples: DefaultSamples, Rails: true, SleeperSpacing: track.DefaultSleeperSpacing}
}

func position(v geometry.Vec3) []float64 {
	return []float64{v.X(), v.Z(), v.Y()}
}

func line(points []geometry.Vec3) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = position(p)
	}
	return out
}

// Network builds a FeatureCollection with a centreline per segment and,
// as configured, its rails and sleepers.
func Network(net *track.Network, opts Options) *geojson.FeatureCollection {
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	fc := geojson.NewFeatureCollection()
	for _, s := range net.Segments() {
		fc.AddFeature(segmentFeature(s, KindCenterline, s.Samples(opts.Samples)))
		if opts.Rails {
			left, right := s.Rails()
			fc.AddFeature(segmentFeature(s, KindRailLeft, left.Sample(opts.Samples)))
			fc.AddFeature(segmentFeature(s, KindRailRight, right.Sample(opts.Samples)))
		}
		if opts.SleeperSpacing > 0 {
			poses := s.SleeperPoses(opts.SleeperSpacing)
			pts := make([][]float64, len(poses))
			for i, p := range poses {
				pts[i] = position(p.Position)
			}
			f := geojson.NewMultiPointFeature(pts...)
			setProperties(f, s, KindSleepers)
			fc.AddFeature(f)
		}
	}
	return fc
}

func segmentFeature(s *track.Segment, kind string, points []geometry.Vec3) *geojson.Feature {
	f := geojson.NewLineStringFeature(line(points))
	setProperties(f, s, kind)
	return f
}

func setProperties(f *geojson.Feature, s *track.Segment, kind string) {
	f.SetProperty("segment", int(s.ID()))
	f.SetProperty("kind", kind)
	f.SetProperty("length", s.Length())
	f.SetProperty("occupied", s.Occupied())
	f.SetProperty("dwell", s.Dwell())
	if j := s.Junction(); j != "" {
		f.SetProperty("junction", j)
	}
	if s.Stub() {
		f.SetProperty("stub", true)
	}
	if next, ok := s.Next(); ok {
		f.SetProperty("next", int(next))
	}
}

// NetworkJSON is Network encoded as JSON.
func NetworkJSON(net *track.Network, opts Options) ([]byte, error) {
	out, err := Network(net, opts).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding network: %w", err)
	}
	return out, nil
}

package geoio

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"shadowroads/internal/types"
)

// ShadedProperty flags features in the shaded-roads output.
const ShadedProperty = "shaded"

// LengthProperty holds the metric length of a shaded segment.
const LengthProperty = "length_m"

// EncodeShadows renders region as a FeatureCollection with one Polygon
// feature per part and empty properties.
func EncodeShadows(region orb.MultiPolygon) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, poly := range region {
		fc.Append(geojson.NewFeature(poly))
	}
	return encode(fc)
}

// EncodeShadedRoads renders one LineString feature per segment, tagged
// shaded=true with its length in metres and the road's passthrough
// properties.
func EncodeShadedRoads(segments []types.ShadedSegment) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, seg := range segments {
		f := geojson.NewFeature(seg.Geometry)
		for k, v := range seg.Properties {
			f.Properties[k] = v
		}
		f.Properties[ShadedProperty] = true
		f.Properties[LengthProperty] = math.Round(seg.LengthM*100) / 100
		fc.Append(f)
	}
	return encode(fc)
}

func encode(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeOutputWrite, "failed to encode FeatureCollection", err)
	}
	return data, nil
}

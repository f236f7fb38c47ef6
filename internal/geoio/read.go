package geoio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"shadowroads/internal/geometry"
	"shadowroads/internal/types"
)

// HeightProperty is the building attribute holding the height in metres.
const HeightProperty = "height_m"

// passthroughKeys are the road attributes copied onto shaded segments.
var passthroughKeys = []string{"id", "osm_id", "highway", "name", "oneway"}

// Buildings is the result of loading a buildings collection.
type Buildings struct {
	Buildings []types.Building
	Skipped   map[types.SkipReason]int
}

// Roads is the result of loading every configured infrastructure file.
type Roads struct {
	Roads   []types.Road
	Skipped map[types.SkipReason]int
	Missing []string
}

// ReadBuildings loads building footprints with a usable height. Features
// without a positive numeric height, without geometry, or with a
// non-polygonal or malformed geometry are skipped and counted.
//
// A missing file is input_missing and unparsable JSON is input_invalid;
// both are fatal to the run.
func (s *Store) ReadBuildings(path string) (*Buildings, error) {
	fc, err := s.readCollection(path)
	if err != nil {
		return nil, err
	}

	out := &Buildings{Skipped: make(map[types.SkipReason]int)}
	for i, f := range fc.Features {
		h, reason := parseHeight(f.Properties)
		if reason == "" {
			reason = classify(f.Geometry, geometry.IsPolygonal)
		}
		if reason != "" {
			out.Skipped[reason]++
			continue
		}
		out.Buildings = append(out.Buildings, types.Building{
			ID:        featureID(f, path, i),
			Footprint: f.Geometry,
			HeightM:   h,
		})
	}

	s.logger.Info("buildings loaded",
		"path", path,
		"features", len(fc.Features),
		"usable", len(out.Buildings),
		"skipped", out.Skipped,
	)
	return out, nil
}

// ReadRoads loads line features from each path in order. A path that does
// not exist is logged and recorded in Missing; any other read or parse
// failure is fatal. Non-linear and malformed features are skipped.
func (s *Store) ReadRoads(paths []string) (*Roads, error) {
	out := &Roads{Skipped: make(map[types.SkipReason]int)}

	for _, path := range paths {
		fc, err := s.readCollection(path)
		if types.IsCode(err, types.ErrCodeInputMissing) {
			s.logger.Info("infrastructure file absent, ignoring", "path", path)
			out.Missing = append(out.Missing, path)
			continue
		}
		if err != nil {
			return nil, err
		}

		loaded := 0
		for i, f := range fc.Features {
			if reason := classify(f.Geometry, geometry.IsLinear); reason != "" {
				out.Skipped[reason]++
				continue
			}
			out.Roads = append(out.Roads, types.Road{
				Source:     path,
				Index:      i,
				Geometry:   f.Geometry,
				Properties: passthrough(f),
			})
			loaded++
		}
		s.logger.Info("infrastructure loaded", "path", path, "features", len(fc.Features), "roads", loaded)
	}
	return out, nil
}

func (s *Store) readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInputInvalid,
			"invalid GeoJSON FeatureCollection", err, map[string]any{"path": path})
	}
	return fc, nil
}

// parseHeight reads height_m as a number or a numeric string.
func parseHeight(props geojson.Properties) (float64, types.SkipReason) {
	raw, ok := props[HeightProperty]
	if !ok || raw == nil {
		return 0, types.SkipMissingHeight
	}

	var h float64
	switch v := raw.(type) {
	case float64:
		h = v
	case int:
		h = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, types.SkipNonNumericHeight
		}
		h = f
	default:
		return 0, types.SkipNonNumericHeight
	}

	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, types.SkipNonNumericHeight
	}
	if h <= 0 {
		return 0, types.SkipNonPositiveHeight
	}
	return h, ""
}

// classify returns why g cannot be used, or "" when it is acceptable.
func classify(g orb.Geometry, accept func(orb.Geometry) bool) types.SkipReason {
	if g == nil {
		return types.SkipNoGeometry
	}
	if !accept(g) {
		return types.SkipWrongGeometryType
	}
	if err := geometry.Validate(g); err != nil {
		return types.SkipInvalidGeometry
	}
	return ""
}

func featureID(f *geojson.Feature, path string, index int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	if id, ok := f.Properties["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	return fmt.Sprintf("%s#%d", path, index)
}

func passthrough(f *geojson.Feature) map[string]any {
	props := make(map[string]any, len(passthroughKeys))
	for _, k := range passthroughKeys {
		if v, ok := f.Properties[k]; ok && v != nil {
			props[k] = v
		}
	}
	if _, ok := props["id"]; !ok && f.ID != nil {
		props["id"] = f.ID
	}
	return props
}

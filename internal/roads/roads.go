// Package roads intersects road centerlines with the shadow region.
package roads

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"shadowroads/internal/geometry"
	"shadowroads/internal/types"
)

// Shade returns the parts of road that lie inside region. road.Geometry must
// already be in the region's metric CRS.
//
// Shade never returns an error: a road that cannot be processed comes back
// with a FailureReason set and no segments, so the caller can report it and
// carry on with the rest.
func Shade(engine types.GeometryEngine, road types.Road, region orb.MultiPolygon, tolerance float64) (result types.RoadResult) {
	result.Road = road

	defer func() {
		if r := recover(); r != nil {
			result = fail(road, types.FailurePanic, fmt.Errorf("panic: %v", r))
		}
	}()

	if !geometry.IsLinear(road.Geometry) {
		return fail(road, types.FailureInvalidGeometry, geometry.Invalid("road geometry is %T, want a line", road.Geometry))
	}
	for _, p := range geometry.Points(road.Geometry) {
		if !geometry.Finite(p) {
			return fail(road, types.FailureNonFinite, geometry.Invalid("non-finite coordinate %v", p))
		}
	}
	if err := geometry.Validate(road.Geometry); err != nil {
		return fail(road, types.FailureInvalidGeometry, err)
	}

	pieces, err := engine.Intersection(road.Geometry, region)
	if err != nil {
		return fail(road, types.FailureEngine, err)
	}
	if len(pieces) == 0 {
		return result
	}

	repaired, err := engine.Repair(pieces)
	if err != nil {
		return fail(road, types.FailureRepair, err)
	}
	if repaired == nil {
		return result
	}

	result.Segments = lines(engine.Simplify(repaired, tolerance))
	return result
}

// Collect flattens shaded results into output segments and failure entries.
// Each segment's length is measured in the metric plane, then its geometry is
// passed through convert (typically the inverse projection); a nil convert
// keeps metric coordinates. A road whose conversion fails is reported as a
// projection failure and contributes no segments.
func Collect(results []types.RoadResult, convert func(orb.LineString) (orb.LineString, error)) ([]types.ShadedSegment, []types.RoadFailure) {
	var (
		segments []types.ShadedSegment
		failures []types.RoadFailure
	)
	for _, r := range results {
		if !r.Failed() {
			converted, err := convertAll(r, convert)
			if err == nil {
				segments = append(segments, converted...)
				continue
			}
			r = fail(r.Road, types.FailureProjection, err)
		}

		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		failures = append(failures, types.RoadFailure{
			Source:  r.Road.Source,
			Index:   r.Road.Index,
			Reason:  r.Reason,
			Message: msg,
		})
	}
	return segments, failures
}

func convertAll(r types.RoadResult, convert func(orb.LineString) (orb.LineString, error)) ([]types.ShadedSegment, error) {
	out := make([]types.ShadedSegment, 0, len(r.Segments))
	for _, ls := range r.Segments {
		seg := types.ShadedSegment{
			Geometry:   ls,
			LengthM:    planar.Length(ls),
			Properties: r.Road.Properties,
		}
		if convert != nil {
			g, err := convert(ls)
			if err != nil {
				return nil, err
			}
			seg.Geometry = g
		}
		out = append(out, seg)
	}
	return out, nil
}

func fail(road types.Road, reason types.FailureReason, err error) types.RoadResult {
	return types.RoadResult{Road: road, Reason: reason, Err: err}
}

func lines(g orb.Geometry) []orb.LineString {
	var out []orb.LineString
	switch g := g.(type) {
	case orb.LineString:
		if len(g) >= 2 {
			out = append(out, g)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) >= 2 {
				out = append(out, ls)
			}
		}
	}
	return out
}

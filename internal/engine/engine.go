// Package engine implements types.GeometryEngine for planar metric
// coordinates.
//
// Overlay work (union, line-by-polygon intersection, convex hull) runs on
// peterstace/simplefeatures; simplification uses paulmach/orb. Geometries
// cross the package boundary as orb types.
package engine

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/peterstace/simplefeatures/geom"

	"shadowroads/internal/geometry"
	"shadowroads/internal/types"
)

// Planar is the default GeometryEngine. The zero value is ready to use.
type Planar struct{}

var _ types.GeometryEngine = Planar{}

// New returns a Planar engine.
func New() Planar { return Planar{} }

// Union merges polys into a region. Polygons are repaired first; ones that
// collapse are skipped. Outer rings come back counter-clockwise and holes
// clockwise.
func (Planar) Union(polys []orb.Polygon) (result orb.MultiPolygon, err error) {
	defer recoverEngine("union", &err)

	parts := make([]geom.Geometry, 0, len(polys))
	for _, p := range polys {
		if r := repairPolygon(p); r != nil {
			parts = append(parts, toPolygon(r).AsGeometry())
		}
	}
	if len(parts) == 0 {
		return orb.MultiPolygon{}, nil
	}

	u, err := geom.UnionMany(parts)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeGeometryEngine, fmt.Sprintf("union of %d polygons failed", len(parts)), err)
	}
	out := polygonsOf(u.ForceCCW())
	if out == nil {
		out = orb.MultiPolygon{}
	}
	return out, nil
}

// Intersection clips a LineString or MultiLineString to region, which is
// expected to be a Union result. Pieces keep the direction of the input and
// are returned in the order they occur along it.
func (Planar) Intersection(line orb.Geometry, region orb.MultiPolygon) (result orb.MultiLineString, err error) {
	defer recoverEngine("intersection", &err)

	var parts []orb.LineString
	switch l := line.(type) {
	case orb.LineString:
		parts = []orb.LineString{l}
	case orb.MultiLineString:
		parts = l
	default:
		return nil, geometry.Invalid("intersection needs a line geometry, got %T", line)
	}

	var area orb.MultiPolygon
	for _, p := range region {
		if r := repairPolygon(p); r != nil {
			area = append(area, r)
		}
	}
	if len(area) == 0 {
		return nil, nil
	}
	mask := toMultiPolygon(area).AsGeometry()

	var out orb.MultiLineString
	for _, part := range parts {
		road := repairLine(part)
		if road == nil {
			continue
		}
		clipped, err := geom.Intersection(toLineString(road).AsGeometry(), mask)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeGeometryEngine, "line intersection failed", err)
		}
		out = append(out, alignToRoad(road, linesOf(clipped))...)
	}
	return out, nil
}

// ConvexHull returns the hull of points as a closed counter-clockwise ring.
// Non-finite points are ignored; a hull without area is invalid.
func (Planar) ConvexHull(points []orb.Point) (orb.Polygon, error) {
	pts := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if finite(p) {
			pts = append(pts, p)
		}
	}
	if len(pts) < 3 {
		return nil, geometry.Invalid("convex hull of %d points is degenerate", len(points))
	}

	hull, ok := toLineString(pts).AsGeometry().ConvexHull().AsPolygon()
	if !ok || hull.IsEmpty() {
		return nil, geometry.Invalid("convex hull of %d points is degenerate", len(points))
	}
	ring := orb.Ring(fromSequence(hull.ExteriorRing().Coordinates()))
	if ringArea(ring) <= areaEpsilon(ring) {
		return nil, geometry.Invalid("convex hull of %d points has no area", len(points))
	}
	return orb.Polygon{orient(ring, orb.CCW)}, nil
}

// Simplify runs Douglas-Peucker with the given tolerance on a copy of g.
// A non-positive tolerance returns a copy unchanged.
func (Planar) Simplify(g orb.Geometry, tolerance float64) orb.Geometry {
	if g == nil {
		return nil
	}
	c := orb.Clone(g)
	if tolerance <= 0 {
		return c
	}
	return simplify.DouglasPeucker(tolerance).Simplify(c)
}

// Repair drops repeated vertices, zero-length lines and zero-area rings,
// and normalizes ring orientation (outer counter-clockwise, holes
// clockwise). A geometry that collapses entirely is returned as nil.
func (Planar) Repair(g orb.Geometry) (result orb.Geometry, err error) {
	defer recoverEngine("repair", &err)

	switch g := g.(type) {
	case nil:
		return nil, nil
	case orb.LineString:
		if ls := repairLine(g); ls != nil {
			return ls, nil
		}
		return nil, nil
	case orb.MultiLineString:
		var out orb.MultiLineString
		for _, part := range g {
			if ls := repairLine(part); ls != nil {
				out = append(out, ls)
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case orb.Polygon:
		if p := repairPolygon(g); p != nil {
			return p, nil
		}
		return nil, nil
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, part := range g {
			if p := repairPolygon(part); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	default:
		return nil, geometry.Invalid("cannot repair %s", g.GeoJSONType())
	}
}

// recoverEngine turns a panic inside the overlay library into an AppError
// so one pathological input cannot take the run down.
func recoverEngine(op string, err *error) {
	if r := recover(); r != nil {
		*err = types.NewAppError(types.ErrCodeGeometryEngine, fmt.Sprintf("%s panicked", op), fmt.Errorf("%v", r))
	}
}

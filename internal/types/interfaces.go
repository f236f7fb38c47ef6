package types

import (
	"time"

	"github.com/paulmach/orb"
)

// GeometryEngine provides the planar geometry operations the pipeline needs.
// All inputs and outputs are in the metric coordinate system.
type GeometryEngine interface {
	// Union merges polygons into one region. The result may have a single
	// part or several disjoint parts.
	Union(polys []orb.Polygon) (orb.MultiPolygon, error)

	// Intersection clips a LineString or MultiLineString to region and
	// returns the pieces inside it (boundary included).
	Intersection(line orb.Geometry, region orb.MultiPolygon) (orb.MultiLineString, error)

	// ConvexHull returns the hull of points as a closed counter-clockwise
	// ring. Fewer than three non-collinear points is an error.
	ConvexHull(points []orb.Point) (orb.Polygon, error)

	// Simplify reduces vertex count without moving the shape by more than
	// tolerance.
	Simplify(g orb.Geometry, tolerance float64) orb.Geometry

	// Repair removes self-intersection and degeneracy artifacts. A result
	// that collapses to nothing is returned as a nil geometry.
	Repair(g orb.Geometry) (orb.Geometry, error)
}

// ProjectionProvider converts single coordinates between WGS84 longitude/
// latitude (degrees) and a planar metric reference system.
type ProjectionProvider interface {
	// Name identifies the planar reference, e.g. "EPSG:32719".
	Name() string
	Forward(lon, lat float64) (x, y float64, err error)
	Inverse(x, y float64) (lon, lat float64, err error)
}

// SolarPositionProvider computes the sun position for an observer.
// Negative elevations are returned as-is.
type SolarPositionProvider interface {
	Position(lat, lon float64, t time.Time) SunPosition
}

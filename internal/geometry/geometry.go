// Package geometry defines the closed set of geometry shapes the pipeline
// accepts and the coordinate-wise helpers shared by the projection and
// shadow stages.
//
// The shapes are the paulmach/orb types Point, LineString, Polygon,
// MultiLineString and MultiPolygon. Anything else (rings on their own,
// MultiPoint, collections, bounds) is rejected with an invalid_geometry
// AppError so malformed inputs fail where they enter, not deep inside the
// geometry engine.
package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"shadowroads/internal/types"
)

// Kind names a supported geometry variant.
type Kind string

const (
	KindPoint           Kind = "Point"
	KindLineString      Kind = "LineString"
	KindPolygon         Kind = "Polygon"
	KindMultiLineString Kind = "MultiLineString"
	KindMultiPolygon    Kind = "MultiPolygon"
)

// KindOf returns the variant of g, or false if g is not one of the
// supported shapes.
func KindOf(g orb.Geometry) (Kind, bool) {
	switch g.(type) {
	case orb.Point:
		return KindPoint, true
	case orb.LineString:
		return KindLineString, true
	case orb.Polygon:
		return KindPolygon, true
	case orb.MultiLineString:
		return KindMultiLineString, true
	case orb.MultiPolygon:
		return KindMultiPolygon, true
	default:
		return "", false
	}
}

// IsLinear reports whether g is a LineString or MultiLineString.
func IsLinear(g orb.Geometry) bool {
	k, _ := KindOf(g)
	return k == KindLineString || k == KindMultiLineString
}

// IsPolygonal reports whether g is a Polygon or MultiPolygon.
func IsPolygonal(g orb.Geometry) bool {
	k, _ := KindOf(g)
	return k == KindPolygon || k == KindMultiPolygon
}

// Invalid builds the invalid_geometry error used across the module.
func Invalid(format string, args ...any) *types.AppError {
	return types.NewAppError(types.ErrCodeInvalidGeometry, fmt.Sprintf(format, args...), nil)
}

// Validate checks that g is a supported variant with well-formed coordinate
// arrays: finite coordinates, lines of at least two points, closed rings of
// at least four points, and non-empty multi-part geometries.
func Validate(g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return Invalid("geometry is nil")
	case orb.Point:
		return validatePoint(g)
	case orb.LineString:
		return validateLine(g)
	case orb.Polygon:
		return validatePolygon(g)
	case orb.MultiLineString:
		if len(g) == 0 {
			return Invalid("MultiLineString has no parts")
		}
		for i, ls := range g {
			if err := validateLine(ls); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
		}
		return nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return Invalid("MultiPolygon has no parts")
		}
		for i, p := range g {
			if err := validatePolygon(p); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
		}
		return nil
	default:
		return Invalid("unsupported geometry type %s", g.GeoJSONType())
	}
}

func validatePoint(p orb.Point) error {
	if !Finite(p) {
		return Invalid("non-finite coordinate (%v, %v)", p[0], p[1])
	}
	return nil
}

func validateLine(ls orb.LineString) error {
	if len(ls) < 2 {
		return Invalid("LineString needs at least 2 points, got %d", len(ls))
	}
	for _, p := range ls {
		if err := validatePoint(p); err != nil {
			return err
		}
	}
	return nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return Invalid("Polygon has no rings")
	}
	for i, r := range p {
		if len(r) < 4 {
			return Invalid("ring %d needs at least 4 points, got %d", i, len(r))
		}
		if !r.Closed() {
			return Invalid("ring %d is not closed", i)
		}
		for _, pt := range r {
			if err := validatePoint(pt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finite reports whether both coordinates of p are finite numbers.
func Finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

// Translate returns a copy of poly moved by (dx, dy).
func Translate(poly orb.Polygon, dx, dy float64) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		nr := make(orb.Ring, len(r))
		for j, p := range r {
			nr[j] = orb.Point{p[0] + dx, p[1] + dy}
		}
		out[i] = nr
	}
	return out
}

// PointFunc maps one coordinate to another.
type PointFunc func(orb.Point) (orb.Point, error)

// Transform applies fn to every coordinate of g and returns a new geometry
// of the same variant and shape. g is not modified.
func Transform(g orb.Geometry, fn PointFunc) (orb.Geometry, error) {
	switch g := g.(type) {
	case orb.Point:
		np, err := fn(g)
		if err != nil {
			return nil, err
		}
		return np, nil
	case orb.LineString:
		ls, err := transformLine(g, fn)
		if err != nil {
			return nil, err
		}
		return ls, nil
	case orb.Polygon:
		poly, err := transformPolygon(g, fn)
		if err != nil {
			return nil, err
		}
		return poly, nil
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			nls, err := transformLine(ls, fn)
			if err != nil {
				return nil, err
			}
			out[i] = nls
		}
		return out, nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			np, err := transformPolygon(p, fn)
			if err != nil {
				return nil, err
			}
			out[i] = np
		}
		return out, nil
	case nil:
		return nil, Invalid("geometry is nil")
	default:
		return nil, Invalid("unsupported geometry type %s", g.GeoJSONType())
	}
}

func transformLine(ls orb.LineString, fn PointFunc) (orb.LineString, error) {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		np, err := fn(p)
		if err != nil {
			return nil, err
		}
		out[i] = np
	}
	return out, nil
}

func transformPolygon(poly orb.Polygon, fn PointFunc) (orb.Polygon, error) {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		nr := make(orb.Ring, len(r))
		for j, p := range r {
			np, err := fn(p)
			if err != nil {
				return nil, err
			}
			nr[j] = np
		}
		out[i] = nr
	}
	return out, nil
}

// Points returns every vertex of g in order. Used to feed convex hulls.
func Points(g orb.Geometry) []orb.Point {
	var pts []orb.Point
	switch g := g.(type) {
	case orb.Point:
		pts = append(pts, g)
	case orb.LineString:
		pts = append(pts, g...)
	case orb.Polygon:
		for _, r := range g {
			pts = append(pts, r...)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			pts = append(pts, ls...)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			for _, r := range p {
				pts = append(pts, r...)
			}
		}
	}
	return pts
}

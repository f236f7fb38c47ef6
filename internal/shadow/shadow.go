// Package shadow builds per-building shadow polygons and merges them into a
// single shadow region.
//
// A shadow is approximated as the convex hull of the footprint and the
// footprint translated along the shadow displacement vector. That is exact
// for convex footprints under parallel light and overestimates concave
// ones.
package shadow

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"shadowroads/internal/geometry"
	"shadowroads/internal/types"
)

// DefaultMinElevationDeg floors the sun elevation so tan() stays finite
// when the sun is at or below the horizon.
const DefaultMinElevationDeg = 1.0

// Vector is a displacement in the metric plane: +X east, +Y north.
type Vector struct {
	DX, DY float64
}

// Length returns the vector magnitude.
func (v Vector) Length() float64 { return math.Hypot(v.DX, v.DY) }

// EffectiveElevation returns max(elevationDeg, minElevationDeg).
func EffectiveElevation(elevationDeg, minElevationDeg float64) float64 {
	return math.Max(elevationDeg, minElevationDeg)
}

// Displacement returns the vector a building of heightM casts its shadow
// along. The shadow length is height / tan(elevation) and it points away
// from the sun, i.e. at bearing azimuth+180 clockwise from north.
func Displacement(heightM, elevationDeg, azimuthDeg, minElevationDeg float64) Vector {
	alt := EffectiveElevation(elevationDeg, minElevationDeg) * math.Pi / 180
	d := heightM / math.Tan(alt)
	if elevationDeg >= 90 {
		d = 0
	}

	theta := math.Mod(azimuthDeg+180, 360) * math.Pi / 180
	return Vector{DX: d * math.Sin(theta), DY: d * math.Cos(theta)}
}

// Cast returns the shadow polygon of one footprint part: the convex hull of
// the footprint and its translated copy. Holes in the footprint do not
// affect the hull. A hull that spans no area is an invalid_geometry error.
func Cast(engine types.GeometryEngine, footprint orb.Polygon, heightM, elevationDeg, azimuthDeg, minElevationDeg float64) (orb.Polygon, error) {
	if len(footprint) == 0 || len(footprint[0]) == 0 {
		return nil, geometry.Invalid("empty footprint")
	}
	if !(heightM > 0) {
		return nil, geometry.Invalid("height %v is not positive", heightM)
	}

	v := Displacement(heightM, elevationDeg, azimuthDeg, minElevationDeg)
	outer := footprint[0]
	moved := geometry.Translate(orb.Polygon{outer}, v.DX, v.DY)[0]

	pts := make([]orb.Point, 0, 2*len(outer))
	pts = append(pts, outer...)
	pts = append(pts, moved...)

	hull, err := engine.ConvexHull(pts)
	if err != nil {
		return nil, fmt.Errorf("casting shadow (height %.2f m, displacement %.2f m): %w", heightM, v.Length(), err)
	}
	return hull, nil
}

// UnionAll merges shadow polygons into one region. Zero input is the fatal
// no_shadow_polygons condition; callers are expected to guard for it.
func UnionAll(engine types.GeometryEngine, polys []orb.Polygon) (orb.MultiPolygon, error) {
	if len(polys) == 0 {
		return nil, types.NewAppError(types.ErrCodeNoShadowPolygons, "no shadow polygons to aggregate", nil)
	}
	region, err := engine.Union(polys)
	if err != nil {
		return nil, err
	}
	if len(region) == 0 {
		return nil, types.NewAppError(types.ErrCodeNoShadowPolygons,
			fmt.Sprintf("union of %d shadow polygons is empty", len(polys)), nil)
	}
	return region, nil
}

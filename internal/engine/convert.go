package engine

import (
	"github.com/paulmach/orb"
	"github.com/peterstace/simplefeatures/geom"
)

// The pipeline speaks orb; simplefeatures is only used inside this package.

func toSequence(pts []orb.Point) geom.Sequence {
	coords := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		coords = append(coords, p[0], p[1])
	}
	return geom.NewSequence(coords, geom.DimXY)
}

func fromSequence(seq geom.Sequence) []orb.Point {
	n := seq.Length()
	pts := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		pts[i] = orb.Point{xy.X, xy.Y}
	}
	return pts
}

func toLineString(ls orb.LineString) geom.LineString {
	return geom.NewLineString(toSequence(ls))
}

func toPolygon(p orb.Polygon) geom.Polygon {
	rings := make([]geom.LineString, len(p))
	for i, r := range p {
		rings[i] = geom.NewLineString(toSequence(r))
	}
	return geom.NewPolygon(rings)
}

func toMultiPolygon(mp orb.MultiPolygon) geom.MultiPolygon {
	polys := make([]geom.Polygon, len(mp))
	for i, p := range mp {
		polys[i] = toPolygon(p)
	}
	return geom.NewMultiPolygon(polys)
}

func fromPolygon(p geom.Polygon) orb.Polygon {
	if p.IsEmpty() {
		return nil
	}
	out := make(orb.Polygon, 0, 1+p.NumInteriorRings())
	out = append(out, orb.Ring(fromSequence(p.ExteriorRing().Coordinates())))
	for i := 0; i < p.NumInteriorRings(); i++ {
		out = append(out, orb.Ring(fromSequence(p.InteriorRingN(i).Coordinates())))
	}
	return out
}

// polygonsOf returns the polygonal parts of an overlay result, dropping any
// lower-dimensional debris.
func polygonsOf(g geom.Geometry) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, part := range g.Dump() {
		if p, ok := part.AsPolygon(); ok {
			if op := fromPolygon(p); op != nil {
				out = append(out, op)
			}
		}
	}
	return out
}

// linesOf returns the linear parts of an overlay result. Isolated points
// (a road touching the region at a single vertex) are dropped.
func linesOf(g geom.Geometry) []orb.LineString {
	var out []orb.LineString
	for _, part := range g.Dump() {
		if ls, ok := part.AsLineString(); ok && !ls.IsEmpty() {
			out = append(out, orb.LineString(fromSequence(ls.Coordinates())))
		}
	}
	return out
}

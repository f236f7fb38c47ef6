package engine

import (
	"math"

	"github.com/paulmach/orb"
)

// minSegment is the shortest edge, in meters, kept by repair. Anything
// shorter is floating point noise from clipping.
const minSegment = 1e-9

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func near(a, b orb.Point) bool {
	return math.Hypot(a[0]-b[0], a[1]-b[1]) <= minSegment
}

// repairLine removes repeated vertices. Returns nil if fewer than two
// distinct vertices remain.
func repairLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(ls))
	for _, p := range ls {
		if len(out) > 0 && near(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

// repairRing removes repeated vertices and re-closes the ring. Returns nil
// when the ring has no area left.
func repairRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		if len(out) > 0 && near(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && near(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil
	}
	out = append(out, out[0])
	if ringArea(out) <= areaEpsilon(out) {
		return nil
	}
	return out
}

// repairPolygon repairs every ring. A polygon whose outer ring collapses is
// dropped; collapsed holes are dropped from an otherwise valid polygon.
func repairPolygon(p orb.Polygon) orb.Polygon {
	if len(p) == 0 {
		return nil
	}
	outer := repairRing(p[0])
	if outer == nil {
		return nil
	}
	out := orb.Polygon{orient(outer, orb.CCW)}
	for _, h := range p[1:] {
		if hole := repairRing(h); hole != nil {
			out = append(out, orient(hole, orb.CW))
		}
	}
	return out
}

// orient returns r with the requested winding, reversing a copy if needed.
func orient(r orb.Ring, want orb.Orientation) orb.Ring {
	if r.Orientation() == want {
		return r
	}
	rev := make(orb.Ring, len(r))
	for i, p := range r {
		rev[len(r)-1-i] = p
	}
	return rev
}

// ringArea is the unsigned shoelace area of a closed ring, computed
// relative to the first vertex to keep UTM-sized coordinates precise.
func ringArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	o := r[0]
	var sum float64
	for i := 1; i+1 < len(r); i++ {
		ax, ay := r[i][0]-o[0], r[i][1]-o[1]
		bx, by := r[i+1][0]-o[0], r[i+1][1]-o[1]
		sum += ax*by - bx*ay
	}
	return math.Abs(sum) / 2
}

// areaEpsilon scales the zero-area threshold with the ring's extent so that
// large projected coordinates do not turn rounding noise into area.
func areaEpsilon(r orb.Ring) float64 {
	b := r.Bound()
	span := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	return 1e-12 * math.Max(span*span, 1)
}

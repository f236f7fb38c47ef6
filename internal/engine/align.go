package engine

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// alignToRoad puts overlay output back into road order. The overlay returns
// each piece in canonical vertex order, sorted by coordinate, and split at
// every node it introduced. Pieces are flipped to follow road, sorted by
// where they start along it, and rejoined where one ends at the next one's
// start.
func alignToRoad(road orb.LineString, pieces []orb.LineString) []orb.LineString {
	if len(pieces) == 0 {
		return nil
	}
	m := newMeasure(road)

	type placed struct {
		line  orb.LineString
		start float64
	}
	ps := make([]placed, 0, len(pieces))
	for _, p := range pieces {
		if len(p) < 2 {
			continue
		}
		mid := orb.Point{(p[0][0] + p[1][0]) / 2, (p[0][1] + p[1][1]) / 2}
		if m.at(mid) < m.at(p[0]) {
			p = reversed(p)
		}
		ps = append(ps, placed{line: p, start: m.at(p[0])})
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].start < ps[j].start })

	var out []orb.LineString
	for _, p := range ps {
		if n := len(out); n > 0 {
			last := out[n-1]
			if near(last[len(last)-1], p.line[0]) {
				out[n-1] = append(last, p.line[1:]...)
				continue
			}
		}
		out = append(out, append(orb.LineString(nil), p.line...))
	}
	return out
}

// measure locates points by their distance along a line.
type measure struct {
	line orb.LineString
	cum  []float64
}

func newMeasure(ls orb.LineString) measure {
	cum := make([]float64, len(ls))
	for i := 1; i < len(ls); i++ {
		cum[i] = cum[i-1] + math.Hypot(ls[i][0]-ls[i-1][0], ls[i][1]-ls[i-1][1])
	}
	return measure{line: ls, cum: cum}
}

// at projects p onto the closest segment and returns the distance along the
// line to that projection. Ties go to the earliest segment.
func (m measure) at(p orb.Point) float64 {
	best, bestD := 0.0, math.Inf(1)
	for i := 1; i < len(m.line); i++ {
		a, b := m.line[i-1], m.line[i]
		dx, dy := b[0]-a[0], b[1]-a[1]
		l2 := dx*dx + dy*dy
		t := 0.0
		if l2 > 0 {
			t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
			t = math.Max(0, math.Min(1, t))
		}
		qx, qy := a[0]+t*dx, a[1]+t*dy
		d := math.Hypot(p[0]-qx, p[1]-qy)
		if d < bestD-minSegment {
			bestD = d
			best = m.cum[i-1] + t*math.Sqrt(l2)
		}
	}
	return best
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

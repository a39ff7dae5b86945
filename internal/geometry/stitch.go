package geometry

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// minRingArea is the signed-area floor below which a stitched ring is a
// degenerate sliver and is dropped from the output geometry. Area accounting
// uses the sweep's trapezoid sums, so dropping changes nothing measurable.
const minRingArea = 1e-9

// stitch reassembles the sweep's directed boundary pieces into a
// MultiPolygon. Every piece has the kept region on its left, so shells come
// out counterclockwise and holes clockwise.
func stitch(res *sweepResult) *geom.MultiPolygon {
	segs := res.laterals
	segs = appendHorizontals(segs, res)

	type pt struct{ x, y float64 }
	starts := make(map[pt][]int, len(segs))
	for i, s := range segs {
		if s.x0 == s.x1 && s.y0 == s.y1 {
			continue
		}
		starts[pt{s.x0, s.y0}] = append(starts[pt{s.x0, s.y0}], i)
	}

	used := make([]bool, len(segs))
	var rings [][]float64

	for i := range segs {
		if used[i] || (segs[i].x0 == segs[i].x1 && segs[i].y0 == segs[i].y1) {
			continue
		}
		ring := []float64{segs[i].x0, segs[i].y0, segs[i].x1, segs[i].y1}
		used[i] = true
		cur := segs[i]
		closed := false
		for steps := 0; steps < len(segs); steps++ {
			if cur.x1 == segs[i].x0 && cur.y1 == segs[i].y0 {
				closed = true
				break
			}
			nexts := starts[pt{cur.x1, cur.y1}]
			ni := pickContinuation(segs, used, cur, nexts)
			if ni < 0 {
				break
			}
			used[ni] = true
			cur = segs[ni]
			ring = append(ring, cur.x1, cur.y1)
		}
		if closed && len(ring) >= 8 {
			rings = append(rings, simplifyRing(ring))
		}
	}

	return assemblePolygons(rings)
}

// appendHorizontals reconciles kept intervals across each slab boundary. Where
// the slab above and the slab below both keep the same interval the boundary
// is interior and cancels; residual pieces become horizontal edges directed
// with the kept region on their left.
func appendHorizontals(segs []dirSeg, res *sweepResult) []dirSeg {
	ys := make(map[float64]struct{}, len(res.bottoms)+len(res.tops))
	for y := range res.bottoms {
		ys[y] = struct{}{}
	}
	for y := range res.tops {
		ys[y] = struct{}{}
	}

	type stop struct {
		x     float64
		delta int
	}
	for y := range ys {
		var stops []stop
		for _, r := range res.bottoms[y] {
			stops = append(stops, stop{r.x0, 1}, stop{r.x1, -1})
		}
		for _, r := range res.tops[y] {
			stops = append(stops, stop{r.x0, -1}, stop{r.x1, 1})
		}
		sort.Slice(stops, func(i, j int) bool { return stops[i].x < stops[j].x })
		net := 0
		for i := 0; i < len(stops); i++ {
			net += stops[i].delta
			if i+1 >= len(stops) || stops[i].x == stops[i+1].x {
				continue
			}
			x0, x1 := stops[i].x, stops[i+1].x
			switch {
			case net > 0: // interior above, walk right
				segs = append(segs, dirSeg{x0: x0, y0: y, x1: x1, y1: y})
			case net < 0: // interior below, walk left
				segs = append(segs, dirSeg{x0: x1, y0: y, x1: x0, y1: y})
			}
		}
	}
	return segs
}

// pickContinuation chooses the unused outgoing segment making the sharpest
// left turn, which keeps rings simple when boundaries touch at a point.
func pickContinuation(segs []dirSeg, used []bool, cur dirSeg, candidates []int) int {
	best := -1
	bestAngle := math.Inf(-1)
	dx, dy := cur.x1-cur.x0, cur.y1-cur.y0
	for _, ci := range candidates {
		if used[ci] {
			continue
		}
		c := segs[ci]
		cx, cy := c.x1-c.x0, c.y1-c.y0
		angle := math.Atan2(dx*cy-dy*cx, dx*cx+dy*cy)
		// Prefer anything over an exact backtrack.
		if angle == math.Pi {
			angle = math.Inf(-1)
		}
		if best == -1 || angle > bestAngle {
			best = ci
			bestAngle = angle
		}
	}
	return best
}

// simplifyRing removes consecutive duplicate and collinear vertices. The ring
// is open (first vertex not repeated).
func simplifyRing(flat []float64) []float64 {
	n := len(flat) / 2
	if n < 3 {
		return flat
	}
	out := make([]float64, 0, len(flat))
	for i := 0; i < n; i++ {
		px, py := flat[2*((i+n-1)%n)], flat[2*((i+n-1)%n)+1]
		cx, cy := flat[2*i], flat[2*i+1]
		nx, ny := flat[2*((i+1)%n)], flat[2*((i+1)%n)+1]
		if cx == px && cy == py {
			continue
		}
		cross := (cx-px)*(ny-py) - (cy-py)*(nx-px)
		dot := (cx-px)*(nx-px) + (cy-py)*(ny-py)
		if cross == 0 && dot > 0 {
			continue // collinear pass-through
		}
		out = append(out, cx, cy)
	}
	if len(out) < 6 {
		return nil
	}
	return out
}

// ringArea returns the signed area of an open ring (positive when
// counterclockwise).
func ringArea(flat []float64) float64 {
	n := len(flat) / 2
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// assemblePolygons groups shells and holes into a MultiPolygon. Shells are
// counterclockwise rings; each hole is attached to the smallest shell
// containing its first vertex.
func assemblePolygons(rings [][]float64) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	type shell struct {
		flat  []float64
		area  float64
		holes [][]float64
		edges []edge
	}
	var shells []*shell
	var holes [][]float64

	for _, r := range rings {
		if r == nil {
			continue
		}
		a := ringArea(r)
		if math.Abs(a) < minRingArea {
			continue
		}
		if a > 0 {
			shells = append(shells, &shell{flat: r, area: a})
		} else {
			holes = append(holes, r)
		}
	}

	for _, h := range holes {
		var owner *shell
		// A vertex can sit exactly on a shell edge when the hole is tangent,
		// so probe vertices until one lands strictly inside some shell.
		for vi := 0; vi < len(h)/2 && owner == nil; vi++ {
			for _, s := range shells {
				if s.edges == nil {
					s.edges = appendRingEdges(nil, s.flat, 2, 0)
				}
				if windingAt(h[2*vi], h[2*vi+1], s.edges) != 0 {
					if owner == nil || s.area < owner.area {
						owner = s
					}
				}
			}
		}
		if owner != nil {
			owner.holes = append(owner.holes, h)
		}
	}

	for _, s := range shells {
		p := geom.NewPolygon(geom.XY)
		if err := p.Push(geom.NewLinearRingFlat(geom.XY, closeRing(s.flat))); err != nil {
			continue
		}
		for _, h := range s.holes {
			if err := p.Push(geom.NewLinearRingFlat(geom.XY, closeRing(h))); err != nil {
				continue
			}
		}
		if err := mp.Push(p); err != nil {
			continue
		}
	}
	return mp
}

// closeRing repeats the first vertex at the end.
func closeRing(flat []float64) []float64 {
	out := make([]float64, 0, len(flat)+2)
	out = append(out, flat...)
	out = append(out, flat[0], flat[1])
	return out
}

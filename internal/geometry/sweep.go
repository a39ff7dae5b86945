package geometry

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
)

// The boolean core is an analytic slab sweep. The plane is cut into
// horizontal slabs at every vertex y and every pairwise edge crossing y, so
// that inside one slab the active edges are vertically total-ordered. Walking
// the active edges left to right while accumulating nonzero winding numbers
// per operand classifies each interval, yields exact trapezoid areas, and
// emits the boundary pieces the stitcher reassembles into polygons. Shared
// boundaries between operands collapse into zero-width intervals instead of
// producing slivers, which is what makes ring adjacency safe.

// edge is a non-horizontal input segment normalized so y0 < y1. dw carries
// the original direction for winding accumulation.
type edge struct {
	x0, y0 float64
	x1, y1 float64
	dw     int8
	op     uint8
}

// xAt evaluates the edge's x at height y.
func (e *edge) xAt(y float64) float64 {
	if y <= e.y0 {
		return e.x0
	}
	if y >= e.y1 {
		return e.x1
	}
	return e.x0 + (e.x1-e.x0)*(y-e.y0)/(e.y1-e.y0)
}

// appendEdges extracts slab edges from the rings of a polygonal geometry.
// Horizontal segments carry no winding and are skipped; the stitcher
// regenerates horizontal boundary pieces from slab reconciliation. Unclosed
// rings are closed implicitly.
func appendEdges(edges []edge, g geom.T, op uint8) ([]edge, error) {
	switch t := g.(type) {
	case nil:
		return edges, nil
	case *geom.Polygon:
		for i := 0; i < t.NumLinearRings(); i++ {
			edges = appendRingEdges(edges, t.LinearRing(i).FlatCoords(), t.Stride(), op)
		}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			for j := 0; j < p.NumLinearRings(); j++ {
				edges = appendRingEdges(edges, p.LinearRing(j).FlatCoords(), p.Stride(), op)
			}
		}
	case *geom.LinearRing:
		edges = appendRingEdges(edges, t.FlatCoords(), t.Stride(), op)
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "geometry: %T is not polygonal", g)
	}
	return edges, nil
}

func appendRingEdges(edges []edge, flat []float64, stride int, op uint8) []edge {
	if stride < 2 || len(flat) < 2*stride {
		return edges
	}
	n := len(flat) / stride
	firstX, firstY := flat[0], flat[1]
	prevX, prevY := firstX, firstY
	for i := 1; i < n; i++ {
		x, y := flat[i*stride], flat[i*stride+1]
		edges = addEdge(edges, prevX, prevY, x, y, op)
		prevX, prevY = x, y
	}
	// Implicit closure for rings that do not repeat the first vertex.
	if prevX != firstX || prevY != firstY {
		edges = addEdge(edges, prevX, prevY, firstX, firstY, op)
	}
	return edges
}

func addEdge(edges []edge, ax, ay, bx, by float64, op uint8) []edge {
	if ay == by {
		return edges // horizontal
	}
	if ay < by {
		return append(edges, edge{x0: ax, y0: ay, x1: bx, y1: by, dw: 1, op: op})
	}
	return append(edges, edge{x0: bx, y0: by, x1: ax, y1: ay, dw: -1, op: op})
}

// crossingY returns the y of the proper crossing between two edges, if any.
// Shared endpoints and collinear overlaps are not crossings; their vertices
// are already slab events.
func crossingY(a, b *edge) (float64, bool) {
	d1x, d1y := a.x1-a.x0, a.y1-a.y0
	d2x, d2y := b.x1-b.x0, b.y1-b.y0
	den := d1x*d2y - d1y*d2x
	if den == 0 {
		return 0, false
	}
	ex, ey := b.x0-a.x0, b.y0-a.y0
	t := (ex*d2y - ey*d2x) / den
	u := (ex*d1y - ey*d1x) / den
	if t <= 0 || t >= 1 || u <= 0 || u >= 1 {
		return 0, false
	}
	return a.y0 + t*d1y, true
}

// boolPredicate classifies an interval from the two operand winding states.
type boolPredicate func(inA, inB bool) bool

var (
	predIntersection = func(inA, inB bool) bool { return inA && inB }
	predUnion        = func(inA, inB bool) bool { return inA || inB }
	predDifference   = func(inA, inB bool) bool { return inA && !inB }
	predA            = func(inA, _ bool) bool { return inA }
)

// dirSeg is a directed boundary piece with the kept region on its left.
type dirSeg struct {
	x0, y0, x1, y1 float64
}

// xRun is a kept x-interval on a slab boundary.
type xRun struct {
	x0, x1 float64
}

// sweepResult carries the classified area and, when boundary collection is
// requested, the pieces to stitch.
type sweepResult struct {
	area     float64
	laterals []dirSeg
	bottoms  map[float64][]xRun
	tops     map[float64][]xRun
}

// sweep runs the slab classification over the edge set. With collect=false
// only the area is computed.
func sweep(ctx context.Context, edges []edge, pred boolPredicate, collect bool) (*sweepResult, error) {
	res := &sweepResult{}
	if collect {
		res.bottoms = make(map[float64][]xRun)
		res.tops = make(map[float64][]xRun)
	}
	if len(edges) == 0 {
		return res, nil
	}
	for i := range edges {
		if math.IsNaN(edges[i].x0) || math.IsNaN(edges[i].y0) ||
			math.IsNaN(edges[i].x1) || math.IsNaN(edges[i].y1) ||
			math.IsInf(edges[i].x0, 0) || math.IsInf(edges[i].y0, 0) ||
			math.IsInf(edges[i].x1, 0) || math.IsInf(edges[i].y1, 0) {
			return nil, eris.Wrap(ErrInvalidGeometry, "geometry: non-finite coordinate")
		}
	}

	events := collectEvents(edges)

	// Edges sorted by lower endpoint drive an incremental active list.
	order := make([]int, len(edges))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return edges[order[i]].y0 < edges[order[j]].y0 })

	var active []int
	next := 0
	type cut struct {
		xm, xb, xt float64
		dw         int8
		op         uint8
	}
	var cuts []cut

	for si := 0; si+1 < len(events); si++ {
		if si%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "geometry: sweep canceled")
			}
		}
		y0, y1 := events[si], events[si+1]
		if y1 <= y0 {
			continue
		}
		ym := y0 + (y1-y0)/2

		// Admit edges starting at or below this slab, retire finished ones.
		for next < len(order) && edges[order[next]].y0 <= y0 {
			active = append(active, order[next])
			next++
		}
		live := active[:0]
		for _, idx := range active {
			if edges[idx].y1 > y0 {
				live = append(live, idx)
			}
		}
		active = live

		cuts = cuts[:0]
		for _, idx := range active {
			e := &edges[idx]
			if e.y0 > ym || e.y1 < ym {
				continue
			}
			cuts = append(cuts, cut{xm: e.xAt(ym), xb: e.xAt(y0), xt: e.xAt(y1), dw: e.dw, op: e.op})
		}
		if len(cuts) < 2 {
			continue
		}
		sort.Slice(cuts, func(i, j int) bool {
			if cuts[i].xm != cuts[j].xm {
				return cuts[i].xm < cuts[j].xm
			}
			if cuts[i].xb != cuts[j].xb {
				return cuts[i].xb < cuts[j].xb
			}
			if cuts[i].xt != cuts[j].xt {
				return cuts[i].xt < cuts[j].xt
			}
			if cuts[i].op != cuts[j].op {
				return cuts[i].op < cuts[j].op
			}
			return cuts[i].dw < cuts[j].dw
		})

		wa, wb := 0, 0
		prevKeep := false
		runStartB, runStartT := 0.0, 0.0
		for ci := 0; ci < len(cuts); ci++ {
			c := &cuts[ci]
			if c.op == 0 {
				wa += int(c.dw)
			} else {
				wb += int(c.dw)
			}
			keep := pred(wa != 0, wb != 0)
			if keep && ci+1 < len(cuts) {
				n := &cuts[ci+1]
				wBot := n.xb - c.xb
				wTop := n.xt - c.xt
				if wBot < 0 {
					wBot = 0
				}
				if wTop < 0 {
					wTop = 0
				}
				res.area += (y1 - y0) * (wBot + wTop) / 2
			}
			if collect {
				if keep && !prevKeep {
					// Left boundary: downward, region on the left.
					res.laterals = append(res.laterals, dirSeg{x0: c.xt, y0: y1, x1: c.xb, y1: y0})
					runStartB, runStartT = c.xb, c.xt
				}
				if !keep && prevKeep {
					// Right boundary: upward.
					res.laterals = append(res.laterals, dirSeg{x0: c.xb, y0: y0, x1: c.xt, y1: y1})
					if c.xb > runStartB {
						res.bottoms[y0] = append(res.bottoms[y0], xRun{x0: runStartB, x1: c.xb})
					}
					if c.xt > runStartT {
						res.tops[y1] = append(res.tops[y1], xRun{x0: runStartT, x1: c.xt})
					}
				}
			}
			prevKeep = keep
		}
	}

	return res, nil
}

// collectEvents gathers slab boundary ys: every endpoint plus every proper
// pairwise crossing, found with an R-tree over edge boxes.
func collectEvents(edges []edge) []float64 {
	ys := make([]float64, 0, len(edges)*2)
	var tr rtree.RTreeG[int]
	for i := range edges {
		e := &edges[i]
		ys = append(ys, e.y0, e.y1)
		tr.Insert(edgeMin(e), edgeMax(e), i)
	}
	for i := range edges {
		e := &edges[i]
		tr.Search(edgeMin(e), edgeMax(e), func(_, _ [2]float64, j int) bool {
			if j > i {
				if y, ok := crossingY(e, &edges[j]); ok {
					ys = append(ys, y)
				}
			}
			return true
		})
	}
	sort.Float64s(ys)
	// Dedupe exact duplicates.
	out := ys[:0]
	for i, y := range ys {
		if i == 0 || y != out[len(out)-1] {
			out = append(out, y)
		}
	}
	return out
}

func edgeMin(e *edge) [2]float64 {
	return [2]float64{math.Min(e.x0, e.x1), e.y0}
}

func edgeMax(e *edge) [2]float64 {
	return [2]float64{math.Max(e.x0, e.x1), e.y1}
}

// PointInRing reports whether the point winds inside the closed ring given
// as flat coordinates.
func PointInRing(x, y float64, flat []float64, stride int) bool {
	return windingAt(x, y, appendRingEdges(nil, flat, stride, 0)) != 0
}

// windingAt returns the nonzero winding number of the point against the edge
// set, counting directed crossings strictly left of x with a half-open rule
// at endpoints.
func windingAt(x, y float64, edges []edge) int {
	wn := 0
	for i := range edges {
		e := &edges[i]
		if e.y0 <= y && y < e.y1 {
			if e.xAt(y) < x {
				wn += int(e.dw)
			}
		}
	}
	return wn
}

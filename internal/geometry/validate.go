package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
)

// Validate rejects polygonal geometry the engines cannot process: empty
// input, non-finite coordinates, unclosed or undersized rings, and properly
// self-crossing boundaries. Touching at shared vertices is allowed, crossing
// is not. The returned error wraps ErrInvalidGeometry.
func Validate(g geom.T) error {
	if IsEmptyGeom(g) {
		return eris.Wrap(ErrInvalidGeometry, "geometry: empty")
	}

	var rings [][]float64
	var stride int
	switch t := g.(type) {
	case *geom.Polygon:
		stride = t.Stride()
		for i := 0; i < t.NumLinearRings(); i++ {
			rings = append(rings, t.LinearRing(i).FlatCoords())
		}
	case *geom.MultiPolygon:
		stride = t.Stride()
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			for j := 0; j < p.NumLinearRings(); j++ {
				rings = append(rings, p.LinearRing(j).FlatCoords())
			}
		}
	default:
		return eris.Wrapf(ErrInvalidGeometry, "geometry: %T is not polygonal", g)
	}

	var edges []edge
	for ri, flat := range rings {
		for _, v := range flat {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return eris.Wrapf(ErrInvalidGeometry, "geometry: non-finite coordinate in ring %d", ri)
			}
		}
		n := len(flat) / stride
		if n < 4 {
			return eris.Wrapf(ErrInvalidGeometry, "geometry: ring %d has %d points, need at least 4", ri, n)
		}
		if flat[0] != flat[(n-1)*stride] || flat[1] != flat[(n-1)*stride+1] {
			return eris.Wrapf(ErrInvalidGeometry, "geometry: ring %d is not closed", ri)
		}
		edges = appendRingEdges(edges, flat, stride, 0)
	}

	if i, j, ok := findCrossing(edges); ok {
		return eris.Wrapf(ErrInvalidGeometry,
			"geometry: boundary edges cross near (%.3f, %.3f) and (%.3f, %.3f)",
			edges[i].x0, edges[i].y0, edges[j].x0, edges[j].y0)
	}
	return nil
}

// findCrossing searches the edge set for any proper pairwise crossing.
func findCrossing(edges []edge) (int, int, bool) {
	var tr rtree.RTreeG[int]
	for i := range edges {
		tr.Insert(edgeMin(&edges[i]), edgeMax(&edges[i]), i)
	}
	for i := range edges {
		found := -1
		tr.Search(edgeMin(&edges[i]), edgeMax(&edges[i]), func(_, _ [2]float64, j int) bool {
			if j > i {
				if _, ok := crossingY(&edges[i], &edges[j]); ok {
					found = j
					return false
				}
			}
			return true
		})
		if found >= 0 {
			return i, found, true
		}
	}
	return 0, 0, false
}

package geometry

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
)

// clipper slices polylines against a polygonal region: each segment is split
// at boundary crossings and the pieces whose midpoints wind inside are kept.
type clipper struct {
	edges []edge
	tr    rtree.RTreeG[int]
	ext   Extent
}

func newClipper(clip geom.T) (*clipper, error) {
	edges, err := appendEdges(nil, clip, 0)
	if err != nil {
		return nil, err
	}
	c := &clipper{edges: edges, ext: ExtentOf(clip)}
	for i := range edges {
		c.tr.Insert(edgeMin(&edges[i]), edgeMax(&edges[i]), i)
	}
	return c, nil
}

// inside reports whether the point winds inside the region. The winding scan
// is restricted to edges crossing the leftward ray via the R-tree.
func (c *clipper) inside(x, y float64) bool {
	if x < c.ext.MinX || x > c.ext.MaxX || y < c.ext.MinY || y > c.ext.MaxY {
		return false
	}
	wn := 0
	c.tr.Search([2]float64{c.ext.MinX - 1, y}, [2]float64{x, y}, func(_, _ [2]float64, i int) bool {
		e := &c.edges[i]
		if e.y0 <= y && y < e.y1 && e.xAt(y) < x {
			wn += int(e.dw)
		}
		return true
	})
	return wn != 0
}

// splitParams returns sorted split parameters in (0,1) where the segment
// crosses the region boundary.
func (c *clipper) splitParams(ax, ay, bx, by float64) []float64 {
	minX, maxX := math.Min(ax, bx), math.Max(ax, bx)
	minY, maxY := math.Min(ay, by), math.Max(ay, by)
	var ts []float64
	c.tr.Search([2]float64{minX, minY}, [2]float64{maxX, maxY}, func(_, _ [2]float64, i int) bool {
		e := &c.edges[i]
		d1x, d1y := bx-ax, by-ay
		d2x, d2y := e.x1-e.x0, e.y1-e.y0
		den := d1x*d2y - d1y*d2x
		if den == 0 {
			return true
		}
		ex, ey := e.x0-ax, e.y0-ay
		t := (ex*d2y - ey*d2x) / den
		u := (ex*d1y - ey*d1x) / den
		if t > 0 && t < 1 && u >= 0 && u <= 1 {
			ts = append(ts, t)
		}
		return true
	})
	sort.Float64s(ts)
	return ts
}

// ClipLines implements polyline-against-polygon clipping for the Planar
// engine.
func (p *Planar) ClipLines(ctx context.Context, lines, clip geom.T) (*geom.MultiLineString, error) {
	out := geom.NewMultiLineString(geom.XY)
	if IsEmptyGeom(lines) || IsEmptyGeom(clip) {
		return out, nil
	}
	c, err := newClipper(clip)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: clip region")
	}

	var parts [][]float64
	switch t := lines.(type) {
	case *geom.LineString:
		parts = [][]float64{openLine(t.FlatCoords(), t.Stride())}
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			parts = append(parts, openLine(ls.FlatCoords(), ls.Stride()))
		}
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "geometry: cannot clip %T as lines", lines)
	}

	for pi, flat := range parts {
		if pi%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "geometry: clip canceled")
			}
		}
		var cur []float64
		flush := func() {
			if len(cur) >= 4 {
				ls := geom.NewLineStringFlat(geom.XY, cur)
				if err := out.Push(ls); err == nil {
					cur = nil
					return
				}
			}
			cur = nil
		}
		n := len(flat) / 2
		for i := 0; i+1 < n; i++ {
			ax, ay := flat[2*i], flat[2*i+1]
			bx, by := flat[2*i+2], flat[2*i+3]
			ts := c.splitParams(ax, ay, bx, by)
			prev := 0.0
			for _, t := range append(ts, 1.0) {
				if t <= prev {
					continue
				}
				mx := ax + (bx-ax)*(prev+t)/2
				my := ay + (by-ay)*(prev+t)/2
				if c.inside(mx, my) {
					sx, sy := ax+(bx-ax)*prev, ay+(by-ay)*prev
					ex, ey := ax+(bx-ax)*t, ay+(by-ay)*t
					// Keep endpoints exact so adjacent pieces chain without
					// spurious breaks.
					if prev == 0 {
						sx, sy = ax, ay
					}
					if t == 1 {
						ex, ey = bx, by
					}
					if len(cur) == 0 {
						cur = append(cur, sx, sy)
					} else if cur[len(cur)-2] != sx || cur[len(cur)-1] != sy {
						flush()
						cur = append(cur, sx, sy)
					}
					cur = append(cur, ex, ey)
				} else {
					flush()
				}
				prev = t
			}
		}
		flush()
	}
	return out, nil
}

// openLine flattens to XY pairs regardless of input stride.
func openLine(flat []float64, stride int) []float64 {
	if stride == 2 {
		return flat
	}
	n := len(flat) / stride
	out := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, flat[i*stride], flat[i*stride+1])
	}
	return out
}

package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// buffer outlines: every input segment contributes a stadium (a rectangle
// with semicircular caps, arcs polygonized at quadSegs vertices per quarter
// circle) and every input polygon additionally contributes its own rings.
// A nonzero-winding union sweep over all outlines yields the buffer.

// stadiumRing returns the closed counterclockwise outline of the set of
// points within d of segment (ax,ay)-(bx,by). Zero-length segments produce a
// circle.
func stadiumRing(ax, ay, bx, by, d float64, quadSegs int) []float64 {
	steps := 2 * quadSegs // per semicircle
	dx, dy := bx-ax, by-ay
	length := math.Hypot(dx, dy)
	if length == 0 {
		// Full circle around the point.
		n := 4 * quadSegs
		ring := make([]float64, 0, 2*(n+1))
		for i := 0; i <= n; i++ {
			th := 2 * math.Pi * float64(i) / float64(n)
			ring = append(ring, ax+d*math.Cos(th), ay+d*math.Sin(th))
		}
		return ring
	}
	ux, uy := dx/length, dy/length
	// Left normal.
	nx, ny := -uy, ux

	ring := make([]float64, 0, 2*(2*steps+4))
	// Right side, a to b.
	ring = append(ring, ax-nx*d, ay-ny*d)
	ring = append(ring, bx-nx*d, by-ny*d)
	// Cap at b: from -normal to +normal through the forward direction.
	base := math.Atan2(-ny, -nx)
	for i := 1; i < steps; i++ {
		th := base + math.Pi*float64(i)/float64(steps)
		ring = append(ring, bx+d*math.Cos(th), by+d*math.Sin(th))
	}
	// Left side, b back to a.
	ring = append(ring, bx+nx*d, by+ny*d)
	ring = append(ring, ax+nx*d, ay+ny*d)
	// Cap at a: from +normal back to -normal through the reverse direction.
	base = math.Atan2(ny, nx)
	for i := 1; i < steps; i++ {
		th := base + math.Pi*float64(i)/float64(steps)
		ring = append(ring, ax+d*math.Cos(th), ay+d*math.Sin(th))
	}
	ring = append(ring, ring[0], ring[1])
	return ring
}

// bufferEdges builds the union operand for Buffer: stadium outlines for all
// segments of g plus, for polygonal inputs, the orientation-normalized rings
// of g itself.
func bufferEdges(g geom.T, d float64, quadSegs int) ([]edge, error) {
	var edges []edge
	addStadium := func(ax, ay, bx, by float64) {
		ring := stadiumRing(ax, ay, bx, by, d, quadSegs)
		edges = appendRingEdges(edges, ring, 2, 0)
	}
	addLine := func(flat []float64, stride int) {
		n := len(flat) / stride
		if n == 1 {
			addStadium(flat[0], flat[1], flat[0], flat[1])
			return
		}
		for i := 0; i+1 < n; i++ {
			addStadium(flat[i*stride], flat[i*stride+1], flat[(i+1)*stride], flat[(i+1)*stride+1])
		}
	}

	switch t := g.(type) {
	case *geom.Point:
		addStadium(t.X(), t.Y(), t.X(), t.Y())
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			p := t.Point(i)
			addStadium(p.X(), p.Y(), p.X(), p.Y())
		}
	case *geom.LineString:
		addLine(t.FlatCoords(), t.Stride())
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			addLine(ls.FlatCoords(), ls.Stride())
		}
	case *geom.Polygon:
		edges = appendPolygonBuffer(edges, t, addLine)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			edges = appendPolygonBuffer(edges, t.Polygon(i), addLine)
		}
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "geometry: cannot buffer %T", g)
	}
	return edges, nil
}

// appendPolygonBuffer adds the polygon's own rings, normalized so the shell
// winds counterclockwise, then stadiums along every ring. Misoriented shells
// would cancel against the stadium winding and punch holes in the union.
func appendPolygonBuffer(edges []edge, p *geom.Polygon, addLine func([]float64, int)) []edge {
	if p.NumLinearRings() == 0 {
		return edges
	}
	shellFlat := p.LinearRing(0).FlatCoords()
	stride := p.Stride()
	reverse := ringArea(openRing(shellFlat, stride)) < 0
	for i := 0; i < p.NumLinearRings(); i++ {
		flat := p.LinearRing(i).FlatCoords()
		use := flat
		if reverse {
			use = reverseFlat(flat, stride)
		}
		edges = appendRingEdges(edges, use, stride, 0)
		addLine(flat, stride)
	}
	return edges
}

// openRing drops a repeated closing vertex and flattens to XY pairs.
func openRing(flat []float64, stride int) []float64 {
	n := len(flat) / stride
	if n < 2 {
		return nil
	}
	if flat[0] == flat[(n-1)*stride] && flat[1] == flat[(n-1)*stride+1] {
		n--
	}
	out := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, flat[i*stride], flat[i*stride+1])
	}
	return out
}

func reverseFlat(flat []float64, stride int) []float64 {
	n := len(flat) / stride
	out := make([]float64, 0, len(flat))
	for i := n - 1; i >= 0; i-- {
		out = append(out, flat[i*stride:(i+1)*stride]...)
	}
	return out
}

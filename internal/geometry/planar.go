package geometry

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Planar is the pure-Go Algebra implementation. It is stateless apart from
// the arc resolution and safe for concurrent use.
type Planar struct {
	quadSegs int
}

// NewPlanar returns a Planar engine. quadSegs is the number of arc vertices
// per quarter circle used when polygonizing buffer caps; values below 1 fall
// back to 8.
func NewPlanar(quadSegs int) *Planar {
	if quadSegs < 1 {
		quadSegs = 8
	}
	return &Planar{quadSegs: quadSegs}
}

var _ Algebra = (*Planar)(nil)

// Buffer returns the area within distance of g as a union sweep over
// per-segment stadium outlines.
func (p *Planar) Buffer(ctx context.Context, g geom.T, distance float64) (*geom.MultiPolygon, error) {
	if distance <= 0 || math.IsNaN(distance) {
		return nil, eris.Errorf("geometry: buffer distance must be positive, got %v", distance)
	}
	if IsEmptyGeom(g) {
		return geom.NewMultiPolygon(geom.XY), nil
	}
	edges, err := bufferEdges(g, distance, p.quadSegs)
	if err != nil {
		return nil, err
	}
	res, err := sweep(ctx, edges, predA, true)
	if err != nil {
		return nil, err
	}
	return stitch(res), nil
}

// Union returns a ∪ b.
func (p *Planar) Union(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error) {
	return p.boolean(ctx, a, b, predUnion)
}

// Intersection returns a ∩ b.
func (p *Planar) Intersection(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error) {
	return p.boolean(ctx, a, b, predIntersection)
}

// Difference returns a minus b.
func (p *Planar) Difference(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error) {
	return p.boolean(ctx, a, b, predDifference)
}

// IntersectionArea returns area(a ∩ b) from the sweep's trapezoid sums
// without stitching a result geometry.
func (p *Planar) IntersectionArea(ctx context.Context, a, b geom.T) (float64, error) {
	edges, err := operandEdges(a, b)
	if err != nil {
		return 0, err
	}
	res, err := sweep(ctx, edges, predIntersection, false)
	if err != nil {
		return 0, err
	}
	return res.area, nil
}

// Area computes the shoelace area of a polygonal geometry: shell areas minus
// hole areas, orientation-insensitive.
func (p *Planar) Area(_ context.Context, g geom.T) (float64, error) {
	switch t := g.(type) {
	case nil:
		return 0, nil
	case *geom.Polygon:
		return polygonArea(t), nil
	case *geom.MultiPolygon:
		sum := 0.0
		for i := 0; i < t.NumPolygons(); i++ {
			sum += polygonArea(t.Polygon(i))
		}
		return sum, nil
	default:
		return 0, eris.Wrapf(ErrInvalidGeometry, "geometry: %T has no area", g)
	}
}

// Normalize rebuilds g as a clean MultiPolygon: consistent ring orientation,
// holes assigned to shells, degenerate slivers removed.
func (p *Planar) Normalize(ctx context.Context, g geom.T) (*geom.MultiPolygon, error) {
	edges, err := appendEdges(nil, g, 0)
	if err != nil {
		return nil, err
	}
	res, err := sweep(ctx, edges, predA, true)
	if err != nil {
		return nil, err
	}
	return stitch(res), nil
}

func (p *Planar) boolean(ctx context.Context, a, b geom.T, pred boolPredicate) (*geom.MultiPolygon, error) {
	edges, err := operandEdges(a, b)
	if err != nil {
		return nil, err
	}
	res, err := sweep(ctx, edges, pred, true)
	if err != nil {
		return nil, err
	}
	return stitch(res), nil
}

func operandEdges(a, b geom.T) ([]edge, error) {
	edges, err := appendEdges(nil, a, 0)
	if err != nil {
		return nil, err
	}
	edges, err = appendEdges(edges, b, 1)
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func polygonArea(p *geom.Polygon) float64 {
	if p.NumLinearRings() == 0 {
		return 0
	}
	area := math.Abs(ringArea(openRing(p.LinearRing(0).FlatCoords(), p.Stride())))
	for i := 1; i < p.NumLinearRings(); i++ {
		area -= math.Abs(ringArea(openRing(p.LinearRing(i).FlatCoords(), p.Stride())))
	}
	return area
}

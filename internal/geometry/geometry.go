// Package geometry provides planar geometry algebra over go-geom types: a
// pure-Go analytic engine (Planar) and a PostGIS binding (PostGIS), both
// implementing Algebra. All coordinates are assumed to live in one planar,
// distance-preserving projection; distances are in projection units.
package geometry

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrInvalidGeometry marks geometry that cannot be processed: empty where a
// shape is required, unclosed rings, self-intersecting boundaries, NaN
// coordinates. Callers classify with eris.Is; at the feature level it is
// recoverable (skip and record), at the AOI/ring level it is fatal.
var ErrInvalidGeometry = eris.New("invalid geometry")

// SquareMetersPerHectare converts areas between the working projection's
// square meters and reported hectares.
const SquareMetersPerHectare = 1e4

// AreaTolerance returns the tolerance for comparing areas derived from a
// reference area: one part in 10^9, floored at 1e-4 square units so that
// comparisons near zero stay meaningful.
func AreaTolerance(ref float64) float64 {
	tol := 1e-9 * math.Abs(ref)
	if tol < 1e-4 {
		tol = 1e-4
	}
	return tol
}

// Algebra is the geometric capability surface the ring and overlay code is
// written against. Implementations must be safe for concurrent use.
type Algebra interface {
	// Buffer returns the area within distance of g (lines, points or
	// polygons). The result is a MultiPolygon; distance must be positive.
	Buffer(ctx context.Context, g geom.T, distance float64) (*geom.MultiPolygon, error)
	// Union returns the combined area of two polygonal geometries.
	Union(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error)
	// Intersection returns the shared area of two polygonal geometries.
	Intersection(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error)
	// Difference returns the area of a not covered by b.
	Difference(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error)
	// IntersectionArea returns the area of the intersection without
	// materializing its geometry.
	IntersectionArea(ctx context.Context, a, b geom.T) (float64, error)
	// Area returns the planar area of a polygonal geometry.
	Area(ctx context.Context, g geom.T) (float64, error)
	// ClipLines returns the portions of lines inside the clip polygon.
	ClipLines(ctx context.Context, lines, clip geom.T) (*geom.MultiLineString, error)
}

// Extent is an axis-aligned bounding box in projection units.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// ExtentOf computes the bounding box of any geometry. Empty geometries yield
// an inverted extent that intersects nothing.
func ExtentOf(g geom.T) Extent {
	e := Extent{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	if g == nil {
		return e
	}
	flat := g.FlatCoords()
	stride := g.Stride()
	if stride < 2 {
		return e
	}
	for i := 0; i+1 < len(flat); i += stride {
		x, y := flat[i], flat[i+1]
		if x < e.MinX {
			e.MinX = x
		}
		if x > e.MaxX {
			e.MaxX = x
		}
		if y < e.MinY {
			e.MinY = y
		}
		if y > e.MaxY {
			e.MaxY = y
		}
	}
	return e
}

// Intersects reports whether two extents overlap (touching counts).
func (e Extent) Intersects(o Extent) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Expand grows the extent by d on every side.
func (e Extent) Expand(d float64) Extent {
	return Extent{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

// IsEmpty reports whether the extent covers nothing.
func (e Extent) IsEmpty() bool {
	return e.MinX > e.MaxX || e.MinY > e.MaxY
}

// Min returns the lower corner as an rtree-compatible pair.
func (e Extent) Min() [2]float64 { return [2]float64{e.MinX, e.MinY} }

// Max returns the upper corner as an rtree-compatible pair.
func (e Extent) Max() [2]float64 { return [2]float64{e.MaxX, e.MaxY} }

// IsEmptyGeom reports whether g is nil or carries no coordinates.
func IsEmptyGeom(g geom.T) bool {
	return g == nil || len(g.FlatCoords()) == 0
}

// RingSignedArea returns the signed shoelace area of a closed ring in flat
// coordinates: positive when counterclockwise.
func RingSignedArea(flat []float64, stride int) float64 {
	return ringArea(openRing(flat, stride))
}

package geometry

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/roadrings/internal/db"
)

// PostGIS delegates the Algebra operations to a PostGIS instance over pgx.
// Geometries travel as EWKB and are forced onto one SRID server-side, so
// locally constructed geometry (SRID 0) mixes safely with ingested layers.
type PostGIS struct {
	pool     db.Pool
	srid     int
	quadSegs int
}

// NewPostGIS returns a PostGIS-backed Algebra using the given pool and
// working SRID.
func NewPostGIS(pool db.Pool, srid, quadSegs int) *PostGIS {
	if quadSegs < 1 {
		quadSegs = 8
	}
	return &PostGIS{pool: pool, srid: srid, quadSegs: quadSegs}
}

var _ Algebra = (*PostGIS)(nil)

// Buffer runs ST_Buffer with the configured arc resolution.
func (pg *PostGIS) Buffer(ctx context.Context, g geom.T, distance float64) (*geom.MultiPolygon, error) {
	if distance <= 0 || math.IsNaN(distance) {
		return nil, eris.Errorf("geometry: buffer distance must be positive, got %v", distance)
	}
	wkb, err := pg.encode(g)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT ST_AsEWKB(ST_Multi(ST_Buffer(ST_SetSRID(ST_GeomFromEWKB($1), $2), $3, 'quad_segs=%d')))`,
		pg.quadSegs)
	var out []byte
	if err := pg.pool.QueryRow(ctx, query, wkb, pg.srid, distance).Scan(&out); err != nil {
		return nil, eris.Wrap(err, "geometry: postgis buffer")
	}
	return decodeMultiPolygon(out)
}

// Union runs ST_Union.
func (pg *PostGIS) Union(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error) {
	return pg.binary(ctx, "ST_Union", a, b)
}

// Intersection runs ST_Intersection.
func (pg *PostGIS) Intersection(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error) {
	return pg.binary(ctx, "ST_Intersection", a, b)
}

// Difference runs ST_Difference.
func (pg *PostGIS) Difference(ctx context.Context, a, b geom.T) (*geom.MultiPolygon, error) {
	return pg.binary(ctx, "ST_Difference", a, b)
}

// IntersectionArea runs ST_Area(ST_Intersection(...)) server-side.
func (pg *PostGIS) IntersectionArea(ctx context.Context, a, b geom.T) (float64, error) {
	wkbA, err := pg.encode(a)
	if err != nil {
		return 0, err
	}
	wkbB, err := pg.encode(b)
	if err != nil {
		return 0, err
	}
	query := `SELECT ST_Area(ST_Intersection(ST_SetSRID(ST_GeomFromEWKB($1), $3), ST_SetSRID(ST_GeomFromEWKB($2), $3)))`
	var area float64
	if err := pg.pool.QueryRow(ctx, query, wkbA, wkbB, pg.srid).Scan(&area); err != nil {
		return 0, eris.Wrap(err, "geometry: postgis intersection area")
	}
	return area, nil
}

// Area runs ST_Area.
func (pg *PostGIS) Area(ctx context.Context, g geom.T) (float64, error) {
	wkb, err := pg.encode(g)
	if err != nil {
		return 0, err
	}
	var area float64
	if err := pg.pool.QueryRow(ctx, `SELECT ST_Area(ST_GeomFromEWKB($1))`, wkb).Scan(&area); err != nil {
		return 0, eris.Wrap(err, "geometry: postgis area")
	}
	return area, nil
}

// ClipLines intersects lines with the clip polygon, keeping only linear
// pieces of the result.
func (pg *PostGIS) ClipLines(ctx context.Context, lines, clip geom.T) (*geom.MultiLineString, error) {
	wkbL, err := pg.encode(lines)
	if err != nil {
		return nil, err
	}
	wkbC, err := pg.encode(clip)
	if err != nil {
		return nil, err
	}
	query := `SELECT ST_AsEWKB(ST_Multi(ST_CollectionExtract(
		ST_Intersection(ST_SetSRID(ST_GeomFromEWKB($1), $3), ST_SetSRID(ST_GeomFromEWKB($2), $3)), 2)))`
	var out []byte
	if err := pg.pool.QueryRow(ctx, query, wkbL, wkbC, pg.srid).Scan(&out); err != nil {
		return nil, eris.Wrap(err, "geometry: postgis clip lines")
	}
	g, err := ewkb.Unmarshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode clipped lines")
	}
	switch t := g.(type) {
	case *geom.MultiLineString:
		return t, nil
	case *geom.LineString:
		mls := geom.NewMultiLineString(geom.XY)
		if err := mls.Push(t); err != nil {
			return nil, eris.Wrap(err, "geometry: collect clipped line")
		}
		return mls, nil
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "geometry: postgis clip returned %T", g)
	}
}

func (pg *PostGIS) binary(ctx context.Context, fn string, a, b geom.T) (*geom.MultiPolygon, error) {
	wkbA, err := pg.encode(a)
	if err != nil {
		return nil, err
	}
	wkbB, err := pg.encode(b)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT ST_AsEWKB(ST_Multi(ST_CollectionExtract(%s(ST_SetSRID(ST_GeomFromEWKB($1), $3), ST_SetSRID(ST_GeomFromEWKB($2), $3)), 3)))`,
		fn)
	var out []byte
	if err := pg.pool.QueryRow(ctx, query, wkbA, wkbB, pg.srid).Scan(&out); err != nil {
		return nil, eris.Wrapf(err, "geometry: postgis %s", fn)
	}
	return decodeMultiPolygon(out)
}

// encode marshals a geometry as EWKB; nil becomes an empty MultiPolygon.
func (pg *PostGIS) encode(g geom.T) ([]byte, error) {
	if g == nil {
		g = geom.NewMultiPolygon(geom.XY)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode EWKB")
	}
	return data, nil
}

func decodeMultiPolygon(data []byte) (*geom.MultiPolygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode EWKB")
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "geometry: collect polygon")
		}
		return mp, nil
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "geometry: postgis returned %T", g)
	}
}

package layer

import (
	"math"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/geometry"
)

// ShapefileOptions controls shapefile ingestion.
type ShapefileOptions struct {
	// SRID declares the working projection; a recognizable .prj sidecar
	// disagreeing with it fails the read.
	SRID int
	// Fields optionally restricts the attributes kept (case-insensitive);
	// nil keeps all.
	Fields []string
}

// ReadShapefile loads a shapefile into a FeatureCollection. Records whose
// geometry cannot be converted are counted and skipped.
func ReadShapefile(path string, opts ShapefileOptions) (*FeatureCollection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	if found := SidecarCRS(path); found != 0 {
		if err := CheckCRS(path, opts.SRID, found); err != nil {
			return nil, err
		}
	}

	var keep map[string]struct{}
	if len(opts.Fields) > 0 {
		keep = make(map[string]struct{}, len(opts.Fields))
		for _, f := range opts.Fields {
			keep[strings.ToLower(f)] = struct{}{}
		}
	}

	// Build field name → index map.
	fields := reader.Fields()
	type fieldRef struct {
		name string
		idx  int
	}
	var refs []fieldRef
	for i, f := range fields {
		name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		if keep != nil {
			if _, ok := keep[name]; !ok {
				continue
			}
		}
		refs = append(refs, fieldRef{name: name, idx: i})
	}

	fc := NewCollection(opts.SRID)
	for _, r := range refs {
		fc.Schema = append(fc.Schema, r.name)
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeom(shape, opts.SRID)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(refs))
		for _, r := range refs {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(r.idx), "\x00"))
			if val != "" {
				attrs[r.name] = val
			}
		}

		fc.Features = append(fc.Features, Feature{ID: int64(fc.Len()), Geom: g, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("layer: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return fc, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry in the working
// projection. Unsupported or degenerate shapes yield nil.
func shapeToGeom(shape shp.Shape, srid int) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(srid)
	case *shp.PolyLine:
		return polyLineToMultiLineString(s, srid)
	case *shp.Polygon:
		return polygonToMultiPolygon(s, srid)
	default:
		return nil
	}
}

// polyLineToMultiLineString converts a shapefile PolyLine part by part.
func polyLineToMultiLineString(pl *shp.PolyLine, srid int) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(srid)
	for i := int32(0); i < pl.NumParts; i++ {
		flat := partFlatCoords(pl.Parts, pl.Points, i, pl.NumParts)
		if len(flat) < 4 {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("layer: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon, classifying its parts
// by winding: ESRI writes shells clockwise and holes counterclockwise. Each
// hole attaches to the smallest shell containing one of its vertices; files
// with inverted conventions fall back to treating every part as a shell.
func polygonToMultiPolygon(p *shp.Polygon, srid int) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	type ring struct {
		flat []float64
		area float64
	}
	var shells []ring
	var holes []ring
	for i := int32(0); i < p.NumParts; i++ {
		flat := partFlatCoords(p.Parts, p.Points, i, p.NumParts)
		if len(flat) < 8 {
			continue
		}
		signed := geometry.RingSignedArea(flat, 2)
		if signed == 0 {
			continue
		}
		if signed < 0 {
			shells = append(shells, ring{flat: flat, area: -signed})
		} else {
			holes = append(holes, ring{flat: flat, area: signed})
		}
	}
	if len(shells) == 0 {
		shells, holes = holes, nil
	}

	holeOwner := make([][]ring, len(shells))
	for _, h := range holes {
		best := -1
		for si, s := range shells {
			if geometry.PointInRing(h.flat[0], h.flat[1], s.flat, 2) {
				if best < 0 || s.area < shells[best].area {
					best = si
				}
			}
		}
		if best >= 0 {
			holeOwner[best] = append(holeOwner[best], h)
		}
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for si, s := range shells {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, s.flat)); err != nil {
			zap.L().Debug("layer: skipping malformed polygon ring", zap.Error(err))
			continue
		}
		for _, h := range holeOwner[si] {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, h.flat)); err != nil {
				zap.L().Debug("layer: skipping malformed polygon hole", zap.Error(err))
			}
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("layer: skipping malformed polygon part", zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// partFlatCoords extracts one part's coordinates as XY pairs.
func partFlatCoords(parts []int32, points []shp.Point, i, numParts int32) []float64 {
	start := parts[i]
	var end int32
	if i+1 < numParts {
		end = parts[i+1]
	} else {
		end = int32(len(points))
	}
	if end <= start {
		return nil
	}
	flat := make([]float64, 0, 2*(end-start))
	for j := start; j < end; j++ {
		if math.IsNaN(points[j].X) || math.IsNaN(points[j].Y) {
			return nil
		}
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}

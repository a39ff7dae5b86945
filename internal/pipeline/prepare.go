package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/config"
	"github.com/sells-group/roadrings/internal/fetcher"
	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
)

// Attribute names IBGE boundary shapefiles use for the state
// abbreviation and name, across vintages. Shapefile fields arrive
// lowercased.
var (
	aoiAbbrevColumns = []string{"sigla_uf", "sigla", "uf"}
	aoiNameColumns   = []string{"nm_uf", "nm_estado", "nome_uf"}
)

// PrepareRoads extracts and dissolves the area of interest from the
// boundary shapefile, clips the road layer to it, and persists both as
// GeoJSON in the working projection.
func (p *Pipeline) PrepareRoads(ctx context.Context) error {
	cfg := p.cfg

	var aoi *geom.MultiPolygon
	if err := trackPhase("extract_aoi", func() error {
		shpPath, err := fetcher.FindByExt(filepath.Join(cfg.Paths.RawDir(), "boundary"), ".shp")
		if err != nil {
			return eris.Wrap(err, "pipeline: locate boundary shapefile (run fetch first)")
		}
		bfc, err := layer.ReadShapefile(shpPath, layer.ShapefileOptions{SRID: cfg.AOI.SRID})
		if err != nil {
			return err
		}

		matched := matchAOI(bfc, cfg.AOI.Code, cfg.AOI.Name)
		if len(matched) == 0 {
			return eris.Wrapf(config.ErrInvalidConfiguration,
				"pipeline: no boundary feature matches aoi code %q or name %q", cfg.AOI.Code, cfg.AOI.Name)
		}

		aoi, err = asMultiPolygon(bfc.Features[matched[0]].Geom)
		if err != nil {
			return err
		}
		for _, i := range matched[1:] {
			aoi, err = p.alg.Union(ctx, aoi, bfc.Features[i].Geom)
			if err != nil {
				return eris.Wrap(err, "pipeline: dissolve area of interest")
			}
		}
		if err := geometry.Validate(aoi); err != nil {
			return eris.Wrap(err, "pipeline: area of interest")
		}

		out := layer.NewCollection(cfg.AOI.SRID, "code", "name")
		out.Features = append(out.Features, layer.Feature{
			ID:   1,
			Geom: aoi,
			Attrs: map[string]string{
				"code": cfg.AOI.Code,
				"name": cfg.AOI.Name,
			},
		})
		return layer.WriteGeoJSON(cfg.Paths.AOIPath(), out)
	}); err != nil {
		return err
	}

	return trackPhase("clip_roads", func() error {
		shpPath, err := fetcher.FindByExt(filepath.Join(cfg.Paths.RawDir(), "roads"), ".shp")
		if err != nil {
			return eris.Wrap(err, "pipeline: locate roads shapefile (run fetch first)")
		}
		rfc, err := layer.ReadShapefile(shpPath, layer.ShapefileOptions{
			SRID:   cfg.AOI.SRID,
			Fields: []string{"fclass", "name"},
		})
		if err != nil {
			return err
		}
		rfc = rfc.FilterAttr("fclass", cfg.Roads.Classes)

		aoiExt := geometry.ExtentOf(aoi)
		out := layer.NewCollection(cfg.AOI.SRID, rfc.Schema...)
		var outside int
		for i := range rfc.Features {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "pipeline: clip roads")
				}
			}
			f := &rfc.Features[i]
			if !geometry.ExtentOf(f.Geom).Intersects(aoiExt) {
				outside++
				continue
			}
			clipped, err := p.alg.ClipLines(ctx, f.Geom, aoi)
			if err != nil {
				return eris.Wrapf(err, "pipeline: clip road %d", f.ID)
			}
			if geometry.IsEmptyGeom(clipped) {
				outside++
				continue
			}
			out.Features = append(out.Features, layer.Feature{ID: f.ID, Geom: clipped, Attrs: f.Attrs})
		}

		zap.L().Info("clipped road layer",
			zap.Int("source_features", rfc.Len()),
			zap.Int("kept", out.Len()),
			zap.Int("outside_aoi", outside),
		)
		return layer.WriteGeoJSON(cfg.Paths.RoadsPath(), out)
	})
}

// PrepareDeforestation clips the deforestation polygons to the area of
// interest, applies the configured year and class filters, and writes
// the prepared layer plus a bounded preview.
func (p *Pipeline) PrepareDeforestation(ctx context.Context) error {
	cfg := p.cfg

	var dfc *layer.FeatureCollection
	if err := trackPhase("load_deforestation", func() error {
		var err error
		dfc, err = readDeforestationSource(filepath.Join(cfg.Paths.RawDir(), "deforestation"), cfg.AOI.SRID)
		return err
	}); err != nil {
		return err
	}

	if err := trackPhase("filter", func() error {
		before := dfc.Len()
		dfc = dfc.FilterYears(cfg.Analysis.YearMin, cfg.Analysis.YearMax)
		dfc = dfc.FilterAttr(cfg.Analysis.ClassField, cfg.Analysis.ClassKeep)
		zap.L().Info("filtered deforestation layer",
			zap.Int("source_features", before),
			zap.Int("kept", dfc.Len()),
		)
		return nil
	}); err != nil {
		return err
	}

	var clipped *layer.FeatureCollection
	if err := trackPhase("clip_to_aoi", func() error {
		aoi, err := p.loadAOI(ctx)
		if err != nil {
			return err
		}

		aoiExt := geometry.ExtentOf(aoi)
		clipped = layer.NewCollection(cfg.AOI.SRID, dfc.Schema...)
		var outside, invalid int
		for i := range dfc.Features {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "pipeline: clip deforestation")
				}
			}
			f := &dfc.Features[i]
			if err := geometry.Validate(f.Geom); err != nil {
				invalid++
				zap.L().Debug("pipeline: dropping invalid deforestation feature",
					zap.Int64("feature_id", f.ID),
					zap.Error(err),
				)
				continue
			}
			if !geometry.ExtentOf(f.Geom).Intersects(aoiExt) {
				outside++
				continue
			}
			part, err := p.alg.Intersection(ctx, f.Geom, aoi)
			if err != nil {
				return eris.Wrapf(err, "pipeline: clip deforestation feature %d", f.ID)
			}
			if geometry.IsEmptyGeom(part) {
				outside++
				continue
			}
			clipped.Features = append(clipped.Features, layer.Feature{ID: f.ID, Geom: part, Attrs: f.Attrs})
		}

		zap.L().Info("clipped deforestation layer",
			zap.Int("source_features", dfc.Len()),
			zap.Int("kept", clipped.Len()),
			zap.Int("outside_aoi", outside),
			zap.Int("invalid", invalid),
		)
		return nil
	}); err != nil {
		return err
	}

	return trackPhase("write_layers", func() error {
		if err := layer.WriteGeoJSON(cfg.Paths.DeforestationPath(), clipped); err != nil {
			return err
		}
		if err := layer.WritePreview(cfg.Paths.PreviewPath(), clipped, cfg.Analysis.PreviewFeatures); err != nil {
			return err
		}
		zap.L().Info("deforestation census",
			zap.Int("features", clipped.Len()),
			zap.Any("features_per_year", clipped.YearCounts()),
		)
		return nil
	})
}

// readDeforestationSource loads the raw deforestation layer, preferring
// a shapefile and falling back to GeoJSON.
func readDeforestationSource(dir string, srid int) (*layer.FeatureCollection, error) {
	if shpPath, err := fetcher.FindByExt(dir, ".shp"); err == nil {
		return layer.ReadShapefile(shpPath, layer.ShapefileOptions{SRID: srid})
	}
	if gjPath, err := fetcher.FindByExt(dir, ".geojson"); err == nil {
		return layer.ReadGeoJSON(gjPath, srid)
	}
	if jsPath, err := fetcher.FindByExt(dir, ".json"); err == nil {
		return layer.ReadGeoJSON(jsPath, srid)
	}
	return nil, eris.Errorf("pipeline: no deforestation source found under %s (run fetch first)", dir)
}

// matchAOI returns the indexes of boundary features matching the
// configured abbreviation, or failing that the configured name.
func matchAOI(fc *layer.FeatureCollection, code, name string) []int {
	if code != "" {
		if idx := matchAttrAny(fc, aoiAbbrevColumns, code); len(idx) > 0 {
			return idx
		}
	}
	if name != "" {
		if idx := matchAttrAny(fc, aoiNameColumns, name); len(idx) > 0 {
			return idx
		}
	}
	return nil
}

func matchAttrAny(fc *layer.FeatureCollection, columns []string, want string) []int {
	for _, col := range columns {
		var idx []int
		for i := range fc.Features {
			if strings.EqualFold(strings.TrimSpace(fc.Features[i].Attr(col)), want) {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			return idx
		}
	}
	return nil
}

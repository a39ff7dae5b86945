package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
	"github.com/sells-group/roadrings/internal/rings"
)

// BuildRings partitions the area of interest into distance rings around the
// prepared road network and persists the ring layer with its manifest.
func (p *Pipeline) BuildRings(ctx context.Context) (*rings.Partition, error) {
	cfg := p.cfg

	var roads *layer.FeatureCollection
	var aoi *geom.MultiPolygon
	if err := trackPhase("load_layers", func() error {
		var err error
		roads, err = layer.ReadGeoJSON(cfg.Paths.RoadsPath(), cfg.AOI.SRID)
		if err != nil {
			return eris.Wrap(err, "pipeline: read roads layer (run prepare-roads first)")
		}
		aoi, err = p.loadAOI(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	var part *rings.Partition
	if err := trackPhase("build_rings", func() error {
		var err error
		part, err = rings.Build(ctx, p.alg, roads, aoi, rings.BuildOptions{
			ThresholdsKm: cfg.Analysis.ThresholdsKm,
			BatchSize:    cfg.Analysis.ChunkSize,
			SRID:         cfg.AOI.SRID,
		})
		return err
	}); err != nil {
		return nil, err
	}

	if err := trackPhase("write_rings", func() error {
		if err := layer.WriteGeoJSON(cfg.Paths.RingsPath(), part.ToCollection()); err != nil {
			return err
		}
		return rings.WriteManifest(cfg.Paths.ManifestPath(), part.Manifest(cfg.AOI.Code, cfg.Geometry.QuadSegments))
	}); err != nil {
		return nil, err
	}

	zap.L().Info("ring partition ready",
		zap.Int("rings", len(part.Rings)),
		zap.Float64("aoi_area_ha", part.AOIArea/geometry.SquareMetersPerHectare),
	)
	return part, nil
}

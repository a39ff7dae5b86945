// Package pipeline orchestrates the analysis runs: preparing layers,
// building the ring partition, and the overlay/aggregation pass.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/config"
	"github.com/sells-group/roadrings/internal/db"
	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
)

// Pipeline runs the analysis stages against one geometry engine.
type Pipeline struct {
	cfg      *config.Config
	alg      geometry.Algebra
	closeAlg func()
}

// New selects the geometry engine from configuration. The local engine
// needs no external services; the postgis engine holds a connection pool
// until Close.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}
	switch cfg.Geometry.Engine {
	case "", "local":
		p.alg = geometry.NewPlanar(cfg.Geometry.QuadSegments)
	case "postgis":
		if cfg.Geometry.DatabaseURL == "" {
			return nil, eris.Wrap(config.ErrInvalidConfiguration,
				"pipeline: geometry.database_url is required for the postgis engine")
		}
		pool, err := db.Connect(ctx, cfg.Geometry.DatabaseURL)
		if err != nil {
			return nil, err
		}
		p.alg = geometry.NewPostGIS(pool, cfg.AOI.SRID, cfg.Geometry.QuadSegments)
		p.closeAlg = pool.Close
	default:
		return nil, eris.Wrapf(config.ErrInvalidConfiguration,
			"pipeline: unknown geometry engine %q", cfg.Geometry.Engine)
	}
	return p, nil
}

// Close releases engine resources.
func (p *Pipeline) Close() {
	if p.closeAlg != nil {
		p.closeAlg()
	}
}

// trackPhase logs a phase's duration and outcome.
func trackPhase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	ms := time.Since(start).Milliseconds()
	if err != nil {
		zap.L().Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", ms),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", ms),
	)
	return nil
}

// loadAOI reads the prepared area of interest, dissolving it when the
// layer carries more than one feature.
func (p *Pipeline) loadAOI(ctx context.Context) (*geom.MultiPolygon, error) {
	fc, err := layer.ReadGeoJSON(p.cfg.Paths.AOIPath(), p.cfg.AOI.SRID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read area of interest (run prepare-roads first)")
	}
	if fc.Len() == 0 {
		return nil, eris.Wrap(geometry.ErrInvalidGeometry, "pipeline: area of interest layer is empty")
	}

	aoi, err := asMultiPolygon(fc.Features[0].Geom)
	if err != nil {
		return nil, err
	}
	for i := 1; i < fc.Len(); i++ {
		aoi, err = p.alg.Union(ctx, aoi, fc.Features[i].Geom)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: dissolve area of interest")
		}
	}
	return aoi, nil
}

func asMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "pipeline: promote polygon")
		}
		return mp, nil
	default:
		return nil, eris.Wrapf(geometry.ErrInvalidGeometry,
			"pipeline: expected polygonal geometry, got %T", g)
	}
}

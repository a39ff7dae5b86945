package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
	"github.com/sells-group/roadrings/internal/overlay"
	"github.com/sells-group/roadrings/internal/rings"
	"github.com/sells-group/roadrings/internal/store"
)

// OverlayAndAggregate intersects the prepared deforestation layer with the
// persisted ring partition, aggregates the fragment areas per ring and year,
// and persists the summary to the configured store.
func (p *Pipeline) OverlayAndAggregate(ctx context.Context) (*aggregate.Table, error) {
	cfg := p.cfg

	var part *rings.Partition
	var dfc *layer.FeatureCollection
	if err := trackPhase("load_layers", func() error {
		rfc, err := layer.ReadGeoJSON(cfg.Paths.RingsPath(), cfg.AOI.SRID)
		if err != nil {
			return eris.Wrap(err, "pipeline: read ring layer (run build-rings first)")
		}
		part, err = rings.PartitionFromCollection(rfc, cfg.Analysis.ThresholdsKm)
		if err != nil {
			return err
		}
		dfc, err = layer.ReadGeoJSON(cfg.Paths.DeforestationPath(), cfg.AOI.SRID)
		if err != nil {
			return eris.Wrap(err, "pipeline: read deforestation layer (run prepare-deforestation first)")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	planner, err := overlay.NewPlanner(dfc, cfg.Analysis.ChunkSize)
	if err != nil {
		return nil, err
	}
	engine := overlay.NewEngine(p.alg, part, overlay.EngineOptions{
		KeepFragments: cfg.Analysis.KeepFragments,
	})

	results := make([]overlay.ChunkResult, planner.Chunks())
	if err := trackPhase("overlay", func() error {
		workers := cfg.Analysis.Workers
		if workers <= 0 {
			workers = 1
		}
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := 0; i < planner.Chunks(); i++ {
			g.Go(func() error {
				res, err := engine.Chunk(gCtx, i, planner.Chunk(i))
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		return g.Wait()
	}); err != nil {
		return nil, err
	}

	// Merge per-chunk results in chunk index order, never completion order.
	acc := aggregate.NewAccumulator()
	var skips []overlay.Skip
	for i := range results {
		acc.AddAll(results[i].Fragments)
		skips = append(skips, results[i].Skips...)
	}
	for _, s := range skips {
		zap.L().Debug("pipeline: skipped feature",
			zap.Int64("feature_id", s.FeatureID),
			zap.String("reason", s.Reason),
		)
	}
	if len(skips) > 0 {
		zap.L().Warn("pipeline: features skipped during overlay", zap.Int("skipped", len(skips)))
	}

	ringIDs := make([]string, len(part.Rings))
	for i := range part.Rings {
		ringIDs[i] = part.Rings[i].ID
	}
	table := aggregate.BuildTable(acc, ringIDs, dfc.Years(), aggregate.Meta{
		RunID:        uuid.New().String(),
		GeneratedAt:  time.Now().UTC(),
		AOICode:      cfg.AOI.Code,
		SRID:         part.SRID,
		ThresholdsKm: part.Thresholds,
		AOIAreaHa:    part.AOIArea / geometry.SquareMetersPerHectare,
		ToleranceM2:  part.Epsilon,
		Features:     dfc.Len(),
		Skipped:      len(skips),
	})

	if err := trackPhase("persist", func() error {
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		return st.Persist(ctx, table)
	}); err != nil {
		return nil, err
	}

	if cfg.Analysis.KeepFragments {
		if err := trackPhase("write_fragments", func() error {
			return writeFragments(cfg.Paths.FragmentsPath(), cfg.AOI.SRID, results)
		}); err != nil {
			return nil, err
		}
	}

	zap.L().Info("analysis summary persisted",
		zap.String("run_id", table.Meta.RunID),
		zap.Int("features", table.Meta.Features),
		zap.Int("fragments", table.Meta.Fragments),
		zap.Int("skipped", table.Meta.Skipped),
		zap.Ints("years", table.Meta.Years),
	)
	return table, nil
}

// writeFragments persists retained fragment geometry for inspection.
func writeFragments(path string, srid int, results []overlay.ChunkResult) error {
	fc := layer.NewCollection(srid, "feature_id", "ring_id", layer.YearField, "area_m2")
	var id int64
	for ri := range results {
		for _, fr := range results[ri].Fragments {
			if geometry.IsEmptyGeom(fr.Geom) {
				continue
			}
			id++
			fc.Features = append(fc.Features, layer.Feature{
				ID:   id,
				Geom: fr.Geom,
				Attrs: map[string]string{
					"feature_id":    strconv.FormatInt(fr.FeatureID, 10),
					"ring_id":       fr.RingID,
					layer.YearField: strconv.Itoa(fr.Year),
					"area_m2":       strconv.FormatFloat(fr.Area, 'g', -1, 64),
				},
			})
		}
	}
	return layer.WriteGeoJSON(path, fc)
}

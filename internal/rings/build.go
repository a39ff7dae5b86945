package rings

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
)

// defaultBatchSize bounds how many road features are buffered per geometry
// call.
const defaultBatchSize = 20000

// BuildOptions parameterizes partition construction.
type BuildOptions struct {
	// ThresholdsKm are the ring boundaries in kilometers, strictly
	// increasing.
	ThresholdsKm []float64
	// BatchSize is the number of road features buffered per call; zero
	// uses the default.
	BatchSize int
	// SRID declares the working projection of all inputs.
	SRID int
}

// Build buffers the road network at every threshold, clips each buffer to
// the area of interest and derives the rings by successive difference. The
// buffers are nested by construction, so the rings tile the area of interest
// with no gaps or overlaps; Build verifies that before returning.
func Build(ctx context.Context, alg geometry.Algebra, roads *layer.FeatureCollection, aoi geom.T, opts BuildOptions) (*Partition, error) {
	if err := validateThresholds(opts.ThresholdsKm); err != nil {
		return nil, err
	}
	if err := geometry.Validate(aoi); err != nil {
		return nil, eris.Wrap(err, "rings: area of interest")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	aoiMP, err := toMultiPolygon(aoi)
	if err != nil {
		return nil, eris.Wrap(err, "rings: area of interest")
	}
	aoiArea, err := alg.Area(ctx, aoiMP)
	if err != nil {
		return nil, eris.Wrap(err, "rings: area of interest")
	}

	batches, skipped := roadBatches(roads, batchSize)
	if skipped > 0 {
		zap.L().Debug("rings: skipped non-line road features", zap.Int("skipped", skipped))
	}

	// Clip each nested buffer to the area of interest. Buffering the full
	// network at every threshold keeps the buffers nested; banding each
	// ring independently would not.
	clipped := make([]*geom.MultiPolygon, len(opts.ThresholdsKm))
	for ti, km := range opts.ThresholdsKm {
		var buffered *geom.MultiPolygon
		for bi, lines := range batches {
			b, err := alg.Buffer(ctx, lines, km*1000)
			if err != nil {
				return nil, eris.Wrapf(err, "rings: buffer %gkm batch %d", km, bi)
			}
			if buffered == nil {
				buffered = b
				continue
			}
			buffered, err = alg.Union(ctx, buffered, b)
			if err != nil {
				return nil, eris.Wrapf(err, "rings: merge %gkm batch %d", km, bi)
			}
		}
		if buffered == nil {
			buffered = geom.NewMultiPolygon(geom.XY)
		}
		clipped[ti], err = alg.Intersection(ctx, buffered, aoiMP)
		if err != nil {
			return nil, eris.Wrapf(err, "rings: clip %gkm buffer", km)
		}
		zap.L().Debug("rings: buffered threshold",
			zap.Float64("km", km),
			zap.Int("batches", len(batches)),
		)
	}

	labels := Labels(opts.ThresholdsKm)
	ringSet := make([]Ring, 0, len(labels))
	var prev *geom.MultiPolygon
	lo := 0.0
	for ti, km := range opts.ThresholdsKm {
		g := clipped[ti]
		if prev != nil {
			g, err = alg.Difference(ctx, clipped[ti], prev)
			if err != nil {
				return nil, eris.Wrapf(err, "rings: derive %s", labels[ti])
			}
		}
		area, err := alg.Area(ctx, g)
		if err != nil {
			return nil, eris.Wrapf(err, "rings: area of %s", labels[ti])
		}
		ringSet = append(ringSet, Ring{ID: labels[ti], MinKm: lo, MaxKm: km, Geom: g, Area: area})
		prev = clipped[ti]
		lo = km
	}

	beyond, err := alg.Difference(ctx, aoiMP, prev)
	if err != nil {
		return nil, eris.Wrapf(err, "rings: derive %s", labels[len(labels)-1])
	}
	beyondArea, err := alg.Area(ctx, beyond)
	if err != nil {
		return nil, eris.Wrapf(err, "rings: area of %s", labels[len(labels)-1])
	}
	ringSet = append(ringSet, Ring{
		ID:    labels[len(labels)-1],
		MinKm: lo,
		MaxKm: math.Inf(1),
		Geom:  beyond,
		Area:  beyondArea,
	})

	p := &Partition{
		SRID:       opts.SRID,
		Thresholds: append([]float64(nil), opts.ThresholdsKm...),
		AOI:        aoiMP,
		AOIArea:    aoiArea,
		Epsilon:    geometry.AreaTolerance(aoiArea),
		Rings:      ringSet,
	}
	if err := p.Verify(ctx, alg); err != nil {
		return nil, err
	}

	zap.L().Debug("rings: partition built",
		zap.Int("rings", len(p.Rings)),
		zap.Float64("aoi_area_m2", aoiArea),
	)
	return p, nil
}

// roadBatches groups the road features into MultiLineStrings of at most size
// features each, counting features that carry no line geometry.
func roadBatches(roads *layer.FeatureCollection, size int) ([]*geom.MultiLineString, int) {
	var batches []*geom.MultiLineString
	var skipped int
	current := geom.NewMultiLineString(geom.XY)
	n := 0
	flush := func() {
		if current.NumLineStrings() > 0 {
			batches = append(batches, current)
		}
		current = geom.NewMultiLineString(geom.XY)
		n = 0
	}
	for i := range roads.Features {
		if !appendLines(current, roads.Features[i].Geom) {
			skipped++
			continue
		}
		n++
		if n >= size {
			flush()
		}
	}
	flush()
	return batches, skipped
}

func appendLines(dst *geom.MultiLineString, g geom.T) bool {
	switch t := g.(type) {
	case *geom.LineString:
		return dst.Push(t) == nil
	case *geom.MultiLineString:
		ok := false
		for i := 0; i < t.NumLineStrings(); i++ {
			if dst.Push(t.LineString(i)) == nil {
				ok = true
			}
		}
		return ok
	}
	return false
}

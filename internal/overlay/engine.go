package overlay

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
	"github.com/sells-group/roadrings/internal/rings"
)

// partRef addresses one polygon part of one ring.
type partRef struct {
	ring int
	part int
}

// EngineOptions tunes the overlay engine.
type EngineOptions struct {
	// KeepFragments materializes fragment geometry instead of computing
	// areas only.
	KeepFragments bool
}

// Engine computes ring fragments for features against a fixed partition.
// Safe for concurrent use once constructed.
type Engine struct {
	alg  geometry.Algebra
	part *rings.Partition
	idx  rtree.RTreeG[partRef]
	keep bool
}

// NewEngine indexes the partition's ring parts and returns an engine.
func NewEngine(alg geometry.Algebra, part *rings.Partition, opts EngineOptions) *Engine {
	e := &Engine{alg: alg, part: part, keep: opts.KeepFragments}
	for ri := range part.Rings {
		mp := part.Rings[ri].Geom
		if geometry.IsEmptyGeom(mp) {
			continue
		}
		for pi := 0; pi < mp.NumPolygons(); pi++ {
			ext := geometry.ExtentOf(mp.Polygon(pi))
			e.idx.Insert(ext.Min(), ext.Max(), partRef{ring: ri, part: pi})
		}
	}
	return e
}

// Feature intersects one feature with every candidate ring. Features with
// unusable geometry come back as a skip; engine failures are errors.
// Fragments are emitted in ring order, innermost first.
func (e *Engine) Feature(ctx context.Context, f *layer.Feature) ([]Fragment, *Skip, error) {
	if err := geometry.Validate(f.Geom); err != nil {
		return nil, &Skip{FeatureID: f.ID, Reason: err.Error()}, nil
	}

	featArea, err := e.alg.Area(ctx, f.Geom)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "overlay: feature %d", f.ID)
	}
	tol := geometry.AreaTolerance(featArea)

	// Bounding-box prefilter: collect candidate ring parts before any
	// geometry work.
	ext := geometry.ExtentOf(f.Geom)
	candidates := make([][]int, len(e.part.Rings))
	e.idx.Search(ext.Min(), ext.Max(), func(_, _ [2]float64, ref partRef) bool {
		candidates[ref.ring] = append(candidates[ref.ring], ref.part)
		return true
	})

	year := f.Year()
	var frags []Fragment
	for ri := range e.part.Rings {
		if len(candidates[ri]) == 0 {
			continue
		}
		ring := &e.part.Rings[ri]
		target := ringSubset(ring.Geom, candidates[ri])

		var area float64
		var fragGeom *geom.MultiPolygon
		if e.keep {
			fragGeom, err = e.alg.Intersection(ctx, f.Geom, target)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "overlay: feature %d in %s", f.ID, ring.ID)
			}
			if geometry.IsEmptyGeom(fragGeom) {
				continue
			}
			area, err = e.alg.Area(ctx, fragGeom)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "overlay: feature %d in %s", f.ID, ring.ID)
			}
		} else {
			area, err = e.alg.IntersectionArea(ctx, f.Geom, target)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "overlay: feature %d in %s", f.ID, ring.ID)
			}
		}
		if area <= tol {
			continue
		}
		frags = append(frags, Fragment{
			FeatureID: f.ID,
			RingID:    ring.ID,
			Year:      year,
			Area:      area,
			Geom:      fragGeom,
		})
	}
	return frags, nil, nil
}

// ChunkResult carries one chunk's fragments and skips, tagged with the chunk
// index so callers can merge in a fixed order.
type ChunkResult struct {
	Index     int
	Features  int
	Fragments []Fragment
	Skips     []Skip
}

// Chunk runs Feature over every feature of a chunk.
func (e *Engine) Chunk(ctx context.Context, index int, fc *layer.FeatureCollection) (ChunkResult, error) {
	res := ChunkResult{Index: index, Features: fc.Len()}
	for i := range fc.Features {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return res, eris.Wrapf(err, "overlay: chunk %d", index)
			}
		}
		frags, skip, err := e.Feature(ctx, &fc.Features[i])
		if err != nil {
			return res, err
		}
		if skip != nil {
			res.Skips = append(res.Skips, *skip)
			continue
		}
		res.Fragments = append(res.Fragments, frags...)
	}
	if len(res.Skips) > 0 {
		zap.L().Debug("overlay: chunk finished with skips",
			zap.Int("chunk", index),
			zap.Int("features", res.Features),
			zap.Int("skips", len(res.Skips)),
		)
	}
	return res, nil
}

// ringSubset returns the candidate parts of a ring as one geometry, reusing
// the ring itself when every part is a candidate.
func ringSubset(mp *geom.MultiPolygon, parts []int) geom.T {
	if len(parts) == mp.NumPolygons() {
		return mp
	}
	sort.Ints(parts)
	sub := geom.NewMultiPolygon(geom.XY)
	for _, pi := range parts {
		_ = sub.Push(mp.Polygon(pi))
	}
	return sub
}

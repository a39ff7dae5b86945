// Package overlay intersects event features with a ring partition. Features
// are processed in fixed-size chunks so runs are restartable and memory
// bounded; a spatial index over ring parts prefilters the geometry work.
// Chunking never changes results: fragments depend only on the feature and
// the partition.
package overlay

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/roadrings/internal/config"
	"github.com/sells-group/roadrings/internal/layer"
)

// Fragment is the piece of one feature falling inside one ring. Area is in
// square meters; Geom is populated only when the engine keeps fragment
// geometry.
type Fragment struct {
	FeatureID int64
	RingID    string
	Year      int
	Area      float64
	Geom      *geom.MultiPolygon
}

// Skip records a feature the overlay could not process, by identifier and
// reason. Skipped features are reported, never silently dropped.
type Skip struct {
	FeatureID int64
	Reason    string
}

// Planner slices a feature collection into contiguous fixed-size chunks,
// preserving feature order.
type Planner struct {
	fc   *layer.FeatureCollection
	size int
}

// NewPlanner validates the chunk size and returns a planner over fc.
func NewPlanner(fc *layer.FeatureCollection, size int) (*Planner, error) {
	if size <= 0 {
		return nil, eris.Wrapf(config.ErrInvalidConfiguration,
			"overlay: chunk size must be positive, got %d", size)
	}
	return &Planner{fc: fc, size: size}, nil
}

// Chunks returns the number of chunks.
func (p *Planner) Chunks() int {
	return (p.fc.Len() + p.size - 1) / p.size
}

// Chunk returns the i-th chunk as a view sharing the backing features.
// i must be in [0, Chunks()).
func (p *Planner) Chunk(i int) *layer.FeatureCollection {
	lo := i * p.size
	hi := min(lo+p.size, p.fc.Len())
	return p.fc.View(lo, hi)
}

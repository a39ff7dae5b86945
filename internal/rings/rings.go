// Package rings partitions an area of interest into concentric distance
// rings around a road network. The innermost ring is the road buffer at the
// first threshold, each further ring is the difference between successive
// nested buffers, and a final remainder ring covers everything beyond the
// last threshold. Together the rings tile the area of interest exactly.
package rings

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/roadrings/internal/config"
	"github.com/sells-group/roadrings/internal/geometry"
	"github.com/sells-group/roadrings/internal/layer"
)

// Ring is one distance band of the partition. MaxKm is +Inf for the
// remainder ring beyond the last threshold.
type Ring struct {
	ID    string
	MinKm float64
	MaxKm float64
	Geom  *geom.MultiPolygon
	// Area is the planar area in square meters.
	Area float64
}

// Partition is the complete set of rings tiling the area of interest.
type Partition struct {
	SRID       int
	Thresholds []float64
	AOI        *geom.MultiPolygon
	// AOIArea is the area of interest in square meters.
	AOIArea float64
	// Epsilon is the area tolerance all partition comparisons use.
	Epsilon float64
	Rings   []Ring
}

// Label formats a ring identifier from its distance bounds in kilometers.
func Label(loKm, hiKm float64) string {
	if math.IsInf(hiKm, 1) {
		return fmt.Sprintf(">%gkm", loKm)
	}
	return fmt.Sprintf("%g-%gkm", loKm, hiKm)
}

// Labels returns the full ring vocabulary for a threshold list, innermost
// first, remainder last.
func Labels(thresholdsKm []float64) []string {
	labels := make([]string, 0, len(thresholdsKm)+1)
	lo := 0.0
	for _, hi := range thresholdsKm {
		labels = append(labels, Label(lo, hi))
		lo = hi
	}
	return append(labels, Label(lo, math.Inf(1)))
}

// Ring returns the ring with the given identifier, or nil.
func (p *Partition) Ring(id string) *Ring {
	for i := range p.Rings {
		if p.Rings[i].ID == id {
			return &p.Rings[i]
		}
	}
	return nil
}

// Verify checks that the rings tile the area of interest: their areas sum to
// the area of interest and no two rings overlap, within tolerance.
func (p *Partition) Verify(ctx context.Context, alg geometry.Algebra) error {
	var sum float64
	for i := range p.Rings {
		sum += p.Rings[i].Area
	}
	if resid := math.Abs(sum - p.AOIArea); resid > p.Epsilon {
		return eris.Errorf(
			"rings: ring areas sum to %.4f but area of interest is %.4f, residual %.6f exceeds tolerance %.6f",
			sum, p.AOIArea, resid, p.Epsilon)
	}

	for i := 0; i < len(p.Rings); i++ {
		for j := i + 1; j < len(p.Rings); j++ {
			a, b := &p.Rings[i], &p.Rings[j]
			if geometry.IsEmptyGeom(a.Geom) || geometry.IsEmptyGeom(b.Geom) {
				continue
			}
			if !geometry.ExtentOf(a.Geom).Intersects(geometry.ExtentOf(b.Geom)) {
				continue
			}
			overlap, err := alg.IntersectionArea(ctx, a.Geom, b.Geom)
			if err != nil {
				return eris.Wrapf(err, "rings: overlap of %s with %s", a.ID, b.ID)
			}
			if overlap > p.Epsilon {
				return eris.Errorf("rings: %s and %s overlap by %.6f, tolerance %.6f",
					a.ID, b.ID, overlap, p.Epsilon)
			}
		}
	}
	return nil
}

// ToCollection renders the partition as a feature layer for persistence.
func (p *Partition) ToCollection() *layer.FeatureCollection {
	fc := layer.NewCollection(p.SRID, "ring_id", "min_km", "max_km", "area_m2")
	for i := range p.Rings {
		r := &p.Rings[i]
		attrs := map[string]string{
			"ring_id": r.ID,
			"min_km":  strconv.FormatFloat(r.MinKm, 'g', -1, 64),
			"area_m2": strconv.FormatFloat(r.Area, 'g', -1, 64),
		}
		if !math.IsInf(r.MaxKm, 1) {
			attrs["max_km"] = strconv.FormatFloat(r.MaxKm, 'g', -1, 64)
		}
		fc.Features = append(fc.Features, layer.Feature{ID: int64(i), Geom: r.Geom, Attrs: attrs})
	}
	return fc
}

// PartitionFromCollection rebuilds a partition from a persisted ring layer.
// Every ring the threshold list implies must be present.
func PartitionFromCollection(fc *layer.FeatureCollection, thresholdsKm []float64) (*Partition, error) {
	if err := validateThresholds(thresholdsKm); err != nil {
		return nil, err
	}

	byID := make(map[string]*layer.Feature, fc.Len())
	for i := range fc.Features {
		byID[fc.Features[i].Attr("ring_id")] = &fc.Features[i]
	}

	p := &Partition{
		SRID:       fc.SRID,
		Thresholds: append([]float64(nil), thresholdsKm...),
	}
	lo := 0.0
	for k, id := range Labels(thresholdsKm) {
		f, ok := byID[id]
		if !ok {
			return nil, eris.Errorf("rings: stored partition is missing ring %s", id)
		}
		mp, err := toMultiPolygon(f.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "rings: ring %s", id)
		}
		hi := math.Inf(1)
		if k < len(thresholdsKm) {
			hi = thresholdsKm[k]
		}
		area, err := strconv.ParseFloat(f.Attr("area_m2"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "rings: ring %s has no usable area_m2", id)
		}
		p.Rings = append(p.Rings, Ring{ID: id, MinKm: lo, MaxKm: hi, Geom: mp, Area: area})
		p.AOIArea += area
		lo = hi
	}
	p.Epsilon = geometry.AreaTolerance(p.AOIArea)
	return p, nil
}

func validateThresholds(thresholdsKm []float64) error {
	if len(thresholdsKm) == 0 {
		return eris.Wrap(config.ErrInvalidConfiguration, "rings: no distance thresholds")
	}
	prev := 0.0
	for _, t := range thresholdsKm {
		if math.IsNaN(t) || t <= prev {
			return eris.Wrapf(config.ErrInvalidConfiguration,
				"rings: thresholds must be positive and strictly increasing, got %v", thresholdsKm)
		}
		prev = t
	}
	return nil
}

func toMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrapf(geometry.ErrInvalidGeometry, "malformed polygon: %v", err)
		}
		return mp, nil
	}
	return nil, eris.Wrapf(geometry.ErrInvalidGeometry, "expected polygonal geometry, got %T", g)
}

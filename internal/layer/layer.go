// Package layer loads, filters and persists geospatial feature layers. All
// layers must share one planar working projection; the readers verify this
// against shapefile .prj sidecars and GeoJSON crs members where present.
package layer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/roadrings/internal/geometry"
)

// YearField is the attribute carrying the observation year.
const YearField = "year"

// Feature is one geometry with its attributes.
type Feature struct {
	ID    int64
	Geom  geom.T
	Attrs map[string]string
}

// Attr returns the named attribute or "".
func (f *Feature) Attr(key string) string {
	return f.Attrs[key]
}

// Year parses the year attribute; 0 when absent or unparseable. Numeric
// attributes that arrive as decimals ("2019.0") are truncated.
func (f *Feature) Year() int {
	raw := strings.TrimSpace(f.Attrs[YearField])
	if raw == "" {
		return 0
	}
	if y, err := strconv.Atoi(raw); err == nil {
		return y
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v)
	}
	return 0
}

// FeatureCollection is an ordered set of features sharing one projection and
// attribute schema.
type FeatureCollection struct {
	SRID     int
	Schema   []string
	Features []Feature
}

// NewCollection returns an empty collection for the given projection.
func NewCollection(srid int, schema ...string) *FeatureCollection {
	return &FeatureCollection{SRID: srid, Schema: schema}
}

// Len returns the number of features.
func (fc *FeatureCollection) Len() int { return len(fc.Features) }

// View returns a collection sharing the backing slice between lo and hi.
func (fc *FeatureCollection) View(lo, hi int) *FeatureCollection {
	return &FeatureCollection{SRID: fc.SRID, Schema: fc.Schema, Features: fc.Features[lo:hi:hi]}
}

// Extent returns the combined bounding box of all features.
func (fc *FeatureCollection) Extent() geometry.Extent {
	ext := geometry.ExtentOf(nil)
	for i := range fc.Features {
		fe := geometry.ExtentOf(fc.Features[i].Geom)
		if fe.IsEmpty() {
			continue
		}
		if ext.IsEmpty() {
			ext = fe
			continue
		}
		if fe.MinX < ext.MinX {
			ext.MinX = fe.MinX
		}
		if fe.MinY < ext.MinY {
			ext.MinY = fe.MinY
		}
		if fe.MaxX > ext.MaxX {
			ext.MaxX = fe.MaxX
		}
		if fe.MaxY > ext.MaxY {
			ext.MaxY = fe.MaxY
		}
	}
	return ext
}

// Years returns the sorted distinct years observed across the collection,
// excluding features without a usable year.
func (fc *FeatureCollection) Years() []int {
	seen := make(map[int]struct{})
	for i := range fc.Features {
		if y := fc.Features[i].Year(); y != 0 {
			seen[y] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// YearCounts returns the number of features per observed year.
func (fc *FeatureCollection) YearCounts() map[int]int {
	counts := make(map[int]int)
	for i := range fc.Features {
		if y := fc.Features[i].Year(); y != 0 {
			counts[y]++
		}
	}
	return counts
}

// FilterYears keeps features whose year falls in [min, max]; a zero bound is
// open. Features without a year survive only when both bounds are open.
func (fc *FeatureCollection) FilterYears(min, max int) *FeatureCollection {
	if min == 0 && max == 0 {
		return fc
	}
	out := &FeatureCollection{SRID: fc.SRID, Schema: fc.Schema}
	for i := range fc.Features {
		y := fc.Features[i].Year()
		if y == 0 {
			continue
		}
		if min != 0 && y < min {
			continue
		}
		if max != 0 && y > max {
			continue
		}
		out.Features = append(out.Features, fc.Features[i])
	}
	return out
}

// FilterAttr keeps features whose attribute matches one of the allowed
// values, case-insensitively. An empty allow list keeps everything.
func (fc *FeatureCollection) FilterAttr(field string, allowed []string) *FeatureCollection {
	if len(allowed) == 0 {
		return fc
	}
	allow := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		allow[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	out := &FeatureCollection{SRID: fc.SRID, Schema: fc.Schema}
	for i := range fc.Features {
		v := strings.ToLower(strings.TrimSpace(fc.Features[i].Attrs[field]))
		if _, ok := allow[v]; ok {
			out.Features = append(out.Features, fc.Features[i])
		}
	}
	return out
}

package layer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// GeoJSON persistence for prepared layers. RFC 7946 dropped the crs member,
// but these files hold planar projected coordinates, so the legacy named-CRS
// member is written and honored to keep the projection check end to end.

type jsonCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type jsonFeature struct {
	Type       string            `json:"type"`
	ID         int64             `json:"id"`
	Geometry   json.RawMessage   `json:"geometry"`
	Properties map[string]string `json:"properties,omitempty"`
}

type jsonCollection struct {
	Type     string        `json:"type"`
	CRS      *jsonCRS      `json:"crs,omitempty"`
	Features []jsonFeature `json:"features"`
}

// WriteGeoJSON persists a collection, creating parent directories and
// replacing the target atomically.
func WriteGeoJSON(path string, fc *FeatureCollection) error {
	doc := jsonCollection{Type: "FeatureCollection", Features: make([]jsonFeature, 0, fc.Len())}
	if fc.SRID != 0 {
		doc.CRS = &jsonCRS{
			Type:       "name",
			Properties: map[string]string{"name": fmt.Sprintf("EPSG:%d", fc.SRID)},
		}
	}

	for i := range fc.Features {
		f := &fc.Features[i]
		raw, err := geojson.Marshal(f.Geom)
		if err != nil {
			return eris.Wrapf(err, "layer: encode feature %d", f.ID)
		}
		doc.Features = append(doc.Features, jsonFeature{
			Type:       "Feature",
			ID:         f.ID,
			Geometry:   raw,
			Properties: f.Attrs,
		})
	}

	data, err := json.Marshal(&doc)
	if err != nil {
		return eris.Wrapf(err, "layer: encode %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "layer: create directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "layer: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "layer: replace %s", path)
	}

	zap.L().Debug("layer: wrote geojson",
		zap.String("path", path),
		zap.Int("features", fc.Len()),
	)
	return nil
}

// ReadGeoJSON loads a collection written by WriteGeoJSON (or compatible
// tooling), verifying the crs member against the working projection.
func ReadGeoJSON(path string, declaredSRID int) (*FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}

	var doc jsonCollection
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "layer: decode %s", path)
	}

	srid := declaredSRID
	if doc.CRS != nil {
		if code := parseCRSName(doc.CRS.Properties["name"]); code != 0 {
			if err := CheckCRS(path, declaredSRID, code); err != nil {
				return nil, err
			}
			if srid == 0 {
				srid = code
			}
		}
	}

	fc := NewCollection(srid)
	schema := make(map[string]struct{})
	for i := range doc.Features {
		jf := &doc.Features[i]
		var g geom.T
		if err := geojson.Unmarshal(jf.Geometry, &g); err != nil {
			return nil, eris.Wrapf(err, "layer: decode feature %d in %s", jf.ID, path)
		}
		for k := range jf.Properties {
			schema[k] = struct{}{}
		}
		fc.Features = append(fc.Features, Feature{ID: jf.ID, Geom: g, Attrs: jf.Properties})
	}
	for k := range schema {
		fc.Schema = append(fc.Schema, k)
	}

	return fc, nil
}

// WritePreview persists the first n features for quick inspection.
func WritePreview(path string, fc *FeatureCollection, n int) error {
	if n <= 0 || n > fc.Len() {
		n = fc.Len()
	}
	return WriteGeoJSON(path, fc.View(0, n))
}

// parseCRSName extracts an EPSG code from "EPSG:5880" or
// "urn:ogc:def:crs:EPSG::5880" style names.
func parseCRSName(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	idx := strings.LastIndexAny(name, ":")
	if idx < 0 || idx+1 >= len(name) {
		return 0
	}
	code, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0
	}
	return code
}

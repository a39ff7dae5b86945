package rings

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/roadrings/internal/geometry"
)

// Manifest records how a persisted partition was built so later runs can
// check they are working against the same parameters.
type Manifest struct {
	RunID        string         `yaml:"run_id"`
	BuiltAt      time.Time      `yaml:"built_at"`
	AOICode      string         `yaml:"aoi_code,omitempty"`
	SRID         int            `yaml:"srid"`
	ThresholdsKm []float64      `yaml:"thresholds_km"`
	QuadSegments int            `yaml:"quad_segments,omitempty"`
	AOIAreaM2    float64        `yaml:"aoi_area_m2"`
	AOIAreaHa    float64        `yaml:"aoi_area_ha"`
	ToleranceM2  float64        `yaml:"tolerance_m2"`
	Rings        []ManifestRing `yaml:"rings"`
}

// ManifestRing summarizes one ring of the partition.
type ManifestRing struct {
	ID     string  `yaml:"id"`
	MinKm  float64 `yaml:"min_km"`
	MaxKm  float64 `yaml:"max_km"`
	AreaM2 float64 `yaml:"area_m2"`
	AreaHa float64 `yaml:"area_ha"`
}

// Manifest summarizes the partition under a fresh run identifier.
func (p *Partition) Manifest(aoiCode string, quadSegments int) Manifest {
	m := Manifest{
		RunID:        uuid.New().String(),
		BuiltAt:      time.Now().UTC(),
		AOICode:      aoiCode,
		SRID:         p.SRID,
		ThresholdsKm: append([]float64(nil), p.Thresholds...),
		QuadSegments: quadSegments,
		AOIAreaM2:    p.AOIArea,
		AOIAreaHa:    p.AOIArea / geometry.SquareMetersPerHectare,
		ToleranceM2:  p.Epsilon,
	}
	for i := range p.Rings {
		r := &p.Rings[i]
		m.Rings = append(m.Rings, ManifestRing{
			ID:     r.ID,
			MinKm:  r.MinKm,
			MaxKm:  r.MaxKm,
			AreaM2: r.Area,
			AreaHa: r.Area / geometry.SquareMetersPerHectare,
		})
	}
	return m
}

// WriteManifest persists a manifest as YAML, replacing the target
// atomically.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return eris.Wrapf(err, "rings: encode manifest %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "rings: create directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "rings: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "rings: replace %s", path)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, eris.Wrapf(err, "rings: read manifest %s", path)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, eris.Wrapf(err, "rings: parse manifest %s", path)
	}
	return m, nil
}

package layer

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrings/internal/geometry"
)

// CodeFromWKT maps well-known projection text to an EPSG code by
// fingerprint. Returns 0 when the projection is not recognized; unknown
// projections are tolerated, mismatched known ones are not.
func CodeFromWKT(wkt string) int {
	s := strings.ToLower(wkt)
	switch {
	case strings.Contains(s, "5880"),
		strings.Contains(s, "brazil_polyconic"),
		strings.Contains(s, "brazil polyconic"):
		return 5880
	case strings.Contains(s, "4674"):
		return 4674
	case strings.Contains(s, "4326"),
		strings.Contains(s, "wgs_1984"),
		strings.Contains(s, "wgs 84"):
		return 4326
	case strings.Contains(s, "sirgas"):
		return 4674
	}
	return 0
}

// SidecarCRS reads the .prj sidecar next to a shapefile and returns its EPSG
// code, or 0 when the sidecar is missing or unrecognized.
func SidecarCRS(shpPath string) int {
	prj := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prj)
	if err != nil {
		return 0
	}
	return CodeFromWKT(string(data))
}

// CheckCRS rejects a layer whose detected projection disagrees with the
// declared working projection. Undetected projections (code 0) pass; the
// shared planar projection is a precondition, this is only a consistency
// check.
func CheckCRS(path string, declared, found int) error {
	if declared == 0 || found == 0 || declared == found {
		return nil
	}
	return eris.Wrapf(geometry.ErrInvalidGeometry,
		"layer: %s is EPSG:%d, working projection is EPSG:%d", path, found, declared)
}

package layer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/roadrings/internal/geometry"
)

func TestWriteReadGeoJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed", "deforestation.geojson")

	fc := NewCollection(5880, "year", "main_class")
	fc.Features = []Feature{
		feat(0, sq(0, 0, 4), map[string]string{"year": "2019", "main_class": "Desmatamento"}),
		feat(1, sq(10, 0, 2), map[string]string{"year": "2020"}),
	}

	require.NoError(t, WriteGeoJSON(path, fc))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := ReadGeoJSON(path, 5880)
	require.NoError(t, err)
	assert.Equal(t, 5880, got.SRID)
	require.Equal(t, 2, got.Len())
	assert.ElementsMatch(t, []string{"year", "main_class"}, got.Schema)

	assert.Equal(t, int64(0), got.Features[0].ID)
	assert.Equal(t, 2019, got.Features[0].Year())
	assert.Equal(t, "Desmatamento", got.Features[0].Attr("main_class"))

	ext := got.Extent()
	assert.Equal(t, 0.0, ext.MinX)
	assert.Equal(t, 12.0, ext.MaxX)
}

func TestReadGeoJSON_CRSMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.geojson")

	fc := NewCollection(4326)
	fc.Features = []Feature{feat(0, sq(0, 0, 1), nil)}
	require.NoError(t, WriteGeoJSON(path, fc))

	_, err := ReadGeoJSON(path, 5880)
	require.Error(t, err)
	assert.True(t, eris.Is(err, geometry.ErrInvalidGeometry))
}

func TestReadGeoJSON_URNStyleCRS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.geojson")
	raw := `{
		"type": "FeatureCollection",
		"crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::5880"}},
		"features": [
			{"type": "Feature", "id": 7,
			 "geometry": {"type": "Point", "coordinates": [1, 2]},
			 "properties": {"year": "2019"}}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	fc, err := ReadGeoJSON(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 5880, fc.SRID)
	require.Equal(t, 1, fc.Len())
	assert.Equal(t, int64(7), fc.Features[0].ID)
	assert.Equal(t, 2019, fc.Features[0].Year())

	pt, ok := fc.Features[0].Geom.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, pt.FlatCoords())
}

func TestReadGeoJSON_MissingFile(t *testing.T) {
	_, err := ReadGeoJSON(filepath.Join(t.TempDir(), "nope.geojson"), 5880)
	require.Error(t, err)
}

func TestWritePreview(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preview.geojson")

	fc := NewCollection(5880)
	for i := 0; i < 10; i++ {
		fc.Features = append(fc.Features, feat(int64(i), sq(float64(i), 0, 1), nil))
	}

	require.NoError(t, WritePreview(path, fc, 3))
	got, err := ReadGeoJSON(path, 5880)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())

	require.NoError(t, WritePreview(path, fc, 0))
	got, err = ReadGeoJSON(path, 5880)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Len())
}

func TestParseCRSName(t *testing.T) {
	assert.Equal(t, 5880, parseCRSName("EPSG:5880"))
	assert.Equal(t, 5880, parseCRSName("urn:ogc:def:crs:EPSG::5880"))
	assert.Equal(t, 0, parseCRSName(""))
	assert.Equal(t, 0, parseCRSName("EPSG:"))
	assert.Equal(t, 0, parseCRSName("OGC:CRS84"))
}

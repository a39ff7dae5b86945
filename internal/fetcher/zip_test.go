package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"rr.shp": "shape bytes",
		"rr.dbf": "attribute bytes",
		"rr.prj": "PROJCS[...]",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "rr.shp"))
	require.NoError(t, err)
	assert.Equal(t, "shape bytes", string(data))
}

func TestExtractZIP_NestedSubdirectories(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"shapefiles/2024/roads.shp": "deep content",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)

	data, err := os.ReadFile(filepath.Join(destDir, "shapefiles", "2024", "roads.shp"))
	require.NoError(t, err)
	assert.Equal(t, "deep content", string(data))
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"../../../etc/passwd": "malicious",
	})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_MissingArchive(t *testing.T) {
	_, err := ExtractZIP(filepath.Join(t.TempDir(), "absent.zip"), t.TempDir())
	require.Error(t, err)
}

func TestFindByExt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "RR_Municipios.SHP"), []byte("x"), 0o644))

	// Extension matching is case-insensitive and recurses into
	// subdirectories.
	path, err := FindByExt(dir, ".shp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "RR_Municipios.SHP"), path)
}

func TestFindByExt_NotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	_, err := FindByExt(dir, ".shp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file found")
}

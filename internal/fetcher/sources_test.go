package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrings/internal/config"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFetchAll_DownloadsAndExtracts(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"rr.shp": "shape bytes",
		"rr.prj": "PROJCS[...]",
	})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(archive) //nolint:errcheck
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Fetch.TimeoutSecs = 5
	cfg.Fetch.Sources.Roads = srv.URL + "/roraima-roads.zip"

	got, err := FetchAll(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "roads", got[0].Source)
	assert.Equal(t, filepath.Join(cfg.Paths.RawDir(), "roraima-roads.zip"), got[0].Path)
	assert.Len(t, got[0].Extracted, 2)

	_, err = os.Stat(filepath.Join(cfg.Paths.RawDir(), "roads", "rr.shp"))
	require.NoError(t, err)

	// A second run sees the recorded ETag, gets a 304, and keeps the
	// archive it already has.
	got2, err := FetchAll(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, got2, 1)
	assert.Len(t, got2[0].Extracted, 2)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchAll_MultipleSources(t *testing.T) {
	archive := zipBytes(t, map[string]string{"roads.shp": "x"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/roads.zip":
			w.Write(archive) //nolint:errcheck
		case "/prodes.json":
			w.Write([]byte(`{"type":"FeatureCollection","features":[]}`)) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Fetch.TimeoutSecs = 5
	cfg.Fetch.Sources.Roads = srv.URL + "/roads.zip"
	cfg.Fetch.Sources.Deforestation = srv.URL + "/prodes.json"

	got, err := FetchAll(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Results keep the configured source order regardless of which
	// download finishes first.
	assert.Equal(t, "roads", got[0].Source)
	assert.Equal(t, "deforestation", got[1].Source)
	assert.Len(t, got[0].Extracted, 1)
	assert.Empty(t, got[1].Extracted)
}

func TestFetchAll_FTPArchiveKeptWhenPresent(t *testing.T) {
	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Fetch.Sources.Boundary = "ftp://geoftp.example.invalid/malhas/RR_UF_2023.zip"

	// Pre-seed the archive; no FTP connection should be attempted.
	dest := filepath.Join(cfg.Paths.RawDir(), "RR_UF_2023.zip")
	require.NoError(t, os.MkdirAll(cfg.Paths.RawDir(), 0o755))
	require.NoError(t, os.WriteFile(dest, zipBytes(t, map[string]string{"rr.shp": "x"}), 0o644))

	got, err := FetchAll(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "boundary", got[0].Source)
	assert.Len(t, got[0].Extracted, 1)
}

func TestFetchAll_UnsupportedScheme(t *testing.T) {
	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Fetch.Sources.Roads = "gopher://example.com/roads.zip"

	_, err := FetchAll(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestFetchAll_NoSources(t *testing.T) {
	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()

	got, err := FetchAll(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://download.geofabrik.de/south-america/brazil/norte-latest-free.shp.zip", want: "norte-latest-free.shp.zip"},
		{url: "ftp://geoftp.ibge.gov.br/malhas/RR_UF_2023.zip", want: "RR_UF_2023.zip"},
		{url: "https://example.com/data/prodes.json?year=2024", want: "prodes.json"},
		{url: "https://example.com/", wantErr: true},
		{url: "https://example.com", wantErr: true},
	}
	for _, tt := range tests {
		name, err := archiveName(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, name)
	}
}

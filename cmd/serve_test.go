//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/config"
	"github.com/sells-group/roadrings/internal/store"
)

func emptyStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "summary.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seededStore(t *testing.T) store.Store {
	t.Helper()
	st := emptyStore(t)

	table := &aggregate.Table{
		ByRingYear: []aggregate.RowRingYear{
			{RingID: "0-5km", Year: 2019, AreaHa: 120.5},
			{RingID: ">5km", Year: 2019, AreaHa: 30},
			{RingID: "0-5km", Year: 2020, AreaHa: 80},
			{RingID: ">5km", Year: 2020, AreaHa: 0},
		},
		ByRing: []aggregate.RowRing{
			{RingID: "0-5km", AreaHa: 200.5},
			{RingID: ">5km", AreaHa: 30},
		},
		Meta: aggregate.Meta{
			RunID:        "run-serve-1",
			GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			AOICode:      "RR",
			SRID:         5880,
			ThresholdsKm: []float64{5},
			Years:        []int{2019, 2020},
			Features:     4,
			Fragments:    3,
		},
	}
	require.NoError(t, st.Persist(context.Background(), table))
	return st
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewRouter_Health(t *testing.T) {
	h := newRouter(emptyStore(t), "")

	rr := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestNewRouter_ByRingYear(t *testing.T) {
	h := newRouter(seededStore(t), "")

	rr := get(t, h, "/api/summary/by-ring-year")
	assert.Equal(t, http.StatusOK, rr.Code)

	var rows []apiRingYear
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	assert.Equal(t, []apiRingYear{
		{RingID: "0-5km", Year: 2019, AreaHa: 120.5},
		{RingID: ">5km", Year: 2019, AreaHa: 30},
		{RingID: "0-5km", Year: 2020, AreaHa: 80},
		{RingID: ">5km", Year: 2020, AreaHa: 0},
	}, rows)
}

func TestNewRouter_ByRingYear_YearFilter(t *testing.T) {
	h := newRouter(seededStore(t), "")

	rr := get(t, h, "/api/summary/by-ring-year?year_min=2020")
	assert.Equal(t, http.StatusOK, rr.Code)

	var rows []apiRingYear
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, 2020, row.Year)
	}
}

func TestNewRouter_ByRingYear_BadYearParam(t *testing.T) {
	h := newRouter(seededStore(t), "")

	rr := get(t, h, "/api/summary/by-ring-year?year_max=soon")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "year_max must be an integer")
}

func TestNewRouter_ByRing(t *testing.T) {
	h := newRouter(seededStore(t), "")

	rr := get(t, h, "/api/summary/by-ring")
	assert.Equal(t, http.StatusOK, rr.Code)

	var rows []apiRing
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	assert.Equal(t, []apiRing{
		{RingID: "0-5km", AreaHa: 200.5},
		{RingID: ">5km", AreaHa: 30},
	}, rows)
}

func TestNewRouter_Meta(t *testing.T) {
	h := newRouter(seededStore(t), "")

	rr := get(t, h, "/api/meta")
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "run-serve-1", body["run_id"])
	assert.Equal(t, "RR", body["aoi_code"])
	assert.EqualValues(t, 5880, body["srid"])
	assert.EqualValues(t, 4, body["features"])
}

func TestNewRouter_Meta_NothingPersisted(t *testing.T) {
	h := newRouter(emptyStore(t), "")

	rr := get(t, h, "/api/meta")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no summary persisted yet")
}

func TestNewRouter_Rings(t *testing.T) {
	ringsPath := filepath.Join(t.TempDir(), "rings.geojson")
	require.NoError(t, os.WriteFile(ringsPath, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))

	h := newRouter(emptyStore(t), ringsPath)

	rr := get(t, h, "/api/rings")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "FeatureCollection")
}

func TestNewRouter_Rings_NotBuilt(t *testing.T) {
	h := newRouter(emptyStore(t), filepath.Join(t.TempDir(), "rings.geojson"))

	rr := get(t, h, "/api/rings")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "ring layer not built yet")
}

func TestNewRouter_CORS(t *testing.T) {
	h := newRouter(emptyStore(t), "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
